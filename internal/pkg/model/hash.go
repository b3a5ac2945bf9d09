package model

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash32 is a 32 byte value rendered as hex in json.
type Hash32 [32]byte

func (h Hash32) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash32) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *Hash32) UnmarshalText(text []byte) error {
	parsed, err := ParseHash32(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func ParseHash32(value string) (Hash32, error) {
	var h Hash32
	raw, err := hex.DecodeString(strings.TrimPrefix(value, "0x"))
	if err != nil {
		return h, err
	}
	if len(raw) != len(h) {
		return h, fmt.Errorf("expected %d bytes, got %d", len(h), len(raw))
	}
	copy(h[:], raw)
	return h, nil
}
