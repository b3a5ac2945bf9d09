package utils

import (
	"encoding/json"
	"fmt"
)

// DecodeMessage reads a pubsub payload into T. The error names the message type.
func DecodeMessage[T any](data []byte) (*T, error) {
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, fmt.Errorf("decode %T message: %w", value, err)
	}
	return &value, nil
}
