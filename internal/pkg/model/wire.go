package model

import (
	"encoding/binary"
	"fmt"

	"github.com/onflow/flow-go-sdk"
)

// WireSize is the encoded length of a game record.
const WireSize = 8 + flow.AddressLength + 1 + 1 + 8 + 8 +
	1 + MaxTeamSize*flow.AddressLength +
	1 + MaxTeamSize*flow.AddressLength +
	1 + 1 + 1 + 2 +
	32 + 1 + 32 + 1 + 1 +
	8 + 8

// MarshalBinary encodes the game record in its fixed-width little endian layout.
// Loan, settlement and checkpoint data are not part of the record layout.
func (g *Game) MarshalBinary() ([]byte, error) {
	if !g.Mode.Valid() {
		return nil, fmt.Errorf("game %d: invalid mode %d", g.Id, g.Mode)
	}
	if !g.Status.Valid() {
		return nil, fmt.Errorf("game %d: invalid status %d", g.Id, g.Status)
	}
	w := wireWriter{data: make([]byte, WireSize)}
	w.uint64(g.Id)
	w.address(g.Creator)
	w.u8(byte(g.Mode))
	w.u8(byte(g.Status))
	w.uint64(g.EntryFee)
	w.uint64(g.TotalPot)
	w.u8(g.TeamACount)
	for _, member := range g.TeamA {
		w.address(member)
	}
	w.u8(g.TeamBCount)
	for _, member := range g.TeamB {
		w.address(member)
	}
	w.u8(g.BulletChamber)
	w.u8(g.CurrentChamber)
	w.u8(g.CurrentTurn)
	w.uint16(g.ShotsTaken)
	w.bytes(g.VrfSeed[:])
	if g.VrfResult != nil {
		w.u8(1)
		w.bytes(g.VrfResult[:])
	} else {
		w.u8(0)
		w.off += 32
	}
	if g.WinnerTeam != nil {
		w.u8(1)
		w.u8(byte(*g.WinnerTeam))
	} else {
		w.off += 2
	}
	w.uint64(uint64(g.CreatedAt))
	w.uint64(uint64(g.FinishedAt))
	return w.data, nil
}

func (g *Game) UnmarshalBinary(data []byte) error {
	if len(data) != WireSize {
		return fmt.Errorf("game record must be %d bytes, got %d", WireSize, len(data))
	}
	r := wireReader{data: data}
	decoded := Game{}
	decoded.Id = r.uint64()
	decoded.Creator = r.address()
	decoded.Mode = GameMode(r.u8())
	decoded.Status = GameStatus(r.u8())
	if !decoded.Mode.Valid() {
		return fmt.Errorf("invalid mode %d", decoded.Mode)
	}
	if !decoded.Status.Valid() {
		return fmt.Errorf("invalid status %d", decoded.Status)
	}
	decoded.EntryFee = r.uint64()
	decoded.TotalPot = r.uint64()
	decoded.TeamACount = r.u8()
	for i := range decoded.TeamA {
		decoded.TeamA[i] = r.address()
	}
	decoded.TeamBCount = r.u8()
	for i := range decoded.TeamB {
		decoded.TeamB[i] = r.address()
	}
	if decoded.TeamACount > MaxTeamSize || decoded.TeamBCount > MaxTeamSize {
		return fmt.Errorf("team counts %d/%d exceed %d", decoded.TeamACount, decoded.TeamBCount, MaxTeamSize)
	}
	decoded.BulletChamber = r.u8()
	decoded.CurrentChamber = r.u8()
	decoded.CurrentTurn = r.u8()
	if decoded.BulletChamber > ChamberCount || decoded.CurrentChamber > ChamberCount {
		return fmt.Errorf("chamber out of range")
	}
	decoded.ShotsTaken = r.uint16()
	copy(decoded.VrfSeed[:], r.next(32))
	hasResult := r.u8()
	result := r.next(32)
	if hasResult == 1 {
		var h Hash32
		copy(h[:], result)
		decoded.VrfResult = &h
	}
	hasWinner := r.u8()
	winner := r.u8()
	if hasWinner == 1 {
		if winner > byte(TeamB) {
			return fmt.Errorf("invalid winner team %d", winner)
		}
		team := Team(winner)
		decoded.WinnerTeam = &team
	}
	decoded.CreatedAt = int64(r.uint64())
	decoded.FinishedAt = int64(r.uint64())
	*g = decoded
	return nil
}

type wireReader struct {
	data []byte
	off  int
}

func (r *wireReader) next(n int) []byte {
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *wireReader) u8() byte {
	return r.next(1)[0]
}

func (r *wireReader) uint16() uint16 {
	return binary.LittleEndian.Uint16(r.next(2))
}

func (r *wireReader) uint64() uint64 {
	return binary.LittleEndian.Uint64(r.next(8))
}

func (r *wireReader) address() flow.Address {
	return flow.BytesToAddress(r.next(flow.AddressLength))
}

type wireWriter struct {
	data []byte
	off  int
}

func (w *wireWriter) bytes(b []byte) {
	w.off += copy(w.data[w.off:], b)
}

func (w *wireWriter) u8(v byte) {
	w.data[w.off] = v
	w.off++
}

func (w *wireWriter) uint16(v uint16) {
	binary.LittleEndian.PutUint16(w.data[w.off:], v)
	w.off += 2
}

func (w *wireWriter) uint64(v uint64) {
	binary.LittleEndian.PutUint64(w.data[w.off:], v)
	w.off += 8
}

func (w *wireWriter) address(a flow.Address) {
	w.bytes(a.Bytes())
}
