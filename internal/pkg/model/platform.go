package model

import (
	"math"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
)

// Platform is the singleton ledger consumed by game creation and finalize.
type Platform struct {
	Authority       flow.Address `json:"authority"`
	Treasury        flow.Address `json:"treasury"`
	PlatformFeeBps  uint16       `json:"platformFeeBps"`
	TreasuryFeeBps  uint16       `json:"treasuryFeeBps"`
	TotalGames      uint64       `json:"totalGames"`
	TotalVolume     uint64       `json:"totalVolume"`
	TreasuryBalance uint64       `json:"treasuryBalance"`
	Paused          bool         `json:"paused"`
	InitializedAt   int64        `json:"initializedAt"`
}

// AllocateGameID returns the next game id and advances the counter.
func (p *Platform) AllocateGameID() (uint64, error) {
	if p.TotalGames == math.MaxUint64 {
		return 0, reject.ErrArithmeticOverflow
	}
	id := p.TotalGames
	p.TotalGames++
	return id, nil
}

// Accrue never fails. The accumulators saturate.
func (p *Platform) Accrue(volume, treasuryCut uint64) {
	p.TotalVolume = settlement.SaturatingAdd(p.TotalVolume, volume)
	p.TreasuryBalance = settlement.SaturatingAdd(p.TreasuryBalance, treasuryCut)
}
