package settlement

import (
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
)

type Fees struct {
	PlatformBps uint16 `json:"platformFeeBps"`
	TreasuryBps uint16 `json:"treasuryFeeBps"`
}

func (f Fees) Validate() error {
	return ValidateFees(f.PlatformBps, f.TreasuryBps)
}

func ValidateFees(platformBps, treasuryBps uint16) error {
	if platformBps > BpsDenominator || treasuryBps > BpsDenominator {
		return reject.ErrInvalidFeeConfiguration
	}
	if uint32(platformBps)+uint32(treasuryBps) > BpsDenominator {
		return reject.ErrInvalidFeeConfiguration
	}
	return nil
}

func BpsOf(amount uint64, bps uint16) (uint64, error) {
	return MulDiv(amount, uint64(bps), BpsDenominator)
}

// ComputeFees returns the platform fee, treasury fee and what is left for the winners.
func ComputeFees(pot uint64, fees Fees) (platformFee, treasuryFee, winnerAmount uint64, err error) {
	if err = fees.Validate(); err != nil {
		return 0, 0, 0, err
	}
	if platformFee, err = BpsOf(pot, fees.PlatformBps); err != nil {
		return 0, 0, 0, err
	}
	if treasuryFee, err = BpsOf(pot, fees.TreasuryBps); err != nil {
		return 0, 0, 0, err
	}
	totalFee, err := Add(platformFee, treasuryFee)
	if err != nil {
		return 0, 0, 0, err
	}
	if winnerAmount, err = Sub(pot, totalFee); err != nil {
		return 0, 0, 0, err
	}
	return platformFee, treasuryFee, winnerAmount, nil
}

// Split divides amount evenly across n recipients. The remainder is returned as dust.
func Split(amount uint64, n int) (per uint64, dust uint64, err error) {
	if n <= 0 {
		return 0, 0, reject.ErrArithmeticOverflow
	}
	per = amount / uint64(n)
	paid, err := Mul(per, uint64(n))
	if err != nil {
		return 0, 0, err
	}
	dust, err = Sub(amount, paid)
	if err != nil {
		return 0, 0, err
	}
	return per, dust, nil
}

type Breakdown struct {
	Pot          uint64 `json:"pot"`
	PlatformFee  uint64 `json:"platformFee"`
	TreasuryFee  uint64 `json:"treasuryFee"`
	WinnerAmount uint64 `json:"winnerAmount"`
	PerWinner    uint64 `json:"perWinner"`
	Dust         uint64 `json:"dust"`
	WinnerCount  int    `json:"winnerCount"`
}

// TreasuryTotal is what the treasury receives: its fee plus the dust.
func (b Breakdown) TreasuryTotal() (uint64, error) {
	return Add(b.TreasuryFee, b.Dust)
}

func Settle(pot uint64, fees Fees, winnerCount int) (Breakdown, error) {
	platformFee, treasuryFee, winnerAmount, err := ComputeFees(pot, fees)
	if err != nil {
		return Breakdown{}, err
	}
	per, dust, err := Split(winnerAmount, winnerCount)
	if err != nil {
		return Breakdown{}, err
	}
	return Breakdown{
		Pot:          pot,
		PlatformFee:  platformFee,
		TreasuryFee:  treasuryFee,
		WinnerAmount: winnerAmount,
		PerWinner:    per,
		Dust:         dust,
		WinnerCount:  winnerCount,
	}, nil
}
