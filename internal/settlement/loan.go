package settlement

import (
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/shopspring/decimal"
)

const (
	CollateralRatioPercent = 110
	SecondsPerYear         = 365 * 24 * 60 * 60
)

func RequiredCollateral(entryFee uint64) (uint64, error) {
	return MulDiv(entryFee, CollateralRatioPercent, 100)
}

func CheckCollateral(entryFee, collateral uint64) error {
	required, err := RequiredCollateral(entryFee)
	if err != nil {
		return err
	}
	if collateral < required {
		return reject.ErrInsufficientCollateral
	}
	return nil
}

// AccruedInterest is simple interest: floor(principal * aprBps * elapsed / (10000 * year)).
func AccruedInterest(principal uint64, aprBps uint16, elapsedSeconds int64) (uint64, error) {
	if elapsedSeconds <= 0 || aprBps == 0 || principal == 0 {
		return 0, nil
	}
	rate, err := Mul(uint64(aprBps), uint64(elapsedSeconds))
	if err != nil {
		return 0, err
	}
	return MulDiv(principal, rate, BpsDenominator*SecondsPerYear)
}

func Repayment(principal uint64, aprBps uint16, elapsedSeconds int64) (uint64, error) {
	interest, err := AccruedInterest(principal, aprBps, elapsedSeconds)
	if err != nil {
		return 0, err
	}
	return Add(principal, interest)
}

// LoanOutcome describes where a borrower's winnings and collateral go at settlement.
type LoanOutcome struct {
	Repayment          uint64 `json:"repayment"`
	FromWinnings       uint64 `json:"fromWinnings"`
	FromCollateral     uint64 `json:"fromCollateral"`
	CollateralReleased uint64 `json:"collateralReleased"`
	PayoutToBorrower   uint64 `json:"payoutToBorrower"`
	Shortfall          uint64 `json:"shortfall"`
}

// SettleLoanWin repays the loan out of the borrower's share first and only
// touches collateral when the share cannot cover the repayment.
func SettleLoanWin(share, repayment, collateral uint64) (LoanOutcome, error) {
	out := LoanOutcome{Repayment: repayment}
	if share >= repayment {
		out.FromWinnings = repayment
		out.PayoutToBorrower = share - repayment
		out.CollateralReleased = collateral
		return out, nil
	}
	out.FromWinnings = share
	remaining := repayment - share
	if remaining > collateral {
		out.FromCollateral = collateral
		out.Shortfall = remaining - collateral
		return out, nil
	}
	out.FromCollateral = remaining
	out.CollateralReleased = collateral - remaining
	return out, nil
}

// SettleLoanLoss seizes the whole collateral.
func SettleLoanLoss(repayment, collateral uint64) LoanOutcome {
	out := LoanOutcome{
		Repayment:      repayment,
		FromCollateral: collateral,
	}
	if repayment > collateral {
		out.Shortfall = repayment - collateral
	}
	return out
}

// ParseAPR converts an annual rate such as "0.052" into basis points.
func ParseAPR(value string) (uint16, error) {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return 0, reject.ErrInvalidFeeConfiguration
	}
	return uint16(rate.Mul(decimal.NewFromInt(BpsDenominator)).Round(0).IntPart()), nil
}

// FormatBps renders basis points as a decimal fraction.
func FormatBps(bps uint16) string {
	return decimal.New(int64(bps), -4).String()
}
