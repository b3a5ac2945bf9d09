package model

import "github.com/onflow/flow-go-sdk"

// Loan records a collateralized entry payment borrowed from the lending pool.
type Loan struct {
	Borrower      flow.Address `json:"borrower"`
	Amount        uint64       `json:"loanAmount"`
	Collateral    uint64       `json:"collateralAmount"`
	ObligationRef string       `json:"loanObligationRef"`
	OpenedAt      int64        `json:"openedAt"`
}

type Payout struct {
	Player             flow.Address `json:"player"`
	Share              uint64       `json:"share"`
	LoanRepaid         uint64       `json:"loanRepaid,omitempty"`
	CollateralSeized   uint64       `json:"collateralSeized,omitempty"`
	CollateralReleased uint64       `json:"collateralReleased,omitempty"`
	Shortfall          uint64       `json:"shortfall,omitempty"`
	Paid               uint64       `json:"paid"`
}

// Settlement is written once, by finalize.
type Settlement struct {
	Pot          uint64   `json:"pot"`
	PlatformFee  uint64   `json:"platformFee"`
	TreasuryFee  uint64   `json:"treasuryFee"`
	WinnerAmount uint64   `json:"winnerAmount"`
	PerWinner    uint64   `json:"perWinner"`
	Dust         uint64   `json:"dust"`
	Payouts      []Payout `json:"payouts"`
	SettledAt    int64    `json:"settledAt"`
}
