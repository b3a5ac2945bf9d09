package model

import (
	"fmt"

	"github.com/onflow/flow-go-sdk"
)

const (
	ChamberCount = 6
	MaxTeamSize  = 2
	MaxPlayers   = 2 * MaxTeamSize
)

type Game struct {
	Id             uint64                    `json:"gameId"`
	Creator        flow.Address              `json:"creator"`
	Mode           GameMode                  `json:"mode"`
	Status         GameStatus                `json:"status"`
	Location       Location                  `json:"location"`
	EntryFee       uint64                    `json:"entryFee"`
	TotalPot       uint64                    `json:"totalPot"`
	TeamA          [MaxTeamSize]flow.Address `json:"teamA"`
	TeamB          [MaxTeamSize]flow.Address `json:"teamB"`
	TeamACount     uint8                     `json:"teamACount"`
	TeamBCount     uint8                     `json:"teamBCount"`
	TurnOrder      [MaxPlayers]flow.Address  `json:"turnOrder"`
	BulletChamber  uint8                     `json:"bulletChamber,omitempty"`
	CurrentChamber uint8                     `json:"currentChamber"`
	CurrentTurn    uint8                     `json:"currentTurn"`
	ShotsTaken     uint16                    `json:"shotsTaken"`
	VrfSeed        Hash32                    `json:"vrfSeed"`
	VrfResult      *Hash32                   `json:"vrfResult,omitempty"`
	VrfRequestId   string                    `json:"vrfRequestId,omitempty"`
	VrfPending     bool                      `json:"vrfPending"`
	WinnerTeam     *Team                     `json:"winnerTeam,omitempty"`
	CreatedAt      int64                     `json:"createdAt"`
	FinishedAt     int64                     `json:"finishedAt,omitempty"`
	LastActionAt   int64                     `json:"lastActionAt"`
	CheckpointRoot []byte                    `json:"checkpointRoot,omitempty"`
	CheckpointedAt int64                     `json:"checkpointedAt,omitempty"`
	Loans          []Loan                    `json:"loans,omitempty"`
	Settlement     *Settlement               `json:"settlement,omitempty"`

	// Practice games seat a platform bot on team B and carry no stake.
	Practice      bool          `json:"practice,omitempty"`
	Bot           flow.Address  `json:"bot,omitempty"`
	BotDifficulty BotDifficulty `json:"botDifficulty,omitempty"`
}

func (g *Game) PlayerCount() int {
	return int(g.TeamACount) + int(g.TeamBCount)
}

func (g *Game) IsFull() bool {
	capacity := g.Mode.TeamCapacity()
	return int(g.TeamACount) >= capacity && int(g.TeamBCount) >= capacity
}

func (g *Game) Members(team Team) []flow.Address {
	if team == TeamA {
		return append([]flow.Address{}, g.TeamA[:g.TeamACount]...)
	}
	return append([]flow.Address{}, g.TeamB[:g.TeamBCount]...)
}

// Players lists team A then team B.
func (g *Game) Players() []flow.Address {
	return append(g.Members(TeamA), g.Members(TeamB)...)
}

func (g *Game) TeamOf(player flow.Address) (Team, bool) {
	for _, member := range g.Members(TeamA) {
		if member == player {
			return TeamA, true
		}
	}
	for _, member := range g.Members(TeamB) {
		if member == player {
			return TeamB, true
		}
	}
	return 0, false
}

func (g *Game) Contains(player flow.Address) bool {
	_, ok := g.TeamOf(player)
	return ok
}

// CurrentPlayer is the participant whose turn it is. Only meaningful while in progress.
func (g *Game) CurrentPlayer() flow.Address {
	if int(g.CurrentTurn) >= len(g.TurnOrder) {
		return flow.EmptyAddress
	}
	return g.TurnOrder[g.CurrentTurn]
}

func (g *Game) IsSettled() bool {
	return g.Settlement != nil
}

func (g *Game) LoanOf(player flow.Address) (Loan, bool) {
	for _, loan := range g.Loans {
		if loan.Borrower == player {
			return loan, true
		}
	}
	return Loan{}, false
}

func (g *Game) HasLoan() bool {
	return len(g.Loans) > 0
}

func (g *Game) LoanAmount() uint64 {
	var total uint64
	for _, loan := range g.Loans {
		total += loan.Amount
	}
	return total
}

func (g *Game) CollateralAmount() uint64 {
	var total uint64
	for _, loan := range g.Loans {
		total += loan.Collateral
	}
	return total
}

func (g *Game) Clone() *Game {
	clone := *g
	if g.VrfResult != nil {
		result := *g.VrfResult
		clone.VrfResult = &result
	}
	if g.WinnerTeam != nil {
		winner := *g.WinnerTeam
		clone.WinnerTeam = &winner
	}
	if g.CheckpointRoot != nil {
		clone.CheckpointRoot = append([]byte{}, g.CheckpointRoot...)
	}
	if g.Loans != nil {
		clone.Loans = append([]Loan{}, g.Loans...)
	}
	if g.Settlement != nil {
		settlement := *g.Settlement
		settlement.Payouts = append([]Payout{}, g.Settlement.Payouts...)
		clone.Settlement = &settlement
	}
	return &clone
}

// Validate checks the record invariants. Every transition leaves a record that passes.
func (g *Game) Validate() error {
	if !g.Mode.Valid() {
		return fmt.Errorf("game %d: invalid mode %d", g.Id, g.Mode)
	}
	if !g.Status.Valid() {
		return fmt.Errorf("game %d: invalid status %d", g.Id, g.Status)
	}
	capacity := g.Mode.TeamCapacity()
	if int(g.TeamACount) > capacity || int(g.TeamBCount) > capacity {
		return fmt.Errorf("game %d: team counts %d/%d exceed capacity %d", g.Id, g.TeamACount, g.TeamBCount, capacity)
	}
	if g.Status == GameWaitingForPlayers || g.Status == GameDelegated || g.Status == GameInProgress {
		if g.TotalPot != g.EntryFee*uint64(g.PlayerCount()) {
			return fmt.Errorf("game %d: pot %d does not match %d entries of %d", g.Id, g.TotalPot, g.PlayerCount(), g.EntryFee)
		}
	}
	inPlay := g.Status == GameInProgress || g.Status == GameFinished
	if inPlay != (g.BulletChamber != 0) {
		return fmt.Errorf("game %d: bullet chamber set=%t in status %s", g.Id, g.BulletChamber != 0, g.Status)
	}
	if g.BulletChamber > ChamberCount {
		return fmt.Errorf("game %d: bullet chamber %d out of range", g.Id, g.BulletChamber)
	}
	if g.Status == GameInProgress && (g.CurrentChamber < 1 || g.CurrentChamber > ChamberCount) {
		return fmt.Errorf("game %d: current chamber %d out of range", g.Id, g.CurrentChamber)
	}
	if (g.Status == GameFinished) != (g.WinnerTeam != nil) {
		return fmt.Errorf("game %d: winner set=%t in status %s", g.Id, g.WinnerTeam != nil, g.Status)
	}
	if g.Practice && (g.EntryFee != 0 || len(g.Loans) > 0 || g.Mode != OneVsOne) {
		return fmt.Errorf("game %d: practice game carries a stake", g.Id)
	}
	if len(g.Loans) > MaxPlayers {
		return fmt.Errorf("game %d: %d loans", g.Id, len(g.Loans))
	}
	return nil
}
