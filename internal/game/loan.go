package game

import (
	"strings"

	"github.com/google/uuid"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

type FundingMode string

const (
	FundingDirect FundingMode = "DIRECT"
	FundingLoan   FundingMode = "LOAN"
)

func ParseFundingMode(value string) (FundingMode, error) {
	switch FundingMode(strings.ToUpper(value)) {
	case "", FundingDirect:
		return FundingDirect, nil
	case FundingLoan:
		return FundingLoan, nil
	default:
		return "", reject.ErrInvalidFundingMode
	}
}

// Funding says how a participant pays their entry. Collateral is only read for loans.
type Funding struct {
	Mode       FundingMode
	Collateral uint64
}

// fundEntry moves the player's entry fee into the game escrow. A loan draws
// the fee from the lending pool and locks the player's collateral instead.
func fundEntry(tx store.Tx, g *model.Game, player flow.Address, funding Funding, now int64) error {
	escrow := model.EscrowAccount(g.Id)
	switch funding.Mode {
	case FundingDirect, "":
		return store.Transfer(tx, model.WalletAccount(player), escrow, g.EntryFee)
	case FundingLoan:
		loan := model.Loan{
			Borrower:      player,
			Amount:        g.EntryFee,
			Collateral:    funding.Collateral,
			ObligationRef: uuid.New().String(),
			OpenedAt:      now,
		}
		if err := AddLoan(g, loan); err != nil {
			return err
		}
		if err := store.Transfer(tx, model.WalletAccount(player), model.CollateralAccount(g.Id), loan.Collateral); err != nil {
			return err
		}
		return store.Transfer(tx, model.LendingPoolAccount, escrow, loan.Amount)
	default:
		return reject.ErrInvalidFundingMode
	}
}

// payWinner sends a winner's share out of escrow, repaying their loan first.
func payWinner(tx store.Tx, g *model.Game, winner flow.Address, share uint64, aprBps uint16, now int64) (model.Payout, error) {
	escrow := model.EscrowAccount(g.Id)
	payout := model.Payout{Player: winner, Share: share}

	loan, borrowed := g.LoanOf(winner)
	if !borrowed {
		payout.Paid = share
		return payout, store.Transfer(tx, escrow, model.WalletAccount(winner), share)
	}

	repayment, err := settlement.Repayment(loan.Amount, aprBps, now-loan.OpenedAt)
	if err != nil {
		return payout, err
	}
	outcome, err := settlement.SettleLoanWin(share, repayment, loan.Collateral)
	if err != nil {
		return payout, err
	}
	collateral := model.CollateralAccount(g.Id)
	if err := store.Transfer(tx, escrow, model.LendingPoolAccount, outcome.FromWinnings); err != nil {
		return payout, err
	}
	if err := store.Transfer(tx, escrow, model.WalletAccount(winner), outcome.PayoutToBorrower); err != nil {
		return payout, err
	}
	if err := store.Transfer(tx, collateral, model.LendingPoolAccount, outcome.FromCollateral); err != nil {
		return payout, err
	}
	if err := store.Transfer(tx, collateral, model.WalletAccount(winner), outcome.CollateralReleased); err != nil {
		return payout, err
	}
	if outcome.Shortfall > 0 {
		log.Warn().Uint64("game_id", g.Id).Str("loan", loan.ObligationRef).Uint64("shortfall", outcome.Shortfall).Msg("Loan not fully repaid")
	}

	payout.LoanRepaid = outcome.FromWinnings + outcome.FromCollateral
	payout.CollateralSeized = outcome.FromCollateral
	payout.CollateralReleased = outcome.CollateralReleased
	payout.Shortfall = outcome.Shortfall
	payout.Paid = outcome.PayoutToBorrower
	return payout, nil
}

// seizeCollateral closes a losing borrower's loan with their whole collateral.
func seizeCollateral(tx store.Tx, g *model.Game, loan model.Loan, aprBps uint16, now int64) (model.Payout, error) {
	repayment, err := settlement.Repayment(loan.Amount, aprBps, now-loan.OpenedAt)
	if err != nil {
		return model.Payout{}, err
	}
	outcome := settlement.SettleLoanLoss(repayment, loan.Collateral)
	if err := store.Transfer(tx, model.CollateralAccount(g.Id), model.LendingPoolAccount, outcome.FromCollateral); err != nil {
		return model.Payout{}, err
	}
	return model.Payout{
		Player:           loan.Borrower,
		LoanRepaid:       outcome.FromCollateral,
		CollateralSeized: outcome.FromCollateral,
		Shortfall:        outcome.Shortfall,
	}, nil
}

// refundEntry returns a participant's entry on cancel. Borrowed entries go
// back to the pool without interest and the collateral is released.
func refundEntry(tx store.Tx, g *model.Game, player flow.Address) (model.Payout, error) {
	escrow := model.EscrowAccount(g.Id)
	loan, borrowed := g.LoanOf(player)
	if !borrowed {
		return model.Payout{Player: player, Paid: g.EntryFee}, store.Transfer(tx, escrow, model.WalletAccount(player), g.EntryFee)
	}
	if err := store.Transfer(tx, escrow, model.LendingPoolAccount, loan.Amount); err != nil {
		return model.Payout{}, err
	}
	if err := store.Transfer(tx, model.CollateralAccount(g.Id), model.WalletAccount(player), loan.Collateral); err != nil {
		return model.Payout{}, err
	}
	return model.Payout{
		Player:             player,
		LoanRepaid:         loan.Amount,
		CollateralReleased: loan.Collateral,
	}, nil
}
