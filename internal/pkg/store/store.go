// Package store is the durable base context: game records, the platform
// singleton and account balances. All mutations happen inside Transaction
// and are applied all-or-nothing.
package store

import (
	"context"
	"fmt"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/onflow/flow-go-sdk"
)

type Store interface {
	Transaction(ctx context.Context, fn func(tx Tx) error) error
}

type Tx interface {
	// Game loads a record for update. Missing records return reject.ErrGameNotFound.
	Game(id uint64) (*model.Game, error)
	CreateGame(game *model.Game) error
	SaveGame(game *model.Game) error
	Games(filter GameFilter, page Page) ([]model.Game, int64, error)

	// Platform returns reject.ErrPlatformNotInitialized before the ledger exists.
	Platform() (*model.Platform, error)
	SavePlatform(platform *model.Platform) error

	Balance(account string) (uint64, error)
	Credit(account string, amount uint64) error
	// Debit fails with reject.ErrInsufficientFunds rather than going negative.
	Debit(account string, amount uint64) error
}

type GameFilter struct {
	Status *model.GameStatus
	Player *flow.Address
}

func (f GameFilter) matches(g *model.Game) bool {
	if f.Status != nil && g.Status != *f.Status {
		return false
	}
	if f.Player != nil && !g.Contains(*f.Player) {
		return false
	}
	return true
}

type Page struct {
	Limit  int
	Offset int
}

// Transfer moves amount between two accounts within tx.
func Transfer(tx Tx, from, to string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	if err := tx.Debit(from, amount); err != nil {
		return fmt.Errorf("debit %s: %w", from, err)
	}
	if err := tx.Credit(to, amount); err != nil {
		return fmt.Errorf("credit %s: %w", to, err)
	}
	return nil
}
