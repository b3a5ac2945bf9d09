package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
)

type memoryState struct {
	games    map[uint64]*model.Game
	platform *model.Platform
	balances map[string]uint64
}

func (s *memoryState) clone() *memoryState {
	c := &memoryState{
		games:    make(map[uint64]*model.Game, len(s.games)),
		balances: make(map[string]uint64, len(s.balances)),
	}
	for id, g := range s.games {
		c.games[id] = g.Clone()
	}
	for account, amount := range s.balances {
		c.balances[account] = amount
	}
	if s.platform != nil {
		p := *s.platform
		c.platform = &p
	}
	return c
}

// MemoryStore keeps everything in process. Transactions run one at a time
// against a copy of the state that replaces the original only on success.
type MemoryStore struct {
	mu    sync.Mutex
	state *memoryState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state: &memoryState{
			games:    map[uint64]*model.Game{},
			balances: map[string]uint64{},
		},
	}
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.state.clone()
	if err := fn(&memoryTx{state: working}); err != nil {
		return err
	}
	s.state = working
	return nil
}

type memoryTx struct {
	state *memoryState
}

func (tx *memoryTx) Game(id uint64) (*model.Game, error) {
	g, ok := tx.state.games[id]
	if !ok {
		return nil, reject.ErrGameNotFound
	}
	return g.Clone(), nil
}

func (tx *memoryTx) CreateGame(game *model.Game) error {
	if _, exists := tx.state.games[game.Id]; exists {
		return fmt.Errorf("game %d already exists", game.Id)
	}
	tx.state.games[game.Id] = game.Clone()
	return nil
}

func (tx *memoryTx) SaveGame(game *model.Game) error {
	if _, exists := tx.state.games[game.Id]; !exists {
		return reject.ErrGameNotFound
	}
	tx.state.games[game.Id] = game.Clone()
	return nil
}

func (tx *memoryTx) Games(filter GameFilter, page Page) ([]model.Game, int64, error) {
	var matched []model.Game
	for _, g := range tx.state.games {
		if filter.matches(g) {
			matched = append(matched, *g.Clone())
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Id > matched[j].Id
	})
	total := int64(len(matched))
	if page.Offset >= len(matched) {
		return []model.Game{}, total, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && page.Limit < len(matched) {
		matched = matched[:page.Limit]
	}
	return matched, total, nil
}

func (tx *memoryTx) Platform() (*model.Platform, error) {
	if tx.state.platform == nil {
		return nil, reject.ErrPlatformNotInitialized
	}
	p := *tx.state.platform
	return &p, nil
}

func (tx *memoryTx) SavePlatform(platform *model.Platform) error {
	p := *platform
	tx.state.platform = &p
	return nil
}

func (tx *memoryTx) Balance(account string) (uint64, error) {
	return tx.state.balances[account], nil
}

func (tx *memoryTx) Credit(account string, amount uint64) error {
	next, err := settlement.Add(tx.state.balances[account], amount)
	if err != nil {
		return err
	}
	tx.state.balances[account] = next
	return nil
}

func (tx *memoryTx) Debit(account string, amount uint64) error {
	current := tx.state.balances[account]
	if current < amount {
		return reject.ErrInsufficientFunds
	}
	tx.state.balances[account] = current - amount
	return nil
}
