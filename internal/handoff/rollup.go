package handoff

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
)

// Rollup is the low-latency execution context. While it holds a game it is
// the only writer of that record.
type Rollup interface {
	// RequestDelegation asks the context to take over the game. The transfer
	// is not visible until IsDelegated reports true. Repeated requests are no-ops.
	RequestDelegation(ctx context.Context, game *model.Game) error
	IsDelegated(ctx context.Context, gameId uint64) (bool, error)
	Get(ctx context.Context, gameId uint64) (*model.Game, error)
	// Apply runs fn against a copy of the held record and keeps the result only
	// if fn succeeds. Calls for the same game are serialized.
	Apply(ctx context.Context, gameId uint64, fn func(game *model.Game) error) (*model.Game, error)
	// Release revokes the context's authority and returns the last accepted
	// record. If check is non-nil and rejects the record, nothing is released.
	Release(ctx context.Context, gameId uint64, check func(game *model.Game) error) (*model.Game, error)
	// Restore gives a released record back to the context without propagation.
	Restore(ctx context.Context, game *model.Game) error
	// Abandon drops a pending or completed delegation without returning state.
	Abandon(ctx context.Context, gameId uint64) error
}

type pendingDelegation struct {
	game    *model.Game
	readyAt time.Time
}

// LocalRollup is an in-process execution context. Delegations become visible
// after a propagation delay.
type LocalRollup struct {
	mu               sync.Mutex
	propagationDelay time.Duration
	now              func() time.Time
	pending          map[uint64]pendingDelegation
	games            map[uint64]*model.Game
}

func NewLocalRollup(propagationDelay time.Duration) *LocalRollup {
	return &LocalRollup{
		propagationDelay: propagationDelay,
		now:              time.Now,
		pending:          map[uint64]pendingDelegation{},
		games:            map[uint64]*model.Game{},
	}
}

// WithClock replaces the clock used for propagation.
func (r *LocalRollup) WithClock(now func() time.Time) *LocalRollup {
	r.now = now
	return r
}

func (r *LocalRollup) promote(gameId uint64) {
	p, ok := r.pending[gameId]
	if !ok || r.now().Before(p.readyAt) {
		return
	}
	delete(r.pending, gameId)
	r.games[gameId] = p.game
}

func (r *LocalRollup) RequestDelegation(_ context.Context, game *model.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.games[game.Id]; held {
		return nil
	}
	if _, requested := r.pending[game.Id]; requested {
		return nil
	}
	r.pending[game.Id] = pendingDelegation{
		game:    game.Clone(),
		readyAt: r.now().Add(r.propagationDelay),
	}
	return nil
}

func (r *LocalRollup) IsDelegated(_ context.Context, gameId uint64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.promote(gameId)
	_, held := r.games[gameId]
	return held, nil
}

func (r *LocalRollup) Get(_ context.Context, gameId uint64) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.promote(gameId)
	game, held := r.games[gameId]
	if !held {
		return nil, fmt.Errorf("game %d: %w", gameId, reject.ErrGameNotDelegated)
	}
	return game.Clone(), nil
}

func (r *LocalRollup) Apply(_ context.Context, gameId uint64, fn func(game *model.Game) error) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.promote(gameId)
	held, ok := r.games[gameId]
	if !ok {
		return nil, fmt.Errorf("game %d: %w", gameId, reject.ErrGameNotDelegated)
	}
	working := held.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	r.games[gameId] = working
	return working.Clone(), nil
}

func (r *LocalRollup) Release(_ context.Context, gameId uint64, check func(game *model.Game) error) (*model.Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.promote(gameId)
	game, held := r.games[gameId]
	if !held {
		return nil, fmt.Errorf("game %d: %w", gameId, reject.ErrGameNotDelegated)
	}
	if check != nil {
		if err := check(game.Clone()); err != nil {
			return nil, err
		}
	}
	delete(r.games, gameId)
	return game, nil
}

func (r *LocalRollup) Restore(_ context.Context, game *model.Game) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, held := r.games[game.Id]; held {
		return fmt.Errorf("game %d: %w", game.Id, reject.ErrWrongContext)
	}
	delete(r.pending, game.Id)
	r.games[game.Id] = game.Clone()
	return nil
}

func (r *LocalRollup) Abandon(_ context.Context, gameId uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, gameId)
	delete(r.games, gameId)
	return nil
}
