// Package handoff moves write authority over a game between the base store
// and the execution context.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/rs/zerolog/log"
	"github.com/wealdtech/go-merkletree"
	keccak "github.com/wealdtech/go-merkletree/keccak256"
)

type Config struct {
	MaxAttempts int
	MinDelay    time.Duration
	MaxDelay    time.Duration
}

type Handoff struct {
	rollup Rollup
	store  store.Store
	cfg    Config
	now    func() time.Time
	wait   func(ctx context.Context, d time.Duration) error
}

func New(rollup Rollup, s store.Store, cfg Config) *Handoff {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	return &Handoff{
		rollup: rollup,
		store:  s,
		cfg:    cfg,
		now:    time.Now,
		wait:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Delegate hands the game to the execution context. prepare runs against the
// base record and applies the delegate transition; its result is what the
// execution context receives. If propagation does not complete within the
// configured attempts the request is abandoned, the base record is left as it
// was, and ErrDelegationTimeout is returned.
func (h *Handoff) Delegate(ctx context.Context, gameId uint64, prepare func(game *model.Game) error) (*model.Game, error) {
	var candidate *model.Game
	alreadyDelegated := false
	err := h.store.Transaction(ctx, func(tx store.Tx) error {
		game, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		if game.Location == model.LocationExecution {
			alreadyDelegated = true
			return nil
		}
		if err := prepare(game); err != nil {
			return err
		}
		game.Location = model.LocationExecution
		candidate = game
		return nil
	})
	if err != nil {
		return nil, err
	}
	if alreadyDelegated {
		return h.rollup.Get(ctx, gameId)
	}

	if err := h.rollup.RequestDelegation(ctx, candidate); err != nil {
		return nil, fmt.Errorf("request delegation of game %d: %w", gameId, err)
	}
	if err := h.awaitDelegation(ctx, gameId); err != nil {
		h.abandon(gameId)
		return nil, err
	}

	concurrent := false
	err = h.store.Transaction(ctx, func(tx store.Tx) error {
		game, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		if game.Location == model.LocationExecution {
			concurrent = true
			return nil
		}
		if game.Status != model.GameWaitingForPlayers {
			return fmt.Errorf("game %d changed during delegation: %w", gameId, reject.ErrGameNotReadyToDelegate)
		}
		return tx.SaveGame(candidate)
	})
	if err != nil {
		h.abandon(gameId)
		return nil, err
	}
	if concurrent {
		return h.rollup.Get(ctx, gameId)
	}

	log.Info().Uint64("game_id", gameId).Msg("Game delegated to execution context")
	return candidate, nil
}

func (h *Handoff) awaitDelegation(ctx context.Context, gameId uint64) error {
	b := &backoff.Backoff{
		Min:    h.cfg.MinDelay,
		Max:    h.cfg.MaxDelay,
		Factor: 2,
		Jitter: false,
	}
	for attempt := 1; ; attempt++ {
		delegated, err := h.rollup.IsDelegated(ctx, gameId)
		if err != nil {
			return fmt.Errorf("poll delegation of game %d: %w", gameId, err)
		}
		if delegated {
			return nil
		}
		if attempt >= h.cfg.MaxAttempts {
			return fmt.Errorf("game %d after %d attempts: %w", gameId, attempt, reject.ErrDelegationTimeout)
		}
		if err := h.wait(ctx, b.Duration()); err != nil {
			return fmt.Errorf("game %d: %v: %w", gameId, err, reject.ErrDelegationTimeout)
		}
	}
}

func (h *Handoff) abandon(gameId uint64) {
	if err := h.rollup.Abandon(context.Background(), gameId); err != nil {
		log.Warn().Err(err).Uint64("game_id", gameId).Msg("Failed to abandon delegation")
	}
}

// Execute applies a transition to a delegated game inside the execution context.
func (h *Handoff) Execute(ctx context.Context, gameId uint64, fn func(game *model.Game) error) (*model.Game, error) {
	return h.rollup.Apply(ctx, gameId, fn)
}

// Current returns the authoritative copy of a game wherever it lives.
func (h *Handoff) Current(ctx context.Context, gameId uint64) (*model.Game, error) {
	var base *model.Game
	err := h.store.Transaction(ctx, func(tx store.Tx) error {
		game, err := tx.Game(gameId)
		base = game
		return err
	})
	if err != nil {
		return nil, err
	}
	if base.Location == model.LocationBase {
		return base, nil
	}
	game, err := h.rollup.Get(ctx, gameId)
	if errors.Is(err, reject.ErrGameNotDelegated) {
		// released between the two reads; the base copy is current again
		err = h.store.Transaction(ctx, func(tx store.Tx) error {
			game, err = tx.Game(gameId)
			return err
		})
	}
	return game, err
}

// Commit checkpoints the execution copy into the base store. The execution
// context keeps authority.
func (h *Handoff) Commit(ctx context.Context, gameId uint64) (*model.Game, error) {
	game, err := h.rollup.Apply(ctx, gameId, func(game *model.Game) error {
		root, err := CheckpointRoot(game)
		if err != nil {
			return err
		}
		game.CheckpointRoot = root
		game.CheckpointedAt = h.now().Unix()
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = h.store.Transaction(ctx, func(tx store.Tx) error {
		base, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		if base.Location != model.LocationExecution {
			return fmt.Errorf("game %d: %w", gameId, reject.ErrWrongContext)
		}
		return tx.SaveGame(game)
	})
	if err != nil {
		return nil, err
	}

	log.Info().Uint64("game_id", gameId).Hex("root", game.CheckpointRoot).Msg("Game checkpoint committed")
	return game, nil
}

// Undelegate returns authority to the base store. Only finished games come back.
// Calling it again after the game is back is a no-op.
func (h *Handoff) Undelegate(ctx context.Context, gameId uint64) (*model.Game, error) {
	return h.giveBack(ctx, gameId, true)
}

// Reclaim forces authority back regardless of status. Used for stalled games.
func (h *Handoff) Reclaim(ctx context.Context, gameId uint64) (*model.Game, error) {
	return h.giveBack(ctx, gameId, false)
}

func (h *Handoff) giveBack(ctx context.Context, gameId uint64, requireFinished bool) (*model.Game, error) {
	var check func(game *model.Game) error
	if requireFinished {
		check = func(game *model.Game) error {
			if game.Status != model.GameFinished {
				return fmt.Errorf("game %d: %w", gameId, reject.ErrGameNotFinished)
			}
			return nil
		}
	}
	// the execution context stops accepting writes before the base copy is taken
	released, err := h.rollup.Release(ctx, gameId, check)
	if err != nil && !errors.Is(err, reject.ErrGameNotDelegated) {
		return nil, err
	}

	var result *model.Game
	keepReleased := false
	err = h.store.Transaction(ctx, func(tx store.Tx) error {
		base, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		if base.Location == model.LocationBase {
			// a delegation still in flight; it will claim the released record
			keepReleased = released != nil
			result = base
			return nil
		}
		game := base
		if released != nil {
			game = released.Clone()
		} else if requireFinished {
			return fmt.Errorf("game %d: %w", gameId, reject.ErrGameNotDelegated)
		}
		game.Location = model.LocationBase
		result = game
		return tx.SaveGame(game)
	})
	if err != nil {
		h.restore(released)
		return nil, err
	}
	if keepReleased {
		h.restore(released)
		return result, nil
	}

	if released != nil {
		log.Info().Uint64("game_id", gameId).Msg("Game returned to base context")
	}
	return result, nil
}

func (h *Handoff) restore(game *model.Game) {
	if game == nil {
		return
	}
	if err := h.rollup.Restore(context.Background(), game); err != nil {
		log.Error().Err(err).Uint64("game_id", game.Id).Msg("Failed to restore released game")
	}
}

// CheckpointRoot is the keccak merkle root over the game's wire record.
func CheckpointRoot(game *model.Game) ([]byte, error) {
	record, err := game.MarshalBinary()
	if err != nil {
		return nil, err
	}
	var leaves [][]byte
	for start := 0; start < len(record); start += 32 {
		end := start + 32
		if end > len(record) {
			end = len(record)
		}
		leaves = append(leaves, record[start:end])
	}
	tree, err := merkletree.NewUsing(leaves, keccak.New(), nil)
	if err != nil {
		return nil, err
	}
	return tree.Root(), nil
}
