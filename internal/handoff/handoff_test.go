package handoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/onflow/flow-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time {
	return c.t
}

type fixture struct {
	store  *store.MemoryStore
	rollup *LocalRollup
	clock  *fakeClock
	h      *Handoff
	waits  []time.Duration
}

func newFixture(t *testing.T, propagation time.Duration, attempts int) *fixture {
	f := &fixture{
		store: store.NewMemoryStore(),
		clock: &fakeClock{t: time.Unix(1_700_000_000, 0)},
	}
	f.rollup = NewLocalRollup(propagation).WithClock(f.clock.now)
	f.h = New(f.rollup, f.store, Config{MaxAttempts: attempts, MinDelay: time.Second, MaxDelay: 4 * time.Second})
	f.h.now = f.clock.now
	f.h.wait = func(_ context.Context, d time.Duration) error {
		f.waits = append(f.waits, d)
		f.clock.t = f.clock.t.Add(d)
		return nil
	}

	full := &model.Game{
		Id:         1,
		Creator:    flow.HexToAddress("0a"),
		Mode:       model.OneVsOne,
		EntryFee:   100,
		TotalPot:   200,
		TeamA:      [model.MaxTeamSize]flow.Address{flow.HexToAddress("0a")},
		TeamB:      [model.MaxTeamSize]flow.Address{flow.HexToAddress("0b")},
		TeamACount: 1,
		TeamBCount: 1,
	}
	require.NoError(t, f.store.Transaction(context.Background(), func(tx store.Tx) error {
		return tx.CreateGame(full)
	}))
	return f
}

func markDelegated(g *model.Game) error {
	g.Status = model.GameDelegated
	return nil
}

func (f *fixture) base(t *testing.T) *model.Game {
	var game *model.Game
	require.NoError(t, f.store.Transaction(context.Background(), func(tx store.Tx) error {
		g, err := tx.Game(1)
		game = g
		return err
	}))
	return game
}

func TestDelegate_WaitsForPropagation(t *testing.T) {
	f := newFixture(t, 3*time.Second, 5)

	game, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)

	assert.Equal(t, model.GameDelegated, game.Status)
	assert.Equal(t, model.LocationExecution, game.Location)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.waits)
	assert.Equal(t, model.LocationExecution, f.base(t).Location)
}

func TestDelegate_TimeoutLeavesGameWaiting(t *testing.T) {
	f := newFixture(t, time.Hour, 3)

	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.ErrorIs(t, err, reject.ErrDelegationTimeout)
	assert.Len(t, f.waits, 2)

	base := f.base(t)
	assert.Equal(t, model.GameWaitingForPlayers, base.Status)
	assert.Equal(t, model.LocationBase, base.Location)

	f.clock.t = f.clock.t.Add(2 * time.Hour)
	delegated, err := f.rollup.IsDelegated(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, delegated, "abandoned request must not complete later")
}

func TestDelegate_RetryAfterTimeoutSucceeds(t *testing.T) {
	f := newFixture(t, 10*time.Second, 2)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.ErrorIs(t, err, reject.ErrDelegationTimeout)

	f.rollup.propagationDelay = 0
	game, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)
	assert.Equal(t, model.GameDelegated, game.Status)
}

func TestDelegate_IsIdempotent(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)

	calls := 0
	game, err := f.h.Delegate(context.Background(), 1, func(g *model.Game) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
	assert.Equal(t, model.GameDelegated, game.Status)
}

func TestDelegate_PrepareErrorRequestsNothing(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, func(*model.Game) error {
		return reject.ErrGameNotReadyToDelegate
	})
	require.ErrorIs(t, err, reject.ErrGameNotReadyToDelegate)

	delegated, err := f.rollup.IsDelegated(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, delegated)
}

func TestCommit_CheckpointsWithoutReleasing(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)
	_, err = f.h.Execute(context.Background(), 1, func(g *model.Game) error {
		g.ShotsTaken = 2
		return nil
	})
	require.NoError(t, err)

	game, err := f.h.Commit(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, game.CheckpointRoot, 32)

	base := f.base(t)
	assert.Equal(t, uint16(2), base.ShotsTaken)
	assert.Equal(t, game.CheckpointRoot, base.CheckpointRoot)
	assert.Equal(t, model.LocationExecution, base.Location)

	delegated, err := f.rollup.IsDelegated(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, delegated)
}

func TestUndelegate_RequiresFinished(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)

	_, err = f.h.Undelegate(context.Background(), 1)
	require.ErrorIs(t, err, reject.ErrGameNotFinished)

	_, err = f.h.Execute(context.Background(), 1, func(g *model.Game) error {
		winner := model.TeamA
		g.Status = model.GameFinished
		g.BulletChamber = 1
		g.WinnerTeam = &winner
		return nil
	})
	require.NoError(t, err)

	game, err := f.h.Undelegate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.LocationBase, game.Location)
	assert.Equal(t, model.GameFinished, f.base(t).Status)

	again, err := f.h.Undelegate(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.GameFinished, again.Status)
}

func TestReclaim_ReturnsUnfinishedGame(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)

	game, err := f.h.Reclaim(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.GameDelegated, game.Status)
	assert.Equal(t, model.LocationBase, f.base(t).Location)

	_, err = f.rollup.Get(context.Background(), 1)
	assert.ErrorIs(t, err, reject.ErrGameNotDelegated)
}

func TestCheckpointRoot_Deterministic(t *testing.T) {
	g := &model.Game{Id: 9, Mode: model.OneVsOne}
	first, err := CheckpointRoot(g)
	require.NoError(t, err)
	second, err := CheckpointRoot(g.Clone())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	g.ShotsTaken = 1
	changed, err := CheckpointRoot(g)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

// lateWriteRollup accepts one more transition just before authority is revoked.
type lateWriteRollup struct {
	*LocalRollup
	accepted bool
}

func (r *lateWriteRollup) Release(ctx context.Context, gameId uint64, check func(game *model.Game) error) (*model.Game, error) {
	_, err := r.LocalRollup.Apply(ctx, gameId, func(g *model.Game) error {
		g.ShotsTaken++
		return nil
	})
	r.accepted = err == nil
	return r.LocalRollup.Release(ctx, gameId, check)
}

func TestReclaim_KeepsWriteAcceptedBeforeRelease(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)

	rollup := &lateWriteRollup{LocalRollup: f.rollup}
	h := New(rollup, f.store, Config{MaxAttempts: 1})

	game, err := h.Reclaim(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, rollup.accepted)
	assert.Equal(t, uint16(1), game.ShotsTaken)
	assert.Equal(t, uint16(1), f.base(t).ShotsTaken)
	assert.Equal(t, model.LocationBase, f.base(t).Location)
}

func TestUndelegate_UnfinishedGameKeepsAuthority(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)

	_, err = f.h.Undelegate(context.Background(), 1)
	require.ErrorIs(t, err, reject.ErrGameNotFinished)

	_, err = f.h.Execute(context.Background(), 1, func(g *model.Game) error {
		g.ShotsTaken = 3
		return nil
	})
	require.NoError(t, err, "the execution context still owns the game")
}

var errSaveFailed = errors.New("save failed")

type failingSaveStore struct {
	store.Store
}

type failingSaveTx struct {
	store.Tx
}

func (s failingSaveStore) Transaction(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.Transaction(ctx, func(tx store.Tx) error {
		return fn(failingSaveTx{Tx: tx})
	})
}

func (failingSaveTx) SaveGame(*model.Game) error {
	return errSaveFailed
}

func TestReclaim_FailedSaveRestoresExecutionCopy(t *testing.T) {
	f := newFixture(t, 0, 1)
	_, err := f.h.Delegate(context.Background(), 1, markDelegated)
	require.NoError(t, err)
	_, err = f.h.Execute(context.Background(), 1, func(g *model.Game) error {
		g.ShotsTaken = 2
		return nil
	})
	require.NoError(t, err)

	h := New(f.rollup, failingSaveStore{Store: f.store}, Config{MaxAttempts: 1})
	_, err = h.Reclaim(context.Background(), 1)
	require.ErrorIs(t, err, errSaveFailed)

	held, err := f.rollup.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), held.ShotsTaken)
	assert.Equal(t, model.LocationExecution, f.base(t).Location)

	game, err := f.h.Reclaim(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), game.ShotsTaken)
}
