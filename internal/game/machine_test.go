package game

import (
	"testing"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/onflow/flow-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator  = flow.HexToAddress("a1")
	opponent = flow.HexToAddress("b1")
	mateA    = flow.HexToAddress("a2")
	mateB    = flow.HexToAddress("b2")
	outsider = flow.HexToAddress("c1")

	bounds = EntryBounds{Min: 100_000_000, Max: 1_000_000_000_000}
)

func newTestGame(t *testing.T, mode model.GameMode) *model.Game {
	g, err := NewGame(NewGameParams{Id: 1, Creator: creator, Mode: mode, EntryFee: 100_000_000, Now: 100}, bounds)
	require.NoError(t, err)
	return g
}

// randomnessFor returns randomness that loads the given chamber.
func randomnessFor(chamber uint8) model.Hash32 {
	return model.Hash32{chamber - 1}
}

func inProgress(t *testing.T, mode model.GameMode, bullet uint8) *model.Game {
	g := newTestGame(t, mode)
	_, err := Join(g, opponent, 101)
	require.NoError(t, err)
	if mode == model.TwoVsTwo {
		_, err = Join(g, mateB, 102)
		require.NoError(t, err)
		_, err = Join(g, mateA, 103)
		require.NoError(t, err)
	}
	require.NoError(t, MarkDelegated(g, 104))
	g.Location = model.LocationExecution
	applied, err := Randomize(g, "", randomnessFor(bullet), 105)
	require.NoError(t, err)
	require.True(t, applied)
	return g
}

func TestNewGame_PotEqualsEntryFee(t *testing.T) {
	for _, fee := range []uint64{bounds.Min, 250_000_000, bounds.Max} {
		g, err := NewGame(NewGameParams{Creator: creator, Mode: model.OneVsOne, EntryFee: fee}, bounds)
		require.NoError(t, err)
		assert.Equal(t, fee, g.TotalPot)
		assert.Equal(t, creator, g.TeamA[0])
		assert.Equal(t, uint8(1), g.TeamACount)
		assert.NoError(t, g.Validate())
	}
}

func TestNewGame_Rejections(t *testing.T) {
	_, err := NewGame(NewGameParams{Creator: creator, Mode: model.OneVsOne, EntryFee: bounds.Min - 1}, bounds)
	assert.ErrorIs(t, err, reject.ErrInsufficientEntryFee)

	_, err = NewGame(NewGameParams{Creator: creator, Mode: model.OneVsOne, EntryFee: bounds.Max + 1}, bounds)
	assert.ErrorIs(t, err, reject.ErrInsufficientEntryFee)

	_, err = NewGame(NewGameParams{Creator: creator, Mode: model.GameMode(7), EntryFee: bounds.Min}, bounds)
	assert.ErrorIs(t, err, reject.ErrInvalidGameMode)
}

func TestJoin_Rejections(t *testing.T) {
	g := newTestGame(t, model.OneVsOne)

	_, err := Join(g, creator, 1)
	assert.ErrorIs(t, err, reject.ErrCannotJoinOwnGame)

	team, err := Join(g, opponent, 1)
	require.NoError(t, err)
	assert.Equal(t, model.TeamB, team)

	_, err = Join(g, opponent, 1)
	assert.ErrorIs(t, err, reject.ErrPlayerAlreadyInGame)

	before := *g
	_, err = Join(g, outsider, 1)
	assert.ErrorIs(t, err, reject.ErrGameFull)
	assert.Equal(t, before, *g)
}

func TestJoin_TwoVsTwoBalancesTeams(t *testing.T) {
	g := newTestGame(t, model.TwoVsTwo)

	team, err := Join(g, opponent, 1)
	require.NoError(t, err)
	assert.Equal(t, model.TeamB, team, "A has more members")

	team, err = Join(g, mateB, 1)
	require.NoError(t, err)
	assert.Equal(t, model.TeamB, team, "tie goes to B")

	team, err = Join(g, mateA, 1)
	require.NoError(t, err)
	assert.Equal(t, model.TeamA, team)

	assert.True(t, g.IsFull())
	assert.Equal(t, uint64(400_000_000), g.TotalPot)
	assert.Equal(t, model.GameWaitingForPlayers, g.Status, "joining never delegates")
	assert.NoError(t, g.Validate())
}

func TestMarkDelegated_RequiresFullTeams(t *testing.T) {
	g := newTestGame(t, model.OneVsOne)
	assert.ErrorIs(t, MarkDelegated(g, 1), reject.ErrGameNotReadyToDelegate)

	_, err := Join(g, opponent, 1)
	require.NoError(t, err)
	require.NoError(t, MarkDelegated(g, 1))
	assert.Equal(t, model.GameDelegated, g.Status)
	assert.ErrorIs(t, MarkDelegated(g, 1), reject.ErrGameNotReadyToDelegate)
}

func TestRandomize_ChamberAlwaysInRange(t *testing.T) {
	for b := 0; b < 256; b++ {
		g := newTestGame(t, model.OneVsOne)
		_, err := Join(g, opponent, 1)
		require.NoError(t, err)
		require.NoError(t, MarkDelegated(g, 1))

		_, err = Randomize(g, "", model.Hash32{byte(b)}, 2)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, g.BulletChamber, uint8(1))
		assert.LessOrEqual(t, g.BulletChamber, uint8(6))
		assert.NoError(t, g.Validate())
	}
}

func TestRandomize_DuplicateIsNoOp(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 4)
	before := g.Clone()

	applied, err := Randomize(g, "", randomnessFor(2), 200)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, before, g)
}

func TestRandomize_RequiresDelegation(t *testing.T) {
	g := newTestGame(t, model.OneVsOne)
	_, err := Randomize(g, "", randomnessFor(1), 1)
	assert.ErrorIs(t, err, reject.ErrGameNotDelegated)
	assert.Nil(t, g.VrfResult)
}

func TestRandomize_PendingRequestMustMatch(t *testing.T) {
	g := newTestGame(t, model.OneVsOne)
	_, err := Join(g, opponent, 1)
	require.NoError(t, err)
	require.NoError(t, MarkDelegated(g, 1))

	started, err := BeginRandomnessRequest(g, "req-1", 2)
	require.NoError(t, err)
	assert.True(t, started)
	started, err = BeginRandomnessRequest(g, "req-2", 3)
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, "req-1", g.VrfRequestId)

	_, err = Randomize(g, "req-2", randomnessFor(3), 4)
	assert.ErrorIs(t, err, reject.ErrRandomnessMismatch)

	applied, err := Randomize(g, "req-1", randomnessFor(3), 4)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.False(t, g.VrfPending)
}

func TestTurnOrder(t *testing.T) {
	g := inProgress(t, model.TwoVsTwo, 6)
	assert.Equal(t, [model.MaxPlayers]flow.Address{creator, opponent, mateA, mateB}, g.TurnOrder)

	g = inProgress(t, model.OneVsOne, 6)
	assert.Equal(t, [model.MaxPlayers]flow.Address{creator, opponent}, g.TurnOrder)
}

func TestShoot_OutOfTurnMutatesNothing(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 4)
	before := g.Clone()

	for _, caller := range []flow.Address{opponent, outsider} {
		_, err := Shoot(g, caller, 300)
		assert.ErrorIs(t, err, reject.ErrNotYourTurn)
		assert.Equal(t, before, g)
	}
}

func TestShoot_BeforeStartIsNotYourTurn(t *testing.T) {
	g := newTestGame(t, model.OneVsOne)
	_, err := Shoot(g, creator, 1)
	assert.ErrorIs(t, err, reject.ErrNotYourTurn)
	assert.Zero(t, g.ShotsTaken)
}

func TestShoot_EndToEnd(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 4)

	shooters := []flow.Address{creator, opponent, creator}
	for i, shooter := range shooters {
		result, err := Shoot(g, shooter, int64(200+i))
		require.NoError(t, err)
		assert.False(t, result.Hit)
		assert.Equal(t, uint8(i+1), result.Chamber)
		assert.Equal(t, uint8(i+2), g.CurrentChamber)
	}

	result, err := Shoot(g, opponent, 210)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	require.NotNil(t, g.WinnerTeam)
	assert.Equal(t, model.TeamA, *g.WinnerTeam)
	assert.Equal(t, model.GameFinished, g.Status)
	assert.Equal(t, uint16(4), g.ShotsTaken)
	assert.Equal(t, int64(210), g.FinishedAt)
	assert.NoError(t, g.Validate())

	_, err = Shoot(g, creator, 211)
	assert.ErrorIs(t, err, reject.ErrNotYourTurn)
}

func TestShoot_TwoVsTwoRotation(t *testing.T) {
	g := inProgress(t, model.TwoVsTwo, 6)
	order := []flow.Address{creator, opponent, mateA, mateB, creator}
	for i, shooter := range order {
		_, err := Shoot(g, shooter, int64(i))
		require.NoError(t, err, "shot %d", i)
	}

	result, err := Shoot(g, opponent, 9)
	require.NoError(t, err)
	assert.True(t, result.Hit)
	assert.Equal(t, model.TeamA, *g.WinnerTeam)
}

func TestShoot_ChamberExhaustionRejected(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 6)
	g.CurrentChamber = 6
	g.BulletChamber = 7

	_, err := Shoot(g, g.CurrentPlayer(), 1)
	assert.ErrorIs(t, err, reject.ErrChamberExhausted)
}

func TestMarkSettled_Once(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 1)
	_, err := Shoot(g, creator, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, MarkSettled(g, model.Settlement{}), reject.ErrWrongContext)
	g.Location = model.LocationBase

	require.NoError(t, MarkSettled(g, model.Settlement{Pot: 200_000_000, SettledAt: 5}))
	assert.Zero(t, g.TotalPot)
	assert.ErrorIs(t, MarkSettled(g, model.Settlement{}), reject.ErrAlreadyFinalized)
}

func TestCanFinalize_NotFinished(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 3)
	assert.ErrorIs(t, CanFinalize(g), reject.ErrGameNotFinished)
}

func TestCancel(t *testing.T) {
	g := newTestGame(t, model.OneVsOne)
	require.NoError(t, Cancel(g, 500, 60))
	assert.Equal(t, model.GameCancelled, g.Status)
	assert.Zero(t, g.TotalPot)
	assert.ErrorIs(t, Cancel(g, 501, 60), reject.ErrGameNotCancellable)
	assert.NoError(t, g.Validate())
}

func TestCancel_StalledOnly(t *testing.T) {
	g := inProgress(t, model.OneVsOne, 3)
	g.Location = model.LocationBase

	assert.ErrorIs(t, Cancel(g, g.LastActionAt+59, 60), reject.ErrGameNotStalled)
	assert.Equal(t, model.GameInProgress, g.Status)

	require.NoError(t, Cancel(g, g.LastActionAt+60, 60))
	assert.Equal(t, model.GameCancelled, g.Status)
	assert.NoError(t, g.Validate())
}
