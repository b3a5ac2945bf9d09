package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/onflow/flow-go-sdk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = flow.HexToAddress("01")
	bob   = flow.HexToAddress("02")
)

func finishedGame() *Game {
	winner := TeamA
	result := Hash32{3}
	return &Game{
		Id:             42,
		Creator:        alice,
		Mode:           OneVsOne,
		Status:         GameFinished,
		EntryFee:       100_000_000,
		TotalPot:       200_000_000,
		TeamA:          [MaxTeamSize]flow.Address{alice},
		TeamB:          [MaxTeamSize]flow.Address{bob},
		TeamACount:     1,
		TeamBCount:     1,
		TurnOrder:      [MaxPlayers]flow.Address{alice, bob},
		BulletChamber:  4,
		CurrentChamber: 4,
		CurrentTurn:    1,
		ShotsTaken:     4,
		VrfSeed:        Hash32{9, 9},
		VrfResult:      &result,
		WinnerTeam:     &winner,
		CreatedAt:      1_700_000_000,
		FinishedAt:     1_700_000_060,
	}
}

func TestWire_FixedSize(t *testing.T) {
	assert.Equal(t, 156, WireSize)

	data, err := finishedGame().MarshalBinary()
	require.NoError(t, err)
	assert.Len(t, data, WireSize)
}

func TestWire_RoundTrip(t *testing.T) {
	g := finishedGame()
	data, err := g.MarshalBinary()
	require.NoError(t, err)

	var decoded Game
	require.NoError(t, decoded.UnmarshalBinary(data))

	assert.Equal(t, g.Id, decoded.Id)
	assert.Equal(t, g.TeamA, decoded.TeamA)
	assert.Equal(t, g.TeamB, decoded.TeamB)
	assert.Equal(t, *g.VrfResult, *decoded.VrfResult)
	assert.Equal(t, TeamA, *decoded.WinnerTeam)
	assert.Equal(t, g.FinishedAt, decoded.FinishedAt)
	assert.NoError(t, decoded.Validate())
}

func TestWire_OptionalFieldsAbsent(t *testing.T) {
	g := &Game{Id: 1, Creator: alice, Mode: TwoVsTwo, Status: GameWaitingForPlayers, EntryFee: 5, TotalPot: 5, TeamACount: 1}
	g.TeamA[0] = alice
	data, err := g.MarshalBinary()
	require.NoError(t, err)

	var decoded Game
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Nil(t, decoded.VrfResult)
	assert.Nil(t, decoded.WinnerTeam)
	assert.Zero(t, decoded.BulletChamber)
}

func TestWire_RejectsMalformed(t *testing.T) {
	var g Game
	assert.Error(t, g.UnmarshalBinary(make([]byte, WireSize-1)))

	data, err := finishedGame().MarshalBinary()
	require.NoError(t, err)
	data[16] = 7
	assert.Error(t, g.UnmarshalBinary(data))
}

func TestValidate_Invariants(t *testing.T) {
	assert.NoError(t, finishedGame().Validate())

	g := finishedGame()
	g.WinnerTeam = nil
	assert.Error(t, g.Validate())

	g = finishedGame()
	g.Status = GameDelegated
	g.WinnerTeam = nil
	assert.Error(t, g.Validate(), "bullet chamber set while delegated")

	g = finishedGame()
	g.Status = GameWaitingForPlayers
	g.WinnerTeam = nil
	g.BulletChamber = 0
	g.TotalPot = 150_000_000
	assert.Error(t, g.Validate(), "pot mismatch")

	g = finishedGame()
	g.TeamACount = 2
	assert.Error(t, g.Validate())
}

func TestGame_Membership(t *testing.T) {
	g := finishedGame()

	team, ok := g.TeamOf(bob)
	require.True(t, ok)
	assert.Equal(t, TeamB, team)
	assert.False(t, g.Contains(flow.HexToAddress("03")))
	assert.Equal(t, []flow.Address{alice, bob}, g.Players())
	assert.True(t, g.IsFull())
}

func TestGame_CloneIsDeep(t *testing.T) {
	g := finishedGame()
	g.Loans = []Loan{{Borrower: bob, Amount: 1, Collateral: 2}}
	clone := g.Clone()

	clone.VrfResult[0] = 0xff
	clone.Loans[0].Amount = 99
	*clone.WinnerTeam = TeamB

	assert.Equal(t, byte(3), g.VrfResult[0])
	assert.Equal(t, uint64(1), g.Loans[0].Amount)
	assert.Equal(t, TeamA, *g.WinnerTeam)
}

func TestGame_JSON(t *testing.T) {
	data, err := json.Marshal(finishedGame())
	require.NoError(t, err)

	var decoded Game
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, GameFinished, decoded.Status)
	assert.Equal(t, OneVsOne, decoded.Mode)
	assert.Equal(t, bob, decoded.TeamB[0])
	assert.Contains(t, string(data), `"status":"FINISHED"`)
}

func TestParseGameMode(t *testing.T) {
	mode, err := ParseGameMode("TWO_VS_TWO")
	require.NoError(t, err)
	assert.Equal(t, 4, mode.PlayerCount())

	_, err = ParseGameMode("THREE_VS_THREE")
	assert.ErrorIs(t, err, reject.ErrInvalidGameMode)
}

func TestPlatform_AllocateGameID(t *testing.T) {
	p := Platform{}
	first, err := p.AllocateGameID()
	require.NoError(t, err)
	second, err := p.AllocateGameID()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)

	p.TotalGames = math.MaxUint64
	_, err = p.AllocateGameID()
	assert.ErrorIs(t, err, reject.ErrArithmeticOverflow)
}

func TestOverflow_PlatformAccrueSaturates(t *testing.T) {
	p := Platform{TotalVolume: math.MaxUint64 - 1, TreasuryBalance: 10}
	p.Accrue(5, 5)
	assert.Equal(t, uint64(math.MaxUint64), p.TotalVolume)
	assert.Equal(t, uint64(15), p.TreasuryBalance)
}
