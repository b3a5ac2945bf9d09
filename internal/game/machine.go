package game

import (
	"fmt"

	"github.com/kollektive-hackathon/roulette-backend/internal/oracle"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
)

// The functions in this file are the only code that changes a game's
// lifecycle fields. Each one checks every guard before touching the record,
// so a rejected transition leaves it exactly as it was.

type EntryBounds struct {
	Min uint64
	Max uint64
}

type NewGameParams struct {
	Id       uint64
	Creator  flow.Address
	Mode     model.GameMode
	EntryFee uint64
	VrfSeed  model.Hash32
	Now      int64
}

func ValidateEntry(mode model.GameMode, entryFee uint64, bounds EntryBounds) error {
	if !mode.Valid() {
		return reject.ErrInvalidGameMode
	}
	if entryFee == 0 || entryFee < bounds.Min || entryFee > bounds.Max {
		return reject.ErrInsufficientEntryFee
	}
	return nil
}

// NewGame seats the creator on team A with the pot holding their entry.
func NewGame(p NewGameParams, bounds EntryBounds) (*model.Game, error) {
	if err := ValidateEntry(p.Mode, p.EntryFee, bounds); err != nil {
		return nil, err
	}
	g := &model.Game{
		Id:           p.Id,
		Creator:      p.Creator,
		Mode:         p.Mode,
		Status:       model.GameWaitingForPlayers,
		Location:     model.LocationBase,
		EntryFee:     p.EntryFee,
		TotalPot:     p.EntryFee,
		VrfSeed:      p.VrfSeed,
		CreatedAt:    p.Now,
		LastActionAt: p.Now,
	}
	g.TeamA[0] = p.Creator
	g.TeamACount = 1
	return g, nil
}

type NewPracticeGameParams struct {
	Id         uint64
	Creator    flow.Address
	Bot        flow.Address
	Difficulty model.BotDifficulty
	VrfSeed    model.Hash32
	Now        int64
}

// NewPracticeGame seats the creator against the bot. Nothing is staked, and
// the game is full from the start.
func NewPracticeGame(p NewPracticeGameParams) (*model.Game, error) {
	if p.Bot == flow.EmptyAddress {
		return nil, reject.ErrPracticeDisabled
	}
	if p.Creator == p.Bot {
		return nil, reject.ErrCannotJoinOwnGame
	}
	g := &model.Game{
		Id:            p.Id,
		Creator:       p.Creator,
		Mode:          model.OneVsOne,
		Status:        model.GameWaitingForPlayers,
		Location:      model.LocationBase,
		VrfSeed:       p.VrfSeed,
		CreatedAt:     p.Now,
		LastActionAt:  p.Now,
		Practice:      true,
		Bot:           p.Bot,
		BotDifficulty: p.Difficulty,
	}
	g.TeamA[0] = p.Creator
	g.TeamACount = 1
	g.TeamB[0] = p.Bot
	g.TeamBCount = 1
	return g, nil
}

// Join seats joiner on the side with fewer members. Ties go to team B.
func Join(g *model.Game, joiner flow.Address, now int64) (model.Team, error) {
	if g.Status != model.GameWaitingForPlayers || g.Location != model.LocationBase {
		if g.IsFull() {
			return 0, reject.ErrGameFull
		}
		return 0, reject.ErrGameClosed
	}
	if joiner == g.Creator {
		return 0, reject.ErrCannotJoinOwnGame
	}
	if g.Contains(joiner) {
		return 0, reject.ErrPlayerAlreadyInGame
	}
	if g.IsFull() {
		return 0, reject.ErrGameFull
	}
	pot, err := settlement.Add(g.TotalPot, g.EntryFee)
	if err != nil {
		return 0, err
	}

	capacity := uint8(g.Mode.TeamCapacity())
	team := model.TeamB
	if g.TeamACount < g.TeamBCount || g.TeamBCount >= capacity {
		team = model.TeamA
	}
	if team == model.TeamA {
		g.TeamA[g.TeamACount] = joiner
		g.TeamACount++
	} else {
		g.TeamB[g.TeamBCount] = joiner
		g.TeamBCount++
	}
	g.TotalPot = pot
	g.LastActionAt = now
	return team, nil
}

// AddLoan attaches a loan to a participant's entry.
func AddLoan(g *model.Game, loan model.Loan) error {
	if err := settlement.CheckCollateral(g.EntryFee, loan.Collateral); err != nil {
		return err
	}
	if !g.Contains(loan.Borrower) {
		return reject.ErrUnauthorized
	}
	if _, exists := g.LoanOf(loan.Borrower); exists {
		return reject.ErrPlayerAlreadyInGame
	}
	g.Loans = append(g.Loans, loan)
	return nil
}

func CanDelegate(g *model.Game) error {
	if g.Status != model.GameWaitingForPlayers || g.Location != model.LocationBase || !g.IsFull() {
		return reject.ErrGameNotReadyToDelegate
	}
	return nil
}

func MarkDelegated(g *model.Game, now int64) error {
	if err := CanDelegate(g); err != nil {
		return err
	}
	g.Status = model.GameDelegated
	g.LastActionAt = now
	return nil
}

// BeginRandomnessRequest binds a request id to the game. A game that already
// has a request in flight, or its result, is left alone and reports false.
func BeginRandomnessRequest(g *model.Game, requestId string, now int64) (bool, error) {
	if g.VrfResult != nil || g.VrfPending {
		return false, nil
	}
	if g.Status != model.GameDelegated {
		return false, fmt.Errorf("game %d is %s: %w", g.Id, g.Status, reject.ErrGameNotDelegated)
	}
	g.VrfPending = true
	g.VrfRequestId = requestId
	g.LastActionAt = now
	return true, nil
}

// Randomize applies an oracle fulfillment. Fulfillments for a game that
// already has its result are accepted and change nothing; applied reports
// whether this call set the result.
func Randomize(g *model.Game, requestId string, randomness model.Hash32, now int64) (applied bool, err error) {
	if g.VrfResult != nil {
		return false, nil
	}
	if g.Status != model.GameDelegated {
		return false, fmt.Errorf("game %d is %s: %w", g.Id, g.Status, reject.ErrGameNotDelegated)
	}
	if g.VrfPending && requestId != g.VrfRequestId {
		return false, reject.ErrRandomnessMismatch
	}

	result := randomness
	g.VrfResult = &result
	g.VrfPending = false
	if requestId != "" {
		g.VrfRequestId = requestId
	}
	g.BulletChamber = oracle.ChamberFromRandomness(randomness)
	g.TurnOrder = TurnOrder(g)
	g.CurrentChamber = 1
	g.CurrentTurn = 0
	g.Status = model.GameInProgress
	g.LastActionAt = now
	return true, nil
}

// TurnOrder alternates sides member by member: A0, B0, A1, B1.
func TurnOrder(g *model.Game) [model.MaxPlayers]flow.Address {
	var order [model.MaxPlayers]flow.Address
	for i := 0; i < g.Mode.TeamCapacity(); i++ {
		order[2*i] = g.TeamA[i]
		order[2*i+1] = g.TeamB[i]
	}
	return order
}

type ShotResult struct {
	Shooter    flow.Address  `json:"shooter"`
	Team       model.Team    `json:"team"`
	Chamber    uint8         `json:"chamber"`
	Hit        bool          `json:"hit"`
	ShotsTaken uint16        `json:"shotsTaken"`
	NextPlayer *flow.Address `json:"nextPlayer,omitempty"`
	WinnerTeam *model.Team   `json:"winnerTeam,omitempty"`
	// BotShot is the bot's reply in a practice game, fired right after a miss.
	BotShot    *ShotResult   `json:"botShot,omitempty"`
}

// Shoot fires the current chamber for the player whose turn it is.
func Shoot(g *model.Game, caller flow.Address, now int64) (ShotResult, error) {
	if g.Status != model.GameInProgress {
		return ShotResult{}, fmt.Errorf("game %d is %s: %w", g.Id, g.Status, reject.ErrNotYourTurn)
	}
	if caller != g.CurrentPlayer() {
		return ShotResult{}, reject.ErrNotYourTurn
	}
	team, ok := g.TeamOf(caller)
	if !ok {
		return ShotResult{}, reject.ErrNotYourTurn
	}
	chamber := g.CurrentChamber
	hit := chamber == g.BulletChamber
	if !hit && chamber >= model.ChamberCount {
		return ShotResult{}, reject.ErrChamberExhausted
	}

	g.ShotsTaken++
	g.LastActionAt = now
	result := ShotResult{
		Shooter:    caller,
		Team:       team,
		Chamber:    chamber,
		Hit:        hit,
		ShotsTaken: g.ShotsTaken,
	}
	if hit {
		winner := team.Opponent()
		g.WinnerTeam = &winner
		g.FinishedAt = now
		g.Status = model.GameFinished
		result.WinnerTeam = &winner
		return result, nil
	}

	g.CurrentChamber++
	g.CurrentTurn = uint8((int(g.CurrentTurn) + 1) % g.PlayerCount())
	next := g.CurrentPlayer()
	result.NextPlayer = &next
	return result, nil
}

func CanFinalize(g *model.Game) error {
	if g.IsSettled() {
		return reject.ErrAlreadyFinalized
	}
	if g.Status != model.GameFinished {
		return reject.ErrGameNotFinished
	}
	if g.Location != model.LocationBase {
		return fmt.Errorf("game %d: %w", g.Id, reject.ErrWrongContext)
	}
	return nil
}

// MarkSettled records the settlement and closes the pot.
func MarkSettled(g *model.Game, s model.Settlement) error {
	if err := CanFinalize(g); err != nil {
		return err
	}
	g.Settlement = &s
	g.TotalPot = 0
	g.LastActionAt = s.SettledAt
	return nil
}

// IsStalled reports whether an active game has seen no transition for timeout seconds.
func IsStalled(g *model.Game, now int64, timeoutSeconds int64) bool {
	if g.Status != model.GameDelegated && g.Status != model.GameInProgress {
		return false
	}
	return now-g.LastActionAt >= timeoutSeconds
}

// CanCancel checks whether the game may be cancelled at now.
func CanCancel(g *model.Game, now int64, timeoutSeconds int64) error {
	switch g.Status {
	case model.GameWaitingForPlayers:
		return nil
	case model.GameDelegated, model.GameInProgress:
		if !IsStalled(g, now, timeoutSeconds) {
			return reject.ErrGameNotStalled
		}
		return nil
	default:
		return reject.ErrGameNotCancellable
	}
}

// Cancel closes the game without a winner. Refunds are the caller's job.
func Cancel(g *model.Game, now int64, timeoutSeconds int64) error {
	if err := CanCancel(g, now, timeoutSeconds); err != nil {
		return err
	}
	if g.Location != model.LocationBase {
		return fmt.Errorf("game %d: %w", g.Id, reject.ErrWrongContext)
	}
	g.Status = model.GameCancelled
	g.TotalPot = 0
	g.BulletChamber = 0
	g.VrfPending = false
	g.FinishedAt = now
	g.LastActionAt = now
	return nil
}
