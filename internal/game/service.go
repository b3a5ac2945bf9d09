package game

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kollektive-hackathon/roulette-backend/internal/handoff"
	"github.com/kollektive-hackathon/roulette-backend/internal/notify"
	"github.com/kollektive-hackathon/roulette-backend/internal/oracle"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/config"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/model"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/reject"
	"github.com/kollektive-hackathon/roulette-backend/internal/pkg/store"
	"github.com/kollektive-hackathon/roulette-backend/internal/settlement"
	"github.com/onflow/flow-go-sdk"
	"github.com/rs/zerolog/log"
)

type gameService struct {
	store    store.Store
	handoff  *handoff.Handoff
	oracle   *oracle.Adapter
	bridge   *gameContractBridge
	notifier notify.Notifier
	cfg      config.GameConfig
	now      func() time.Time
}

func newGameService(
	s store.Store,
	h *handoff.Handoff,
	o *oracle.Adapter,
	bridge *gameContractBridge,
	notifier notify.Notifier,
	cfg config.GameConfig,
) *gameService {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &gameService{
		store:    s,
		handoff:  h,
		oracle:   o,
		bridge:   bridge,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
	}
}

func (gs *gameService) bounds() EntryBounds {
	return EntryBounds{Min: gs.cfg.MinEntryFee, Max: gs.cfg.MaxEntryFee}
}

func (gs *gameService) notify(eventType notify.EventType, gameId uint64, payload any) notify.Event {
	return notify.NewEvent(eventType, gameId, gs.now(), payload)
}

func activePlatform(tx store.Tx) (*model.Platform, error) {
	p, err := tx.Platform()
	if err != nil {
		return nil, err
	}
	if p.Paused {
		return nil, reject.ErrPlatformPaused
	}
	return p, nil
}

func (gs *gameService) authority(ctx context.Context) (flow.Address, error) {
	var authority flow.Address
	err := gs.store.Transaction(ctx, func(tx store.Tx) error {
		p, err := tx.Platform()
		if err != nil {
			return err
		}
		authority = p.Authority
		return nil
	})
	return authority, err
}

// requireMember lets participants and the platform authority through.
func (gs *gameService) requireMember(ctx context.Context, g *model.Game, caller flow.Address) error {
	if g.Contains(caller) {
		return nil
	}
	authority, err := gs.authority(ctx)
	if err != nil {
		return err
	}
	if caller != authority {
		return reject.ErrUnauthorized
	}
	return nil
}

type CreateGameParams struct {
	Mode     model.GameMode
	EntryFee uint64
	VrfSeed  model.Hash32
	Funding  Funding
}

func (gs *gameService) createGame(ctx context.Context, caller flow.Address, params CreateGameParams) (*model.Game, *reject.ProblemWithTrace) {
	if err := ValidateEntry(params.Mode, params.EntryFee, gs.bounds()); err != nil {
		return nil, reject.Trace(err)
	}

	now := gs.now().Unix()
	var created *model.Game
	err := gs.store.Transaction(ctx, func(tx store.Tx) error {
		p, err := activePlatform(tx)
		if err != nil {
			return err
		}
		id, err := p.AllocateGameID()
		if err != nil {
			return err
		}
		g, err := NewGame(NewGameParams{
			Id:       id,
			Creator:  caller,
			Mode:     params.Mode,
			EntryFee: params.EntryFee,
			VrfSeed:  params.VrfSeed,
			Now:      now,
		}, gs.bounds())
		if err != nil {
			return err
		}
		if err := fundEntry(tx, g, caller, params.Funding, now); err != nil {
			return err
		}
		if err := tx.SavePlatform(p); err != nil {
			return err
		}
		created = g
		return tx.CreateGame(g)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}

	log.Info().Uint64("game_id", created.Id).Str("creator", caller.Hex()).Str("mode", created.Mode.String()).Msg("Game created")
	gs.notifier.Notify(gs.notify(notify.GameCreated, created.Id, created))
	return created, nil
}

type CreatePracticeGameParams struct {
	Difficulty model.BotDifficulty
	VrfSeed    model.Hash32
}

// createPracticeGame opens a free game against the platform bot.
func (gs *gameService) createPracticeGame(ctx context.Context, caller flow.Address, params CreatePracticeGameParams) (*model.Game, *reject.ProblemWithTrace) {
	now := gs.now().Unix()
	var created *model.Game
	err := gs.store.Transaction(ctx, func(tx store.Tx) error {
		p, err := activePlatform(tx)
		if err != nil {
			return err
		}
		id, err := p.AllocateGameID()
		if err != nil {
			return err
		}
		g, err := NewPracticeGame(NewPracticeGameParams{
			Id:         id,
			Creator:    caller,
			Bot:        gs.cfg.PracticeBot,
			Difficulty: params.Difficulty,
			VrfSeed:    params.VrfSeed,
			Now:        now,
		})
		if err != nil {
			return err
		}
		if err := tx.SavePlatform(p); err != nil {
			return err
		}
		created = g
		return tx.CreateGame(g)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}

	log.Info().Uint64("game_id", created.Id).Str("creator", caller.Hex()).Str("difficulty", string(created.BotDifficulty)).Msg("Practice game created")
	gs.notifier.Notify(gs.notify(notify.GameCreated, created.Id, created))
	return created, nil
}

type JoinedPayload struct {
	Player flow.Address `json:"player"`
	Team   model.Team   `json:"team"`
	IsFull bool         `json:"isFull"`
}

func (gs *gameService) joinGame(ctx context.Context, caller flow.Address, gameId uint64, funding Funding) (*model.Game, *reject.ProblemWithTrace) {
	now := gs.now().Unix()
	var joined *model.Game
	var team model.Team
	err := gs.store.Transaction(ctx, func(tx store.Tx) error {
		if _, err := activePlatform(tx); err != nil {
			return err
		}
		g, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		if team, err = Join(g, caller, now); err != nil {
			return err
		}
		if err := fundEntry(tx, g, caller, funding, now); err != nil {
			return err
		}
		joined = g
		return tx.SaveGame(g)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}

	log.Info().Uint64("game_id", gameId).Str("player", caller.Hex()).Str("team", team.String()).Msg("Player joined game")
	gs.notifier.Notify(gs.notify(notify.PlayerJoined, gameId, JoinedPayload{Player: caller, Team: team, IsFull: joined.IsFull()}))
	return joined, nil
}

func (gs *gameService) delegateGame(ctx context.Context, caller flow.Address, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	authority, err := gs.authority(ctx)
	if err != nil {
		return nil, reject.Trace(err)
	}
	now := gs.now().Unix()
	g, err := gs.handoff.Delegate(ctx, gameId, func(g *model.Game) error {
		if !g.Contains(caller) && caller != authority {
			return reject.ErrUnauthorized
		}
		return MarkDelegated(g, now)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}
	gs.notifier.Notify(gs.notify(notify.GameDelegated, gameId, g))

	if requested, problem := gs.requestRandomness(ctx, authority, gameId); problem != nil {
		log.Warn().Err(problem).Uint64("game_id", gameId).Msg("Randomness request after delegation failed")
	} else {
		g = requested
	}
	return g, nil
}

// requestRandomness binds a fresh request id to a delegated game and asks the
// oracle for randomness. Repeated calls while a request is pending do nothing.
func (gs *gameService) requestRandomness(ctx context.Context, caller flow.Address, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	current, err := gs.handoff.Current(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	if err := gs.requireMember(ctx, current, caller); err != nil {
		return nil, reject.Trace(err)
	}
	if current.Location != model.LocationExecution {
		return nil, reject.Trace(fmt.Errorf("game %d: %w", gameId, reject.ErrGameNotDelegated))
	}

	started := false
	g, err := gs.handoff.Execute(ctx, gameId, func(g *model.Game) error {
		var err error
		started, err = BeginRandomnessRequest(g, oracle.NewRequestId(), gs.now().Unix())
		return err
	})
	if err != nil {
		return nil, reject.Trace(err)
	}
	if !started {
		return g, nil
	}
	if err := gs.oracle.Request(g); err != nil {
		return nil, reject.Trace(err)
	}
	gs.notifier.Notify(gs.notify(notify.RandomnessRequested, gameId, map[string]string{"requestId": g.VrfRequestId}))
	return g, nil
}

type StartedPayload struct {
	TurnOrder  []flow.Address `json:"turnOrder"`
	NextPlayer flow.Address   `json:"nextPlayer"`
}

// submitRandomness applies an oracle fulfillment. Redelivered fulfillments are
// accepted and change nothing.
func (gs *gameService) submitRandomness(ctx context.Context, f oracle.Fulfillment) (*model.Game, *reject.ProblemWithTrace) {
	if err := gs.oracle.Authorize(f.Caller); err != nil {
		return nil, reject.Trace(err)
	}
	current, err := gs.handoff.Current(ctx, f.GameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	if current.Location != model.LocationExecution {
		if current.VrfResult != nil {
			return current, nil
		}
		return nil, reject.Trace(fmt.Errorf("game %d: %w", f.GameId, reject.ErrGameNotDelegated))
	}

	applied := false
	g, err := gs.handoff.Execute(ctx, f.GameId, func(g *model.Game) error {
		var err error
		applied, err = Randomize(g, f.RequestId, f.Randomness, gs.now().Unix())
		return err
	})
	if err != nil {
		return nil, reject.Trace(err)
	}
	if !applied {
		log.Info().Uint64("game_id", f.GameId).Msg("Duplicate randomness fulfillment ignored")
		return g, nil
	}

	log.Info().Uint64("game_id", f.GameId).Msg("Randomness applied, game started")
	order := g.TurnOrder[:g.PlayerCount()]
	gs.notifier.Notify(
		gs.notify(notify.GameStarted, f.GameId, StartedPayload{TurnOrder: append([]flow.Address{}, order...), NextPlayer: g.CurrentPlayer()}),
		gs.notify(notify.TurnChanged, f.GameId, map[string]flow.Address{"nextPlayer": g.CurrentPlayer()}),
	)
	return g, nil
}

func (gs *gameService) takeShot(ctx context.Context, caller flow.Address, gameId uint64) (*ShotResult, *reject.ProblemWithTrace) {
	g, result, err := gs.fire(ctx, gameId, func(*model.Game) (flow.Address, error) {
		return caller, nil
	})
	if err != nil {
		return nil, reject.Trace(err)
	}
	if g.Practice && !result.Hit && *result.NextPlayer == g.Bot {
		if _, reply, err := gs.fireBot(ctx, gameId); err != nil {
			log.Warn().Err(err).Uint64("game_id", gameId).Msg("Bot shot failed")
		} else {
			result.BotShot = &reply
		}
	}
	return &result, nil
}

// takeBotShot fires for the bot of a practice game. Player misses do this
// automatically; the bot wallet or the authority can drive it when that fails.
func (gs *gameService) takeBotShot(ctx context.Context, caller flow.Address, gameId uint64) (*ShotResult, *reject.ProblemWithTrace) {
	if caller != gs.cfg.PracticeBot || caller == flow.EmptyAddress {
		authority, err := gs.authority(ctx)
		if err != nil {
			return nil, reject.Trace(err)
		}
		if caller != authority {
			return nil, reject.Trace(reject.ErrUnauthorized)
		}
	}
	_, result, err := gs.fireBot(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	return &result, nil
}

func (gs *gameService) fireBot(ctx context.Context, gameId uint64) (*model.Game, ShotResult, error) {
	return gs.fire(ctx, gameId, func(g *model.Game) (flow.Address, error) {
		if !g.Practice {
			return flow.EmptyAddress, fmt.Errorf("game %d has no bot: %w", gameId, reject.ErrNotYourTurn)
		}
		return g.Bot, nil
	})
}

// fire runs one shot in the execution context for the player shooter picks.
func (gs *gameService) fire(ctx context.Context, gameId uint64, shooter func(g *model.Game) (flow.Address, error)) (*model.Game, ShotResult, error) {
	var result ShotResult
	g, err := gs.handoff.Execute(ctx, gameId, func(g *model.Game) error {
		caller, err := shooter(g)
		if err != nil {
			return err
		}
		result, err = Shoot(g, caller, gs.now().Unix())
		return err
	})
	if errors.Is(err, reject.ErrGameNotDelegated) {
		err = fmt.Errorf("game %d is not in play: %w", gameId, reject.ErrNotYourTurn)
	}
	if err != nil {
		return nil, ShotResult{}, err
	}

	events := []notify.Event{gs.notify(notify.PlayerShot, gameId, result)}
	if result.Hit {
		log.Info().Uint64("game_id", gameId).Str("shooter", result.Shooter.Hex()).Uint8("chamber", result.Chamber).Msg("Player eliminated, game finished")
		events = append(events,
			gs.notify(notify.PlayerEliminated, gameId, map[string]flow.Address{"player": result.Shooter}),
			gs.notify(notify.GameFinished, gameId, g),
		)
	} else {
		log.Info().Uint64("game_id", gameId).Str("shooter", result.Shooter.Hex()).Uint8("chamber", result.Chamber).Msg("Player survived shot")
		events = append(events, gs.notify(notify.TurnChanged, gameId, map[string]flow.Address{"nextPlayer": *result.NextPlayer}))
	}
	gs.notifier.Notify(events...)
	return g, result, nil
}

func (gs *gameService) commitGame(ctx context.Context, caller flow.Address, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	current, err := gs.handoff.Current(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	if err := gs.requireMember(ctx, current, caller); err != nil {
		return nil, reject.Trace(err)
	}
	g, err := gs.handoff.Commit(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	gs.notifier.Notify(gs.notify(notify.GameCommitted, gameId, map[string]string{"root": fmt.Sprintf("%x", g.CheckpointRoot)}))
	return g, nil
}

func (gs *gameService) undelegateGame(ctx context.Context, caller flow.Address, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	current, err := gs.handoff.Current(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	if err := gs.requireMember(ctx, current, caller); err != nil {
		return nil, reject.Trace(err)
	}
	wasExecuting := current.Location == model.LocationExecution
	g, err := gs.handoff.Undelegate(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	if wasExecuting {
		gs.notifier.Notify(gs.notify(notify.GameUndelegated, gameId, g))
	}
	return g, nil
}

// finalizeGame pays out a finished game exactly once. A game still held by
// the execution context is brought back first.
func (gs *gameService) finalizeGame(ctx context.Context, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	current, err := gs.handoff.Current(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	if current.IsSettled() {
		return nil, reject.Trace(reject.ErrAlreadyFinalized)
	}
	if current.Status != model.GameFinished {
		return nil, reject.Trace(reject.ErrGameNotFinished)
	}
	if current.Location == model.LocationExecution {
		if _, err := gs.handoff.Undelegate(ctx, gameId); err != nil {
			return nil, reject.Trace(err)
		}
	}

	now := gs.now().Unix()
	var settled *model.Game
	err = gs.store.Transaction(ctx, func(tx store.Tx) error {
		g, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		if err := CanFinalize(g); err != nil {
			return err
		}
		p, err := tx.Platform()
		if err != nil {
			return err
		}
		s, err := gs.settle(tx, g, p, now)
		if err != nil {
			return err
		}
		if err := MarkSettled(g, s); err != nil {
			return err
		}
		if err := tx.SavePlatform(p); err != nil {
			return err
		}
		settled = g
		return tx.SaveGame(g)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}

	log.Info().
		Uint64("game_id", gameId).
		Uint64("pot", settled.Settlement.Pot).
		Uint64("per_winner", settled.Settlement.PerWinner).
		Msg("Game settled")
	if !settled.Practice {
		gs.bridge.sendSettlement(settled)
	}
	gs.notifier.Notify(gs.notify(notify.GameSettled, gameId, settled.Settlement))
	return settled, nil
}

func (gs *gameService) settle(tx store.Tx, g *model.Game, p *model.Platform, now int64) (model.Settlement, error) {
	if g.Practice {
		return model.Settlement{SettledAt: now}, nil
	}
	winners := g.Members(*g.WinnerTeam)
	fees := settlement.Fees{PlatformBps: p.PlatformFeeBps, TreasuryBps: p.TreasuryFeeBps}
	b, err := settlement.Settle(g.TotalPot, fees, len(winners))
	if err != nil {
		return model.Settlement{}, err
	}
	treasuryCut, err := b.TreasuryTotal()
	if err != nil {
		return model.Settlement{}, err
	}

	escrow := model.EscrowAccount(g.Id)
	if err := store.Transfer(tx, escrow, model.PlatformVaultAccount, b.PlatformFee); err != nil {
		return model.Settlement{}, err
	}
	if err := store.Transfer(tx, escrow, model.TreasuryVaultAccount, treasuryCut); err != nil {
		return model.Settlement{}, err
	}

	var payouts []model.Payout
	for _, winner := range winners {
		payout, err := payWinner(tx, g, winner, b.PerWinner, gs.cfg.LoanAprBps, now)
		if err != nil {
			return model.Settlement{}, err
		}
		payouts = append(payouts, payout)
	}
	for _, loser := range g.Members(g.WinnerTeam.Opponent()) {
		loan, borrowed := g.LoanOf(loser)
		if !borrowed {
			continue
		}
		payout, err := seizeCollateral(tx, g, loan, gs.cfg.LoanAprBps, now)
		if err != nil {
			return model.Settlement{}, err
		}
		payouts = append(payouts, payout)
	}

	p.Accrue(b.Pot, treasuryCut)
	return model.Settlement{
		Pot:          b.Pot,
		PlatformFee:  b.PlatformFee,
		TreasuryFee:  b.TreasuryFee,
		WinnerAmount: b.WinnerAmount,
		PerWinner:    b.PerWinner,
		Dust:         b.Dust,
		Payouts:      payouts,
		SettledAt:    now,
	}, nil
}

// cancelGame closes a game without a winner and refunds every entry. Open
// games may be cancelled by their creator; stalled games only by the authority.
func (gs *gameService) cancelGame(ctx context.Context, caller flow.Address, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	authority, err := gs.authority(ctx)
	if err != nil {
		return nil, reject.Trace(err)
	}
	current, err := gs.handoff.Current(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	timeout := int64(gs.cfg.StallTimeout / time.Second)
	now := gs.now().Unix()

	switch current.Status {
	case model.GameWaitingForPlayers:
		if caller != current.Creator && caller != authority {
			return nil, reject.Trace(reject.ErrUnauthorized)
		}
	case model.GameDelegated, model.GameInProgress:
		if caller != authority {
			return nil, reject.Trace(reject.ErrUnauthorized)
		}
	}
	if err := CanCancel(current, now, timeout); err != nil {
		return nil, reject.Trace(err)
	}
	if current.Location == model.LocationExecution {
		if _, err := gs.handoff.Reclaim(ctx, gameId); err != nil {
			return nil, reject.Trace(err)
		}
	}

	var cancelled *model.Game
	var refunds []model.Payout
	err = gs.store.Transaction(ctx, func(tx store.Tx) error {
		g, err := tx.Game(gameId)
		if err != nil {
			return err
		}
		players := g.Players()
		if err := Cancel(g, now, timeout); err != nil {
			return err
		}
		if g.Practice {
			players = nil
		}
		for _, player := range players {
			refund, err := refundEntry(tx, g, player)
			if err != nil {
				return err
			}
			refunds = append(refunds, refund)
		}
		cancelled = g
		return tx.SaveGame(g)
	})
	if err != nil {
		return nil, reject.Trace(err)
	}

	log.Info().Uint64("game_id", gameId).Int("refunds", len(refunds)).Msg("Game cancelled")
	if !cancelled.Practice {
		gs.bridge.sendRefund(cancelled, refunds)
	}
	gs.notifier.Notify(gs.notify(notify.GameCancelled, gameId, refunds))
	return cancelled, nil
}

func (gs *gameService) getGame(ctx context.Context, gameId uint64) (*model.Game, *reject.ProblemWithTrace) {
	g, err := gs.handoff.Current(ctx, gameId)
	if err != nil {
		return nil, reject.Trace(err)
	}
	return g, nil
}

// getGames lists base records, replacing delegated ones with their live copy.
func (gs *gameService) getGames(ctx context.Context, filter store.GameFilter, page store.Page) ([]model.Game, int64, *reject.ProblemWithTrace) {
	var games []model.Game
	var count int64
	err := gs.store.Transaction(ctx, func(tx store.Tx) error {
		var err error
		games, count, err = tx.Games(filter, page)
		return err
	})
	if err != nil {
		return nil, 0, reject.Trace(err)
	}
	for i := range games {
		if games[i].Location != model.LocationExecution {
			continue
		}
		live, err := gs.handoff.Current(ctx, games[i].Id)
		if err != nil {
			return nil, 0, reject.Trace(err)
		}
		games[i] = *live
	}
	return games, count, nil
}
