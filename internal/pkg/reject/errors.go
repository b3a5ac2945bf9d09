package reject

import (
	"errors"
	"net/http"
)

type Category string

const (
	Validation    Category = "validation"
	Authorization Category = "authorization"
	Conflict      Category = "conflict"
	Liveness      Category = "liveness"
	Sequencing    Category = "sequencing"
	NotFound      Category = "not-found"
	Internal      Category = "internal"
)

// Error is a domain rejection. Rejections never move value.
type Error struct {
	Code     string
	Category Category
	Message  string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(category Category, code string, message string) *Error {
	return &Error{Code: code, Category: category, Message: message}
}

var (
	ErrInsufficientEntryFee    = newError(Validation, "error.game.insufficient-entry-fee", "entry fee outside allowed bounds")
	ErrInvalidGameMode         = newError(Validation, "error.game.invalid-mode", "invalid game mode")
	ErrInvalidFeeConfiguration = newError(Validation, "error.platform.invalid-fee-configuration", "invalid fee configuration")
	ErrInsufficientCollateral  = newError(Validation, "error.loan.insufficient-collateral", "insufficient collateral for loan")
	ErrInvalidRandomness       = newError(Validation, "error.oracle.invalid-randomness", "randomness must be 32 bytes")
	ErrInvalidFundingMode      = newError(Validation, "error.game.invalid-funding-mode", "funding must be DIRECT or LOAN")
	ErrInvalidBotDifficulty    = newError(Validation, "error.game.invalid-bot-difficulty", "difficulty must be EASY, MEDIUM or HARD")

	ErrCannotJoinOwnGame  = newError(Authorization, "error.game.cannot-join-own", "cannot join own game")
	ErrNotYourTurn        = newError(Authorization, "error.game.not-your-turn", "not your turn")
	ErrUnauthorized       = newError(Authorization, "error.generic.unauthorized", "caller is not authorized")
	ErrRandomnessMismatch = newError(Authorization, "error.oracle.request-mismatch", "fulfillment does not match the pending request")

	ErrPlayerAlreadyInGame = newError(Conflict, "error.game.player-already-in-game", "player already in game")
	ErrGameFull            = newError(Conflict, "error.game.full", "game is full")
	ErrGameClosed          = newError(Conflict, "error.game.closed", "game is not accepting players")
	ErrAlreadyFinalized    = newError(Conflict, "error.game.already-finalized", "game already finalized")
	ErrWrongContext        = newError(Conflict, "error.game.wrong-context", "game is owned by another context")
	ErrPlatformAlreadyInit = newError(Conflict, "error.platform.already-initialized", "platform already initialized")

	ErrDelegationTimeout = newError(Liveness, "error.handoff.delegation-timeout", "delegation did not propagate in time")
	ErrPlatformPaused    = newError(Liveness, "error.platform.paused", "platform is paused")
	ErrPracticeDisabled  = newError(Liveness, "error.game.practice-disabled", "practice games are not available")

	ErrGameNotFinished        = newError(Sequencing, "error.game.not-finished", "game not finished")
	ErrGameNotReadyToDelegate = newError(Sequencing, "error.game.not-ready-to-delegate", "game not ready to delegate")
	ErrGameNotDelegated       = newError(Sequencing, "error.game.not-delegated", "game not delegated")
	ErrGameNotCancellable     = newError(Sequencing, "error.game.not-cancellable", "game cannot be cancelled")
	ErrGameNotStalled         = newError(Sequencing, "error.game.not-stalled", "game has not stalled yet")
	ErrChamberExhausted       = newError(Sequencing, "error.game.chamber-exhausted", "all chambers fired")
	ErrPlatformNotInitialized = newError(Sequencing, "error.platform.not-initialized", "platform not initialized")

	ErrInsufficientFunds    = newError(Conflict, "error.ledger.insufficient-funds", "insufficient funds")
	ErrInsufficientTreasury = newError(Conflict, "error.platform.insufficient-treasury", "treasury balance too low")

	ErrArithmeticOverflow = newError(Internal, "error.math.overflow", "arithmetic overflow")

	ErrGameNotFound = newError(NotFound, "error.game.not-found", "game not found")
)

func statusFor(category Category) int {
	switch category {
	case Validation:
		return http.StatusBadRequest
	case Authorization:
		return http.StatusForbidden
	case Conflict:
		return http.StatusConflict
	case Liveness:
		return http.StatusServiceUnavailable
	case Sequencing:
		return http.StatusUnprocessableEntity
	case NotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ProblemFor maps any error to the problem returned over http.
func ProblemFor(err error) Problem {
	var domainErr *Error
	if !errors.As(err, &domainErr) || domainErr.Category == Internal {
		return UnexpectedProblem(err)
	}
	return NewProblem().
		WithTitle(domainErr.Message).
		WithStatus(statusFor(domainErr.Category)).
		WithCode(domainErr.Code).
		WithType(string(domainErr.Category)).
		WithDetail(err.Error()).
		Build()
}

// Trace wraps err for returning from a service. Nil stays nil.
func Trace(err error) *ProblemWithTrace {
	if err == nil {
		return nil
	}
	return &ProblemWithTrace{
		Problem: ProblemFor(err),
		Cause:   err,
	}
}
