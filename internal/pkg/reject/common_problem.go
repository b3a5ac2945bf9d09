package reject

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// Request-level problems raised before a call reaches a service.
const (
	requestInvalidPayload = "error.request.invalid-payload"
	requestInvalidParams  = "error.request.invalid-params"
	requestUnreadableBody = "error.request.unreadable-payload"
	genericUnexpected     = "error.generic.unexpected"
)

func requestProblem(title string, code string) Problem {
	return NewProblem().
		WithTitle(title).
		WithStatus(http.StatusBadRequest).
		WithType(string(Validation)).
		WithCode(code).
		Build()
}

// RequestValidationProblem rejects a payload that parsed but holds a malformed
// value, such as a seed that is not 32 hex bytes.
func RequestValidationProblem() Problem {
	return requestProblem("Invalid request payload", requestInvalidPayload)
}

func RequestParamsProblem() Problem {
	return requestProblem("Invalid path or query parameters", requestInvalidParams)
}

func BodyParseProblem() Problem {
	return requestProblem("Cannot read payload", requestUnreadableBody)
}

// UnexpectedProblem hides the cause from the caller and logs it.
func UnexpectedProblem(err error) Problem {
	log.Error().Err(err).Msg("Unexpected error while handling request")
	return NewProblem().
		WithTitle("Unexpected error").
		WithStatus(http.StatusInternalServerError).
		WithType(string(Internal)).
		WithCode(genericUnexpected).
		Build()
}
