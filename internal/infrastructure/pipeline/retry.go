package pipeline

import (
	"time"

	"github.com/library/backend/internal/domain/shared"
)

// Action is the pipeline's verdict on a failed command.
type Action int

const (
	// ActionRetry re-executes after a backoff delay.
	ActionRetry Action = iota
	// ActionReject settles the command and records the business
	// rejection in the dead-letter store.
	ActionReject
	// ActionPark settles the command as unprocessable.
	ActionPark
)

// Decision carries the action plus its parameters.
type Decision struct {
	Action Action
	Reason shared.DeadLetterReason
	Delay  time.Duration
}

// RetryPolicy bounds transient retries with exponential backoff.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
}

// Backoff returns the delay before the next attempt: base doubled per
// completed attempt.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return p.BaseBackoff * (1 << (attempt - 1))
}

// Decide maps a handler error to the pipeline's verdict. Schema
// violations park immediately, business rejections settle without retry,
// and only transient failures burn attempts.
func (p RetryPolicy) Decide(err error, attempt int) Decision {
	switch kind := shared.KindOf(err); kind {
	case shared.KindValidation:
		return Decision{Action: ActionPark, Reason: shared.ReasonMalformed}
	case shared.KindTransient:
		if attempt >= p.MaxAttempts {
			return Decision{Action: ActionPark, Reason: shared.ReasonExhausted}
		}
		return Decision{Action: ActionRetry, Delay: p.Backoff(attempt)}
	default:
		return Decision{Action: ActionReject, Reason: shared.ReasonRejected}
	}
}
