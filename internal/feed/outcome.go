package feed

import "errors"

// OutcomeKind classifies the result of an asynchronous backend operation.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// OutcomeRetryable covers timeouts, network failures and 5xx responses.
	OutcomeRetryable
	// OutcomeFatal covers rejections such as 4xx validation errors.
	OutcomeFatal
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Outcome is the result of an async operation: Ok(value), Retryable(err) or Fatal(err).
type Outcome[T any] struct {
	Kind  OutcomeKind
	Value T
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](value T) Outcome[T] {
	return Outcome[T]{Kind: OutcomeOK, Value: value}
}

// Failed wraps err, classifying it with Classify.
func Failed[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: Classify(err), Err: err}
}

// OutcomeOf builds an outcome from a (value, error) pair.
func OutcomeOf[T any](value T, err error) Outcome[T] {
	if err != nil {
		return Failed[T](err)
	}
	return Ok(value)
}

// Retryabler is implemented by errors that know whether a retry can help.
type Retryabler interface {
	Retryable() bool
}

// Classify maps an error onto the outcome taxonomy. Errors that do not say
// otherwise (timeouts, dial failures, cancellations) are transient, so the
// optimistic local state is kept.
func Classify(err error) OutcomeKind {
	if err == nil {
		return OutcomeOK
	}
	var r Retryabler
	if errors.As(err, &r) {
		if r.Retryable() {
			return OutcomeRetryable
		}
		return OutcomeFatal
	}
	return OutcomeRetryable
}
