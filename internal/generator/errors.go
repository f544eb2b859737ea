package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/remaimber-it/mastery/internal/llm"
)

// ValidationError means the collaborator answered but the content cannot
// be used. Retrying the same request is not expected to help much.
type ValidationError struct {
	Reason  string
	Wrapped error
}

func (e *ValidationError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("invalid questions: %s: %v", e.Reason, e.Wrapped)
	}
	return fmt.Sprintf("invalid questions: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Wrapped
}

// TransientError means the collaborator could not be reached or was
// overloaded. The request may succeed if retried.
type TransientError struct {
	Reason  string
	Wrapped error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("generation unavailable: %s: %v", e.Reason, e.Wrapped)
}

func (e *TransientError) Unwrap() error {
	return e.Wrapped
}

// IsTransient classifies timeouts, network failures, 429 and 5xx responses
// as worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return false
	}

	var se *llm.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
