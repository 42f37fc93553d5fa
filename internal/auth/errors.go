package auth

import "errors"

var (
	// ErrMissingParameter indicates a callback arrived without code or state.
	ErrMissingParameter = errors.New("missing required parameter")

	// ErrInvalidState indicates the state parameter failed signature or
	// expiry verification.
	ErrInvalidState = errors.New("invalid or expired state")
)

// ExchangeError wraps a failed authorization-code exchange with the
// provider's response status.
type ExchangeError struct {
	Status int
	Err    error
}

func (e *ExchangeError) Error() string {
	return "token exchange failed: " + e.Err.Error()
}

func (e *ExchangeError) Unwrap() error { return e.Err }
