package auth

import (
	"errors"
	"fmt"
)

// Flow errors.
var (
	// ErrMissingCode is returned when the callback arrives without an authorization code.
	ErrMissingCode = errors.New("missing authorization code")
	// ErrExchangeFailed is returned when the provider did not hand back both an access and a refresh token.
	ErrExchangeFailed = errors.New("token exchange failed")
	// ErrIdentityUnavailable is returned when identity resolution failed and the fallback policy forbids placeholders.
	ErrIdentityUnavailable = errors.New("identity resolution failed")
	// ErrPersistenceFailed wraps store-level failures that abort a flow.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrNoStoredToken is returned when no provider token has been stored yet.
	ErrNoStoredToken = errors.New("no stored provider token")
	// ErrProfileWithoutAddress is returned alongside ErrIdentityUnavailable when the provider answered
	// successfully but named neither a mail address nor a principal name.
	ErrProfileWithoutAddress = errors.New("profile has neither mail nor userPrincipalName")
)

// UpstreamStatusError records the HTTP status an identity provider call failed with.
type UpstreamStatusError struct {
	Status int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Session errors.
var (
	ErrMissingToken   = errors.New("missing token")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// ErrNotFound is returned by stores when a keyed lookup matches nothing.
var ErrNotFound = errors.New("not found")

// ErrTokenCollision is returned by session stores when a token is already taken.
var ErrTokenCollision = errors.New("session token already exists")

// ErrorCategory groups errors by how callers must react to them.
type ErrorCategory string

const (
	CategoryNone        ErrorCategory = ""
	CategoryCaller      ErrorCategory = "caller"
	CategoryUpstream    ErrorCategory = "upstream"
	CategoryPersistence ErrorCategory = "persistence"
	CategorySession     ErrorCategory = "session"
)

// Classify maps an error to its category. Unknown errors are treated as persistence failures
// since they leave the flow unable to complete.
func Classify(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryNone
	case errors.Is(err, ErrMissingCode):
		return CategoryCaller
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrInvalidSession), errors.Is(err, ErrSessionExpired):
		return CategorySession
	case errors.Is(err, ErrExchangeFailed), errors.Is(err, ErrIdentityUnavailable):
		return CategoryUpstream
	default:
		return CategoryPersistence
	}
}
