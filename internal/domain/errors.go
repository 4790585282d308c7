package domain

import "errors"

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNoAccounts      = errors.New("no accounts configured")

	ErrBadRequest       = errors.New("bad request")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrNotFound         = errors.New("not found")
	ErrAPIVersionGone   = errors.New("api version not available")
	ErrRateLimited      = errors.New("rate limited")
	ErrLoginRequired    = errors.New("login required")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// APIError is a non-success response classified by status code.
// Error returns the message meant to be shown to the user as-is.
type APIError struct {
	Kind       error
	StatusCode int
	Account    AccountAlias
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.Kind
}

// CachedError replays a failure stored in the result cache.
// Kind overrides the sentinel derived from StatusCode when set.
type CachedError struct {
	Kind       error
	Message    string
	StatusCode int
	Account    AccountAlias
}

func (e *CachedError) Error() string {
	return e.Message
}

func (e *CachedError) Unwrap() error {
	if e.Kind != nil {
		return e.Kind
	}
	return KindForStatus(e.StatusCode)
}

// KindForStatus maps an HTTP status to its sentinel error; 0 maps to nil.
func KindForStatus(status int) error {
	switch {
	case status == 0:
		return nil
	case status == 400:
		return ErrBadRequest
	case status == 401:
		return ErrUnauthorized
	case status == 403:
		return ErrForbidden
	case status == 404:
		return ErrNotFound
	case status == 410:
		return ErrAPIVersionGone
	case status == 429:
		return ErrRateLimited
	default:
		return ErrUnexpectedStatus
	}
}
