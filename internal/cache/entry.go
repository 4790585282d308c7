package cache

import (
	"errors"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/goccy/go-json"
)

// Entry is one cached outcome. Data is set for successes, ErrorMessage for failures.
// LoginRequired marks failures caused by a login page, which the status code alone cannot tell.
type Entry struct {
	Data          json.RawMessage     `json:"data,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	IsError       bool                `json:"is_error"`
	Account       domain.AccountAlias `json:"account,omitempty"`
	StatusCode    int                 `json:"status_code,omitempty"`
	LoginRequired bool                `json:"login_required,omitempty"`
	Timestamp     time.Time           `json:"timestamp"`
}

func Success(data json.RawMessage, account domain.AccountAlias) Entry {
	return Entry{Data: data, Account: account}
}

// Failure stores the display message of err; the status code is kept when err is an API error.
func Failure(err error) Entry {
	entry := Entry{ErrorMessage: err.Error(), IsError: true}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		entry.Account = apiErr.Account
		entry.StatusCode = apiErr.StatusCode
		entry.LoginRequired = errors.Is(apiErr, domain.ErrLoginRequired)
	}
	return entry
}

// Err replays a failed entry as an error; it returns nil for successes.
func (e Entry) Err() error {
	if !e.IsError {
		return nil
	}
	cached := &domain.CachedError{Message: e.ErrorMessage, StatusCode: e.StatusCode, Account: e.Account}
	if e.LoginRequired {
		cached.Kind = domain.ErrLoginRequired
	}
	return cached
}
