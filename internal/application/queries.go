package application

import (
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/queue"
	"github.com/goccy/go-json"
)

// Result is raw response data tagged with the account that served it.
type Result struct {
	Data        json.RawMessage
	Account     domain.Account
	FetchedAt   time.Time
	Cached      bool
	Fingerprint string
}

type Image struct {
	ContentType string
	Data        []byte
	Account     domain.Account
}

// AccountStatus joins an account with the live state of its queue and side cache.
type AccountStatus struct {
	Account domain.Account
	Queue   queue.Stats
	Cache   domain.AccountCacheSnapshot
}
