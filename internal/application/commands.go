package application

import (
	"errors"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
)

const DefaultSearchLimit = 50

var (
	ErrEmptyIssueKey = errors.New("issue key is required")
	ErrEmptyImageURL = errors.New("image url is required")
	ErrNoFields      = errors.New("no fields to update")
)

type IssueOptions struct {
	Fields  []string
	Account domain.AccountAlias
	// Refresh drops any cached outcome before fetching.
	Refresh bool
}

type SearchQuery struct {
	JQL     string
	Limit   int
	Offset  int
	Fields  []string
	Expand  []string
	Account domain.AccountAlias
	Refresh bool
}

func (q SearchQuery) normalized() SearchQuery {
	if q.Limit <= 0 {
		q.Limit = DefaultSearchLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}
