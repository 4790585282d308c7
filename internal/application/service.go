package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/GoWebProd/obsidian-jira-master/internal/cache"
	"github.com/GoWebProd/obsidian-jira-master/internal/dispatch"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/ports"
	"github.com/GoWebProd/obsidian-jira-master/internal/queue"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Requester sends a logical request to whichever account can serve it.
type Requester interface {
	Do(ctx context.Context, req domain.Request) (dispatch.Result, error)
}

type Service struct {
	accounts ports.AccountRepository
	requests Requester
	queues   *queue.Registry
	results  *cache.Cache
	clock    ports.Clock
	logger   *slog.Logger
	flights  *singleflight.Group
}

type Option func(*Service)

func WithClock(clock ports.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSingleFlight makes concurrent uncached fetches of one fingerprint share a single request.
func WithSingleFlight() Option {
	return func(s *Service) {
		s.flights = &singleflight.Group{}
	}
}

func NewService(accounts ports.AccountRepository, requests Requester, queues *queue.Registry, results *cache.Cache, opts ...Option) *Service {
	if queues == nil {
		queues = queue.NewRegistry()
	}
	if results == nil {
		results = cache.New(nil, cache.DefaultTTL)
	}

	s := &Service{
		accounts: accounts,
		requests: requests,
		queues:   queues,
		results:  results,
		clock:    ports.SystemClock{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func IssueFingerprint(key string, opts IssueOptions) string {
	return cache.Fingerprint("issue", strings.TrimSpace(key), cache.FieldList(opts.Fields), string(opts.Account))
}

func SearchFingerprint(query SearchQuery) string {
	query = query.normalized()
	return cache.Fingerprint(
		"search",
		strings.TrimSpace(query.JQL),
		strconv.Itoa(query.Limit),
		strconv.Itoa(query.Offset),
		cache.FieldList(query.Fields),
		cache.FieldList(query.Expand),
		string(query.Account),
	)
}

func (s *Service) FetchIssue(ctx context.Context, key string, opts IssueOptions) (Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, ErrEmptyIssueKey
	}

	query := url.Values{}
	if fields := cache.FieldList(opts.Fields); fields != "" {
		query.Set("fields", fields)
	}

	req := domain.Request{
		Method:  http.MethodGet,
		Path:    "/issue/" + url.PathEscape(key),
		Query:   query,
		Account: opts.Account,
	}
	return s.cached(ctx, IssueFingerprint(key, opts), opts.Refresh, req)
}

func (s *Service) Search(ctx context.Context, query SearchQuery) (Result, error) {
	query = query.normalized()

	values := url.Values{}
	values.Set("jql", strings.TrimSpace(query.JQL))
	values.Set("startAt", strconv.Itoa(query.Offset))
	values.Set("maxResults", strconv.Itoa(query.Limit))
	if fields := cache.FieldList(query.Fields); fields != "" {
		values.Set("fields", fields)
	}
	if expand := cache.FieldList(query.Expand); expand != "" {
		values.Set("expand", expand)
	}

	req := domain.Request{
		Method:        http.MethodGet,
		Path:          "/search",
		AlternatePath: "/search/jql",
		Query:         values,
		Account:       query.Account,
	}
	return s.cached(ctx, SearchFingerprint(query), query.Refresh, req)
}

// UpdateFields writes issue fields. Updates are never cached.
func (s *Service) UpdateFields(ctx context.Context, key string, fields map[string]any, account domain.AccountAlias) (Result, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Result{}, ErrEmptyIssueKey
	}
	if len(fields) == 0 {
		return Result{}, ErrNoFields
	}

	logger := s.logger.With("request_id", newRequestID(), "issue", key)
	logger.Debug("updating issue fields", "count", len(fields))

	result, err := s.requests.Do(ctx, domain.Request{
		Method:  http.MethodPut,
		Path:    "/issue/" + url.PathEscape(key),
		Body:    map[string]any{"fields": fields},
		Account: account,
	})
	if err != nil {
		return Result{}, fmt.Errorf("update issue %s: %w", key, err)
	}

	return Result{
		Data:      result.Response.Body,
		Account:   result.Account,
		FetchedAt: s.clock.Now(),
	}, nil
}

// FetchImage downloads an attachment or avatar. Without an explicit account the account
// hosting the URL is used. Credentials never leave their account's host.
func (s *Service) FetchImage(ctx context.Context, rawURL string, account domain.AccountAlias) (Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Image{}, ErrEmptyImageURL
	}

	if account == "" {
		hosting, err := s.hostingAccount(ctx, rawURL)
		if err != nil {
			return Image{}, err
		}
		account = hosting
	}

	result, err := s.requests.Do(ctx, domain.Request{
		Method:  http.MethodGet,
		URL:     rawURL,
		Account: account,
		Expect:  domain.ExpectBinary,
	})
	if err != nil {
		return Image{}, fmt.Errorf("fetch image: %w", err)
	}

	contentType := result.Response.ContentType()
	if contentType == "" {
		contentType = http.DetectContentType(result.Response.Body)
	}

	return Image{
		ContentType: contentType,
		Data:        result.Response.Body,
		Account:     result.Account,
	}, nil
}

func (s *Service) hostingAccount(ctx context.Context, rawURL string) (domain.AccountAlias, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list accounts: %w", err)
	}

	domain.SortByPriority(accounts)
	for _, account := range accounts {
		if account.HostsURL(rawURL) {
			return account.Alias, nil
		}
	}
	// A foreign URL gets one anonymous attempt through the first account's queue.
	if len(accounts) > 0 {
		return accounts[0].Alias, nil
	}
	return "", nil
}

func (s *Service) Accounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	domain.SortByPriority(accounts)
	return accounts, nil
}

func (s *Service) QueueStats() []queue.Stats {
	return s.queues.Stats()
}

// Statuses reports every configured account with its queue and side cache state.
func (s *Service) Statuses(ctx context.Context) ([]AccountStatus, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}

	live := make(map[domain.AccountAlias]queue.Stats)
	for _, stats := range s.queues.Stats() {
		live[stats.Alias] = stats
	}

	statuses := make([]AccountStatus, 0, len(accounts))
	for _, account := range accounts {
		stats, ok := live[account.Alias]
		if !ok {
			stats = queue.Stats{
				Alias:   account.Alias,
				Enabled: account.RateLimit.Enabled,
				Slots:   account.RateLimit.Slots(),
				Delay:   account.RateLimit.Delay,
			}
		}

		status := AccountStatus{Account: account, Queue: stats}
		if account.Cache != nil {
			status.Cache = account.Cache.Snapshot()
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// CacheAge reports how old the cached outcome for a fingerprint is, or "Never".
func (s *Service) CacheAge(ctx context.Context, fingerprint string) string {
	return s.results.GetTime(ctx, fingerprint)
}

func (s *Service) Invalidate(ctx context.Context, fingerprint string) error {
	return s.results.Delete(ctx, fingerprint)
}

func (s *Service) ClearCache(ctx context.Context) error {
	return s.results.Clear(ctx)
}

func (s *Service) cached(ctx context.Context, fingerprint string, refresh bool, req domain.Request) (Result, error) {
	logger := s.logger.With("request_id", newRequestID(), "fingerprint", fingerprint)

	if refresh {
		if err := s.results.Delete(ctx, fingerprint); err != nil {
			logger.Warn("drop cached result", "error", err)
		}
	} else {
		entry, ok, err := s.results.Get(ctx, fingerprint)
		if err != nil {
			logger.Warn("read cached result", "error", err)
		}
		if ok {
			logger.Debug("cache hit", "account", entry.Account, "error", entry.IsError)
			return s.fromEntry(ctx, fingerprint, entry)
		}
		logger.Debug("cache miss")
	}

	if s.flights == nil {
		return s.fetch(ctx, logger, fingerprint, req)
	}

	// The flight outlives any single caller; each caller still stops waiting on its own ctx.
	flight := s.flights.DoChan(fingerprint, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx), logger, fingerprint, req)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-flight:
		if res.Shared {
			logger.Debug("joined in-flight request")
		}
		if res.Err != nil {
			return Result{}, res.Err
		}
		return res.Val.(Result), nil
	}
}

func (s *Service) fetch(ctx context.Context, logger *slog.Logger, fingerprint string, req domain.Request) (Result, error) {
	result, err := s.requests.Do(ctx, req)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) {
			if _, cacheErr := s.results.Add(ctx, fingerprint, cache.Failure(apiErr)); cacheErr != nil {
				logger.Warn("store failed result", "error", cacheErr)
			}
		}
		return Result{}, err
	}

	fetchedAt := s.clock.Now()
	stored, err := s.results.Add(ctx, fingerprint, cache.Success(result.Response.Body, result.Account.Alias))
	if err != nil {
		logger.Warn("store result", "error", err)
	} else {
		fetchedAt = stored.Timestamp
	}

	return Result{
		Data:        result.Response.Body,
		Account:     result.Account,
		FetchedAt:   fetchedAt,
		Fingerprint: fingerprint,
	}, nil
}

func (s *Service) fromEntry(ctx context.Context, fingerprint string, entry cache.Entry) (Result, error) {
	if err := entry.Err(); err != nil {
		return Result{}, err
	}

	account := domain.Account{Alias: entry.Account}
	if entry.Account != "" {
		if resolved, err := s.accounts.GetByAlias(ctx, entry.Account); err == nil {
			account = resolved
		}
	}

	return Result{
		Data:        entry.Data,
		Account:     account,
		FetchedAt:   entry.Timestamp,
		Cached:      true,
		Fingerprint: fingerprint,
	}, nil
}

func newRequestID() string {
	return uuid.NewString()[:8]
}
