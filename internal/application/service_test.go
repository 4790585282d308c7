package application

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/cache"
	"github.com/GoWebProd/obsidian-jira-master/internal/dispatch"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/ports/mocks"
	"github.com/GoWebProd/obsidian-jira-master/internal/queue"
	"github.com/GoWebProd/obsidian-jira-master/internal/transport"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRequester struct {
	mu      sync.Mutex
	calls   []domain.Request
	respond func(req domain.Request) (dispatch.Result, error)
}

func (f *fakeRequester) Do(_ context.Context, req domain.Request) (dispatch.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	respond := f.respond
	f.mu.Unlock()

	return respond(req)
}

func (f *fakeRequester) Calls() []domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Request(nil), f.calls...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var workAccount = domain.Account{Alias: "work", Host: "https://work.example.com", Priority: 1}

func jsonResult(account domain.Account, body string) dispatch.Result {
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return dispatch.Result{
		Response: &transport.Response{StatusCode: http.StatusOK, Header: header, Body: []byte(body)},
		Account:  account,
	}
}

func newTestService(t *testing.T, requester Requester, opts ...Option) (*Service, *mocks.MockAccountRepository, *fakeClock) {
	t.Helper()

	clock := &fakeClock{now: time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)}
	repo := mocks.NewMockAccountRepository(t)
	results := cache.New(cache.NewMemoryStore(), 15*time.Minute, cache.WithNow(clock.Now))

	opts = append([]Option{WithClock(clock)}, opts...)
	return NewService(NewDirectory(repo), requester, queue.NewRegistry(), results, opts...), repo, clock
}

func TestServiceFetchIssueServesSecondCallFromCache(t *testing.T) {
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return jsonResult(workAccount, `{"key":"AAA-1"}`), nil
	}}
	service, repo, clock := newTestService(t, requester)
	repo.EXPECT().GetByAlias(mockAnyContext(), domain.AccountAlias("work")).Return(workAccount, nil).Once()

	first, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{Fields: []string{"summary", "status"}})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, domain.AccountAlias("work"), first.Account.Alias)
	assert.JSONEq(t, `{"key":"AAA-1"}`, string(first.Data))
	assert.Equal(t, clock.Now(), first.FetchedAt)

	calls := requester.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/issue/AAA-1", calls[0].Path)
	assert.Equal(t, "status,summary", calls[0].Query.Get("fields"))
	assert.True(t, calls[0].AnyAccount())

	clock.Advance(time.Minute)
	second, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{Fields: []string{"status", "summary"}})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, workAccount.Host, second.Account.Host)
	assert.NotNil(t, second.Account.Cache)
	assert.Equal(t, first.FetchedAt, second.FetchedAt)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
	assert.Len(t, requester.Calls(), 1)
}

func TestServiceFetchIssueRefreshBypassesCache(t *testing.T) {
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return jsonResult(workAccount, `{}`), nil
	}}
	service, _, _ := newTestService(t, requester)

	_, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{})
	require.NoError(t, err)
	refreshed, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{Refresh: true})
	require.NoError(t, err)

	assert.False(t, refreshed.Cached)
	assert.Len(t, requester.Calls(), 2)
}

func TestServiceFetchIssueCachesClassifiedErrors(t *testing.T) {
	notFound := &domain.APIError{Kind: domain.ErrNotFound, StatusCode: 404, Account: "work", Message: "Not Found: The resource does not exist"}
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return dispatch.Result{}, notFound
	}}
	service, _, _ := newTestService(t, requester)

	_, err := service.FetchIssue(context.Background(), "AAA-404", IssueOptions{})
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = service.FetchIssue(context.Background(), "AAA-404", IssueOptions{})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, notFound.Message, err.Error())

	var cached *domain.CachedError
	assert.ErrorAs(t, err, &cached)
	assert.Len(t, requester.Calls(), 1)
}

func TestServiceFetchIssueDoesNotCacheTransportErrors(t *testing.T) {
	refused := errors.New("connection refused")
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return dispatch.Result{}, refused
	}}
	service, _, _ := newTestService(t, requester)

	for i := 0; i < 2; i++ {
		_, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{})
		require.ErrorIs(t, err, refused)
	}
	assert.Len(t, requester.Calls(), 2)
}

func TestServiceFetchIssueRequiresKey(t *testing.T) {
	service, _, _ := newTestService(t, &fakeRequester{})

	_, err := service.FetchIssue(context.Background(), "  ", IssueOptions{})
	assert.ErrorIs(t, err, ErrEmptyIssueKey)
}

func TestServiceSearchBuildsRequest(t *testing.T) {
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return jsonResult(workAccount, `{"issues":[]}`), nil
	}}
	service, _, _ := newTestService(t, requester)

	result, err := service.Search(context.Background(), SearchQuery{
		JQL:     "project = AAA",
		Fields:  []string{"summary"},
		Expand:  []string{"names"},
		Account: "work",
	})
	require.NoError(t, err)
	assert.Equal(t, SearchFingerprint(SearchQuery{JQL: "project = AAA", Limit: DefaultSearchLimit, Fields: []string{"summary"}, Expand: []string{"names"}, Account: "work"}), result.Fingerprint)

	calls := requester.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/search", calls[0].Path)
	assert.Equal(t, "/search/jql", calls[0].AlternatePath)
	assert.Equal(t, domain.AccountAlias("work"), calls[0].Account)
	assert.Equal(t, "project = AAA", calls[0].Query.Get("jql"))
	assert.Equal(t, "0", calls[0].Query.Get("startAt"))
	assert.Equal(t, "50", calls[0].Query.Get("maxResults"))
	assert.Equal(t, "summary", calls[0].Query.Get("fields"))
	assert.Equal(t, "names", calls[0].Query.Get("expand"))
}

func TestSearchFingerprintIncludesAccount(t *testing.T) {
	t.Parallel()

	base := SearchQuery{JQL: "project = AAA", Limit: 10}
	other := base
	other.Account = "home"

	assert.Equal(t, SearchFingerprint(base), SearchFingerprint(base))
	assert.NotEqual(t, SearchFingerprint(base), SearchFingerprint(other))
	assert.Equal(t, SearchFingerprint(SearchQuery{JQL: "x"}), SearchFingerprint(SearchQuery{JQL: "x", Limit: DefaultSearchLimit}))
}

func TestServiceUpdateFieldsIsNeverCached(t *testing.T) {
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return dispatch.Result{Response: &transport.Response{StatusCode: http.StatusNoContent}, Account: workAccount}, nil
	}}
	service, _, _ := newTestService(t, requester)

	fields := map[string]any{"customfield_10001": 5}
	for i := 0; i < 2; i++ {
		result, err := service.UpdateFields(context.Background(), "AAA-1", fields, "work")
		require.NoError(t, err)
		assert.Equal(t, domain.AccountAlias("work"), result.Account.Alias)
		assert.Empty(t, result.Data)
	}

	calls := requester.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPut, calls[0].Method)
	assert.Equal(t, map[string]any{"fields": fields}, calls[0].Body)
}

func TestServiceUpdateFieldsValidatesInput(t *testing.T) {
	service, _, _ := newTestService(t, &fakeRequester{})

	_, err := service.UpdateFields(context.Background(), "AAA-1", nil, "")
	assert.ErrorIs(t, err, ErrNoFields)
	_, err = service.UpdateFields(context.Background(), "", map[string]any{"a": 1}, "")
	assert.ErrorIs(t, err, ErrEmptyIssueKey)
}

func TestServiceFetchImageUsesHostingAccount(t *testing.T) {
	home := domain.Account{Alias: "home", Host: "https://home.example.com", Priority: 2}
	png := []byte("\x89PNG\r\n\x1a\n0000")
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return dispatch.Result{Response: &transport.Response{StatusCode: http.StatusOK, Body: png}, Account: home}, nil
	}}
	service, repo, _ := newTestService(t, requester)
	repo.EXPECT().List(mockAnyContext()).Return([]domain.Account{workAccount, home}, nil).Once()

	image, err := service.FetchImage(context.Background(), "https://home.example.com/secure/attachment/1/a.png", "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.ContentType)
	assert.Equal(t, png, image.Data)
	assert.Equal(t, domain.AccountAlias("home"), image.Account.Alias)

	calls := requester.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.AccountAlias("home"), calls[0].Account)
	assert.Equal(t, domain.ExpectBinary, calls[0].Expect)
}

func TestServiceCacheAgeAndInvalidate(t *testing.T) {
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return jsonResult(workAccount, `{}`), nil
	}}
	service, _, clock := newTestService(t, requester)
	ctx := context.Background()

	fingerprint := IssueFingerprint("AAA-1", IssueOptions{})
	assert.Equal(t, cache.NeverLabel, service.CacheAge(ctx, fingerprint))

	_, err := service.FetchIssue(ctx, "AAA-1", IssueOptions{})
	require.NoError(t, err)
	clock.Advance(2 * time.Minute)
	assert.Equal(t, "2 minutes ago", service.CacheAge(ctx, fingerprint))

	require.NoError(t, service.Invalidate(ctx, fingerprint))
	assert.Equal(t, cache.NeverLabel, service.CacheAge(ctx, fingerprint))
}

func TestServiceClearCacheDropsEveryResult(t *testing.T) {
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		return jsonResult(workAccount, `{}`), nil
	}}
	service, _, _ := newTestService(t, requester)
	ctx := context.Background()

	_, err := service.FetchIssue(ctx, "AAA-1", IssueOptions{})
	require.NoError(t, err)
	_, err = service.Search(ctx, SearchQuery{JQL: "project = AAA"})
	require.NoError(t, err)

	require.NoError(t, service.ClearCache(ctx))
	assert.Equal(t, cache.NeverLabel, service.CacheAge(ctx, IssueFingerprint("AAA-1", IssueOptions{})))
	assert.Equal(t, cache.NeverLabel, service.CacheAge(ctx, SearchFingerprint(SearchQuery{JQL: "project = AAA"})))

	_, err = service.FetchIssue(ctx, "AAA-1", IssueOptions{})
	require.NoError(t, err)
	assert.Len(t, requester.Calls(), 3)
}

func TestServiceSingleFlightSharesOneRequest(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	requester := &fakeRequester{respond: func(domain.Request) (dispatch.Result, error) {
		once.Do(func() { close(started) })
		<-release
		return jsonResult(workAccount, `{"key":"AAA-1"}`), nil
	}}
	service, repo, _ := newTestService(t, requester, WithSingleFlight())
	repo.EXPECT().GetByAlias(mockAnyContext(), domain.AccountAlias("work")).Return(workAccount, nil).Maybe()

	var wg sync.WaitGroup
	results := make([]Result, 2)
	errs := make([]error, 2)
	fetch := func(i int) {
		defer wg.Done()
		results[i], errs[i] = service.FetchIssue(context.Background(), "AAA-1", IssueOptions{})
	}

	wg.Add(1)
	go fetch(0)
	<-started
	wg.Add(1)
	go fetch(1)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.JSONEq(t, string(results[0].Data), string(results[1].Data))
	assert.Len(t, requester.Calls(), 1)
}

type requesterFunc func(ctx context.Context, req domain.Request) (dispatch.Result, error)

func (f requesterFunc) Do(ctx context.Context, req domain.Request) (dispatch.Result, error) {
	return f(ctx, req)
}

func TestServiceSingleFlightSurvivesFirstCallerCancel(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	requester := requesterFunc(func(ctx context.Context, _ domain.Request) (dispatch.Result, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		if err := ctx.Err(); err != nil {
			return dispatch.Result{}, err
		}
		return jsonResult(workAccount, `{"key":"AAA-1"}`), nil
	})
	service, repo, _ := newTestService(t, requester, WithSingleFlight())
	repo.EXPECT().GetByAlias(mockAnyContext(), domain.AccountAlias("work")).Return(workAccount, nil).Maybe()

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := service.FetchIssue(firstCtx, "AAA-1", IssueOptions{})
		firstErr <- err
	}()
	<-started

	type outcome struct {
		result Result
		err    error
	}
	joined := make(chan outcome, 1)
	go func() {
		result, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{})
		joined <- outcome{result: result, err: err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	got := <-joined
	require.NoError(t, got.err)
	assert.JSONEq(t, `{"key":"AAA-1"}`, string(got.result.Data))
	assert.Equal(t, int32(1), calls.Load())
}

func TestServiceRefreshAccountCache(t *testing.T) {
	requester := &fakeRequester{respond: func(req domain.Request) (dispatch.Result, error) {
		switch req.Path {
		case "/status":
			return jsonResult(workAccount, `[{"name":"Done","statusCategory":{"colorName":"green"}},{"name":"To Do","statusCategory":{"colorName":"blue-gray"}}]`), nil
		case "/field":
			return jsonResult(workAccount, `[{"id":"summary","name":"Summary","custom":false},{"id":"customfield_10001","name":"Story Points","custom":true,"schema":{"type":"number"}}]`), nil
		}
		return dispatch.Result{}, errors.New("unexpected path " + req.Path)
	}}
	service, repo, clock := newTestService(t, requester)
	repo.EXPECT().GetByAlias(mockAnyContext(), domain.AccountAlias("work")).Return(workAccount, nil)

	snapshot, err := service.AccountCache(context.Background(), "work")
	require.NoError(t, err)
	assert.Equal(t, "green", snapshot.StatusColors["Done"])
	assert.Equal(t, map[string]string{"Story Points": "customfield_10001"}, snapshot.CustomFieldsNameToID)
	assert.Equal(t, "number", snapshot.CustomFieldsType["customfield_10001"])
	assert.Equal(t, clock.Now(), snapshot.RefreshedAt)

	calls := requester.Calls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, domain.AccountAlias("work"), call.Account)
	}

	_, err = service.AccountCache(context.Background(), "work")
	require.NoError(t, err)
	assert.Len(t, requester.Calls(), 2)

	_, err = service.RefreshAccountCache(context.Background(), "work")
	require.NoError(t, err)
	assert.Len(t, requester.Calls(), 4)
}

func TestServiceRefreshAccountCacheUnknownAccount(t *testing.T) {
	service, repo, _ := newTestService(t, &fakeRequester{})
	repo.EXPECT().GetByAlias(mockAnyContext(), domain.AccountAlias("nope")).Return(domain.Account{}, domain.ErrAccountNotFound)

	_, err := service.RefreshAccountCache(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestServiceStatusesReportsIdleQueues(t *testing.T) {
	limited := domain.Account{Alias: "limited", Host: "https://l.example.com", Priority: 0, RateLimit: domain.RateLimit{Enabled: true, Delay: time.Second, ConcurrentSlots: 3}}
	service, repo, _ := newTestService(t, &fakeRequester{})
	repo.EXPECT().List(mockAnyContext()).Return([]domain.Account{workAccount, limited}, nil).Once()

	statuses, err := service.Statuses(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.AccountAlias("limited"), statuses[0].Account.Alias)
	assert.True(t, statuses[0].Queue.Enabled)
	assert.Equal(t, 3, statuses[0].Queue.Slots)
	assert.Equal(t, time.Second, statuses[0].Queue.Delay)
	assert.Zero(t, statuses[1].Queue.Pending)
}

func TestDirectorySharesSideCachePerAlias(t *testing.T) {
	t.Parallel()

	repo := mocks.NewMockAccountRepository(t)
	repo.EXPECT().GetByAlias(mockAnyContext(), domain.AccountAlias("work")).Return(workAccount, nil).Twice()
	repo.EXPECT().List(mockAnyContext()).Return([]domain.Account{workAccount}, nil).Once()

	directory := NewDirectory(repo)
	first, err := directory.GetByAlias(context.Background(), "work")
	require.NoError(t, err)
	second, err := directory.GetByAlias(context.Background(), "work")
	require.NoError(t, err)
	listed, err := directory.List(context.Background())
	require.NoError(t, err)

	require.NotNil(t, first.Cache)
	assert.Same(t, first.Cache, second.Cache)
	assert.Same(t, first.Cache, listed[0].Cache)
}

// Full path: directory, dispatcher, queue and retrier against two fake Jira servers.
func TestServiceFetchImageKeepsCredentialsFromForeignHosts(t *testing.T) {
	var seen struct {
		sync.Mutex
		auth []string
	}
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Lock()
		seen.auth = append(seen.auth, r.Header.Get("Authorization"))
		seen.Unlock()
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG\r\n\x1a\n"))
	}))
	t.Cleanup(foreign.Close)

	a := domain.Account{Alias: "a", Host: "https://a.example.com", Priority: 1, Auth: domain.Auth{Kind: domain.AuthKindBasic, Username: "alice", Password: "secretA"}}
	b := domain.Account{Alias: "b", Host: "https://b.example.com", Priority: 2, Auth: domain.Auth{Kind: domain.AuthKindBearer, Token: "secretB"}}

	repo := mocks.NewMockAccountRepository(t)
	repo.EXPECT().List(mock.Anything).Return([]domain.Account{b, a}, nil)
	repo.EXPECT().GetByAlias(mock.Anything, domain.AccountAlias("a")).Return(a, nil)
	repo.EXPECT().GetByAlias(mock.Anything, domain.AccountAlias("b")).Return(b, nil)

	directory := NewDirectory(repo)
	queues := queue.NewRegistry()
	retrier := transport.NewRetrier(transport.HTTPExchanger{Client: foreign.Client()})
	service := NewService(directory, dispatch.New(directory, queues, retrier, nil), queues, cache.New(nil, time.Minute))

	image, err := service.FetchImage(context.Background(), foreign.URL+"/tracker.png", "")
	require.NoError(t, err)
	assert.Equal(t, "image/png", image.ContentType)

	_, err = service.FetchImage(context.Background(), foreign.URL+"/tracker.png", "b")
	require.NoError(t, err)

	seen.Lock()
	defer seen.Unlock()
	assert.Equal(t, []string{"", ""}, seen.auth)
}

func TestServiceFallsThroughAccountsOverHTTP(t *testing.T) {
	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`))
	}))
	t.Cleanup(missing.Close)

	var seen struct {
		sync.Mutex
		path string
		auth string
	}
	serving := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Lock()
		seen.path = r.URL.Path
		seen.auth = r.Header.Get("Authorization")
		seen.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"key": "AAA-1"})
	}))
	t.Cleanup(serving.Close)

	first := domain.Account{Alias: "first", Host: missing.URL, Priority: 1}
	second := domain.Account{
		Alias:     "second",
		Host:      serving.URL,
		Priority:  2,
		Auth:      domain.Auth{Kind: domain.AuthKindBearer, Token: "tok"},
		RateLimit: domain.RateLimit{Enabled: true, ConcurrentSlots: 1},
	}

	repo := mocks.NewMockAccountRepository(t)
	repo.EXPECT().List(mock.Anything).Return([]domain.Account{second, first}, nil)
	repo.EXPECT().GetByAlias(mock.Anything, domain.AccountAlias("second")).Return(second, nil).Maybe()

	directory := NewDirectory(repo)
	queues := queue.NewRegistry()
	retrier := transport.NewRetrier(transport.HTTPExchanger{Client: serving.Client()})
	service := NewService(directory, dispatch.New(directory, queues, retrier, nil), queues, cache.New(nil, time.Minute))

	result, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{})
	require.NoError(t, err)
	assert.Equal(t, domain.AccountAlias("second"), result.Account.Alias)
	assert.JSONEq(t, `{"key":"AAA-1"}`, string(result.Data))

	seen.Lock()
	assert.Equal(t, "/rest/api/2/issue/AAA-1", seen.path)
	assert.Equal(t, "Bearer tok", seen.auth)
	seen.Unlock()

	cached, err := service.FetchIssue(context.Background(), "AAA-1", IssueOptions{})
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, domain.AccountAlias("second"), cached.Account.Alias)
}

func mockAnyContext() interface{} {
	return mock.Anything
}
