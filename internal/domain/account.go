package domain

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

type AccountAlias string

const (
	DefaultAPIBasePath   = "/rest/api/2"
	APIv3BasePath        = "/rest/api/3"
	DefaultPriority      = 1
	DefaultConcurrentCap = 1
)

type Account struct {
	Alias       AccountAlias
	Host        string
	Auth        Auth
	Priority    int
	APIBasePath string
	UseAPIv3    bool
	Color       string
	RateLimit   RateLimit

	// Cache is shared by every copy of the account handed out by the directory.
	Cache *AccountCache
}

// RateLimit is the per-account dispatch policy enforced by the account queue.
type RateLimit struct {
	Enabled         bool
	Delay           time.Duration
	ConcurrentSlots int
}

func (r RateLimit) Slots() int {
	if r.ConcurrentSlots < 1 {
		return DefaultConcurrentCap
	}
	return r.ConcurrentSlots
}

// BasePath returns the REST prefix selected by the account's API version flag.
func (a Account) BasePath() string {
	if a.UseAPIv3 {
		return APIv3BasePath
	}
	if strings.TrimSpace(a.APIBasePath) == "" {
		return DefaultAPIBasePath
	}
	return a.APIBasePath
}

// ResourcePath picks the alternate path when the account talks to the v3 API and one is provided.
func (a Account) ResourcePath(path string, alternate string) string {
	if a.UseAPIv3 && alternate != "" {
		return alternate
	}
	return path
}

// HostsURL reports whether rawURL points at this account's host: same scheme and host,
// and a path under the host's context path.
func (a Account) HostsURL(rawURL string) bool {
	host, err := url.Parse(strings.TrimSpace(a.Host))
	if err != nil || host.Host == "" {
		return false
	}
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || target.User != nil {
		return false
	}
	if !strings.EqualFold(host.Scheme, target.Scheme) || !strings.EqualFold(host.Host, target.Host) {
		return false
	}

	base := strings.TrimRight(host.Path, "/")
	return base == "" || target.Path == base || strings.HasPrefix(target.Path, base+"/")
}

func (a Account) Validate() error {
	if strings.TrimSpace(string(a.Alias)) == "" {
		return fmt.Errorf("alias is required")
	}
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("account %s: host is required", a.Alias)
	}
	if !strings.HasPrefix(a.Host, "http://") && !strings.HasPrefix(a.Host, "https://") {
		return fmt.Errorf("account %s: host must use http or https", a.Alias)
	}
	if err := a.Auth.Validate(); err != nil {
		return fmt.Errorf("account %s: %w", a.Alias, err)
	}
	if a.RateLimit.Delay < 0 {
		return fmt.Errorf("account %s: rate limit delay must not be negative", a.Alias)
	}

	return nil
}

// SortByPriority orders accounts by ascending priority, breaking ties by alias.
func SortByPriority(accounts []Account) {
	sort.SliceStable(accounts, func(i, j int) bool {
		if accounts[i].Priority == accounts[j].Priority {
			return accounts[i].Alias < accounts[j].Alias
		}
		return accounts[i].Priority < accounts[j].Priority
	})
}
