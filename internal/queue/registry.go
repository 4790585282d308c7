package queue

import (
	"sort"
	"sync"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
)

// Registry owns one queue per account alias. Queues are created on first use and never removed.
type Registry struct {
	opts []Option

	mu     sync.Mutex
	queues map[domain.AccountAlias]*Queue
}

func NewRegistry(opts ...Option) *Registry {
	return &Registry{
		opts:   opts,
		queues: make(map[domain.AccountAlias]*Queue),
	}
}

// For returns the account's queue, creating it from the account's rate limit policy if needed.
func (r *Registry) For(account domain.Account) *Queue {
	r.mu.Lock()
	defer r.mu.Unlock()

	if q, ok := r.queues[account.Alias]; ok {
		return q
	}

	q := New(account.Alias, account.RateLimit, r.opts...)
	r.queues[account.Alias] = q
	return q
}

func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	queues := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		queues = append(queues, q)
	}
	r.mu.Unlock()

	stats := make([]Stats, 0, len(queues))
	for _, q := range queues {
		stats = append(stats, q.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Alias < stats[j].Alias })

	return stats
}
