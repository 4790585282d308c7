package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/ports"
)

// Directory serves accounts from a repository and attaches one side cache per alias,
// so every copy of an account handed out shares the same cache.
type Directory struct {
	repo ports.AccountRepository

	mu     sync.Mutex
	caches map[domain.AccountAlias]*domain.AccountCache
}

func NewDirectory(repo ports.AccountRepository) *Directory {
	return &Directory{
		repo:   repo,
		caches: make(map[domain.AccountAlias]*domain.AccountCache),
	}
}

func (d *Directory) GetByAlias(ctx context.Context, alias domain.AccountAlias) (domain.Account, error) {
	account, err := d.repo.GetByAlias(ctx, alias)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get account by alias: %w", err)
	}
	return d.attach(account), nil
}

func (d *Directory) List(ctx context.Context) ([]domain.Account, error) {
	accounts, err := d.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	attached := make([]domain.Account, 0, len(accounts))
	for _, account := range accounts {
		attached = append(attached, d.attach(account))
	}
	return attached, nil
}

func (d *Directory) attach(account domain.Account) domain.Account {
	d.mu.Lock()
	defer d.mu.Unlock()

	cache, ok := d.caches[account.Alias]
	if !ok {
		cache = domain.NewAccountCache()
		d.caches[account.Alias] = cache
	}
	account.Cache = cache
	return account
}
