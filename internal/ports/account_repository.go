package ports

import (
	"context"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
)

type AccountRepository interface {
	GetByAlias(ctx context.Context, alias domain.AccountAlias) (domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
}
