package application

import (
	"context"
	"fmt"
	"net/http"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
)

type statusPayload struct {
	Name           string `json:"name"`
	StatusCategory struct {
		ColorName string `json:"colorName"`
	} `json:"statusCategory"`
}

type fieldPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Custom bool   `json:"custom"`
	Schema struct {
		Type string `json:"type"`
	} `json:"schema"`
}

// AccountCache returns the account's side cache, populating it on first use.
func (s *Service) AccountCache(ctx context.Context, alias domain.AccountAlias) (domain.AccountCacheSnapshot, error) {
	account, err := s.accounts.GetByAlias(ctx, alias)
	if err != nil {
		return domain.AccountCacheSnapshot{}, err
	}
	if account.Cache != nil && account.Cache.Populated() {
		return account.Cache.Snapshot(), nil
	}
	return s.RefreshAccountCache(ctx, alias)
}

// RefreshAccountCache reloads status colours and custom fields from the account's server.
// It is the only writer of the side cache.
func (s *Service) RefreshAccountCache(ctx context.Context, alias domain.AccountAlias) (domain.AccountCacheSnapshot, error) {
	account, err := s.accounts.GetByAlias(ctx, alias)
	if err != nil {
		return domain.AccountCacheSnapshot{}, err
	}
	if account.Cache == nil {
		return domain.AccountCacheSnapshot{}, fmt.Errorf("account %s: no side cache attached", alias)
	}

	var statuses []statusPayload
	if err := s.getJSON(ctx, alias, "/status", &statuses); err != nil {
		return domain.AccountCacheSnapshot{}, fmt.Errorf("load statuses for %s: %w", alias, err)
	}

	var fields []fieldPayload
	if err := s.getJSON(ctx, alias, "/field", &fields); err != nil {
		return domain.AccountCacheSnapshot{}, fmt.Errorf("load fields for %s: %w", alias, err)
	}

	colors := make(map[string]string, len(statuses))
	for _, status := range statuses {
		if status.Name != "" && status.StatusCategory.ColorName != "" {
			colors[status.Name] = status.StatusCategory.ColorName
		}
	}

	custom := make([]domain.CustomField, 0, len(fields))
	for _, field := range fields {
		if !field.Custom {
			continue
		}
		custom = append(custom, domain.CustomField{ID: field.ID, Name: field.Name, Type: field.Schema.Type})
	}

	account.Cache.Replace(colors, custom, s.clock.Now())
	s.logger.Debug("account cache refreshed", "account", alias, "statuses", len(colors), "custom_fields", len(custom))

	return account.Cache.Snapshot(), nil
}

func (s *Service) getJSON(ctx context.Context, alias domain.AccountAlias, path string, out any) error {
	result, err := s.requests.Do(ctx, domain.Request{Method: http.MethodGet, Path: path, Account: alias})
	if err != nil {
		return err
	}
	if err := result.Response.DecodeJSON(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
