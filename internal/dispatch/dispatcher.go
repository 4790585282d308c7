// Package dispatch chooses which account serves a logical request.
//
// A request naming an account is sent to that account only. Otherwise accounts are
// tried in ascending priority; a 4xx moves on to the next account, anything else
// that is not a success ends the walk. A 4xx from the last account is reported like
// any other 4xx: its response becomes the error.
package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/GoWebProd/obsidian-jira-master/internal/ports"
	"github.com/GoWebProd/obsidian-jira-master/internal/queue"
	"github.com/GoWebProd/obsidian-jira-master/internal/transport"
)

type Sender interface {
	Send(ctx context.Context, req *transport.Request) (*transport.Response, error)
}

// Result is a successful response together with the account that served it.
type Result struct {
	Response *transport.Response
	Account  domain.Account
}

type Dispatcher struct {
	accounts ports.AccountRepository
	queues   *queue.Registry
	sender   Sender
	logger   *slog.Logger
}

func New(accounts ports.AccountRepository, queues *queue.Registry, sender Sender, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Dispatcher{
		accounts: accounts,
		queues:   queues,
		sender:   sender,
		logger:   logger,
	}
}

func (d *Dispatcher) Do(ctx context.Context, req domain.Request) (Result, error) {
	if !req.AnyAccount() {
		account, err := d.accounts.GetByAlias(ctx, req.Account)
		if err != nil {
			return Result{}, fmt.Errorf("resolve account %s: %w", req.Account, err)
		}
		return d.single(ctx, account, req)
	}

	accounts, err := d.accounts.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return Result{}, domain.ErrNoAccounts
	}

	ordered := append([]domain.Account(nil), accounts...)
	domain.SortByPriority(ordered)

	var (
		lastAccount domain.Account
		lastResp    *transport.Response
		lastErr     error
	)
	for _, account := range ordered {
		resp, err := d.attempt(ctx, account, req)
		lastAccount, lastResp, lastErr = account, resp, err

		switch Classify(resp, err, req.Expect) {
		case OutcomeSuccess:
			return Result{Response: resp, Account: account}, nil
		case OutcomeTryNext:
			d.logger.Debug("account cannot serve request, trying next",
				"account", account.Alias,
				"status", resp.StatusCode,
			)
			continue
		}
		break
	}

	return Result{}, failure(lastAccount.Alias, lastResp, lastErr)
}

func (d *Dispatcher) single(ctx context.Context, account domain.Account, req domain.Request) (Result, error) {
	resp, err := d.attempt(ctx, account, req)
	if Classify(resp, err, req.Expect) == OutcomeSuccess {
		return Result{Response: resp, Account: account}, nil
	}
	return Result{}, failure(account.Alias, resp, err)
}

func (d *Dispatcher) attempt(ctx context.Context, account domain.Account, req domain.Request) (*transport.Response, error) {
	physical, err := transport.NewRequest(account, req)
	if err != nil {
		return nil, err
	}

	return d.queues.For(account).Add(ctx, func(ctx context.Context) (*transport.Response, error) {
		return d.sender.Send(ctx, physical)
	})
}

// failure returns the transport error as-is when there is no response to classify.
func failure(alias domain.AccountAlias, resp *transport.Response, err error) error {
	if resp == nil {
		if err == nil {
			return fmt.Errorf("account %s: empty response", alias)
		}
		return err
	}
	return ClassifyError(alias, resp)
}
