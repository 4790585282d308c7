package cmd

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/dustin/go-humanize"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type resultEnvelope struct {
	Account     domain.AccountAlias `json:"account"`
	Cached      bool                `json:"cached"`
	FetchedAt   time.Time           `json:"fetched_at"`
	Fingerprint string              `json:"fingerprint,omitempty"`
	Data        json.RawMessage     `json:"data,omitempty"`
}

// fetchResult runs fetch behind a spinner unless JSON output was requested.
func fetchResult(cmd *cobra.Command, label string, asJSON bool, fetch func(context.Context) (application.Result, error)) (application.Result, error) {
	var result application.Result
	run := func(ctx context.Context) error {
		var err error
		result, err = fetch(ctx)
		return err
	}

	if asJSON {
		return result, run(cmd.Context())
	}
	return result, runFetchSpinner(cmd.Context(), cmd.ErrOrStderr(), label, run)
}

func writeResult(cmd *cobra.Command, app *app, result application.Result, asJSON bool) error {
	if asJSON {
		encoded, err := json.MarshalIndent(resultEnvelope{
			Account:     result.Account.Alias,
			Cached:      result.Cached,
			FetchedAt:   result.FetchedAt,
			Fingerprint: result.Fingerprint,
			Data:        result.Data,
		}, "", "  ")
		if err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return err
	}

	if len(result.Data) > 0 {
		var pretty bytes.Buffer
		if err := json.Indent(&pretty, result.Data, "", "  "); err != nil {
			pretty.Reset()
			pretty.Write(result.Data)
		}
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), pretty.String()); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(cmd.ErrOrStderr(), resultSummary(result, app.now()))
	return err
}

func resultSummary(result application.Result, now time.Time) string {
	source := "fetched"
	if result.Cached {
		source = "cached"
	}
	return fmt.Sprintf("account: %s, %s %s", result.Account.Alias, source, humanize.RelTime(result.FetchedAt, now, "ago", "from now"))
}
