package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newIssueCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Fetch and update issues",
	}

	cmd.AddCommand(
		newIssueGetCmd(app),
		newIssueUpdateCmd(app),
	)

	return cmd
}

func newIssueGetCmd(app *app) *cobra.Command {
	var opts application.IssueOptions
	var account string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "get KEY",
		Short: "Fetch one issue as raw JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Account = domain.AccountAlias(account)
			result, err := fetchResult(cmd, "Fetching "+args[0]+"...", asJSON, func(ctx context.Context) (application.Result, error) {
				return app.service.FetchIssue(ctx, args[0], opts)
			})
			if err != nil {
				return err
			}
			return writeResult(cmd, app, result, asJSON)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "Fields to return (default: all)")
	cmd.Flags().StringVar(&account, "account", "", "Account alias (default: try accounts by priority)")
	cmd.Flags().BoolVar(&opts.Refresh, "refresh", false, "Ignore the cached result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newIssueUpdateCmd(app *app) *cobra.Command {
	var assignments []string
	var fieldsJSON string
	var account string

	cmd := &cobra.Command{
		Use:   "update KEY",
		Short: "Update issue fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields, err := parseFieldUpdates(fieldsJSON, assignments)
			if err != nil {
				return err
			}

			result, err := app.service.UpdateFields(cmd.Context(), args[0], fields, domain.AccountAlias(account))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "updated %s on %s\n", args[0], result.Account.Alias)
			return err
		},
	}

	cmd.Flags().StringArrayVar(&assignments, "set", nil, "Field assignment name=value; JSON values are decoded")
	cmd.Flags().StringVar(&fieldsJSON, "fields-json", "", "JSON object of fields to update")
	cmd.Flags().StringVar(&account, "account", "", "Account alias (default: try accounts by priority)")

	return cmd
}

// parseFieldUpdates merges a JSON object with name=value assignments; assignments win.
func parseFieldUpdates(fieldsJSON string, assignments []string) (map[string]any, error) {
	fields := map[string]any{}
	if strings.TrimSpace(fieldsJSON) != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, fmt.Errorf("decode --fields-json: %w", err)
		}
	}

	for _, assignment := range assignments {
		name, raw, ok := strings.Cut(assignment, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --set %q: expected name=value", assignment)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		fields[name] = value
	}

	return fields, nil
}
