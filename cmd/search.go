package cmd

import (
	"context"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/spf13/cobra"
)

func newSearchCmd(app *app) *cobra.Command {
	var query application.SearchQuery
	var account string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search JQL",
		Short: "Run a JQL search and print the raw response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query.JQL = args[0]
			query.Account = domain.AccountAlias(account)
			result, err := fetchResult(cmd, "Searching...", asJSON, func(ctx context.Context) (application.Result, error) {
				return app.service.Search(ctx, query)
			})
			if err != nil {
				return err
			}
			return writeResult(cmd, app, result, asJSON)
		},
	}

	addSearchFlags(cmd, &query, &account)
	cmd.Flags().BoolVar(&query.Refresh, "refresh", false, "Ignore the cached result")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func addSearchFlags(cmd *cobra.Command, query *application.SearchQuery, account *string) {
	cmd.Flags().IntVar(&query.Limit, "limit", application.DefaultSearchLimit, "Maximum number of issues")
	cmd.Flags().IntVar(&query.Offset, "offset", 0, "Index of the first issue")
	cmd.Flags().StringSliceVar(&query.Fields, "fields", nil, "Fields to return")
	cmd.Flags().StringSliceVar(&query.Expand, "expand", nil, "Entities to expand")
	cmd.Flags().StringVar(account, "account", "", "Account alias (default: try accounts by priority)")
}
