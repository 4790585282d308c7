package cmd

import (
	"fmt"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/spf13/cobra"
)

func newCacheCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached results",
	}

	age := &cobra.Command{
		Use:   "age",
		Short: "Show how old a cached result is",
	}
	age.AddCommand(
		newFingerprintCmd("issue KEY", "Age of a cached issue", issueFingerprintFlags, func(cmd *cobra.Command, fingerprint string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.service.CacheAge(cmd.Context(), fingerprint))
			return err
		}),
		newFingerprintCmd("search JQL", "Age of a cached search", searchFingerprintFlags, func(cmd *cobra.Command, fingerprint string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), app.service.CacheAge(cmd.Context(), fingerprint))
			return err
		}),
	)

	forget := &cobra.Command{
		Use:   "forget",
		Short: "Drop a cached result",
	}
	forgetFn := func(cmd *cobra.Command, fingerprint string) error {
		if err := app.service.Invalidate(cmd.Context(), fingerprint); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cmd.OutOrStdout(), "forgotten")
		return err
	}
	forget.AddCommand(
		newFingerprintCmd("issue KEY", "Drop a cached issue", issueFingerprintFlags, forgetFn),
		newFingerprintCmd("search JQL", "Drop a cached search", searchFingerprintFlags, forgetFn),
	)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.service.ClearCache(cmd.Context()); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
			return err
		},
	}

	cmd.AddCommand(age, forget, clearCmd)

	return cmd
}

// fingerprintFlags registers the flags that shape a fingerprint and returns a builder for it.
type fingerprintFlags func(cmd *cobra.Command) func(arg string) string

func issueFingerprintFlags(cmd *cobra.Command) func(string) string {
	var opts application.IssueOptions
	var account string
	cmd.Flags().StringSliceVar(&opts.Fields, "fields", nil, "Fields the issue was fetched with")
	cmd.Flags().StringVar(&account, "account", "", "Account alias the issue was fetched with")

	return func(key string) string {
		opts.Account = domain.AccountAlias(account)
		return application.IssueFingerprint(key, opts)
	}
}

func searchFingerprintFlags(cmd *cobra.Command) func(string) string {
	var query application.SearchQuery
	var account string
	addSearchFlags(cmd, &query, &account)

	return func(jql string) string {
		query.JQL = jql
		query.Account = domain.AccountAlias(account)
		return application.SearchFingerprint(query)
	}
}

func newFingerprintCmd(use, short string, flags fingerprintFlags, run func(cmd *cobra.Command, fingerprint string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
	}
	fingerprint := flags(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd, fingerprint(args[0]))
	}
	return cmd
}
