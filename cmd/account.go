package cmd

import (
	"fmt"
	"sort"
	"time"

	statusadapter "github.com/GoWebProd/obsidian-jira-master/internal/adapters/render/status"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newAccountCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage accounts",
	}

	cmd.AddCommand(
		newAccountListCmd(app),
		newAccountAddCmd(app),
		newAccountRemoveCmd(app),
		newAccountRefreshCmd(app),
		newAccountFieldsCmd(app),
	)

	return cmd
}

type accountView struct {
	Alias     domain.AccountAlias `json:"alias"`
	Host      string              `json:"host"`
	Priority  int                 `json:"priority"`
	Auth      domain.AuthKind     `json:"auth"`
	BasePath  string              `json:"base_path"`
	RateLimit rateLimitView       `json:"rate_limit"`
	Pending   int                 `json:"pending"`
	Running   int                 `json:"running"`
}

type rateLimitView struct {
	Enabled         bool  `json:"enabled"`
	DelayMs         int64 `json:"delay_ms"`
	ConcurrentSlots int   `json:"concurrent_slots"`
}

func newAccountListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured accounts with queue and metadata state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statuses, err := app.service.Statuses(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				views := make([]accountView, 0, len(statuses))
				for _, status := range statuses {
					account := status.Account
					views = append(views, accountView{
						Alias:    account.Alias,
						Host:     account.Host,
						Priority: account.Priority,
						Auth:     account.Auth.Kind,
						BasePath: account.BasePath(),
						RateLimit: rateLimitView{
							Enabled:         account.RateLimit.Enabled,
							DelayMs:         account.RateLimit.Delay.Milliseconds(),
							ConcurrentSlots: account.RateLimit.Slots(),
						},
						Pending: status.Queue.Pending,
						Running: status.Queue.Running,
					})
				}
				encoded, err := json.MarshalIndent(views, "", "  ")
				if err != nil {
					return fmt.Errorf("encode accounts: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return err
			}

			rendered, err := app.statusRenderer(statuses, statusadapter.RenderOptions{
				Now:        app.now(),
				StaleAfter: app.settings.metadataStaleAge,
			})
			if err != nil {
				return fmt.Errorf("render accounts: %w", err)
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Render JSON output")

	return cmd
}

func newAccountAddCmd(app *app) *cobra.Command {
	var (
		account  domain.Account
		authKind string
		delay    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "add ALIAS",
		Short: "Add or replace an account in the accounts file",
		Long:  "Add or replace an account. Secrets may be given as $VAR references, which are expanded when the file is read.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := domain.ParseAuthKind(authKind)
			if err != nil {
				return err
			}

			account.Alias = domain.AccountAlias(args[0])
			account.Auth.Kind = kind
			account.RateLimit.Delay = delay

			if err := app.accounts.Save(cmd.Context(), account); err != nil {
				return fmt.Errorf("save account: %w", err)
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "saved account %s to %s\n", account.Alias, app.accounts.Path())
			return err
		},
	}

	cmd.Flags().StringVar(&account.Host, "host", "", "Jira base URL, e.g. https://example.atlassian.net")
	cmd.Flags().IntVar(&account.Priority, "priority", domain.DefaultPriority, "Lower values are tried first")
	cmd.Flags().StringVar(&authKind, "auth", string(domain.AuthKindNone), "Auth kind: none, basic, cloud or bearer")
	cmd.Flags().StringVar(&account.Auth.Username, "username", "", "Username or e-mail for basic and cloud auth")
	cmd.Flags().StringVar(&account.Auth.Password, "password", "", "Password, or API token for cloud auth")
	cmd.Flags().StringVar(&account.Auth.Token, "token", "", "Personal access token for bearer auth")
	cmd.Flags().StringVar(&account.APIBasePath, "api-base-path", "", "REST prefix (default "+domain.DefaultAPIBasePath+")")
	cmd.Flags().BoolVar(&account.UseAPIv3, "api-v3", false, "Use the v3 REST API")
	cmd.Flags().StringVar(&account.Color, "color", "", "Display color")
	cmd.Flags().BoolVar(&account.RateLimit.Enabled, "rate-limit", false, "Throttle requests to this account")
	cmd.Flags().DurationVar(&delay, "delay", 0, "Minimum spacing between request starts")
	cmd.Flags().IntVar(&account.RateLimit.ConcurrentSlots, "slots", domain.DefaultConcurrentCap, "Concurrent requests allowed")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

func newAccountRemoveCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ALIAS",
		Short: "Remove an account from the accounts file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.accounts.Remove(cmd.Context(), domain.AccountAlias(args[0])); err != nil {
				return fmt.Errorf("remove account %s: %w", args[0], err)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "removed account %s\n", args[0])
			return err
		},
	}
}

func newAccountRefreshCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh ALIAS",
		Short: "Reload status colors and custom fields from the server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := app.service.RefreshAccountCache(cmd.Context(), domain.AccountAlias(args[0]))
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d statuses, %d custom fields\n",
				args[0], len(snapshot.StatusColors), len(snapshot.CustomFieldsIDToName))
			return err
		},
	}
}

func newAccountFieldsCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fields ALIAS",
		Short: "List the account's custom fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snapshot, err := app.service.AccountCache(cmd.Context(), domain.AccountAlias(args[0]))
			if err != nil {
				return err
			}

			names := make([]string, 0, len(snapshot.CustomFieldsNameToID))
			for name := range snapshot.CustomFieldsNameToID {
				names = append(names, name)
			}
			sort.Strings(names)

			for _, name := range names {
				id := snapshot.CustomFieldsNameToID[name]
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", id, name, snapshot.CustomFieldsType[id]); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
