package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "jm",
		Short:         "Jira master (jm): query Jira across several accounts",
		Long:          "jm fetches issues, searches and attachments from one or more Jira accounts, throttled per account, retried on rate limits and cached between calls.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		app.close()
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newAccountCmd(app),
		newIssueCmd(app),
		newSearchCmd(app),
		newImageCmd(app),
		newCacheCmd(app),
	)

	return rootCmd
}
