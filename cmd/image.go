package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/GoWebProd/obsidian-jira-master/internal/application"
	"github.com/GoWebProd/obsidian-jira-master/internal/domain"
	"github.com/spf13/cobra"
)

const imageFileMode = 0o644

func newImageCmd(app *app) *cobra.Command {
	var account string
	var output string

	cmd := &cobra.Command{
		Use:   "image URL",
		Short: "Download an attachment or avatar with account credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var image application.Image
			fetch := func(ctx context.Context) error {
				var err error
				image, err = app.service.FetchImage(ctx, args[0], domain.AccountAlias(account))
				return err
			}

			if output == "" {
				if err := fetch(cmd.Context()); err != nil {
					return err
				}
				_, err := cmd.OutOrStdout().Write(image.Data)
				return err
			}

			if err := runFetchSpinner(cmd.Context(), cmd.ErrOrStderr(), "Downloading image...", fetch); err != nil {
				return err
			}
			if err := os.WriteFile(output, image.Data, imageFileMode); err != nil {
				return fmt.Errorf("write image: %w", err)
			}

			_, err := fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%s, %d bytes) from %s\n", output, image.ContentType, len(image.Data), image.Account.Alias)
			return err
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Account alias (default: the account hosting the URL)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the image to a file instead of stdout")

	return cmd
}
