package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	serrors "github.com/Aman-CERP/issuesync/internal/errors"
)

func newDeleteCmd(o *rootOptions) *cobra.Command {
	var (
		project string
		retries int
	)

	cmd := &cobra.Command{
		Use:   "delete --project UUID KEY...",
		Short: "Delete issue documents from the index",
		Long: `Delete the documents of the given issue keys from the index in one
batch. Nothing is queued: when the index rejects the batch the command
retries with backoff, then fails with every document still in place.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, keys []string) error {
			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			retry := serrors.DefaultRetryConfig()
			retry.MaxRetries = retries
			attempt := 0
			err = serrors.Retry(cmd.Context(), retry, func() error {
				attempt++
				err := env.indexer.DeleteByKeys(cmd.Context(), project, keys)
				if err != nil && serrors.IsRetryable(err) && attempt <= retries {
					slog.Warn("delete_retrying",
						slog.Int("attempt", attempt),
						slog.String("error", err.Error()))
				}
				return err
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d documents\n", len(keys))
			return err
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project uuid the keys belong to")
	cmd.Flags().IntVar(&retries, "retries", 3, "Retries after a retryable index failure")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
