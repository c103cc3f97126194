package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/ui"
)

func newIndexCmd(o *rootOptions) *cobra.Command {
	var (
		excluded []string
		project  string
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Rebuild issue documents from the store",
		Long: `Rebuild the search documents of every issue in the store, or of one
branch with --project.

A full rebuild (startup) skips the branches given with --exclude-branch.
A branch rebuild (analysis) rewrites the branch's current issues and leaves
documents of issues that are gone from the store in place.

Both fail on the first index error without queuing anything: run the
command again once the index is available.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			start := time.Now()
			var n int
			if project != "" {
				if err := env.indexer.IndexOnAnalysis(ctx, project); err != nil {
					return err
				}
				keys, err := env.index.KeysByProject(ctx, project)
				if err != nil {
					return err
				}
				n = len(keys)
			} else {
				if err := env.indexer.IndexOnStartup(ctx, excluded); err != nil {
					return err
				}
				if n, err = env.index.Count(ctx); err != nil {
					return err
				}
			}
			return o.renderer(cmd).Summary(ui.Summary{
				Operation: "index",
				Total:     n,
				Success:   n,
				Duration:  time.Since(start),
			})
		},
	}

	cmd.Flags().StringSliceVar(&excluded, "exclude-branch", nil, "Branch project uuid to leave out of a full rebuild (repeatable)")
	cmd.Flags().StringVar(&project, "project", "", "Rebuild only this branch project uuid")
	cmd.MarkFlagsMutuallyExclusive("exclude-branch", "project")

	return cmd
}
