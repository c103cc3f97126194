package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/store"
	"github.com/Aman-CERP/issuesync/internal/ui"
)

func newCommitCmd(o *rootOptions) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "commit --file CHANGESET",
		Short: "Save a changeset to the store and index its issues",
		Long: `Save the components, rules and issues of a YAML changeset in one store
transaction, together with one es_queue row per issue, then write the
issue documents. Issues with 'deleted: true' are removed from both.

Documents the index rejects keep their queue rows and are written by a
later recovery run; the command only fails when the store rejects the
changeset, in which case nothing is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, err := readChangeset(file)
			if err != nil {
				return err
			}

			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			start := time.Now()
			s := env.db.NewSession()
			defer s.Close()

			for _, c := range cs.Components {
				if err := s.UpsertComponent(ctx, c.toStore()); err != nil {
					return err
				}
			}
			for _, r := range cs.Rules {
				if err := s.UpsertRule(ctx, r.toStore()); err != nil {
					return err
				}
			}
			issues := make([]*store.Issue, len(cs.Issues))
			for i, is := range cs.Issues {
				issues[i] = is.toStore()
			}

			result, err := env.indexer.CommitAndIndexIssues(ctx, s, issues)
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				if err := s.Commit(); err != nil {
					return err
				}
			}
			return o.renderer(cmd).Summary(ui.Summary{
				Operation: "commit",
				Total:     result.Total,
				Success:   result.Success,
				Failures:  result.Failures,
				Duration:  time.Since(start),
			})
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML changeset to commit")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
