package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/index"
	"github.com/Aman-CERP/issuesync/internal/ui"
)

func newProjectEventCmd(o *rootOptions) *cobra.Command {
	var (
		cause    string
		projects []string
	)

	cmd := &cobra.Command{
		Use:   "project-event --cause CAUSE --project UUID...",
		Short: "Apply a project lifecycle event to the index",
		Long: `Apply a project-level event. DELETION removes the branches from the store
and their documents from the index; the removal is queued with the store
change, so documents the index refuses to drop are deleted by a later
recovery run.

The other causes (CREATION, KEY_UPDATE, TAGS_UPDATE, PERMISSION_CHANGE,
ANALYSIS, MANUAL) leave nothing for recovery to do; use 'issuesync index
--project' to rewrite a branch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := index.ParseCause(cause)
			if err != nil {
				return err
			}
			if !c.ProducesRecoveryWork() {
				slog.Info("project_event_ignored",
					slog.String("cause", c.String()),
					slog.Int("projects", len(projects)))
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: no index work\n", c)
				return err
			}

			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			result, err := env.indexer.DeleteProjects(cmd.Context(), projects)
			if err != nil {
				return err
			}
			return o.renderer(cmd).Summary(ui.Summary{
				Operation: "project-event " + c.String(),
				Total:     result.Total,
				Success:   result.Success,
				Failures:  result.Failures,
			})
		},
	}

	cmd.Flags().StringVar(&cause, "cause", "", "Event cause (CREATION, KEY_UPDATE, TAGS_UPDATE, DELETION, PERMISSION_CHANGE, ANALYSIS, MANUAL)")
	cmd.Flags().StringSliceVar(&projects, "project", nil, "Branch project uuid (repeatable)")
	_ = cmd.MarkFlagRequired("cause")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}
