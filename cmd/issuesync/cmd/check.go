package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/index"
	"github.com/Aman-CERP/issuesync/internal/ui"
)

func newCheckCmd(o *rootOptions) *cobra.Command {
	var (
		repair     bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare store issue keys with index document keys",
		Long: `List orphan documents (in the index, not in the store) and missing
documents (in the store, not in the index).

--repair queues one es_queue row per inconsistent key; the next recovery
run rewrites missing documents and deletes orphans.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			checker := index.NewConsistencyChecker(env.db, env.index)
			result, err := checker.Check(ctx)
			if err != nil {
				return err
			}

			report := ui.CheckReport{
				StoreIssues:    result.StoreIssues,
				IndexDocuments: result.IndexDocuments,
				Orphans:        []string{},
				Missing:        []string{},
				Duration:       result.Duration,
			}
			for _, i := range result.Inconsistencies {
				switch i.Type {
				case index.InconsistencyOrphan:
					report.Orphans = append(report.Orphans, i.IssueKey)
				case index.InconsistencyMissing:
					report.Missing = append(report.Missing, i.IssueKey)
				}
			}
			if repair {
				items, err := checker.Repair(ctx, result.Inconsistencies)
				if err != nil {
					return err
				}
				report.Repaired = len(items)
			}

			r := o.renderer(cmd)
			if jsonOutput {
				return r.JSON(report)
			}
			return r.Check(report)
		},
	}

	cmd.Flags().BoolVar(&repair, "repair", false, "Queue a replay for every inconsistent key")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
