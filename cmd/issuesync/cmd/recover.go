package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/recovery"
	"github.com/Aman-CERP/issuesync/internal/ui"
)

func newRecoverCmd(o *rootOptions) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Replay queued index writes once",
		Long: `Replay the es_queue rows older than recovery.min_age through their
indexer, recovery.loop_limit rows at a time, until the queue is drained or
a loop's success ratio drops to recovery.failure_ratio or below.

Rows that still fail stay queued. --all ignores recovery.min_age.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()

			cfg := recovery.ConfigFrom(o.cfg.Recovery)
			if all {
				cfg.MinAge = 0
			}
			p := recovery.NewProcessor(env.db, cfg, []recovery.ResilientIndexer{env.indexer})
			report, err := p.Recover(cmd.Context())
			if err != nil {
				return err
			}
			return o.renderer(cmd).Summary(ui.Summary{
				Operation: "recover",
				Total:     report.Result.Total,
				Success:   report.Result.Success,
				Failures:  report.Result.Failures,
				Loops:     report.Loops,
				Duration:  report.Duration,
			})
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Replay rows regardless of their age")

	return cmd
}
