package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/issuesync/internal/config"
	"github.com/Aman-CERP/issuesync/internal/recovery"
)

func newServeCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the recovery processor until interrupted",
		Long: `Hold the data directory and run the recovery processor on its schedule:
a first run after recovery.initial_delay, then one every recovery.interval.
Scheduled runs pause while the circuit breaker is open.

Edits to the project's .issuesync.yaml retune the processor and toggle
index.read_only without a restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := o.openEnvironment()
			if err != nil {
				return err
			}
			defer env.Close()
			return serve(cmd.Context(), o, env)
		},
	}
}

func serve(ctx context.Context, o *rootOptions, env *environment) error {
	p := recovery.NewProcessor(env.db, recovery.ConfigFrom(o.cfg.Recovery),
		[]recovery.ResilientIndexer{env.indexer})

	g, ctx := errgroup.WithContext(ctx)

	if o.cfg.Recovery.Enabled {
		p.Start(ctx)
		defer p.Stop()
	} else {
		slog.Info("recovery_disabled", slog.String("dir", o.dir))
	}

	g.Go(func() error {
		return config.Watch(ctx, o.dir, func(cfg *config.Config) {
			p.UpdateConfig(recovery.ConfigFrom(cfg.Recovery))
			if cfg.Index.ReadOnly {
				env.writes.Lock()
			} else {
				env.writes.Unlock()
			}
			slog.Info("index_writes",
				slog.Bool("enabled", env.writes.WritesEnabled()))
		})
	})

	slog.Info("serve_started",
		slog.String("dir", o.dir),
		slog.Bool("recovery", o.cfg.Recovery.Enabled),
		slog.Bool("index_writes", env.writes.WritesEnabled()))

	<-ctx.Done()
	err := g.Wait()
	slog.Info("serve_stopped")
	return err
}
