package cmd

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/config"
	serrors "github.com/Aman-CERP/issuesync/internal/errors"
	"github.com/Aman-CERP/issuesync/internal/store"
	"github.com/Aman-CERP/issuesync/internal/ui"
)

func newStatusCmd(o *rootOptions) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show store, index and recovery queue status",
		Long: `Display the number of issues in the store and documents in the index,
their sizes on disk, whether index writes are enabled, and the recovery
backlog: queued rows and the age of the oldest.

The store is read even while 'issuesync serve' holds the data directory;
the index is then left unopened.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := os.Stat(o.cfg.StorePath(o.dir)); errors.Is(err, fs.ErrNotExist) {
				return serrors.New(serrors.ErrCodeStoreOpen, "no store found in "+o.dir, err).
					WithSuggestion("run 'issuesync commit' or 'issuesync index' first")
			}

			info, err := collectStatus(cmd.Context(), o)
			if err != nil {
				return err
			}
			r := o.renderer(cmd)
			if jsonOutput {
				return r.JSON(info)
			}
			return r.Status(info)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func collectStatus(ctx context.Context, o *rootOptions) (ui.StatusInfo, error) {
	cfg := o.cfg
	info := ui.StatusInfo{
		DataDir:         config.DataDir(o.dir),
		StorePath:       cfg.StorePath(o.dir),
		IndexPath:       cfg.IndexPath(o.dir),
		RecoveryEnabled: cfg.Recovery.Enabled,
		RecoveryEvery:   cfg.Recovery.IntervalDuration().String(),
	}
	info.StoreSize = sizeOnDisk(info.StorePath)
	info.IndexSize = sizeOnDisk(info.IndexPath)

	var (
		issues, rows int
		oldest       time.Time
	)
	env, err := o.openEnvironment()
	switch {
	case err == nil:
		defer env.Close()
		info.IndexWritable = env.index.WritesEnabled()
		if info.IndexDocuments, err = env.index.Count(ctx); err != nil {
			return info, err
		}
		issues, rows, oldest, err = storeStatus(ctx, env.db)
	case serrors.GetCode(err) == serrors.ErrCodeStoreLocked:
		info.Locked = true
		var db *store.DB
		db, err = store.Open(info.StorePath, store.Options{
			Driver:      cfg.Store.Driver,
			BusyTimeout: cfg.Store.BusyTimeoutDuration(),
		})
		if err != nil {
			return info, err
		}
		defer db.Close()
		issues, rows, oldest, err = storeStatus(ctx, db)
	}
	if err != nil {
		return info, err
	}
	info.StoreIssues, info.QueueRows, info.OldestQueued = issues, rows, oldest
	return info, nil
}

func storeStatus(ctx context.Context, db *store.DB) (issues, rows int, oldest time.Time, err error) {
	s := db.NewSession()
	defer s.Close()
	if issues, err = s.CountIssues(ctx); err != nil {
		return
	}
	if rows, err = s.CountQueue(ctx); err != nil {
		return
	}
	oldest, err = s.OldestQueueItemAt(ctx)
	return
}

// sizeOnDisk sums the regular files under path.
func sizeOnDisk(path string) int64 {
	var total int64
	_ = filepath.WalkDir(path, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}
