// Package cmd provides the CLI commands for issuesync.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/issuesync/internal/config"
	"github.com/Aman-CERP/issuesync/internal/logging"
	"github.com/Aman-CERP/issuesync/internal/ui"
	"github.com/Aman-CERP/issuesync/pkg/version"
)

// rootOptions are the persistent flags and the configuration they resolve to.
type rootOptions struct {
	dir      string
	logLevel string
	debug    bool
	noColor  bool

	cfg            *config.Config
	loggingCleanup func()
}

// NewRootCmd creates the root command for the issuesync CLI.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "issuesync",
		Short: "Keep an issue search index in sync with its relational store",
		Long: `issuesync writes issues from a SQLite store into a bleve search index.

Writes that cannot reach the index are recorded in the store's es_queue
table in the same transaction as the data change, and replayed later by
'issuesync recover' or by the processor running under 'issuesync serve'.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: o.setup,
		PersistentPostRun: func(*cobra.Command, []string) { o.teardown() },
	}
	cmd.SetVersionTemplate("issuesync version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&o.dir, "dir", "C", ".", "Project directory holding .issuesync.yaml and the data directory")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "Override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&o.debug, "debug", false, "Debug logging, to logging.file_path or ~/.issuesync/logs/issuesync.log")
	cmd.PersistentFlags().BoolVar(&o.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newIndexCmd(o))
	cmd.AddCommand(newCommitCmd(o))
	cmd.AddCommand(newRecoverCmd(o))
	cmd.AddCommand(newServeCmd(o))
	cmd.AddCommand(newDeleteCmd(o))
	cmd.AddCommand(newProjectEventCmd(o))
	cmd.AddCommand(newCheckCmd(o))
	cmd.AddCommand(newStatusCmd(o))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

// setup loads the configuration of the project directory and installs the logger.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	dir, err := filepath.Abs(o.dir)
	if err != nil {
		return fmt.Errorf("resolve --dir: %w", err)
	}
	o.dir = dir

	cfg, err := config.Load(dir)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		if !logging.ValidLevel(o.logLevel) {
			return fmt.Errorf("--log-level must be 'debug', 'info', 'warn', or 'error', got %s", o.logLevel)
		}
		cfg.Logging.Level = o.logLevel
	}
	if o.debug {
		cfg.Logging.Level = "debug"
		if cfg.Logging.FilePath == "" {
			cfg.Logging.FilePath = logging.DefaultLogPath()
		}
	}
	o.cfg = cfg

	cleanup, err := logging.SetupDefault(cfg.Logging.Options())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	o.loggingCleanup = cleanup
	slog.Debug("config_loaded",
		slog.String("dir", dir),
		slog.String("store", cfg.StorePath(dir)),
		slog.String("index", cfg.IndexPath(dir)))
	return nil
}

func (o *rootOptions) teardown() {
	if o.loggingCleanup != nil {
		o.loggingCleanup()
		o.loggingCleanup = nil
	}
}

// renderer writes to the command's output, colored on terminals.
func (o *rootOptions) renderer(cmd *cobra.Command) *ui.Renderer {
	out := cmd.OutOrStdout()
	return ui.NewRenderer(out, ui.UseColor(out, o.noColor))
}
