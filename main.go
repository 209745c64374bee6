package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cli-admin/internal/config"
)

var (
	// Global flags
	viewsPath string
	uri       string
	verbose   bool

	// Loaded in PersistentPreRunE
	views  *config.Views
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "cli-admin",
	Short: "Explore, export and bulk-edit datasets from Postgres, REST APIs and files",
	Long: `cli-admin opens the datasets declared in views.yaml in a terminal table
with search, filters, sorting, paging and row selection.

Datasets come from Postgres tables or queries, JSON REST endpoints, or local
JSON/YAML files. Selected rows of a Postgres table can be deleted or updated
in bulk and committed in one transaction.

Run without arguments to start the browser.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := viewsPath
		if path == "" {
			var err error
			if path, err = config.DefaultViewsPath(); err != nil {
				return err
			}
		}
		v, err := config.LoadViews(path)
		if err != nil {
			return err
		}
		views = v

		// The browser owns the terminal, so it only logs to a file.
		tui := cmd.Name() == "cli-admin" || cmd.Name() == "browse"
		logger, err = newLogger(views.LogFile, tui)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runBrowse,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&viewsPath, "views", "", "Views file (default: ~/.config/cli-admin/views.yaml)")
	rootCmd.PersistentFlags().StringVar(&uri, "uri", "", "Postgres connection URI for datasets without a named connection")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(connectionsCmd)
}

// newLogger builds the production JSON logger. With a log file every entry
// goes there; without one the browser logs nothing and other commands log
// to stderr.
func newLogger(logFile string, tui bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	switch {
	case logFile != "":
		cfg.OutputPaths = []string{logFile}
		cfg.ErrorOutputPaths = []string{logFile}
	case tui:
		return zap.NewNop(), nil
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return l, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
