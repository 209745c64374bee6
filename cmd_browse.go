package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cli-admin/internal/app"
	"cli-admin/internal/config"
	"cli-admin/internal/db"
	"cli-admin/internal/source"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Open the dataset browser (default command)",
	Args:  cobra.NoArgs,
	RunE:  runBrowse,
}

// needsDatabase reports whether the browser should ask for a session
// database: some dataset reads the default connection, or nothing is
// configured and tables will be listed instead.
func needsDatabase(v *config.Views) bool {
	if len(v.Datasets) == 0 {
		return true
	}
	for _, ds := range v.Datasets {
		if ds.Source.Kind == config.SourcePostgres && ds.Source.Connection == "" {
			return true
		}
	}
	return false
}

// pickSession runs the connection picker. A nil database means the user
// quit.
func pickSession(cfg *config.Config) (session, error) {
	final, err := tea.NewProgram(newSessionModel(cfg)).Run()
	if err != nil {
		return session{}, fmt.Errorf("connection picker: %w", err)
	}
	m := final.(sessionModel)
	if !m.done {
		return session{}, nil
	}
	return m.result, nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	conns := newConnections(cfg, uri, logger)
	defer conns.Close()

	var (
		sess *db.DB
		name    string
		tables  []string
	)
	switch {
	case uri != "":
		if sess, err = conns.Get(ctx, ""); err != nil {
			return err
		}
		if len(views.Datasets) == 0 {
			if tables, err = sess.ListTables(ctx); err != nil {
				return fmt.Errorf("failed to list tables: %w", err)
			}
		}
	case needsDatabase(views):
		picked, err := pickSession(cfg)
		if err != nil {
			return err
		}
		if picked.db == nil {
			return nil
		}
		sess, name, tables = picked.db, picked.name, picked.tables
		conns.adopt(sess, "", name)
	}

	if len(views.Datasets) == 0 && len(tables) > 0 {
		views.AddTables("", tables)
		logger.Info("listing tables", zap.Int("tables", len(tables)))
	}

	opts := app.Options{
		Views:     views,
		Deps:      source.Deps{Connect: conns.Querier, Logger: logger},
		Session:   name,
		ExportDir: ".",
		Logger:    logger,
	}
	if sess != nil {
		opts.Committer = sess
		opts.ConnInfo = sess.ConnInfo()
	}

	p := tea.NewProgram(app.NewModel(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("browser: %w", err)
	}
	return nil
}
