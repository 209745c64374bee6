package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"cli-admin/internal/config"
)

var datasetsCmd = &cobra.Command{
	Use:     "datasets",
	Aliases: []string{"ls"},
	Short:   "List the datasets declared in the views file",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(views.Datasets) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No datasets configured. The browser lists the tables of the connected database instead.")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), datasetTable(views.Datasets))
		return nil
	},
}

func datasetTable(datasets []config.Dataset) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("NAME", "TITLE", "SOURCE", "PAGE SIZE")
	for _, ds := range datasets {
		t.Row(ds.Name, ds.Title, describeSource(ds.Source), fmt.Sprint(ds.PageSize))
	}
	return t.String()
}

// describeSource is the one-line form of where rows come from.
func describeSource(s config.Source) string {
	switch s.Kind {
	case config.SourcePostgres:
		conn := s.Connection
		if conn == "" {
			conn = "session"
		}
		if s.Query != "" {
			return fmt.Sprintf("postgres(%s) query", conn)
		}
		return fmt.Sprintf("postgres(%s) %s", conn, s.Table)
	case config.SourceHTTP:
		return "http " + s.URL
	case config.SourceFile:
		return "file " + s.Path
	}
	return s.Kind
}
