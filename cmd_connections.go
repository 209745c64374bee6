package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cli-admin/internal/config"
)

var (
	connURI      string
	connHost     string
	connPort     string
	connUser     string
	connPassword string
	connDatabase string
)

var connectionsCmd = &cobra.Command{
	Use:     "connections",
	Aliases: []string{"conn"},
	Short:   "Manage saved Postgres connections",
}

var connectionsAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Save a connection (replaces one with the same name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		saved := config.SavedConnection{Name: args[0]}
		if connURI != "" {
			saved.URI = connURI
		} else {
			if connDatabase == "" {
				return fmt.Errorf("either --uri or --database is required")
			}
			if _, err := strconv.Atoi(connPort); err != nil {
				return fmt.Errorf("invalid port number %q", connPort)
			}
			saved.Host = connHost
			saved.Port = connPort
			saved.User = connUser
			saved.Password = connPassword
			saved.Database = connDatabase
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		cfg.Add(saved)
		if err := cfg.Save(); err != nil {
			return err
		}
		logger.Info("connection saved", zap.String("name", saved.Name))
		fmt.Fprintf(cmd.OutOrStdout(), "Saved connection %s\n", saved.Name)
		return nil
	},
}

var connectionsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List saved connections",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if len(cfg.Connections) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved connections")
			return nil
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("NAME", "SERVER")
		for _, c := range cfg.Connections {
			t.Row(c.Name, redact(c))
		}
		fmt.Fprintln(cmd.OutOrStdout(), t.String())
		return nil
	},
}

var connectionsRmCmd = &cobra.Command{
	Use:     "rm NAME",
	Aliases: []string{"remove"},
	Short:   "Delete a saved connection",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cfg.Remove(args[0]) {
			return fmt.Errorf("%w %q", errUnknownConnection, args[0])
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %s\n", args[0])
		return nil
	},
}

func init() {
	connectionsAddCmd.Flags().StringVar(&connURI, "uri", "", "Connection URI")
	connectionsAddCmd.Flags().StringVar(&connHost, "host", "localhost", "Host")
	connectionsAddCmd.Flags().StringVar(&connPort, "port", "5432", "Port")
	connectionsAddCmd.Flags().StringVar(&connUser, "user", "postgres", "Username")
	connectionsAddCmd.Flags().StringVar(&connPassword, "password", "", "Password")
	connectionsAddCmd.Flags().StringVar(&connDatabase, "database", "", "Database")

	connectionsCmd.AddCommand(connectionsAddCmd)
	connectionsCmd.AddCommand(connectionsListCmd)
	connectionsCmd.AddCommand(connectionsRmCmd)
}

// redact renders user@host:port/database without the password.
func redact(c config.SavedConnection) string {
	if c.URI == "" {
		return fmt.Sprintf("%s@%s:%s/%s", c.User, c.Host, c.Port, c.Database)
	}
	u, err := url.Parse(c.URI)
	if err != nil || u.Host == "" {
		return "(unparseable URI)"
	}
	out := u.Host + u.Path
	if u.User != nil {
		out = u.User.Username() + "@" + out
	}
	return out
}
