package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quizhub/rewards-hub/config"
	"github.com/quizhub/rewards-hub/internal/infrastructure/persistence/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
			if err := m.Rollback(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "last migration rolled back")
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
			migrations, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, mig := range migrations {
				state := "pending"
				if mig.IsApplied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%03d  %-40s %s\n", mig.Version, mig.Name, state)
			}
			return nil
		})
	},
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateStatusCmd)
}

// withMigrator opens a short-lived database connection for a migration
// action. Migrations do not need the full application graph.
func withMigrator(ctx context.Context, fn func(context.Context, *postgres.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close()

	return fn(ctx, postgres.NewMigrator(conn))
}
