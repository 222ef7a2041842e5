package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"kimera/internal/config"
	"kimera/internal/printer"
	"kimera/internal/vault"
)

var (
	migratePostgresURL string
	migrateYes         bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the SQLite vault into a PostgreSQL database",
	Long: `Copies every vault table into the target PostgreSQL database and
verifies row counts. The target URL comes from --postgres-url or the
vault.postgres_url config field. Requires --yes; the target tables are
created if missing and existing rows are left untouched.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migratePostgresURL, "postgres-url", "", "Target PostgreSQL connection URL")
	migrateCmd.Flags().BoolVar(&migrateYes, "yes", false, "Confirm the migration")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	if !migrateYes {
		return fmt.Errorf("migration writes to an external database; re-run with --yes to confirm")
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	target := migratePostgresURL
	if target == "" {
		target = cfg.Vault.PostgresURL
	}
	if target == "" {
		return fmt.Errorf("no target: set --postgres-url or vault.postgres_url in config")
	}

	dbPath := cfg.Vault.DatabasePath
	if dbPath != ":memory:" && !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	v, err := vault.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	defer v.Close()

	printer.Header("Vault migration")
	printer.KV("source", dbPath)
	printer.KV("target", "postgresql")

	report, err := v.MigrateToPostgres(cmd.Context(), target)
	if err != nil {
		printer.Error("Migration failed: %v", err)
		return err
	}

	printer.Subheader("Tables")
	var total int64
	for _, table := range report.Tables {
		printer.KV(table.Name, fmt.Sprintf("%d rows", table.CopiedRows))
		total += table.CopiedRows
		if !table.CountsMatch {
			printer.Warning("%s: source has %d rows, target has %d", table.Name, table.SourceRows, table.TargetRows)
		}
	}
	if report.Verified {
		printer.Success("Migrated %d rows in %s, counts verified", total, report.Duration)
	} else {
		printer.Warning("Migrated %d rows in %s, count verification failed", total, report.Duration)
	}
	return nil
}
