package vault

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"kimera/internal/logging"
)

// MigrationReport is the per-table outcome of a SQLite to Postgres copy.
type MigrationReport struct {
	Tables   []TableMigration `json:"tables"`
	Duration time.Duration    `json:"duration"`
	Verified bool             `json:"verified"`
}

// TableMigration records one table's copy result.
type TableMigration struct {
	Name        string `json:"name"`
	SourceRows  int64  `json:"source_rows"`
	CopiedRows  int64  `json:"copied_rows"`
	TargetRows  int64  `json:"target_rows"`
	CountsMatch bool   `json:"counts_match"`
}

// migration copy order: geoids before scars so scar geoid references land
// after their subjects.
var migrationTables = []string{
	"geoids",
	"scars",
	"causal_relationships",
	"abstract_concepts",
	"self_models",
}

const migrationBatchSize = 500

// postgresSchema mirrors the SQLite schema with Postgres types.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS geoids (
		geoid_id TEXT PRIMARY KEY,
		semantic_state_json TEXT NOT NULL,
		symbolic_state TEXT,
		metadata_json TEXT,
		embedding BYTEA,
		entropy DOUBLE PRECISION DEFAULT 0,
		active BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMPTZ DEFAULT NOW(),
		updated_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS scars (
		scar_id TEXT PRIMARY KEY,
		geoids TEXT NOT NULL,
		reason TEXT,
		resolved_by TEXT,
		pre_entropy DOUBLE PRECISION,
		post_entropy DOUBLE PRECISION,
		delta_entropy DOUBLE PRECISION,
		cls_angle DOUBLE PRECISION,
		semantic_polarity DOUBLE PRECISION,
		mutation_frequency DOUBLE PRECISION,
		weight DOUBLE PRECISION DEFAULT 1.0,
		vault_id TEXT NOT NULL,
		timestamp TIMESTAMPTZ DEFAULT NOW(),
		last_accessed TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS causal_relationships (
		relationship_id TEXT PRIMARY KEY,
		cause_concept_id TEXT NOT NULL,
		effect_concept_id TEXT NOT NULL,
		causal_strength DOUBLE PRECISION,
		mechanism_description TEXT,
		evidence_quality DOUBLE PRECISION,
		counterfactuals_json TEXT,
		temporal_delay DOUBLE PRECISION,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS abstract_concepts (
		concept_id TEXT PRIMARY KEY,
		concept_name TEXT NOT NULL,
		essential_properties_json TEXT,
		concrete_instances_json TEXT,
		abstraction_level INTEGER DEFAULT 1,
		concept_coherence DOUBLE PRECISION,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS self_models (
		model_id TEXT PRIMARY KEY,
		processing_capabilities_json TEXT,
		knowledge_domains_json TEXT,
		reasoning_patterns_json TEXT,
		limitation_awareness_json TEXT,
		introspection_accuracy DOUBLE PRECISION,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`,
}

// MigrateToPostgres copies every vault table into the Postgres database at
// targetURL. Rows are inserted in batches with ON CONFLICT DO NOTHING so the
// migration is restartable; counts are verified per table afterwards.
func (m *Manager) MigrateToPostgres(ctx context.Context, targetURL string) (*MigrationReport, error) {
	start := time.Now()
	timer := logging.StartTimer(logging.CategoryMigration, "MigrateToPostgres")
	defer timer.Stop()

	pg, err := sql.Open("postgres", targetURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres target: %w", err)
	}
	defer pg.Close()
	if err := pg.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("postgres target unreachable: %w", err)
	}

	for _, ddl := range postgresSchema {
		if _, err := pg.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("failed to create target schema: %w", err)
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	report := &MigrationReport{Verified: true}
	for _, table := range migrationTables {
		tm, err := m.migrateTable(ctx, pg, table)
		if err != nil {
			return nil, fmt.Errorf("migration of %s failed: %w", table, err)
		}
		report.Tables = append(report.Tables, *tm)
		if !tm.CountsMatch {
			report.Verified = false
		}
		logging.Migration("Migrated %s: %d/%d rows (match=%v)", table, tm.CopiedRows, tm.SourceRows, tm.CountsMatch)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (m *Manager) migrateTable(ctx context.Context, pg *sql.DB, table string) (*TableMigration, error) {
	tm := &TableMigration{Name: table}

	if err := m.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&tm.SourceRows); err != nil {
		return nil, fmt.Errorf("failed to count source rows: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", table))
	if err != nil {
		return nil, fmt.Errorf("failed to read source table: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	insertSQL := buildInsert(table, cols)

	var (
		tx    *sql.Tx
		batch int64
	)
	for rows.Next() {
		if tx == nil {
			tx, err = pg.BeginTx(ctx, nil)
			if err != nil {
				return nil, err
			}
		}

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			tx.Rollback()
			return nil, err
		}
		if _, err := tx.ExecContext(ctx, insertSQL, vals...); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("insert failed: %w", err)
		}

		tm.CopiedRows++
		batch++
		if batch >= migrationBatchSize {
			if err := tx.Commit(); err != nil {
				return nil, err
			}
			tx = nil
			batch = 0
			logging.MigrationDebug("Committed batch for %s (%d rows so far)", table, tm.CopiedRows)
		}
	}
	if err := rows.Err(); err != nil {
		if tx != nil {
			tx.Rollback()
		}
		return nil, err
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}

	if err := pg.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&tm.TargetRows); err != nil {
		return nil, fmt.Errorf("failed to count target rows: %w", err)
	}
	tm.CountsMatch = tm.TargetRows >= tm.SourceRows
	return tm, nil
}

// buildInsert renders an ON CONFLICT DO NOTHING insert with $n placeholders.
func buildInsert(table string, cols []string) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT DO NOTHING",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}
