// Package vault implements the Kimera SWM vault: SQLite-backed storage for
// geoids and SCARs balanced across two partitions (vault_a / vault_b), plus
// the understanding layer (causal relationships, abstractions, self models)
// and the Postgres migration path.
package vault

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"kimera/internal/logging"
)

// Vault partition identifiers. SCAR placement is restricted to these two.
const (
	VaultA = "vault_a"
	VaultB = "vault_b"
)

// Sentinel errors surfaced to the API layer.
var (
	ErrGeoidNotFound = errors.New("geoid not found")
	ErrScarNotFound  = errors.New("scar not found")
	ErrUnknownVault  = errors.New("unknown vault id")
)

// Manager owns the vault database. All access goes through it; the single
// write connection plus WAL keeps SQLite happy under the API server's
// concurrent handlers.
type Manager struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string

	// BalanceByWeight selects weight-based scar placement instead of
	// count-based.
	BalanceByWeight bool
}

// Open initializes the vault database at the given path. ":memory:" is
// honored for tests.
func Open(path string) (*Manager, error) {
	timer := logging.StartTimer(logging.CategoryVault, "Open")
	defer timer.Stop()

	logging.Vault("Opening vault at %s", path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create vault directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vault database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.VaultDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.VaultDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe with WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.VaultDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	m := &Manager{db: db, dbPath: path}
	if err := m.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Vault("Vault ready (geoids, scars, understanding tiers)")
	return m, nil
}

// initialize creates the required tables.
func (m *Manager) initialize() error {
	geoidTable := `
	CREATE TABLE IF NOT EXISTS geoids (
		geoid_id TEXT PRIMARY KEY,
		semantic_state_json TEXT NOT NULL,
		symbolic_state TEXT,
		metadata_json TEXT,
		embedding BLOB,
		entropy REAL DEFAULT 0,
		active BOOLEAN DEFAULT TRUE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_geoids_active ON geoids(active);
	CREATE INDEX IF NOT EXISTS idx_geoids_created ON geoids(created_at);
	`

	scarTable := `
	CREATE TABLE IF NOT EXISTS scars (
		scar_id TEXT PRIMARY KEY,
		geoids TEXT NOT NULL,
		reason TEXT,
		resolved_by TEXT,
		pre_entropy REAL,
		post_entropy REAL,
		delta_entropy REAL,
		cls_angle REAL,
		semantic_polarity REAL,
		mutation_frequency REAL,
		weight REAL DEFAULT 1.0,
		vault_id TEXT NOT NULL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_accessed DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_scars_vault ON scars(vault_id);
	CREATE INDEX IF NOT EXISTS idx_scars_timestamp ON scars(timestamp);
	CREATE INDEX IF NOT EXISTS idx_scars_reason ON scars(reason);
	`

	causalTable := `
	CREATE TABLE IF NOT EXISTS causal_relationships (
		relationship_id TEXT PRIMARY KEY,
		cause_concept_id TEXT NOT NULL,
		effect_concept_id TEXT NOT NULL,
		causal_strength REAL,
		mechanism_description TEXT,
		evidence_quality REAL,
		counterfactuals_json TEXT,
		temporal_delay REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_causal_cause ON causal_relationships(cause_concept_id);
	CREATE INDEX IF NOT EXISTS idx_causal_effect ON causal_relationships(effect_concept_id);
	`

	abstractTable := `
	CREATE TABLE IF NOT EXISTS abstract_concepts (
		concept_id TEXT PRIMARY KEY,
		concept_name TEXT NOT NULL,
		essential_properties_json TEXT,
		concrete_instances_json TEXT,
		abstraction_level INTEGER DEFAULT 1,
		concept_coherence REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_abstract_name ON abstract_concepts(concept_name);
	`

	selfModelTable := `
	CREATE TABLE IF NOT EXISTS self_models (
		model_id TEXT PRIMARY KEY,
		processing_capabilities_json TEXT,
		knowledge_domains_json TEXT,
		reasoning_patterns_json TEXT,
		limitation_awareness_json TEXT,
		introspection_accuracy REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	for _, table := range []string{geoidTable, scarTable, causalTable, abstractTable, selfModelTable} {
		if _, err := m.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}

	if err := runMigrations(m.db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (m *Manager) Close() error {
	logging.Vault("Closing vault database connection")
	return m.db.Close()
}

// DB returns the underlying SQL database connection (used by the analysis
// report and the migration path).
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Stats returns per-table row counts.
func (m *Manager) Stats() (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int64)
	for _, table := range []string{"geoids", "scars", "causal_relationships", "abstract_concepts", "self_models"} {
		var count int64
		if err := m.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.VaultDebug("Table %s count failed: %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

// runMigrations adds columns introduced after the initial schema. Each
// ALTER is tolerated to fail when the column already exists.
func runMigrations(db *sql.DB) error {
	alters := []string{
		"ALTER TABLE scars ADD COLUMN weight REAL DEFAULT 1.0",
		"ALTER TABLE scars ADD COLUMN last_accessed DATETIME",
		"ALTER TABLE geoids ADD COLUMN entropy REAL DEFAULT 0",
		"ALTER TABLE geoids ADD COLUMN active BOOLEAN DEFAULT TRUE",
	}
	for _, stmt := range alters {
		if _, err := db.Exec(stmt); err != nil {
			// Duplicate column is expected on every open after the first.
			logging.VaultDebug("Migration skipped (%q): %v", stmt, err)
		}
	}
	return nil
}
