package vault

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"kimera/internal/geoid"
	"kimera/internal/logging"
)

// StoredGeoid is a geoid row together with its storage metadata.
type StoredGeoid struct {
	State     *geoid.State
	Entropy   float64
	Active    bool
	CreatedAt time.Time
}

// AddGeoid persists a geoid. An existing row with the same ID is replaced.
func (m *Manager) AddGeoid(st *geoid.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	semJSON, err := json.Marshal(st.SemanticFeatures)
	if err != nil {
		return fmt.Errorf("failed to encode semantic features: %w", err)
	}
	symJSON, err := json.Marshal(st.SymbolicState)
	if err != nil {
		return fmt.Errorf("failed to encode symbolic state: %w", err)
	}
	metaJSON, err := json.Marshal(st.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	var blob []byte
	if len(st.EmbeddingVector) > 0 {
		blob = geoid.EncodeVectorBlob(st.EmbeddingVector)
	}

	_, err = m.db.Exec(`
		INSERT INTO geoids (geoid_id, semantic_state_json, symbolic_state, metadata_json, embedding, entropy, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, TRUE, CURRENT_TIMESTAMP)
		ON CONFLICT(geoid_id) DO UPDATE SET
			semantic_state_json = excluded.semantic_state_json,
			symbolic_state = excluded.symbolic_state,
			metadata_json = excluded.metadata_json,
			embedding = excluded.embedding,
			entropy = excluded.entropy,
			updated_at = CURRENT_TIMESTAMP
	`, st.GeoidID, string(semJSON), string(symJSON), string(metaJSON), blob, st.CalculateEntropy())
	if err != nil {
		return fmt.Errorf("failed to store geoid %s: %w", st.GeoidID, err)
	}

	logging.VaultDebug("Stored geoid %s (%d features)", st.GeoidID, st.FeatureCount())
	return nil
}

// GetGeoid loads a single geoid by ID.
func (m *Manager) GetGeoid(id string) (*geoid.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row := m.db.QueryRow(`
		SELECT geoid_id, semantic_state_json, symbolic_state, metadata_json, embedding
		FROM geoids WHERE geoid_id = ?
	`, id)
	st, err := scanGeoid(row)
	if err == sql.ErrNoRows {
		return nil, ErrGeoidNotFound
	}
	return st, err
}

// ListActiveGeoids returns all active geoids, oldest first.
func (m *Manager) ListActiveGeoids() ([]*geoid.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows, err := m.db.Query(`
		SELECT geoid_id, semantic_state_json, symbolic_state, metadata_json, embedding
		FROM geoids WHERE active = TRUE ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query geoids: %w", err)
	}
	defer rows.Close()

	var out []*geoid.State
	for rows.Next() {
		st, err := scanGeoid(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ActiveGeoidCount returns the number of active geoids.
func (m *Manager) ActiveGeoidCount() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int
	err := m.db.QueryRow("SELECT COUNT(*) FROM geoids WHERE active = TRUE").Scan(&n)
	return n, err
}

// DeactivateGeoid marks a geoid inactive without deleting its row.
func (m *Manager) DeactivateGeoid(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	res, err := m.db.Exec("UPDATE geoids SET active = FALSE, updated_at = CURRENT_TIMESTAMP WHERE geoid_id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to deactivate geoid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGeoidNotFound
	}
	return nil
}

// SemanticMatch is one semantic search hit.
type SemanticMatch struct {
	GeoidID  string  `json:"geoid_id"`
	Distance float64 `json:"distance"`
}

// SemanticSearch returns the closest geoids to the query embedding by cosine
// distance, nearest first. Geoids without embeddings are skipped.
func (m *Manager) SemanticSearch(query []float32, limit int) ([]SemanticMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	timer := logging.StartTimer(logging.CategoryVault, "SemanticSearch")
	defer timer.StopWithThreshold(200 * time.Millisecond)

	rows, err := m.db.Query(`
		SELECT geoid_id, vector_distance_cos(embedding, ?) AS distance
		FROM geoids
		WHERE active = TRUE AND embedding IS NOT NULL
		ORDER BY distance ASC
		LIMIT ?
	`, geoid.EncodeVectorBlob(query), limit)
	if err != nil {
		return nil, fmt.Errorf("semantic search failed: %w", err)
	}
	defer rows.Close()

	var out []SemanticMatch
	for rows.Next() {
		var match SemanticMatch
		if err := rows.Scan(&match.GeoidID, &match.Distance); err != nil {
			return nil, err
		}
		out = append(out, match)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGeoid(row rowScanner) (*geoid.State, error) {
	var (
		id, semJSON   string
		symbolic      sql.NullString
		metaJSON      sql.NullString
		embeddingBlob []byte
	)
	if err := row.Scan(&id, &semJSON, &symbolic, &metaJSON, &embeddingBlob); err != nil {
		return nil, err
	}

	st := &geoid.State{GeoidID: id}
	if err := json.Unmarshal([]byte(semJSON), &st.SemanticFeatures); err != nil {
		return nil, fmt.Errorf("corrupt semantic state for %s: %w", id, err)
	}
	if symbolic.Valid && symbolic.String != "" {
		if err := json.Unmarshal([]byte(symbolic.String), &st.SymbolicState); err != nil {
			logging.VaultDebug("Corrupt symbolic state for %s: %v", id, err)
		}
	}
	if metaJSON.Valid && metaJSON.String != "" {
		if err := json.Unmarshal([]byte(metaJSON.String), &st.Metadata); err != nil {
			logging.VaultDebug("Corrupt metadata for %s: %v", id, err)
		}
	}
	if len(embeddingBlob) > 0 {
		st.EmbeddingVector = geoid.DecodeVectorBlob(embeddingBlob)
	}
	return st, nil
}
