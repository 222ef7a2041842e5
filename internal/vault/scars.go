package vault

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"kimera/internal/logging"
)

// Scar records a resolved contradiction: which geoids collided, why, and how
// the system's entropy moved across the resolution.
type Scar struct {
	ScarID            string    `json:"scar_id"`
	Geoids            []string  `json:"geoids"`
	Reason            string    `json:"reason"`
	ResolvedBy        string    `json:"resolved_by"`
	PreEntropy        float64   `json:"pre_entropy"`
	PostEntropy       float64   `json:"post_entropy"`
	DeltaEntropy      float64   `json:"delta_entropy"`
	ClsAngle          float64   `json:"cls_angle"`
	SemanticPolarity  float64   `json:"semantic_polarity"`
	MutationFrequency float64   `json:"mutation_frequency"`
	Weight            float64   `json:"weight"`
	VaultID           string    `json:"vault_id"`
	Timestamp         time.Time `json:"timestamp"`
}

// NewScar builds a scar with a fresh ID and derived delta entropy. The vault
// partition is assigned at insert time.
func NewScar(geoids []string, reason, resolvedBy string, preEntropy, postEntropy float64) *Scar {
	return &Scar{
		ScarID:       "SCAR_" + uuid.NewString()[:8],
		Geoids:       geoids,
		Reason:       reason,
		ResolvedBy:   resolvedBy,
		PreEntropy:   preEntropy,
		PostEntropy:  postEntropy,
		DeltaEntropy: postEntropy - preEntropy,
		Weight:       1.0,
		Timestamp:    time.Now().UTC(),
	}
}

// InsertScar stores a scar in whichever partition is lighter. Ties go to
// vault_a. When the manager is configured for weight balancing, partition
// load is total scar weight instead of row count.
func (m *Manager) InsertScar(s *Scar) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s.VaultID == "" {
		target, err := m.selectVaultLocked()
		if err != nil {
			return err
		}
		s.VaultID = target
	}
	if s.VaultID != VaultA && s.VaultID != VaultB {
		return fmt.Errorf("%w: %s", ErrUnknownVault, s.VaultID)
	}
	if s.Weight <= 0 {
		s.Weight = 1.0
	}
	if s.Timestamp.IsZero() {
		s.Timestamp = time.Now().UTC()
	}

	geoidsJSON, err := json.Marshal(s.Geoids)
	if err != nil {
		return fmt.Errorf("failed to encode scar geoids: %w", err)
	}

	_, err = m.db.Exec(`
		INSERT INTO scars (scar_id, geoids, reason, resolved_by, pre_entropy, post_entropy,
			delta_entropy, cls_angle, semantic_polarity, mutation_frequency, weight, vault_id,
			timestamp, last_accessed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`, s.ScarID, string(geoidsJSON), s.Reason, s.ResolvedBy, s.PreEntropy, s.PostEntropy,
		s.DeltaEntropy, s.ClsAngle, s.SemanticPolarity, s.MutationFrequency, s.Weight, s.VaultID,
		s.Timestamp.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert scar %s: %w", s.ScarID, err)
	}

	logging.VaultDebug("Scar %s placed in %s (reason=%q, delta=%.4f)", s.ScarID, s.VaultID, s.Reason, s.DeltaEntropy)
	return nil
}

// selectVaultLocked picks the lighter partition. Caller holds m.mu.
func (m *Manager) selectVaultLocked() (string, error) {
	if m.BalanceByWeight {
		wa, wb, err := m.vaultWeightsLocked()
		if err != nil {
			return "", err
		}
		if wb < wa {
			return VaultB, nil
		}
		return VaultA, nil
	}

	a, b, err := m.scarCountsLocked()
	if err != nil {
		return "", err
	}
	if b < a {
		return VaultB, nil
	}
	return VaultA, nil
}

func (m *Manager) scarCountsLocked() (int, int, error) {
	var a, b int
	row := m.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN vault_id = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN vault_id = ? THEN 1 ELSE 0 END), 0)
		FROM scars
	`, VaultA, VaultB)
	if err := row.Scan(&a, &b); err != nil {
		return 0, 0, fmt.Errorf("failed to count scars: %w", err)
	}
	return a, b, nil
}

func (m *Manager) vaultWeightsLocked() (float64, float64, error) {
	var a, b float64
	row := m.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN vault_id = ? THEN weight ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN vault_id = ? THEN weight ELSE 0 END), 0)
		FROM scars
	`, VaultA, VaultB)
	if err := row.Scan(&a, &b); err != nil {
		return 0, 0, fmt.Errorf("failed to sum scar weights: %w", err)
	}
	return a, b, nil
}

// ScarCounts returns (vault_a, vault_b) scar row counts.
func (m *Manager) ScarCounts() (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scarCountsLocked()
}

// VaultWeights returns total scar weight per partition.
func (m *Manager) VaultWeights() (float64, float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vaultWeightsLocked()
}

// GetScarsByVault returns scars of one partition, newest first.
func (m *Manager) GetScarsByVault(vaultID string, limit int) ([]*Scar, error) {
	if vaultID != VaultA && vaultID != VaultB {
		return nil, fmt.Errorf("%w: %s", ErrUnknownVault, vaultID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	rows, err := m.db.Query(`
		SELECT scar_id, geoids, reason, resolved_by, pre_entropy, post_entropy, delta_entropy,
			cls_angle, semantic_polarity, mutation_frequency, weight, vault_id, timestamp
		FROM scars WHERE vault_id = ? ORDER BY timestamp DESC LIMIT ?
	`, vaultID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query scars: %w", err)
	}
	defer rows.Close()

	var out []*Scar
	for rows.Next() {
		s, err := scanScar(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetScar loads a single scar by ID and bumps its last_accessed time.
func (m *Manager) GetScar(id string) (*Scar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.db.QueryRow(`
		SELECT scar_id, geoids, reason, resolved_by, pre_entropy, post_entropy, delta_entropy,
			cls_angle, semantic_polarity, mutation_frequency, weight, vault_id, timestamp
		FROM scars WHERE scar_id = ?
	`, id)
	s, err := scanScar(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrScarNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := m.db.Exec("UPDATE scars SET last_accessed = CURRENT_TIMESTAMP WHERE scar_id = ?", id); err != nil {
		logging.VaultDebug("Failed to touch scar %s: %v", id, err)
	}
	return s, nil
}

// RebalanceResult summarizes a vault rebalancing pass.
type RebalanceResult struct {
	Moved      int     `json:"moved"`
	FromVault  string  `json:"from_vault"`
	ToVault    string  `json:"to_vault"`
	FinalCount [2]int  `json:"final_counts"` // vault_a, vault_b
	Imbalance  float64 `json:"imbalance"`
}

// RebalanceVaults moves the newest scars from the heavier partition to the
// lighter one. With byWeight false the target is row counts differing by at
// most one; with byWeight true scars move while each move narrows the gap
// between cumulative vault weights.
func (m *Manager) RebalanceVaults(byWeight bool) (*RebalanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, b, err := m.scarCountsLocked()
	if err != nil {
		return nil, err
	}

	res := &RebalanceResult{FinalCount: [2]int{a, b}}

	var (
		ids      []string
		from, to string
	)
	if byWeight {
		ids, from, to, err = m.weightRebalancePlanLocked()
	} else {
		ids, from, to, err = m.countRebalancePlanLocked(a, b)
	}
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return res, nil
	}

	tx, err := m.db.Begin()
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, err := tx.Exec("UPDATE scars SET vault_id = ? WHERE scar_id = ?", to, id); err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to move scar %s: %w", id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	a, b, err = m.scarCountsLocked()
	if err != nil {
		return nil, err
	}
	res.Moved = len(ids)
	res.FromVault = from
	res.ToVault = to
	res.FinalCount = [2]int{a, b}
	if a+b > 0 {
		res.Imbalance = math.Abs(float64(a-b)) / float64(a+b)
	}

	logging.Vault("Rebalanced vaults: moved %d scars %s -> %s (now %d/%d)", res.Moved, from, to, a, b)
	return res, nil
}

// countRebalancePlanLocked picks the newest scars of the fuller partition
// until row counts would differ by at most one.
func (m *Manager) countRebalancePlanLocked(a, b int) ([]string, string, string, error) {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	if diff <= 1 {
		return nil, "", "", nil
	}

	from, to := VaultA, VaultB
	if b > a {
		from, to = VaultB, VaultA
	}

	rows, err := m.db.Query(
		"SELECT scar_id FROM scars WHERE vault_id = ? ORDER BY timestamp DESC LIMIT ?",
		from, diff/2)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to select scars for rebalance: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, "", "", err
		}
		ids = append(ids, id)
	}
	return ids, from, to, rows.Err()
}

// weightRebalancePlanLocked walks the heavier partition's scars newest first
// and keeps moving while each move narrows the cumulative weight gap.
func (m *Manager) weightRebalancePlanLocked() ([]string, string, string, error) {
	wa, wb, err := m.vaultWeightsLocked()
	if err != nil {
		return nil, "", "", err
	}

	from, to := VaultA, VaultB
	gap := wa - wb
	if wb > wa {
		from, to = VaultB, VaultA
		gap = wb - wa
	}
	if gap <= 0 {
		return nil, "", "", nil
	}

	rows, err := m.db.Query(
		"SELECT scar_id, weight FROM scars WHERE vault_id = ? ORDER BY timestamp DESC",
		from)
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to select scars for rebalance: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var (
			id     string
			weight float64
		)
		if err := rows.Scan(&id, &weight); err != nil {
			return nil, "", "", err
		}
		// Moving a scar of weight w shifts the signed gap by 2w; take it
		// only when the absolute gap strictly shrinks.
		if weight <= 0 || math.Abs(gap-2*weight) >= math.Abs(gap) {
			continue
		}
		gap -= 2 * weight
		ids = append(ids, id)
	}
	return ids, from, to, rows.Err()
}

func scanScar(row rowScanner) (*Scar, error) {
	var (
		s         Scar
		geoidsRaw string
		ts        string
	)
	err := row.Scan(&s.ScarID, &geoidsRaw, &s.Reason, &s.ResolvedBy, &s.PreEntropy, &s.PostEntropy,
		&s.DeltaEntropy, &s.ClsAngle, &s.SemanticPolarity, &s.MutationFrequency, &s.Weight,
		&s.VaultID, &ts)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(geoidsRaw), &s.Geoids); err != nil {
		return nil, fmt.Errorf("corrupt geoid list for %s: %w", s.ScarID, err)
	}
	if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		s.Timestamp = parsed
	}
	return &s, nil
}
