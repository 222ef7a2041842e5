package vault

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"kimera/internal/logging"
)

// CausalRelationship links two concepts with a directional causal claim and
// its supporting evidence.
type CausalRelationship struct {
	RelationshipID  string    `json:"relationship_id"`
	CauseConceptID  string    `json:"cause_concept_id"`
	EffectConceptID string    `json:"effect_concept_id"`
	CausalStrength  float64   `json:"causal_strength"`
	Mechanism       string    `json:"mechanism_description"`
	EvidenceQuality float64   `json:"evidence_quality"`
	Counterfactuals []string  `json:"counterfactuals"`
	TemporalDelay   float64   `json:"temporal_delay"`
	CreatedAt       time.Time `json:"created_at"`
}

// AbstractConcept generalizes concrete instances into a named abstraction.
type AbstractConcept struct {
	ConceptID           string         `json:"concept_id"`
	ConceptName         string         `json:"concept_name"`
	EssentialProperties map[string]any `json:"essential_properties"`
	ConcreteInstances   []string       `json:"concrete_instances"`
	AbstractionLevel    int            `json:"abstraction_level"`
	ConceptCoherence    float64        `json:"concept_coherence"`
	CreatedAt           time.Time      `json:"created_at"`
}

// SelfModel captures the system's introspective picture of itself.
type SelfModel struct {
	ModelID                string         `json:"model_id"`
	ProcessingCapabilities map[string]any `json:"processing_capabilities"`
	KnowledgeDomains       []string       `json:"knowledge_domains"`
	ReasoningPatterns      []string       `json:"reasoning_patterns"`
	LimitationAwareness    map[string]any `json:"limitation_awareness"`
	IntrospectionAccuracy  float64        `json:"introspection_accuracy"`
	CreatedAt              time.Time      `json:"created_at"`
}

// EstablishCausalRelationship records a causal link. Strength and evidence
// quality are clamped to [0, 1].
func (m *Manager) EstablishCausalRelationship(rel *CausalRelationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rel.CauseConceptID == "" || rel.EffectConceptID == "" {
		return fmt.Errorf("causal relationship requires cause and effect concept ids")
	}
	if rel.RelationshipID == "" {
		rel.RelationshipID = "CAUSAL_" + uuid.NewString()[:8]
	}
	rel.CausalStrength = clamp01(rel.CausalStrength)
	rel.EvidenceQuality = clamp01(rel.EvidenceQuality)
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = time.Now().UTC()
	}

	cfJSON, err := json.Marshal(rel.Counterfactuals)
	if err != nil {
		return fmt.Errorf("failed to encode counterfactuals: %w", err)
	}

	_, err = m.db.Exec(`
		INSERT INTO causal_relationships (relationship_id, cause_concept_id, effect_concept_id,
			causal_strength, mechanism_description, evidence_quality, counterfactuals_json, temporal_delay)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rel.RelationshipID, rel.CauseConceptID, rel.EffectConceptID, rel.CausalStrength,
		rel.Mechanism, rel.EvidenceQuality, string(cfJSON), rel.TemporalDelay)
	if err != nil {
		return fmt.Errorf("failed to store causal relationship: %w", err)
	}

	logging.VaultDebug("Causal link %s: %s -> %s (strength=%.2f)",
		rel.RelationshipID, rel.CauseConceptID, rel.EffectConceptID, rel.CausalStrength)
	return nil
}

// FormAbstractConcept stores an abstraction. Coherence is derived from the
// ratio of essential properties to instances when not supplied.
func (m *Manager) FormAbstractConcept(c *AbstractConcept) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ConceptName == "" {
		return fmt.Errorf("abstract concept requires a name")
	}
	if c.ConceptID == "" {
		c.ConceptID = "CONCEPT_" + uuid.NewString()[:8]
	}
	if c.AbstractionLevel <= 0 {
		c.AbstractionLevel = 1
	}
	if c.ConceptCoherence == 0 && len(c.ConcreteInstances) > 0 {
		c.ConceptCoherence = clamp01(float64(len(c.EssentialProperties)) / float64(len(c.ConcreteInstances)))
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	propsJSON, err := json.Marshal(c.EssentialProperties)
	if err != nil {
		return fmt.Errorf("failed to encode essential properties: %w", err)
	}
	instJSON, err := json.Marshal(c.ConcreteInstances)
	if err != nil {
		return fmt.Errorf("failed to encode concrete instances: %w", err)
	}

	_, err = m.db.Exec(`
		INSERT INTO abstract_concepts (concept_id, concept_name, essential_properties_json,
			concrete_instances_json, abstraction_level, concept_coherence)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ConceptID, c.ConceptName, string(propsJSON), string(instJSON), c.AbstractionLevel, c.ConceptCoherence)
	if err != nil {
		return fmt.Errorf("failed to store abstract concept: %w", err)
	}

	logging.VaultDebug("Formed concept %s (%s) at level %d", c.ConceptID, c.ConceptName, c.AbstractionLevel)
	return nil
}

// UpdateSelfModel appends a new self model snapshot. Snapshots are
// append-only so introspection accuracy can be tracked over time.
func (m *Manager) UpdateSelfModel(sm *SelfModel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sm.ModelID == "" {
		sm.ModelID = "SELF_" + uuid.NewString()[:8]
	}
	sm.IntrospectionAccuracy = clamp01(sm.IntrospectionAccuracy)
	if sm.CreatedAt.IsZero() {
		sm.CreatedAt = time.Now().UTC()
	}

	caps, err := json.Marshal(sm.ProcessingCapabilities)
	if err != nil {
		return fmt.Errorf("failed to encode capabilities: %w", err)
	}
	domains, err := json.Marshal(sm.KnowledgeDomains)
	if err != nil {
		return fmt.Errorf("failed to encode domains: %w", err)
	}
	patterns, err := json.Marshal(sm.ReasoningPatterns)
	if err != nil {
		return fmt.Errorf("failed to encode patterns: %w", err)
	}
	limits, err := json.Marshal(sm.LimitationAwareness)
	if err != nil {
		return fmt.Errorf("failed to encode limitations: %w", err)
	}

	_, err = m.db.Exec(`
		INSERT INTO self_models (model_id, processing_capabilities_json, knowledge_domains_json,
			reasoning_patterns_json, limitation_awareness_json, introspection_accuracy)
		VALUES (?, ?, ?, ?, ?, ?)
	`, sm.ModelID, string(caps), string(domains), string(patterns), string(limits), sm.IntrospectionAccuracy)
	if err != nil {
		return fmt.Errorf("failed to store self model: %w", err)
	}

	logging.Vault("Self model %s recorded (accuracy=%.2f)", sm.ModelID, sm.IntrospectionAccuracy)
	return nil
}

// UnderstandingMetrics summarizes the understanding tier.
type UnderstandingMetrics struct {
	CausalRelationships int     `json:"causal_relationships"`
	AbstractConcepts    int     `json:"abstract_concepts"`
	SelfModels          int     `json:"self_models"`
	AvgCausalStrength   float64 `json:"avg_causal_strength"`
	AvgCoherence        float64 `json:"avg_coherence"`
	LatestIntrospection float64 `json:"latest_introspection_accuracy"`
	MaturityScore       float64 `json:"maturity_score"`
}

// Understanding computes the metrics snapshot. The maturity score weighs
// causal coverage, conceptual coherence, and introspective accuracy equally.
func (m *Manager) Understanding() (*UnderstandingMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := &UnderstandingMetrics{}
	err := m.db.QueryRow(`
		SELECT COUNT(*), COALESCE(AVG(causal_strength), 0) FROM causal_relationships
	`).Scan(&metrics.CausalRelationships, &metrics.AvgCausalStrength)
	if err != nil {
		return nil, fmt.Errorf("failed to read causal metrics: %w", err)
	}
	err = m.db.QueryRow(`
		SELECT COUNT(*), COALESCE(AVG(concept_coherence), 0) FROM abstract_concepts
	`).Scan(&metrics.AbstractConcepts, &metrics.AvgCoherence)
	if err != nil {
		return nil, fmt.Errorf("failed to read concept metrics: %w", err)
	}
	err = m.db.QueryRow(`
		SELECT COUNT(*), COALESCE(
			(SELECT introspection_accuracy FROM self_models ORDER BY rowid DESC LIMIT 1), 0)
		FROM self_models
	`).Scan(&metrics.SelfModels, &metrics.LatestIntrospection)
	if err != nil {
		return nil, fmt.Errorf("failed to read self model metrics: %w", err)
	}

	causal := saturate(float64(metrics.CausalRelationships), 10) * metrics.AvgCausalStrength
	concepts := saturate(float64(metrics.AbstractConcepts), 10) * metrics.AvgCoherence
	metrics.MaturityScore = clamp01((causal + concepts + metrics.LatestIntrospection) / 3)
	return metrics, nil
}

// saturate maps count onto [0,1] with diminishing returns past the scale.
func saturate(count, scale float64) float64 {
	if count <= 0 {
		return 0
	}
	return count / (count + scale)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
