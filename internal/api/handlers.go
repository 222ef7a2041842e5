package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"kimera/internal/engine"
	"kimera/internal/entropy"
	"kimera/internal/field"
	"kimera/internal/geoid"
	"kimera/internal/logging"
	"kimera/internal/vault"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    s.cfg.Name,
		"version": s.cfg.Version,
		"endpoints": []string{
			"POST /geoids",
			"GET /geoids/{id}",
			"POST /process/contradictions",
			"POST /system/cycle",
			"POST /system/proactive_scan",
			"GET /monitoring/status",
			"GET /monitoring/entropy",
			"GET /system/health",
			"GET /system/status",
			"GET /system/components",
			"GET /system/utilization_stats",
		},
	})
}

// createGeoidRequest accepts either explicit semantic features or an
// echoform expression to derive them from.
type createGeoidRequest struct {
	GeoidID          string             `json:"geoid_id,omitempty"`
	SemanticFeatures map[string]float64 `json:"semantic_features,omitempty"`
	SymbolicContent  string             `json:"symbolic_content,omitempty"`
	EchoformText     string             `json:"echoform_text,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

type createGeoidResponse struct {
	GeoidID string               `json:"geoid_id"`
	Entropy float64              `json:"entropy"`
	Geoid   *geoid.State         `json:"geoid"`
	Field   *field.SemanticField `json:"field,omitempty"`
}

func (s *Server) handleCreateGeoid(w http.ResponseWriter, r *http.Request) {
	var req createGeoidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var st *geoid.State
	if req.EchoformText != "" {
		parsed, err := geoid.FromEchoform(req.EchoformText)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid echoform", err)
			return
		}
		st = parsed
		if req.GeoidID != "" {
			st.GeoidID = req.GeoidID
		}
	} else {
		if len(req.SemanticFeatures) == 0 {
			writeError(w, http.StatusBadRequest, "semantic_features or echoform_text is required", nil)
			return
		}
		st = geoid.NewState(req.GeoidID, req.SemanticFeatures)
		if req.SymbolicContent != "" {
			st.SymbolicState["content"] = req.SymbolicContent
		}
	}
	if req.Metadata != nil {
		if st.Metadata == nil {
			st.Metadata = make(map[string]any)
		}
		for k, v := range req.Metadata {
			st.Metadata[k] = v
		}
	}
	if len(st.EmbeddingVector) == 0 {
		st.EmbeddingVector = geoid.FeatureEmbedding(st, s.cfg.Field.Dimension)
	}

	if err := s.vault.AddGeoid(st); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store geoid", err)
		return
	}
	fieldEntry, err := s.fields.AddGeoid(st)
	if err != nil {
		logging.APIDebug("Field add failed for %s: %v", st.GeoidID, err)
	}

	writeJSON(w, http.StatusCreated, createGeoidResponse{
		GeoidID: st.GeoidID,
		Entropy: st.CalculateEntropy(),
		Geoid:   st,
		Field:   fieldEntry,
	})
}

func (s *Server) handleGetGeoid(w http.ResponseWriter, r *http.Request) {
	st, err := s.vault.GetGeoid(r.PathValue("id"))
	if errors.Is(err, vault.ErrGeoidNotFound) {
		writeError(w, http.StatusNotFound, "geoid not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load geoid", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type processContradictionsRequest struct {
	TriggerGeoidID string `json:"trigger_geoid_id"`
	SearchLimit    int    `json:"search_limit,omitempty"`
}

type processContradictionsResponse struct {
	TriggerGeoidID string                   `json:"trigger_geoid_id"`
	Examined       int                      `json:"examined"`
	Tensions       []engine.TensionGradient `json:"tensions"`
	ScarsCreated   []string                 `json:"scars_created"`
}

// handleProcessContradictions checks the trigger geoid against its semantic
// neighborhood and collapses any tension above the engine threshold.
func (s *Server) handleProcessContradictions(w http.ResponseWriter, r *http.Request) {
	var req processContradictionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.TriggerGeoidID == "" {
		writeError(w, http.StatusBadRequest, "trigger_geoid_id is required", nil)
		return
	}
	limit := req.SearchLimit
	if limit <= 0 {
		limit = s.cfg.Contradiction.SearchLimit
	}

	trigger, err := s.vault.GetGeoid(req.TriggerGeoidID)
	if errors.Is(err, vault.ErrGeoidNotFound) {
		writeError(w, http.StatusNotFound, "trigger geoid not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load trigger geoid", err)
		return
	}

	matches, err := s.vault.SemanticSearch(trigger.EmbeddingVector, limit+1)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "semantic search failed", err)
		return
	}

	resp := processContradictionsResponse{
		TriggerGeoidID: req.TriggerGeoidID,
		Tensions:       []engine.TensionGradient{},
		ScarsCreated:   []string{},
	}
	pre := s.systemEntropy()
	for _, match := range matches {
		if match.GeoidID == trigger.GeoidID {
			continue
		}
		other, err := s.vault.GetGeoid(match.GeoidID)
		if err != nil {
			continue
		}
		resp.Examined++
		t := s.contra.ScoreTension(trigger, other)
		if t.TensionScore <= s.contra.TensionThreshold {
			continue
		}
		resp.Tensions = append(resp.Tensions, t)
		scar, err := s.cycle.Collapse(t, trigger, other, pre)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to record scar", err)
			return
		}
		resp.ScarsCreated = append(resp.ScarsCreated, scar.ScarID)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	res, err := s.cycle.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cycle failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleProactiveScan(w http.ResponseWriter, r *http.Request) {
	res, err := s.scanner.Scan(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "proactive scan failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type monitoringStatus struct {
	Measurement   entropy.Measurement        `json:"measurement"`
	Thermodynamic entropy.ThermodynamicState `json:"thermodynamic"`
	HistorySize   int                        `json:"history_size"`
	Trend         float64                    `json:"trend"`
}

func (s *Server) handleMonitoringStatus(w http.ResponseWriter, r *http.Request) {
	geoids, err := s.vault.ListActiveGeoids()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load geoids", err)
		return
	}
	info := s.vaultInfo(len(geoids))
	measurement := s.monitor.CalculateSystemEntropy(geoids, info)

	writeJSON(w, http.StatusOK, monitoringStatus{
		Measurement:   measurement,
		Thermodynamic: s.analyzer.AnalyzeState(geoids, info, measurement.ShannonEntropy),
		HistorySize:   len(s.monitor.History()),
		Trend:         s.monitor.Trend(10),
	})
}

type entropyHistory struct {
	History []entropy.Measurement `json:"history"`
	Trend   float64               `json:"trend"`
}

func (s *Server) handleMonitoringEntropy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, entropyHistory{
		History: s.monitor.History(),
		Trend:   s.monitor.Trend(10),
	})
}

type healthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]healthCheck, 4)

	if _, err := s.vault.Stats(); err != nil {
		checks["vault"] = healthCheck{Status: "degraded", Message: err.Error()}
	} else {
		checks["vault"] = healthCheck{Status: "healthy", Message: "dual vault reachable"}
	}
	checks["entropy_monitor"] = healthCheck{
		Status:  "healthy",
		Message: fmt.Sprintf("%d measurements in history", len(s.monitor.History())),
	}
	checks["contradiction_engine"] = healthCheck{
		Status:  "healthy",
		Message: fmt.Sprintf("tension threshold %.2f", s.contra.TensionThreshold),
	}
	fieldStats := s.fields.Stats()
	checks["field"] = healthCheck{
		Status:  "healthy",
		Message: fmt.Sprintf("%d semantic fields", fieldStats.TotalFields),
	}

	status := "healthy"
	code := http.StatusOK
	for _, check := range checks {
		if check.Status != "healthy" {
			status = "degraded"
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	tables, err := s.vault.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read vault stats", err)
		return
	}
	a, b, err := s.vault.ScarCounts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count scars", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":          s.cfg.Name,
		"version":       s.cfg.Version,
		"uptime":        time.Since(s.started).String(),
		"tables":        tables,
		"vault_a_scars": a,
		"vault_b_scars": b,
		"field":         s.fields.Stats(),
	})
}

func (s *Server) handleComponents(w http.ResponseWriter, r *http.Request) {
	vaultStatus := "operational"
	if _, err := s.vault.Stats(); err != nil {
		vaultStatus = "error"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"vault":                vaultStatus,
		"entropy_monitor":      "operational",
		"contradiction_engine": "operational",
		"cognitive_field":      "operational",
		"proactive_scanner":    "operational",
	})
}

func (s *Server) handleUtilizationStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scanner.Stats())
}

// vaultInfo snapshots scar counts for entropy measurement.
func (s *Server) vaultInfo(activeGeoids int) entropy.VaultInfo {
	a, b, err := s.vault.ScarCounts()
	if err != nil {
		logging.APIDebug("Scar counts unavailable: %v", err)
	}
	return entropy.VaultInfo{ActiveGeoids: activeGeoids, VaultAScars: a, VaultBScars: b}
}

func (s *Server) systemEntropy() float64 {
	geoids, err := s.vault.ListActiveGeoids()
	if err != nil {
		return 0
	}
	return s.monitor.CalculateSystemEntropy(geoids, s.vaultInfo(len(geoids))).ShannonEntropy
}
