package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/internal/storage"
	"github.com/todmy/visa-advisor/pkg/models"
)

// RuleRequest creates or updates a stored rule.
type RuleRequest struct {
	Name       string   `json:"name"`
	VisaType   string   `json:"visa_type"`
	RuleType   string   `json:"rule_type"`
	Logic      string   `json:"condition_logic"`
	Conditions []string `json:"conditions"`
	Actions    []string `json:"actions"`
	Priority   int      `json:"priority"`
}

// RuleResponse is the wire shape of a stored rule.
type RuleResponse struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	VisaType   string   `json:"visa_type"`
	RuleType   string   `json:"rule_type"`
	Logic      string   `json:"condition_logic"`
	Conditions []string `json:"conditions"`
	Actions    []string `json:"actions"`
	Priority   int      `json:"priority"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

func ruleResponse(record *storage.RuleRecord) RuleResponse {
	return RuleResponse{
		ID:         record.ID.String(),
		Name:       record.Name,
		VisaType:   record.VisaType,
		RuleType:   string(record.Category),
		Logic:      string(record.Logic),
		Conditions: record.Conditions,
		Actions:    record.Actions,
		Priority:   record.Priority,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  record.UpdatedAt.Format(time.RFC3339),
	}
}

func (req RuleRequest) validate() error {
	if req.Name == "" {
		return errors.New("name is required")
	}
	if req.VisaType == "" {
		return errors.New("visa_type is required")
	}
	switch models.RuleCategory(req.RuleType) {
	case models.CategoryTerminal, models.CategoryIntermediate:
	default:
		return fmt.Errorf("rule_type must be %q or %q", models.CategoryTerminal, models.CategoryIntermediate)
	}
	switch models.CombinationLogic(req.Logic) {
	case models.LogicAnd, models.LogicOr, "":
	default:
		return fmt.Errorf("condition_logic must be %q or %q", models.LogicAnd, models.LogicOr)
	}
	if len(req.Conditions) == 0 {
		return errors.New("conditions must not be empty")
	}
	if len(req.Actions) == 0 {
		return errors.New("actions must not be empty")
	}
	return nil
}

func (req RuleRequest) record() *storage.RuleRecord {
	logic := models.CombinationLogic(req.Logic)
	if logic == "" {
		logic = models.LogicAnd
	}
	return &storage.RuleRecord{
		Name:       req.Name,
		VisaType:   req.VisaType,
		Category:   models.RuleCategory(req.RuleType),
		Logic:      logic,
		Conditions: req.Conditions,
		Actions:    req.Actions,
		Priority:   req.Priority,
	}
}

// handleListRules returns stored rules, optionally filtered by track.
func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	records, err := s.ruleRepo.List(r.Context(), r.URL.Query().Get("visa_type"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch rules")
		return
	}

	response := make([]RuleResponse, 0, len(records))
	for _, record := range records {
		response = append(response, ruleResponse(record))
	}
	respondJSON(w, http.StatusOK, response)
}

// handleGetRule returns one stored rule.
func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRuleID(w, r)
	if !ok {
		return
	}

	record, err := s.ruleRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch rule")
		return
	}

	respondJSON(w, http.StatusOK, ruleResponse(record))
}

// handleCreateRule stores a new rule after a name-uniqueness check.
func (s *Server) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if existing, err := s.ruleRepo.GetByName(r.Context(), req.Name); err == nil && existing != nil {
		respondError(w, http.StatusConflict, "a rule with this name already exists")
		return
	}

	record := req.record()
	if err := s.ruleRepo.Create(r.Context(), record); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}

	respondJSON(w, http.StatusCreated, ruleResponse(record))
}

// handleUpdateRule rewrites a stored rule.
func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRuleID(w, r)
	if !ok {
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if existing, err := s.ruleRepo.GetByName(r.Context(), req.Name); err == nil && existing != nil && existing.ID != id {
		respondError(w, http.StatusConflict, "a rule with this name already exists")
		return
	}

	current, err := s.ruleRepo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to fetch rule")
		return
	}

	record := req.record()
	record.ID = id
	record.CreatedAt = current.CreatedAt
	if err := s.ruleRepo.Update(r.Context(), record); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to update rule")
		return
	}

	respondJSON(w, http.StatusOK, ruleResponse(record))
}

// handleDeleteRule removes a stored rule.
func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRuleID(w, r)
	if !ok {
		return
	}

	if err := s.ruleRepo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrRuleNotFound) {
			respondError(w, http.StatusNotFound, "rule not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "rule deleted"})
}

// handleReorderRules assigns priorities following the supplied order.
func (s *Server) handleReorderRules(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RuleIDs []string `json:"rule_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := make([]uuid.UUID, 0, len(req.RuleIDs))
	for _, raw := range req.RuleIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid rule id: "+raw)
			return
		}
		ids = append(ids, id)
	}

	if err := s.ruleRepo.Reorder(r.Context(), ids); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reorder rules")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": fmt.Sprintf("updated the order of %d rules", len(ids)),
	})
}

// ExportEnvelope wraps exported rules with format metadata.
type ExportEnvelope struct {
	Version    string                  `json:"version"`
	ExportedAt string                  `json:"exported_at"`
	VisaType   string                  `json:"visa_type"`
	Rules      []models.RuleDefinition `json:"rules"`
}

// handleExportRules returns the stored rules as a portable document.
func (s *Server) handleExportRules(w http.ResponseWriter, r *http.Request) {
	visaType := r.URL.Query().Get("visa_type")
	records, err := s.ruleRepo.List(r.Context(), visaType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch rules")
		return
	}

	if visaType == "" {
		visaType = "ALL"
	}
	respondJSON(w, http.StatusOK, ExportEnvelope{
		Version:    "1.0",
		ExportedAt: time.Now().Format(time.RFC3339),
		VisaType:   visaType,
		Rules:      storage.Definitions(records),
	})
}

// ImportRequest carries a rule batch and the overwrite policy.
type ImportRequest struct {
	Rules     []RuleRequest `json:"rules"`
	Overwrite bool          `json:"overwrite"`
}

// handleImportRules imports a batch, collecting per-rule errors rather
// than aborting: an invalid record skips only itself.
func (s *Server) handleImportRules(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	imported, updated, skipped := 0, 0, 0
	var importErrors []string

	for _, ruleReq := range req.Rules {
		if err := ruleReq.validate(); err != nil {
			name := ruleReq.Name
			if name == "" {
				name = "unknown"
			}
			importErrors = append(importErrors, fmt.Sprintf("rule %s: %v", name, err))
			continue
		}

		existing, err := s.ruleRepo.GetByName(r.Context(), ruleReq.Name)
		if err != nil && !errors.Is(err, storage.ErrRuleNotFound) {
			importErrors = append(importErrors, fmt.Sprintf("rule %s: %v", ruleReq.Name, err))
			continue
		}

		if existing != nil {
			if !req.Overwrite {
				skipped++
				continue
			}
			record := ruleReq.record()
			record.ID = existing.ID
			record.CreatedAt = existing.CreatedAt
			if err := s.ruleRepo.Update(r.Context(), record); err != nil {
				importErrors = append(importErrors, fmt.Sprintf("rule %s: %v", ruleReq.Name, err))
				continue
			}
			updated++
			continue
		}

		if err := s.ruleRepo.Create(r.Context(), ruleReq.record()); err != nil {
			importErrors = append(importErrors, fmt.Sprintf("rule %s: %v", ruleReq.Name, err))
			continue
		}
		imported++
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "import finished",
		"imported": imported,
		"updated":  updated,
		"skipped":  skipped,
		"errors":   importErrors,
	})
}

func parseRuleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "ruleID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid rule id")
		return uuid.Nil, false
	}
	return id, true
}
