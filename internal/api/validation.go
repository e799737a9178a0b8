package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/todmy/visa-advisor/internal/rules"
	"github.com/todmy/visa-advisor/internal/storage"
	"github.com/todmy/visa-advisor/internal/validation"
	"github.com/todmy/visa-advisor/pkg/models"
)

// handleValidationCheck runs every structural check over a rule set.
// source=builtin validates the shipped rules; the default validates
// what is stored in the database.
func (s *Server) handleValidationCheck(w http.ResponseWriter, r *http.Request) {
	visaType := r.URL.Query().Get("visa_type")

	var defs []models.RuleDefinition
	if r.URL.Query().Get("source") == "builtin" {
		defs = rules.ByTrack(visaType)
	} else {
		records, err := s.ruleRepo.List(r.Context(), visaType)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to fetch rules")
			return
		}
		defs = storage.Definitions(records)
	}

	respondJSON(w, http.StatusOK, validation.Validate(defs))
}

// FixOrderRequest names the violation type to auto-fix.
type FixOrderRequest struct {
	FixType string `json:"fix_type"`
}

// handleFixOrder repairs dependency-order violations in the stored
// rule set by bumping each consumer above its producer, then persists
// the new priorities in one transaction.
func (s *Server) handleFixOrder(w http.ResponseWriter, r *http.Request) {
	var req FixOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FixType != validation.FixTypeWrongOrder {
		respondError(w, http.StatusBadRequest, validation.ErrUnknownFixType.Error())
		return
	}

	records, err := s.ruleRepo.List(r.Context(), r.URL.Query().Get("visa_type"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch rules")
		return
	}
	defs := storage.Definitions(records)

	violations := validation.CheckDependencyOrder(defs)
	if len(violations) == 0 {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"message":     "no dependency order violations found",
			"fixed_count": 0,
		})
		return
	}

	fixed, err := validation.ApplyOrderFixes(defs, violations)
	if err != nil {
		if errors.Is(err, validation.ErrUnknownFixType) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to compute priority fixes")
		return
	}

	changed := make(map[string]int)
	for i, def := range defs {
		if fixed[i].Priority != def.Priority {
			changed[fixed[i].Name] = fixed[i].Priority
		}
	}

	if err := s.ruleRepo.UpdatePriorities(r.Context(), changed); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to persist priority fixes")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "dependency order violations fixed",
		"fixed_count": len(changed),
		"violations":  violations,
	})
}
