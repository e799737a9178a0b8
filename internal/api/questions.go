package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/internal/ranking"
	"github.com/todmy/visa-advisor/internal/rules"
	"github.com/todmy/visa-advisor/internal/storage"
	"github.com/todmy/visa-advisor/pkg/models"
)

// handleListQuestionPriorities returns the stored question order for a
// visa track.
func (s *Server) handleListQuestionPriorities(w http.ResponseWriter, r *http.Request) {
	visaType := r.URL.Query().Get("visa_type")
	if visaType == "" {
		respondError(w, http.StatusBadRequest, "visa_type is required")
		return
	}

	priorities, err := s.questionRepo.List(r.Context(), visaType)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to fetch question priorities")
		return
	}

	if priorities == nil {
		priorities = []*storage.QuestionPriority{}
	}
	respondJSON(w, http.StatusOK, priorities)
}

// InitializeQuestionsRequest selects the rule source to rank.
type InitializeQuestionsRequest struct {
	VisaType string `json:"visa_type"`
	Source   string `json:"source"`
}

// handleInitializeQuestionPriorities ranks the track's questions by
// how many terminal rules need them and replaces the stored order.
func (s *Server) handleInitializeQuestionPriorities(w http.ResponseWriter, r *http.Request) {
	var req InitializeQuestionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.VisaType == "" {
		respondError(w, http.StatusBadRequest, "visa_type is required")
		return
	}

	var defs []models.RuleDefinition
	if req.Source == "builtin" {
		defs = rules.ByTrack(req.VisaType)
	} else {
		records, err := s.ruleRepo.List(r.Context(), req.VisaType)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to fetch rules")
			return
		}
		defs = storage.Definitions(records)
	}
	if len(defs) == 0 {
		respondError(w, http.StatusBadRequest, "no rules found for visa type "+req.VisaType)
		return
	}

	ranked := ranking.RankQuestions(defs)
	count, err := s.questionRepo.Replace(r.Context(), req.VisaType, ranked)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to store question priorities")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "question priorities initialized",
		"visa_type": req.VisaType,
		"count":     count,
		"ranking":   ranked,
	})
}

// handleResetQuestionPriorities clears the whole table.
func (s *Server) handleResetQuestionPriorities(w http.ResponseWriter, r *http.Request) {
	if err := s.questionRepo.Reset(r.Context()); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reset question priorities")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "question priorities reset"})
}

// handleUpdateQuestionPriority sets one row's priority.
func (s *Server) handleUpdateQuestionPriority(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "priorityID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid priority id")
		return
	}

	var req struct {
		Priority int `json:"priority"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.questionRepo.UpdatePriority(r.Context(), id, req.Priority); err != nil {
		if errors.Is(err, storage.ErrQuestionNotFound) {
			respondError(w, http.StatusNotFound, "question priority not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to update question priority")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "question priority updated"})
}
