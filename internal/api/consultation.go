package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/todmy/visa-advisor/internal/engine"
	"github.com/todmy/visa-advisor/internal/rules"
	"github.com/todmy/visa-advisor/internal/storage"
)

// StartRequest selects the rule source for a new consultation.
type StartRequest struct {
	VisaType string `json:"visa_type"`
	// Source is "builtin" (default) or "database".
	Source string `json:"source,omitempty"`
}

// AnswerRequest carries one user answer.
type AnswerRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// ConsultationResponse is the wire shape of a step result.
type ConsultationResponse struct {
	SessionID      string             `json:"session_id"`
	Status         string             `json:"status"`
	Message        string             `json:"message"`
	NeedInput      bool               `json:"need_input"`
	Question       string             `json:"question,omitempty"`
	ReasoningChain []engine.ChainRule `json:"reasoning_chain,omitempty"`
	Results        map[string]bool    `json:"results,omitempty"`
	AppliedRule    string             `json:"applied_rule,omitempty"`
}

func stepResponse(sessionID uuid.UUID, result engine.StepResult) ConsultationResponse {
	resp := ConsultationResponse{
		SessionID:      sessionID.String(),
		Status:         string(result.State),
		NeedInput:      result.State == engine.StateAwaitingAnswer,
		Question:       result.Question,
		ReasoningChain: result.ReasoningChain,
		Results:        result.Results,
		AppliedRule:    result.AppliedRule,
	}
	switch result.State {
	case engine.StateAwaitingAnswer:
		resp.Message = "an answer is required to continue"
	case engine.StateImpossible:
		resp.Message = "no eligible visa can be concluded from the answers given"
	default:
		resp.Message = "consultation completed"
	}
	return resp
}

// handleStartConsultation creates a session over the selected rule
// source and runs the first inference step.
func (s *Server) handleStartConsultation(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	defs := rules.ByTrack(req.VisaType)
	if req.Source == "database" {
		records, err := s.ruleRepo.List(r.Context(), req.VisaType)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to load rules")
			return
		}
		defs = storage.Definitions(records)
	}

	if len(defs) == 0 {
		respondError(w, http.StatusBadRequest, "no rules found for the requested visa type")
		return
	}

	id, consultation := s.sessions.Create(engine.NewRuleSet(defs))
	result := consultation.Start()

	respondJSON(w, http.StatusOK, stepResponse(id, result))
}

// handleAnswer records a finding for the session and advances it.
func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	id, consultation, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Key == "" {
		respondError(w, http.StatusBadRequest, "key is required")
		return
	}

	result, err := consultation.Answer(req.Key, req.Value)
	if err != nil {
		respondError(w, http.StatusConflict, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stepResponse(id, result))
}

// handleConsultationStatus reports working memory and rule history.
func (s *Server) handleConsultationStatus(w http.ResponseWriter, r *http.Request) {
	_, consultation, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, consultation.Status())
}

// handleResetConsultation returns the session to its initial state.
func (s *Server) handleResetConsultation(w http.ResponseWriter, r *http.Request) {
	_, consultation, ok := s.lookupSession(w, r)
	if !ok {
		return
	}
	consultation.Reset()
	respondJSON(w, http.StatusOK, map[string]string{"message": "consultation reset"})
}

// handleGoBack undoes the most recent answer.
func (s *Server) handleGoBack(w http.ResponseWriter, r *http.Request) {
	id, consultation, ok := s.lookupSession(w, r)
	if !ok {
		return
	}

	result, err := consultation.GoBack()
	if err != nil {
		if errors.Is(err, engine.ErrNoHistory) {
			respondError(w, http.StatusBadRequest, "nothing to undo")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to roll back")
		return
	}

	respondJSON(w, http.StatusOK, stepResponse(id, result))
}

// TrackCatalog lists one track's rules and askable questions.
type TrackCatalog struct {
	Name      string        `json:"name"`
	Rules     []CatalogRule `json:"rules"`
	Questions []string      `json:"all_questions"`
}

// CatalogRule is the read-only rule shape of the question catalog.
type CatalogRule struct {
	Name       string   `json:"name"`
	RuleType   string   `json:"rule_type"`
	Logic      string   `json:"condition_logic"`
	Conditions []string `json:"conditions"`
	Actions    []string `json:"actions"`
}

// handleQuestionCatalog returns rules and questions per visa track.
func (s *Server) handleQuestionCatalog(w http.ResponseWriter, r *http.Request) {
	catalog := make(map[string]TrackCatalog, len(rules.ConsultationTracks))
	for _, track := range rules.ConsultationTracks {
		defs := rules.ByTrack(track)
		catalogRules := make([]CatalogRule, len(defs))
		for i, def := range defs {
			catalogRules[i] = CatalogRule{
				Name:       def.Name,
				RuleType:   string(def.Category),
				Logic:      string(def.Logic),
				Conditions: def.Conditions,
				Actions:    def.Actions,
			}
		}
		catalog[track] = TrackCatalog{
			Name:      rules.TrackNames[track],
			Rules:     catalogRules,
			Questions: rules.Questions(defs),
		}
	}
	respondJSON(w, http.StatusOK, catalog)
}

func (s *Server) lookupSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, *engine.Consultation, bool) {
	raw := chi.URLParam(r, "sessionID")
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, nil, false
	}

	consultation, err := s.sessions.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session not found")
		return uuid.Nil, nil, false
	}
	return id, consultation, true
}
