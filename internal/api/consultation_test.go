package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewServer(ServerConfig{DB: db, JWTSecret: "test-secret"}), mock
}

func doJSON(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestStartConsultationBuiltinTrack(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/consultation/start",
		StartRequest{VisaType: "E"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConsultationResponse
	decode(t, rec, &resp)
	assert.Equal(t, "awaiting_answer", resp.Status)
	assert.True(t, resp.NeedInput)
	assert.Equal(t, "applicant and company share the same nationality", resp.Question)
	assert.NotEmpty(t, resp.ReasoningChain)
	assert.NotEmpty(t, resp.SessionID)
}

func TestStartConsultationUnknownTrack(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/consultation/start",
		StartRequest{VisaType: "Z"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConsultationAnswerFlow(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/consultation/start",
		StartRequest{VisaType: "E"})
	require.Equal(t, http.StatusOK, rec.Code)
	var started ConsultationResponse
	decode(t, rec, &started)

	answerPath := fmt.Sprintf("/api/v1/consultation/%s/answer", started.SessionID)
	rec = doJSON(t, server, http.MethodPost, answerPath,
		AnswerRequest{Key: started.Question, Value: false})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConsultationResponse
	decode(t, rec, &resp)
	assert.Equal(t, "impossible", resp.Status,
		"denying a condition of the only eligible conclusion path ends the consultation")
	assert.False(t, resp.NeedInput)
}

func TestConsultationGoBackRoundTrip(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/consultation/start",
		StartRequest{VisaType: "B"})
	require.Equal(t, http.StatusOK, rec.Code)
	var started ConsultationResponse
	decode(t, rec, &started)

	answerPath := fmt.Sprintf("/api/v1/consultation/%s/answer", started.SessionID)
	rec = doJSON(t, server, http.MethodPost, answerPath,
		AnswerRequest{Key: started.Question, Value: true})
	require.Equal(t, http.StatusOK, rec.Code)

	backPath := fmt.Sprintf("/api/v1/consultation/%s/back", started.SessionID)
	rec = doJSON(t, server, http.MethodPost, backPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ConsultationResponse
	decode(t, rec, &resp)
	assert.Equal(t, started.Question, resp.Question, "undo re-asks the answered question")

	rec = doJSON(t, server, http.MethodPost, backPath, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "nothing left to undo")
}

func TestConsultationStatus(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/consultation/start",
		StartRequest{VisaType: "E"})
	require.Equal(t, http.StatusOK, rec.Code)
	var started ConsultationResponse
	decode(t, rec, &started)

	statusPath := fmt.Sprintf("/api/v1/consultation/%s/status", started.SessionID)
	rec = doJSON(t, server, http.MethodGet, statusPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status struct {
		Status       string          `json:"status"`
		Findings     map[string]bool `json:"findings"`
		PendingRules []string        `json:"pending_rules"`
	}
	decode(t, rec, &status)
	assert.Equal(t, "awaiting_answer", status.Status)
	assert.Empty(t, status.Findings)
	assert.NotEmpty(t, status.PendingRules)
}

func TestConsultationUnknownSession(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet,
		"/api/v1/consultation/123e4567-e89b-12d3-a456-426614174000/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, server, http.MethodGet,
		"/api/v1/consultation/not-a-uuid/status", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQuestionCatalogListsTracks(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet, "/api/v1/consultation/questions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var catalog map[string]TrackCatalog
	decode(t, rec, &catalog)
	require.Contains(t, catalog, "E")
	require.Contains(t, catalog, "L")
	require.Contains(t, catalog, "B")
	assert.Len(t, catalog["E"].Rules, 11)
	assert.NotEmpty(t, catalog["E"].Questions)
}

func TestValidationCheckBuiltin(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodGet,
		"/api/v1/validation/check?visa_type=E&source=builtin", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		TotalRules      int    `json:"total_rules"`
		Status          string `json:"status"`
		OrderViolations []struct {
			Type string `json:"type"`
		} `json:"dependency_order_violations"`
	}
	decode(t, rec, &report)
	assert.Equal(t, 11, report.TotalRules)
	assert.Equal(t, "error", report.Status)
	assert.NotEmpty(t, report.OrderViolations)
}

func TestRuleMutationRequiresAuth(t *testing.T) {
	server, _ := newTestServer(t)

	rec := doJSON(t, server, http.MethodPost, "/api/v1/rules/", RuleRequest{
		Name:       "new",
		VisaType:   "E",
		RuleType:   "terminal",
		Logic:      "AND",
		Conditions: []string{"a"},
		Actions:    []string{"b"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRejectsUnknownAdmin(t *testing.T) {
	server, mock := newTestServer(t)

	mock.ExpectQuery("SELECT (.+) FROM admins WHERE username").
		WithArgs("nobody").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash", "created_at"}))

	rec := doJSON(t, server, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"username": "nobody", "password": "secret"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
