package api

import (
	"database/sql"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/todmy/visa-advisor/internal/auth"
	"github.com/todmy/visa-advisor/internal/session"
	"github.com/todmy/visa-advisor/internal/storage"
)

// ServerConfig holds the server dependencies.
type ServerConfig struct {
	DB        *sql.DB
	JWTSecret string
}

// Server routes the consultation, rule-management, validation, and
// question-priority APIs.
type Server struct {
	router       *chi.Mux
	ruleRepo     storage.RuleRepository
	questionRepo storage.QuestionPriorityRepository
	authService  auth.Service
	sessions     *session.Manager
}

// NewServer builds a fully wired server.
func NewServer(cfg ServerConfig) *Server {
	authConfig := auth.DefaultConfig()
	if cfg.JWTSecret != "" {
		authConfig.SecretKey = cfg.JWTSecret
	}

	s := &Server{
		ruleRepo:     storage.NewPostgresRuleRepository(cfg.DB),
		questionRepo: storage.NewPostgresQuestionPriorityRepository(cfg.DB),
		authService:  auth.NewJWTService(authConfig, auth.NewPostgresRepository(cfg.DB)),
		sessions:     session.NewManager(),
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router = r
	s.setupRoutes()

	return s
}

// AuthService exposes the auth service for startup bootstrap.
func (s *Server) AuthService() auth.Service {
	return s.authService
}

func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", s.handleLogin)

		// Consultations are public; sessions are addressed by ID.
		r.Route("/consultation", func(r chi.Router) {
			r.Post("/start", s.handleStartConsultation)
			r.Get("/questions", s.handleQuestionCatalog)
			r.Route("/{sessionID}", func(r chi.Router) {
				r.Post("/answer", s.handleAnswer)
				r.Get("/status", s.handleConsultationStatus)
				r.Post("/reset", s.handleResetConsultation)
				r.Post("/back", s.handleGoBack)
			})
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Get("/export", s.handleExportRules)
			r.Get("/{ruleID}", s.handleGetRule)

			// Mutations require an admin token.
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.authService))
				r.Post("/", s.handleCreateRule)
				r.Post("/import", s.handleImportRules)
				r.Put("/reorder", s.handleReorderRules)
				r.Put("/{ruleID}", s.handleUpdateRule)
				r.Delete("/{ruleID}", s.handleDeleteRule)
			})
		})

		r.Route("/validation", func(r chi.Router) {
			r.Get("/check", s.handleValidationCheck)
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.authService))
				r.Post("/fix-order", s.handleFixOrder)
			})
		})

		r.Route("/question-priorities", func(r chi.Router) {
			r.Get("/", s.handleListQuestionPriorities)
			r.Group(func(r chi.Router) {
				r.Use(auth.Middleware(s.authService))
				r.Post("/initialize", s.handleInitializeQuestionPriorities)
				r.Post("/reset-table", s.handleResetQuestionPriorities)
				r.Put("/{priorityID}", s.handleUpdateQuestionPriority)
			})
		})
	})
}

// Run starts the HTTP server.
func (s *Server) Run(addr string) error {
	return http.ListenAndServe(addr, s.router)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Helper to send JSON responses
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
