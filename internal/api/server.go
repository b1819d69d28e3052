// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fund-ledger/internal/decoder"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/storage"
)

// Service interfaces for dependency injection and testing

// DecodeServiceInterface defines the decode operations the API exposes
type DecodeServiceInterface interface {
	DecodeTransaction(ctx context.Context, txHash string) (*models.DecodedTransaction, error)
	GetStats() decoder.Stats
}

// PositionServiceInterface defines the cost-basis queries the API exposes
type PositionServiceInterface interface {
	GetPosition(fundID, walletID, asset string) *models.Position
	GetAllPositions() []*models.Position
	Disposals() []*models.DisposalEvent
}

// Server represents the HTTP API server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	decodeSvc   DecodeServiceInterface
	positionSvc PositionServiceInterface
	journalRepo *storage.JournalRepository
	config      *ServerConfig
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new API server instance. journalRepo may be nil
// when Postgres is not configured; the journal endpoints then return 503.
func NewServer(
	config *ServerConfig,
	decodeSvc DecodeServiceInterface,
	positionSvc PositionServiceInterface,
	journalRepo *storage.JournalRepository,
) *Server {
	s := &Server{
		router:      mux.NewRouter(),
		decodeSvc:   decodeSvc,
		positionSvc: positionSvc,
		journalRepo: journalRepo,
		config:      config,
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/decode/{txHash}", s.handleDecodeTransaction).Methods("POST")
	api.HandleFunc("/stats", s.handleGetStats).Methods("GET")

	api.HandleFunc("/positions", s.handleGetAllPositions).Methods("GET")
	api.HandleFunc("/positions/{fundId}/{walletId}/{asset}", s.handleGetPosition).Methods("GET")
	api.HandleFunc("/disposals", s.handleGetDisposals).Methods("GET")

	api.HandleFunc("/entries", s.handleListEntries).Methods("GET")
	api.HandleFunc("/entries/{entryId}/post", s.handlePostEntry).Methods("POST")
	api.HandleFunc("/transactions/{txHash}/entries", s.handleGetEntriesByTx).Methods("GET")
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "fund-ledger",
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	log.Printf("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down API server...")
	return s.httpServer.Shutdown(ctx)
}

// Router exposes the configured router; used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}
