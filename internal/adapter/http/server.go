package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campusiq/campusiq/internal/service/logger"
	"github.com/campusiq/campusiq/internal/usecase"
)

// ServerConfig represents server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server represents the HTTP server
type Server struct {
	addr   string
	server *http.Server
	log    logger.Logger
}

// NewServer wires the router, handlers and middleware chain
func NewServer(
	config ServerConfig,
	governance *usecase.GovernanceUseCase,
	audit *usecase.AuditUseCase,
	authMiddleware *AuthMiddleware,
	rateLimitMiddleware *RateLimitMiddleware,
	log logger.Logger,
) *Server {
	governanceHandler := NewGovernanceHandler(governance)
	auditHandler := NewAuditHandler(audit)

	router := mux.NewRouter()
	governanceHandler.RegisterRoutes(router, authMiddleware, rateLimitMiddleware)
	auditHandler.RegisterRoutes(router, authMiddleware)

	router.Use(correlationMiddleware)
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware)
	router.Use(recoveryMiddleware(log))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return &Server{
		addr: ":" + config.Port,
		log:  log,
		server: &http.Server{
			Addr:         ":" + config.Port,
			Handler:      router,
			ReadTimeout:  config.ReadTimeout,
			WriteTimeout: config.WriteTimeout,
			IdleTimeout:  config.IdleTimeout,
		},
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info(context.Background(), "starting HTTP server", map[string]interface{}{"addr": s.addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info(ctx, "shutting down HTTP server", nil)
	return s.server.Shutdown(ctx)
}
