// Package transport liga o serviço ao mundo: roteador HTTP com a cadeia de
// middlewares, adaptador Lambda e o listener de rotação de segredos.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/raywall/dados-api/pkg/dados"
	"github.com/raywall/dados-api/pkg/health"
	"github.com/raywall/dados-api/pkg/logger"
	"github.com/raywall/dados-api/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// RouterDeps agrupa as dependências injetadas no roteador.
type RouterDeps struct {
	Dados        *dados.Handler
	Health       *health.Handler
	GraphQL      http.Handler
	Metrics      metrics.Provider
	IsProduction bool
}

// NewRouter monta o roteador: sondas sem prefixo (para o ALB), CRUD sob
// /api/v1/dados e o endpoint GraphQL opcional.
func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()
	r.Use(
		ObservabilityMiddleware(deps.Metrics),
		SecurityHeadersMiddleware(deps.IsProduction),
	)

	deps.Health.Register(r)

	api := r.PathPrefix("/api/v1/dados").Subrouter()
	deps.Dados.Register(api)

	if deps.GraphQL != nil {
		r.Handle("/api/v1/graphql", deps.GraphQL).Methods(http.MethodPost)
	}

	r.HandleFunc("/api/v1", apiInfo).Methods(http.MethodGet)

	// Middlewares do mux não rodam em rotas não casadas; o handler de 404 é
	// embrulhado à mão para responder o mesmo envelope com correlation id
	r.NotFoundHandler = ObservabilityMiddleware(deps.Metrics)(http.HandlerFunc(notFound))

	return r
}

func notFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   false,
		"error":     "Route not found",
		"path":      r.URL.Path,
		"requestId": logger.CorrelationID(r.Context()),
	})
}

func apiInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"name":    "dados-api",
		"version": "2.0.0",
		"health":  "/health",
		"endpoints": map[string]string{
			"dados": "/api/v1/dados",
		},
	})
}

// Server embrulha o http.Server com os timeouts calibrados para o ALB
// (idle acima dos 60s do balanceador).
type Server struct {
	httpServer *http.Server
}

func NewServer(port int, handler http.Handler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: handler,

			ReadTimeout: 15 * time.Second,
			// Acima do statement_timeout de 30s do banco
			WriteTimeout: 35 * time.Second,
			IdleTimeout:  65 * time.Second,
		},
	}
}

// Start bloqueia servindo requisições até Shutdown.
func (s *Server) Start() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("Servidor HTTP ouvindo")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown para de aceitar conexões e espera as em andamento terminarem.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Encerrando servidor HTTP...")
	return s.httpServer.Shutdown(ctx)
}
