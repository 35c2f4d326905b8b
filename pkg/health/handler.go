// Package health expõe as sondas de orquestração: /health para o ALB,
// /ready e /live no estilo Kubernetes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Checker é o contrato de verificação de saúde de uma dependência.
// Store e Cache implementam.
type Checker interface {
	HealthCheck(ctx context.Context) bool
}

// Status agregado das dependências.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

type readinessResponse struct {
	Status      string          `json:"status"`
	Timestamp   time.Time       `json:"timestamp"`
	Version     string          `json:"version"`
	Environment string          `json:"environment"`
	UptimeSec   float64         `json:"uptime"`
	Checks      map[string]bool `json:"checks"`
}

// Handler consome os health checks do Store e do Cache.
type Handler struct {
	store       Checker
	cache       Checker
	version     string
	environment string
	startedAt   time.Time
}

func NewHandler(store, cache Checker, version, environment string) *Handler {
	return &Handler{
		store:       store,
		cache:       cache,
		version:     version,
		environment: environment,
		startedAt:   time.Now(),
	}
}

// Register registra as sondas sem prefixo (o ALB chama /health direto).
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/health", h.basic).Methods(http.MethodGet)
	r.HandleFunc("/ready", h.ready).Methods(http.MethodGet)
	r.HandleFunc("/live", h.live).Methods(http.MethodGet)
}

// basic responde rápido, sem checar dependências (requisito do ALB).
func (h *Handler) basic(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, map[string]interface{}{
		"status":    StatusHealthy,
		"timestamp": time.Now().UTC(),
	})
}

// ready checa todas as dependências: healthy (todas), degraded (algumas)
// respondem 200; unhealthy (nenhuma) responde 503.
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]bool{
		"database": h.store.HealthCheck(r.Context()),
		"redis":    h.cache.HealthCheck(r.Context()),
	}

	healthyCount := 0
	for _, ok := range checks {
		if ok {
			healthyCount++
		}
	}

	status := StatusUnhealthy
	switch healthyCount {
	case len(checks):
		status = StatusHealthy
	case 0:
		status = StatusUnhealthy
	default:
		status = StatusDegraded
	}

	httpStatus := http.StatusOK
	if status == StatusUnhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeStatus(w, httpStatus, readinessResponse{
		Status:      status,
		Timestamp:   time.Now().UTC(),
		Version:     h.version,
		Environment: h.environment,
		UptimeSec:   time.Since(h.startedAt).Seconds(),
		Checks:      checks,
	})
}

// live só confirma que o processo responde.
func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startedAt).Seconds(),
	})
}

func writeStatus(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
