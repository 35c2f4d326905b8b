package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/raywall/dados-api/pkg/logger"
	"github.com/raywall/dados-api/pkg/metrics"
	"github.com/rs/zerolog/log"
)

const (
	HeaderCorrelationID = logger.HeaderCorrelationID
	HeaderLatency       = "x-latency-ms"
)

// ContextKeyCorrID carrega o correlation id da requisição no contexto.
const ContextKeyCorrID = logger.ContextKeyCorrID

// Corpo de request limitado a 1MB.
const maxBodyBytes = 1 << 20

type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode  int
	startTime   time.Time
	wroteHeader bool
}

func (rw *responseWriterWrapper) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.statusCode = code
	duration := time.Since(rw.startTime)
	rw.Header().Set(HeaderLatency, fmt.Sprintf("%d", duration.Milliseconds()))
	rw.ResponseWriter.WriteHeader(code)
	rw.wroteHeader = true
}

func (rw *responseWriterWrapper) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// ObservabilityMiddleware injeta o correlation id (do header de entrada ou
// gerado), o logger contextual e registra latência por rota.
func ObservabilityMiddleware(provider metrics.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			corrID := r.Header.Get(HeaderCorrelationID)
			if corrID == "" {
				corrID = uuid.NewString()
			}
			w.Header().Set(HeaderCorrelationID, corrID)

			logger := log.With().Str("correlation_id", corrID).Logger()
			ctx := logger.WithContext(r.Context())
			ctx = context.WithValue(ctx, ContextKeyCorrID, corrID)

			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

			wrapper := &responseWriterWrapper{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				startTime:      start,
			}

			next.ServeHTTP(wrapper, r.WithContext(ctx))

			latency := time.Since(start)
			_ = provider.Histogram(metrics.MetricRequestLatency, float64(latency.Milliseconds()), []string{
				"method:" + r.Method,
				"path:" + r.URL.Path,
				fmt.Sprintf("status:%d", wrapper.statusCode),
			})

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", wrapper.statusCode).
				Int64("latency_ms", latency.Milliseconds()).
				Msg("request completed")
		})
	}
}

// SecurityHeadersMiddleware aplica os headers de defesa básicos.
// HSTS só em produção (atrás do ALB com TLS).
func SecurityHeadersMiddleware(isProduction bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Content-Security-Policy", "default-src 'self'")
			if isProduction {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}
			next.ServeHTTP(w, r)
		})
	}
}
