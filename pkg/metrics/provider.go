// Package metrics define o contrato de envio de métricas do serviço.
package metrics

// Provider define o contrato para envio de métricas.
// Isso permite trocar Datadog por outro backend sem alterar a lógica de negócio.
type Provider interface {
	Count(name string, value float64, tags []string) error
	Gauge(name string, value float64, tags []string) error
	Histogram(name string, value float64, tags []string) error
}

// Nomes das métricas emitidas pelo serviço.
const (
	MetricRequestLatency = "request.latency"
	MetricCacheHit       = "cache.hit"
	MetricCacheMiss      = "cache.miss"
	MetricRecordCreated  = "dados.created"
	MetricRecordDeleted  = "dados.deleted"
)

// NoopProvider é um placeholder para quando métricas estão desabilitadas.
type NoopProvider struct{}

func (n *NoopProvider) Count(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Gauge(name string, value float64, tags []string) error     { return nil }
func (n *NoopProvider) Histogram(name string, value float64, tags []string) error { return nil }
