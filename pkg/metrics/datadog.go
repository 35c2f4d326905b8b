package metrics

import (
	"fmt"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/raywall/dados-api/pkg/config"
)

// DatadogProvider adapta a lib oficial do Datadog para nossa interface.
type DatadogProvider struct {
	client *statsd.Client
}

func (d *DatadogProvider) Count(name string, value float64, tags []string) error {
	return d.client.Count(name, int64(value), tags, 1)
}

func (d *DatadogProvider) Gauge(name string, value float64, tags []string) error {
	return d.client.Gauge(name, value, tags, 1)
}

func (d *DatadogProvider) Histogram(name string, value float64, tags []string) error {
	return d.client.Histogram(name, value, tags, 1)
}

// Setup inicializa o provedor correto baseado na configuração.
func Setup(cfg config.DatadogConf) (Provider, error) {
	if !cfg.Enabled {
		return &NoopProvider{}, nil
	}

	client, err := statsd.New(cfg.Addr, statsd.WithNamespace(cfg.Namespace))
	if err != nil {
		return nil, fmt.Errorf("falha ao conectar no datadog statsd: %w", err)
	}

	return &DatadogProvider{client: client}, nil
}
