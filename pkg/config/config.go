// Package config centraliza a configuração do serviço seguindo a
// metodologia 12-Factor: defaults em código, arquivo YAML opcional e
// variáveis de ambiente com precedência final.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/raywall/dados-api/pkg/envloader"
	"gopkg.in/yaml.v3"
)

// AWSConf agrupa os parâmetros de integração com a AWS.
type AWSConf struct {
	Region           string `yaml:"region" env:"AWS_REGION"`
	SecretName       string `yaml:"secret_name" env:"AWS_SECRET_NAME"`
	RotationQueueURL string `yaml:"rotation_queue_url" env:"SECRET_ROTATION_QUEUE_URL"`
}

// DatabaseConf são os parâmetros de conexão com o Postgres. Fora de
// desenvolvimento, host e credenciais vêm do Secrets Manager e estes campos
// servem apenas de fallback local.
type DatabaseConf struct {
	Host     string `yaml:"host" env:"DB_HOST"`
	Port     int    `yaml:"port" env:"DB_PORT" validate:"min=1,max=65535"`
	Name     string `yaml:"name" env:"DB_NAME" validate:"required"`
	User     string `yaml:"user" env:"DB_USER"`
	Password string `yaml:"-" env:"DB_PASSWORD"`
	SSL      bool   `yaml:"ssl" env:"DB_SSL"`
	PoolMin  int    `yaml:"pool_min" env:"DB_POOL_MIN" validate:"min=0"`
	PoolMax  int    `yaml:"pool_max" env:"DB_POOL_MAX" validate:"min=1"`
}

// RedisConf são os parâmetros do cache.
type RedisConf struct {
	Host string `yaml:"host" env:"REDIS_HOST"`
	Port int    `yaml:"port" env:"REDIS_PORT" validate:"min=1,max=65535"`
	TLS  bool   `yaml:"tls" env:"REDIS_TLS"`
}

// FeaturesConf liga e desliga superfícies opcionais.
type FeaturesConf struct {
	Cache   bool `yaml:"cache" env:"ENABLE_CACHE"`
	GraphQL bool `yaml:"graphql" env:"ENABLE_GRAPHQL"`
}

// DatadogConf configura o envio de métricas via statsd.
type DatadogConf struct {
	Enabled   bool   `yaml:"enabled" env:"DD_ENABLED"`
	Addr      string `yaml:"addr" env:"DD_AGENT_HOST"`
	Namespace string `yaml:"namespace" env:"DD_NAMESPACE"`
}

// Config é a configuração completa do serviço.
type Config struct {
	Env      string `yaml:"env" env:"APP_ENV" validate:"oneof=development staging production"`
	Port     int    `yaml:"port" env:"PORT" validate:"min=1,max=65535"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" validate:"omitempty,oneof=trace debug info warn error"`
	Runtime  string `yaml:"runtime" env:"RUNTIME" validate:"oneof=local ecs lambda"`

	AWS      AWSConf      `yaml:"aws"`
	Database DatabaseConf `yaml:"database"`
	Redis    RedisConf    `yaml:"redis"`
	Features FeaturesConf `yaml:"features"`
	Datadog  DatadogConf  `yaml:"datadog"`
}

// defaults devolve a configuração base antes de qualquer fonte externa.
func defaults() *Config {
	return &Config{
		Env:      "development",
		Port:     3000,
		LogLevel: "info",
		Runtime:  "local",
		AWS: AWSConf{
			Region: "us-east-1",
		},
		Database: DatabaseConf{
			Host:    "localhost",
			Port:    5432,
			Name:    "toshiro",
			User:    "postgres",
			SSL:     true,
			PoolMin: 2,
			PoolMax: 10,
		},
		Redis: RedisConf{
			Host: "localhost",
			Port: 6379,
			TLS:  true,
		},
		Features: FeaturesConf{
			Cache: true,
		},
		Datadog: DatadogConf{
			Addr:      "127.0.0.1:8125",
			Namespace: "dados_api.",
		},
	}
}

// Load monta a configuração na precedência ambiente > arquivo > default.
// O caminho do arquivo é opcional; vazio pula a etapa de YAML.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("erro ao ler arquivo de configuração %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("erro ao interpretar %s: %w", path, err)
		}
	}

	if err := envloader.Load(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate aplica as regras estruturais e as invariantes entre campos.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("configuração inválida: %w", err)
	}

	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("configuração inválida: pool_min (%d) maior que pool_max (%d)",
			c.Database.PoolMin, c.Database.PoolMax)
	}

	// Fora de desenvolvimento as credenciais só podem vir do Secrets Manager
	if !c.IsDevelopment() && c.AWS.SecretName == "" {
		return fmt.Errorf("configuração inválida: AWS_SECRET_NAME é obrigatório no ambiente %s", c.Env)
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}
