// Package secrets busca as credenciais de banco e cache no AWS Secrets
// Manager, substituindo credenciais fixas em código ou arquivos de ambiente.
//
// O bundle é cacheado em memória por 5 minutos para não martelar o Secrets
// Manager a cada request; ClearCache força a releitura após rotação.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/raywall/dados-api/pkg/config"
	"github.com/rs/zerolog/log"
)

const cacheTTL = 5 * time.Minute

// DatabaseSecrets são as credenciais do Postgres dentro do bundle.
type DatabaseSecrets struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	Database string `json:"database"`
}

// RedisSecrets são as credenciais do ElastiCache dentro do bundle.
type RedisSecrets struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	AuthToken string `json:"authToken,omitempty"`
}

// Bundle é o documento JSON único armazenado no Secrets Manager.
type Bundle struct {
	Database DatabaseSecrets `json:"database"`
	Redis    RedisSecrets    `json:"redis"`
}

// SecretsClient abstrai o SDK da AWS (permite Mocking).
type SecretsClient interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// Provider entrega o bundle de segredos com cache em memória.
// Em desenvolvimento devolve valores estáticos da configuração local,
// sem nenhuma chamada à AWS.
type Provider struct {
	cfg    *config.Config
	client SecretsClient

	mu        sync.Mutex
	cached    *Bundle
	fetchedAt time.Time
}

// NewProvider cria o provider; o cliente AWS só é criado fora do modo
// de desenvolvimento.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, error) {
	p := &Provider{cfg: cfg}

	if !cfg.IsDevelopment() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("erro ao carregar configuração AWS: %w", err)
		}
		p.client = secretsmanager.NewFromConfig(awsCfg)
	}

	return p, nil
}

// NewProviderWithClient injeta um cliente já construído (usado em testes).
func NewProviderWithClient(cfg *config.Config, client SecretsClient) *Provider {
	return &Provider{cfg: cfg, client: client}
}

// Get retorna o bundle de segredos, servindo do cache enquanto o TTL vale.
// Falhas de busca propagam — não há fallback para segredos vencidos.
func (p *Provider) Get(ctx context.Context) (*Bundle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.fetchedAt) < cacheTTL {
		log.Ctx(ctx).Debug().Msg("Retornando segredos do cache em memória")
		return p.cached, nil
	}

	var bundle *Bundle
	var err error

	if p.cfg.IsDevelopment() {
		bundle = p.developmentBundle()
	} else {
		bundle, err = p.fetchFromAWS(ctx)
		if err != nil {
			return nil, err
		}
	}

	p.cached = bundle
	p.fetchedAt = time.Now()

	return bundle, nil
}

// ClearCache força a próxima chamada a rebuscar o segredo
// (usado para aplicar credenciais rotacionadas).
func (p *Provider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cached = nil
	p.fetchedAt = time.Time{}
	log.Info().Msg("Cache de segredos limpo")
}

func (p *Provider) fetchFromAWS(ctx context.Context) (*Bundle, error) {
	secretName := p.cfg.AWS.SecretName
	if secretName == "" {
		return nil, fmt.Errorf("AWS_SECRET_NAME é obrigatório fora do modo de desenvolvimento")
	}

	log.Ctx(ctx).Info().Str("secret_name", secretName).Msg("Buscando segredos no AWS Secrets Manager")

	out, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &secretName,
	})
	if err != nil {
		return nil, fmt.Errorf("erro no SecretsManager: %w", err)
	}

	if out.SecretString == nil || *out.SecretString == "" {
		return nil, fmt.Errorf("segredo '%s' está vazio", secretName)
	}

	var bundle Bundle
	if err := json.Unmarshal([]byte(*out.SecretString), &bundle); err != nil {
		return nil, fmt.Errorf("erro ao interpretar o segredo '%s': %w", secretName, err)
	}

	return &bundle, nil
}

// developmentBundle monta credenciais a partir da configuração local.
func (p *Provider) developmentBundle() *Bundle {
	log.Warn().Msg("Usando segredos de desenvolvimento - NUNCA EM PRODUÇÃO")

	db := p.cfg.Database
	if db.Host == "" {
		db.Host = "localhost"
	}
	if db.User == "" {
		db.User = "postgres"
	}
	if db.Password == "" {
		db.Password = "devpassword"
	}

	redisHost := p.cfg.Redis.Host
	if redisHost == "" {
		redisHost = "localhost"
	}

	return &Bundle{
		Database: DatabaseSecrets{
			Host:     db.Host,
			Port:     db.Port,
			Username: db.User,
			Password: db.Password,
			Database: db.Name,
		},
		Redis: RedisSecrets{
			Host: redisHost,
			Port: p.cfg.Redis.Port,
		},
	}
}
