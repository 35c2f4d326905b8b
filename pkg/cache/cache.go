// Package cache encapsula o Redis (ElastiCache) como acelerador cache-aside.
//
// O cache é consultivo: qualquer falha degrada para comportamento de miss e
// nunca derruba a requisição — a fonte de verdade é sempre o Postgres.
//
// Invalidação de listas usa um contador de geração embutido na chave
// (dados:g<N>:list:...): criar um registro incrementa a geração e órfã
// todas as páginas cacheadas de uma vez, sem depender de deleção por
// padrão/wildcard que o Redis não oferece para DEL.
package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/raywall/dados-api/pkg/config"
	"github.com/raywall/dados-api/pkg/secrets"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Prefixo fixo para não colidir com outros tenants do mesmo cluster.
const keyPrefix = "toshiro:"

const generationKey = "dados:gen"

// Cache é o cliente de cache compartilhado do serviço.
type Cache struct {
	client  *redis.Client
	enabled bool

	// Compensa bumps perdidos enquanto o Redis está fora do ar: a geração
	// efetiva é a soma do contador remoto com o local.
	localGen atomic.Int64
}

// New cria o cliente. Com a feature desabilitada, todas as operações viram
// no-ops e o health check reporta saudável.
func New(cfg config.RedisConf, creds secrets.RedisSecrets, enabled bool) *Cache {
	if !enabled {
		log.Info().Msg("Cache Redis desabilitado")
		return &Cache{enabled: false}
	}

	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", creds.Host, creds.Port),
		Password: creds.AuthToken,
		DB:       0,

		DialTimeout:     10 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 100 * time.Millisecond,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return &Cache{
		client:  redis.NewClient(opts),
		enabled: true,
	}
}

// Connect verifica a conexão. A falha é reportada para log, não para o
// chamador: cache indisponível degrada para always-miss.
func (c *Cache) Connect(ctx context.Context) {
	if !c.enabled {
		return
	}

	if err := c.client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis indisponível no startup, operando como always-miss")
		return
	}

	log.Info().Msg("Conexão com o Redis verificada")
}

// Get busca e desserializa uma chave. Qualquer erro (conexão caída, payload
// malformado) vira miss com warning.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if !c.enabled {
		return false
	}

	val, err := c.client.Get(ctx, keyPrefix+key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Falha no cache get")
		return false
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Payload de cache malformado")
		return false
	}

	return true
}

// Set serializa e grava com expiração. Falhas são logadas e engolidas.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Falha ao serializar valor de cache")
		return
	}

	if err := c.client.Set(ctx, keyPrefix+key, data, ttl).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Falha no cache set")
	}
}

// Delete remove a chave (best-effort).
func (c *Cache) Delete(ctx context.Context, key string) {
	if !c.enabled {
		return
	}

	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("Falha no cache delete")
	}
}

// Generation retorna a geração corrente da coleção, usada na montagem das
// chaves de lista e estatísticas.
func (c *Cache) Generation(ctx context.Context) int64 {
	if !c.enabled {
		return 0
	}

	val, err := c.client.Get(ctx, keyPrefix+generationKey).Int64()
	if err == redis.Nil {
		return c.localGen.Load()
	}
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Falha ao ler geração do cache")
		return c.localGen.Load()
	}

	return val + c.localGen.Load()
}

// BumpGeneration invalida todas as páginas de lista cacheadas de uma vez.
func (c *Cache) BumpGeneration(ctx context.Context) {
	if !c.enabled {
		return
	}

	if err := c.client.Incr(ctx, keyPrefix+generationKey).Err(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Falha ao incrementar geração, usando contador local")
		c.localGen.Add(1)
	}
}

// HealthCheck reporta saudável quando o cache está desabilitado: a ausência
// de cache não é uma degradação.
func (c *Cache) HealthCheck(ctx context.Context) bool {
	if !c.enabled {
		return true
	}

	return c.client.Ping(ctx).Err() == nil
}

// Close encerra a conexão com o Redis.
func (c *Cache) Close() error {
	if !c.enabled {
		return nil
	}

	log.Info().Msg("Encerrando conexão com o Redis...")
	return c.client.Close()
}
