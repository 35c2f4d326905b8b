package dados

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/raywall/dados-api/pkg/metrics"
	"github.com/rs/zerolog/log"
)

// TTLs do modelo cache-aside: listas e agregados expiram rápido,
// registros individuais vivem mais.
const (
	listTTL   = 60 * time.Second
	recordTTL = 300 * time.Second
	statsTTL  = 60 * time.Second
)

// CacheClient é o contrato mínimo que o serviço exige do cache.
// Toda operação é best-effort: o cache nunca falha uma requisição.
type CacheClient interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Delete(ctx context.Context, key string)
	Generation(ctx context.Context) int64
	BumpGeneration(ctx context.Context)
}

// Service centraliza a lógica de negócio do CRUD: validação, colaboração
// entre repositório e cache, e geração de identidade dos registros.
type Service struct {
	repo     Repository
	cache    CacheClient
	metrics  metrics.Provider
	valid    *validator.Validate
	hostname string
}

// NewService cria o serviço com as dependências explícitas — nada de
// singletons globais de pool ou cache.
func NewService(repo Repository, cache CacheClient, provider metrics.Provider, hostname string) *Service {
	if hostname == "" {
		hostname = "unknown"
	}
	return &Service{
		repo:     repo,
		cache:    cache,
		metrics:  provider,
		valid:    validator.New(),
		hostname: hostname,
	}
}

func (s *Service) listKey(ctx context.Context, p ListParams) string {
	cidade := p.Cidade
	if cidade == "" {
		cidade = "all"
	}
	return fmt.Sprintf("dados:g%d:list:%d:%d:%s", s.cache.Generation(ctx), p.Page, p.Limit, cidade)
}

func totalPages(total, limit int) int {
	return (total + limit - 1) / limit
}

// List retorna uma página da coleção, com filtro opcional por cidade.
// Página além do fim retorna lista vazia, não erro.
func (s *Service) List(ctx context.Context, p ListParams) (*ListResult, error) {
	key := s.listKey(ctx, p)

	var page Page
	if s.cache.Get(ctx, key, &page) {
		s.metrics.Count(metrics.MetricCacheHit, 1, []string{"op:list"})
		log.Ctx(ctx).Debug().Str("cache_key", key).Msg("Cache hit na listagem")
		return s.listResult(page, p), nil
	}
	s.metrics.Count(metrics.MetricCacheMiss, 1, []string{"op:list"})

	offset := (p.Page - 1) * p.Limit

	records, err := s.repo.List(ctx, p.Cidade, p.Limit, offset)
	if err != nil {
		return nil, err
	}

	total, err := s.repo.Count(ctx, p.Cidade)
	if err != nil {
		return nil, err
	}

	page = Page{Data: records, Total: total}
	s.cache.Set(ctx, key, page, listTTL)

	return s.listResult(page, p), nil
}

func (s *Service) listResult(page Page, p ListParams) *ListResult {
	return &ListResult{
		Data: page.Data,
		Pagination: Pagination{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      page.Total,
			TotalPages: totalPages(page.Total, p.Limit),
		},
	}
}

// Get busca um registro por id, populando o cache no miss.
func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	key := "dados:" + id

	var cached Record
	if s.cache.Get(ctx, key, &cached) {
		s.metrics.Count(metrics.MetricCacheHit, 1, []string{"op:get"})
		return &cached, nil
	}
	s.metrics.Count(metrics.MetricCacheMiss, 1, []string{"op:get"})

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, rec, recordTTL)

	return rec, nil
}

// Create valida o payload, cunha identidade no servidor (id, aluno_id
// pseudo-aleatório em [1,999], host) e persiste. A gravação no banco
// acontece antes de qualquer mutação de cache.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Record, error) {
	if err := s.valid.StructCtx(ctx, in); err != nil {
		return nil, asValidationError(err)
	}

	rec := Record{
		ID:        uuid.NewString(),
		AlunoID:   rand.IntN(999) + 1,
		Nome:      in.Nome,
		Sobrenome: in.Sobrenome,
		Endereco:  in.Endereco,
		Cidade:    in.Cidade,
		Host:      s.hostname,
	}

	created, err := s.repo.Insert(ctx, rec)
	if err != nil {
		return nil, err
	}

	// Órfã todas as páginas de lista cacheadas de uma vez
	s.cache.BumpGeneration(ctx)

	s.metrics.Count(metrics.MetricRecordCreated, 1, nil)
	log.Ctx(ctx).Info().
		Str("id", created.ID).
		Int("aluno_id", created.AlunoID).
		Str("cidade", created.Cidade).
		Str("host", created.Host).
		Msg("Novo registro criado")

	return created, nil
}

// Update aplica um subconjunto não vazio de campos. Update vazio é rejeitado
// antes de tocar o banco. Apenas a entrada individual do registro é
// invalidada: páginas de lista podem ficar velhas até o TTL, janela aceita
// no modelo cache-aside.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Record, error) {
	if in.IsEmpty() {
		return nil, ErrNoFieldsToUpdate
	}

	if err := s.valid.StructCtx(ctx, in); err != nil {
		return nil, asValidationError(err)
	}

	rec, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return nil, err
	}

	s.cache.Delete(ctx, "dados:"+id)

	return rec, nil
}

// Delete remove o registro (hard delete) e invalida sua entrada de cache.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Delete(ctx, "dados:"+id)

	s.metrics.Count(metrics.MetricRecordDeleted, 1, nil)
	log.Ctx(ctx).Info().Str("id", id).Msg("Registro removido")

	return nil
}

// Stats retorna o resumo agregado, cacheado por 60s sob a geração corrente.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	key := fmt.Sprintf("dados:g%d:stats", s.cache.Generation(ctx))

	var cached Stats
	if s.cache.Get(ctx, key, &cached) {
		s.metrics.Count(metrics.MetricCacheHit, 1, []string{"op:stats"})
		return &cached, nil
	}
	s.metrics.Count(metrics.MetricCacheMiss, 1, []string{"op:stats"})

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, stats, statsTTL)

	return stats, nil
}
