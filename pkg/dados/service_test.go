package dados

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/raywall/dados-api/pkg/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fakes ---

// memRepo implementa Repository em memória com contadores de chamadas,
// permitindo observar quando o serviço consulta o banco.
type memRepo struct {
	mu      sync.Mutex
	records map[string]Record
	clock   *fakeClock

	listCalls   int
	countCalls  int
	getCalls    int
	insertCalls int
	updateCalls int
	deleteCalls int
	statsCalls  int

	failWith error
}

// fakeClock entrega instantes estritamente crescentes e determinísticos.
type fakeClock struct {
	mu   sync.Mutex
	base time.Time
	tick time.Duration
	n    int
}

func newFakeClock() *fakeClock {
	return &fakeClock{base: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC), tick: time.Millisecond}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return c.base.Add(time.Duration(c.n) * c.tick)
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]Record), clock: newFakeClock()}
}

func (r *memRepo) List(_ context.Context, cidade string, limit, offset int) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listCalls++
	if r.failWith != nil {
		return nil, r.failWith
	}

	all := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		if cidade == "" || rec.Cidade == cidade {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	if offset >= len(all) {
		return []Record{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memRepo) Count(_ context.Context, cidade string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countCalls++
	if r.failWith != nil {
		return 0, r.failWith
	}

	total := 0
	for _, rec := range r.records {
		if cidade == "" || rec.Cidade == cidade {
			total++
		}
	}
	return total, nil
}

func (r *memRepo) Get(_ context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getCalls++
	if r.failWith != nil {
		return nil, r.failWith
	}

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (r *memRepo) Insert(_ context.Context, rec Record) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.insertCalls++
	if r.failWith != nil {
		return nil, r.failWith
	}

	now := r.clock.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	r.records[rec.ID] = rec
	return &rec, nil
}

func (r *memRepo) Update(_ context.Context, id string, in UpdateInput) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updateCalls++
	if r.failWith != nil {
		return nil, r.failWith
	}

	rec, ok := r.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	if in.Nome != nil {
		rec.Nome = *in.Nome
	}
	if in.Sobrenome != nil {
		rec.Sobrenome = *in.Sobrenome
	}
	if in.Endereco != nil {
		rec.Endereco = *in.Endereco
	}
	if in.Cidade != nil {
		rec.Cidade = *in.Cidade
	}
	rec.UpdatedAt = r.clock.Now()
	r.records[id] = rec
	return &rec, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleteCalls++
	if r.failWith != nil {
		return r.failWith
	}

	if _, ok := r.records[id]; !ok {
		return ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memRepo) Stats(_ context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statsCalls++
	if r.failWith != nil {
		return nil, r.failWith
	}

	byCity := map[string]int{}
	for _, rec := range r.records {
		byCity[rec.Cidade]++
	}
	stats := &Stats{Total: len(r.records), Timestamp: r.clock.Now()}
	for cidade, count := range byCity {
		stats.ByCity = append(stats.ByCity, CityCount{Cidade: cidade, Count: count})
	}
	return stats, nil
}

// memCache implementa CacheClient em memória com TTL controlável via clock.
type memCache struct {
	mu    sync.Mutex
	data  map[string]memEntry
	gen   int64
	clock time.Time
}

type memEntry struct {
	payload []byte
	expires time.Time
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]memEntry), clock: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *memCache) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clock = c.clock.Add(d)
}

func (c *memCache) Get(_ context.Context, key string, dest interface{}) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok || c.clock.After(entry.expires) {
		return false
	}
	return json.Unmarshal(entry.payload, dest) == nil
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	c.data[key] = memEntry{payload: payload, expires: c.clock.Add(ttl)}
}

func (c *memCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

func (c *memCache) Generation(_ context.Context) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

func (c *memCache) BumpGeneration(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
}

func newTestService() (*Service, *memRepo, *memCache) {
	repo := newMemRepo()
	cacheClient := newMemCache()
	svc := NewService(repo, cacheClient, &metrics.NoopProvider{}, "test-host")
	return svc, repo, cacheClient
}

func validCreate() CreateInput {
	return CreateInput{Nome: "Ana", Sobrenome: "Silva", Endereco: "Rua A, 10", Cidade: "Recife"}
}

// --- Create ---

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("should mint identity and equal timestamps", func(t *testing.T) {
		svc, _, _ := newTestService()

		rec, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		assert.NotEmpty(t, rec.ID)
		assert.GreaterOrEqual(t, rec.AlunoID, 1)
		assert.LessOrEqual(t, rec.AlunoID, 999)
		assert.Equal(t, "test-host", rec.Host)
		assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	})

	t.Run("should generate unique ids across creates", func(t *testing.T) {
		svc, _, _ := newTestService()

		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			rec, err := svc.Create(ctx, validCreate())
			require.NoError(t, err)
			assert.False(t, seen[rec.ID], "id duplicado: %s", rec.ID)
			seen[rec.ID] = true
		}
	})

	t.Run("should reject missing fields with per-field detail", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Create(ctx, CreateInput{Nome: "Ana"})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Details, "sobrenome")
		assert.Contains(t, vErr.Details, "endereco")
		assert.Contains(t, vErr.Details, "cidade")
		assert.Zero(t, repo.insertCalls)
	})

	t.Run("should reject oversized fields", func(t *testing.T) {
		svc, _, _ := newTestService()

		in := validCreate()
		for len(in.Nome) <= 50 {
			in.Nome += "aaaaaaaaaa"
		}
		_, err := svc.Create(ctx, in)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Contains(t, vErr.Details, "nome")
	})

	t.Run("should bump list generation", func(t *testing.T) {
		svc, _, cacheClient := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		assert.Equal(t, int64(1), cacheClient.Generation(ctx))
	})
}

// --- Get ---

func TestService_Get(t *testing.T) {
	ctx := context.Background()

	t.Run("should return not found for unknown id", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Get(ctx, "nao-existe")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should serve second read from cache", func(t *testing.T) {
		svc, repo, _ := newTestService()

		rec, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		first, err := svc.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.getCalls)

		second, err := svc.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.getCalls, "segunda leitura deveria vir do cache")
		assert.Equal(t, first, second)
	})

	t.Run("should query store again after ttl elapses", func(t *testing.T) {
		svc, repo, cacheClient := newTestService()

		rec, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		_, err = svc.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.getCalls)

		cacheClient.advance(recordTTL + time.Second)

		_, err = svc.Get(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, repo.getCalls, "após o TTL o banco deve ser consultado de novo")
	})
}

// --- Update ---

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	t.Run("should reject empty field subset without touching store", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Update(ctx, "qualquer", UpdateInput{})

		assert.ErrorIs(t, err, ErrNoFieldsToUpdate)
		assert.Zero(t, repo.updateCalls)
	})

	t.Run("should change only supplied fields and advance updated_at", func(t *testing.T) {
		svc, _, _ := newTestService()

		created, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		olinda := "Olinda"
		updated, err := svc.Update(ctx, created.ID, UpdateInput{Cidade: &olinda})
		require.NoError(t, err)

		assert.Equal(t, "Olinda", updated.Cidade)
		assert.Equal(t, created.Nome, updated.Nome)
		assert.Equal(t, created.Sobrenome, updated.Sobrenome)
		assert.Equal(t, created.Endereco, updated.Endereco)
		assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "updated_at deve avançar")
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	})

	t.Run("should return not found for unknown id", func(t *testing.T) {
		svc, _, _ := newTestService()

		nome := "Maria"
		_, err := svc.Update(ctx, "nao-existe", UpdateInput{Nome: &nome})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should reject present but empty field", func(t *testing.T) {
		svc, repo, _ := newTestService()

		vazio := ""
		_, err := svc.Update(ctx, "qualquer", UpdateInput{Nome: &vazio})

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Zero(t, repo.updateCalls)
	})

	t.Run("should invalidate single record cache entry", func(t *testing.T) {
		svc, repo, _ := newTestService()

		created, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		_, err = svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.getCalls)

		olinda := "Olinda"
		_, err = svc.Update(ctx, created.ID, UpdateInput{Cidade: &olinda})
		require.NoError(t, err)

		fresh, err := svc.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, repo.getCalls, "cache do registro deveria ter sido invalidado")
		assert.Equal(t, "Olinda", fresh.Cidade)
	})
}

// --- Delete ---

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("should return not found for unknown id", func(t *testing.T) {
		svc, _, _ := newTestService()

		err := svc.Delete(ctx, "nao-existe")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("should remove record and its cache entry", func(t *testing.T) {
		svc, _, _ := newTestService()

		created, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		_, err = svc.Get(ctx, created.ID)
		require.NoError(t, err)

		require.NoError(t, svc.Delete(ctx, created.ID))

		_, err = svc.Get(ctx, created.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

// --- List ---

func TestService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("should compute totalPages as ceil of total over limit", func(t *testing.T) {
		svc, _, _ := newTestService()

		for i := 0; i < 7; i++ {
			_, err := svc.Create(ctx, validCreate())
			require.NoError(t, err)
		}

		result, err := svc.List(ctx, ListParams{Page: 1, Limit: 3})
		require.NoError(t, err)

		assert.Equal(t, 7, result.Pagination.Total)
		assert.Equal(t, 3, result.Pagination.TotalPages)
		assert.Len(t, result.Data, 3)
	})

	t.Run("should return empty page beyond the end, not an error", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		result, err := svc.List(ctx, ListParams{Page: 99, Limit: 20})
		require.NoError(t, err)

		assert.Empty(t, result.Data)
		assert.NotNil(t, result.Data, "data deve ser lista vazia, não null")
		assert.Equal(t, 1, result.Pagination.Total)
	})

	t.Run("should filter by cidade", func(t *testing.T) {
		svc, _, _ := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)
		in := validCreate()
		in.Cidade = "Olinda"
		_, err = svc.Create(ctx, in)
		require.NoError(t, err)

		result, err := svc.List(ctx, ListParams{Page: 1, Limit: 20, Cidade: "Olinda"})
		require.NoError(t, err)

		require.Len(t, result.Data, 1)
		assert.Equal(t, "Olinda", result.Data[0].Cidade)
	})

	t.Run("should serve repeated list from cache", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		_, err = svc.List(ctx, ListParams{Page: 1, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, 1, repo.listCalls)

		_, err = svc.List(ctx, ListParams{Page: 1, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, 1, repo.listCalls, "segunda listagem deveria vir do cache")
	})

	t.Run("should orphan cached pages after a create", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		_, err = svc.List(ctx, ListParams{Page: 1, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, 1, repo.listCalls)

		// O create incrementa a geração, trocando a chave de lista
		_, err = svc.Create(ctx, validCreate())
		require.NoError(t, err)

		result, err := svc.List(ctx, ListParams{Page: 1, Limit: 20})
		require.NoError(t, err)
		assert.Equal(t, 2, repo.listCalls, "create deveria invalidar as páginas de lista")
		assert.Equal(t, 2, result.Pagination.Total)
	})

	t.Run("should propagate store failure", func(t *testing.T) {
		svc, repo, _ := newTestService()
		repo.failWith = errors.New("connection refused")

		_, err := svc.List(ctx, ListParams{Page: 1, Limit: 20})
		assert.Error(t, err)
	})
}

// --- Stats ---

func TestService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("should cache the aggregate under the current generation", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Total)
		assert.Equal(t, 1, repo.statsCalls)

		_, err = svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.statsCalls, "segunda leitura deveria vir do cache")
	})

	t.Run("should recompute after a create bumps the generation", func(t *testing.T) {
		svc, repo, _ := newTestService()

		_, err := svc.Create(ctx, validCreate())
		require.NoError(t, err)

		_, err = svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, repo.statsCalls)

		_, err = svc.Create(ctx, validCreate())
		require.NoError(t, err)

		stats, err := svc.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, repo.statsCalls)
		assert.Equal(t, 2, stats.Total)
	})
}
