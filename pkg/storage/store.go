// Package storage encapsula o pool de conexões com o Postgres (RDS).
//
// Todo acesso passa por parâmetros posicionais ($1, $2, ...) — nunca
// interpolação de valores no texto do statement. A política de retry fica
// com o chamador: o Store não retenta nada automaticamente.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Driver Postgres
	"github.com/pressly/goose/v3"
	"github.com/raywall/dados-api/pkg/storage/migrations"
	"github.com/rs/zerolog/log"
)

// ErrNotConnected indica uso do Store antes de Connect (erro de programação).
var ErrNotConnected = errors.New("storage: pool não inicializado, chame Connect primeiro")

const (
	connectTimeout = 10 * time.Second
	// statement_timeout por conexão, para queries fugitivas não prenderem o pool
	statementTimeoutMS = 30000
)

// Config agrupa os parâmetros de conexão resolvidos (configuração + segredos).
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSL      bool
	PoolMin  int
	PoolMax  int
}

// Store gerencia o pool de conexões com o banco relacional.
type Store struct {
	cfg Config
	db  *sql.DB
}

// New cria o Store sem abrir conexões; Connect faz isso.
func New(cfg Config) *Store {
	return &Store{cfg: cfg}
}

func (s *Store) dsn() string {
	sslmode := "disable"
	if s.cfg.SSL {
		sslmode = "require"
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d options='-c statement_timeout=%d'",
		s.cfg.Host, s.cfg.Port, s.cfg.Database, s.cfg.User, s.cfg.Password,
		sslmode, int(connectTimeout.Seconds()), statementTimeoutMS,
	)
}

// Connect abre o pool e testa a conexão. Chamar duas vezes é um no-op
// com warning, não um erro.
func (s *Store) Connect(ctx context.Context) error {
	if s.db != nil {
		log.Warn().Msg("Pool de banco já inicializado")
		return nil
	}

	db, err := sql.Open("postgres", s.dsn())
	if err != nil {
		return fmt.Errorf("erro ao abrir conexão com o banco: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.PoolMax)
	db.SetMaxIdleConns(s.cfg.PoolMin)
	db.SetConnMaxIdleTime(30 * time.Second)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return fmt.Errorf("erro ao conectar no banco: %w", err)
	}

	s.db = db

	log.Info().
		Str("host", s.cfg.Host).
		Str("database", s.cfg.Database).
		Int("max_connections", s.cfg.PoolMax).
		Msg("Pool de conexões com o banco inicializado")

	return nil
}

// Migrate aplica as migrações embutidas (goose).
func (s *Store) Migrate(ctx context.Context) error {
	if s.db == nil {
		return ErrNotConnected
	}

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.UpContext(ctx, s.db, "."); err != nil {
		return fmt.Errorf("erro ao aplicar migrações: %w", err)
	}

	return nil
}

// Query executa um statement parametrizado e retorna as linhas.
func (s *Store) Query(ctx context.Context, text string, args ...interface{}) (*sql.Rows, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("query", truncate(text)).Msg("Falha na query")
		return nil, fmt.Errorf("erro na query: %w", err)
	}

	log.Ctx(ctx).Debug().
		Str("query", truncate(text)).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Query executada")

	return rows, nil
}

// QueryRow executa um statement parametrizado que retorna no máximo uma linha.
func (s *Store) QueryRow(ctx context.Context, text string, args ...interface{}) *sql.Row {
	if s.db == nil {
		return nil
	}
	return s.db.QueryRowContext(ctx, text, args...)
}

// Exec executa um statement parametrizado sem linhas de retorno.
func (s *Store) Exec(ctx context.Context, text string, args ...interface{}) (sql.Result, error) {
	if s.db == nil {
		return nil, ErrNotConnected
	}

	res, err := s.db.ExecContext(ctx, text, args...)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("query", truncate(text)).Msg("Falha no exec")
		return nil, fmt.Errorf("erro no exec: %w", err)
	}
	return res, nil
}

// Transaction roda fn dentro de uma transação: COMMIT no sucesso, ROLLBACK
// em qualquer falha, e a conexão sempre volta ao pool.
func (s *Store) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return ErrNotConnected
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("erro ao iniciar transação: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Ctx(ctx).Error().Err(rbErr).Msg("Falha no rollback da transação")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("erro no commit da transação: %w", err)
	}

	return nil
}

// HealthCheck executa uma query trivial; false em qualquer falha, nunca panic.
func (s *Store) HealthCheck(ctx context.Context) bool {
	if s.db == nil {
		return false
	}

	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return false
	}
	return one == 1
}

// Close encerra o pool de forma graciosa.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	log.Info().Msg("Encerrando pool de conexões com o banco...")
	err := s.db.Close()
	s.db = nil
	return err
}

func truncate(text string) string {
	if len(text) > 100 {
		return text[:100]
	}
	return text
}
