package dados

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/raywall/dados-api/pkg/storage"
)

// Repository define o acesso relacional à coleção dados.
// A interface existe para permitir test doubles no serviço e nos handlers.
type Repository interface {
	List(ctx context.Context, cidade string, limit, offset int) ([]Record, error)
	Count(ctx context.Context, cidade string) (int, error)
	Get(ctx context.Context, id string) (*Record, error)
	Insert(ctx context.Context, rec Record) (*Record, error)
	Update(ctx context.Context, id string, in UpdateInput) (*Record, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*Stats, error)
}

const recordColumns = "id, aluno_id, nome, sobrenome, endereco, cidade, host, created_at, updated_at"

// PostgresRepository implementa Repository sobre o pool do pkg/storage.
// Todos os statements usam binding posicional — valores nunca entram no
// texto da query.
type PostgresRepository struct {
	store *storage.Store
}

func NewPostgresRepository(store *storage.Store) *PostgresRepository {
	return &PostgresRepository{store: store}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	err := row.Scan(
		&rec.ID, &rec.AlunoID, &rec.Nome, &rec.Sobrenome,
		&rec.Endereco, &rec.Cidade, &rec.Host,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *PostgresRepository) List(ctx context.Context, cidade string, limit, offset int) ([]Record, error) {
	query := "SELECT " + recordColumns + " FROM dados"
	args := make([]interface{}, 0, 3)

	if cidade != "" {
		args = append(args, cidade)
		query += " WHERE cidade = $1"
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}

	return records, rows.Err()
}

func (r *PostgresRepository) Count(ctx context.Context, cidade string) (int, error) {
	query := "SELECT COUNT(*) FROM dados"
	args := []interface{}{}

	if cidade != "" {
		query += " WHERE cidade = $1"
		args = append(args, cidade)
	}

	var total int
	row := r.store.QueryRow(ctx, query, args...)
	if row == nil {
		return 0, storage.ErrNotConnected
	}
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("erro ao contar registros: %w", err)
	}

	return total, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.store.QueryRow(ctx, "SELECT "+recordColumns+" FROM dados WHERE id = $1", id)
	if row == nil {
		return nil, storage.ErrNotConnected
	}

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar registro: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec Record) (*Record, error) {
	row := r.store.QueryRow(ctx,
		`INSERT INTO dados (id, aluno_id, nome, sobrenome, endereco, cidade, host, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		 RETURNING `+recordColumns,
		rec.ID, rec.AlunoID, rec.Nome, rec.Sobrenome, rec.Endereco, rec.Cidade, rec.Host,
	)
	if row == nil {
		return nil, storage.ErrNotConnected
	}

	created, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("erro ao inserir registro: %w", err)
	}

	return created, nil
}

// Update monta o SET dinâmico a partir da enumeração fixa de campos
// atualizáveis, anexando apenas os presentes, sempre com binding posicional.
func (r *PostgresRepository) Update(ctx context.Context, id string, in UpdateInput) (*Record, error) {
	sets := make([]string, 0, 5)
	args := make([]interface{}, 0, 5)

	appendSet := func(column, value string) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if in.Nome != nil {
		appendSet("nome", *in.Nome)
	}
	if in.Sobrenome != nil {
		appendSet("sobrenome", *in.Sobrenome)
	}
	if in.Endereco != nil {
		appendSet("endereco", *in.Endereco)
	}
	if in.Cidade != nil {
		appendSet("cidade", *in.Cidade)
	}

	if len(sets) == 0 {
		return nil, ErrNoFieldsToUpdate
	}

	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(
		"UPDATE dados SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), recordColumns,
	)

	row := r.store.QueryRow(ctx, query, args...)
	if row == nil {
		return nil, storage.ErrNotConnected
	}

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao atualizar registro: %w", err)
	}

	return rec, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	res, err := r.store.Exec(ctx, "DELETE FROM dados WHERE id = $1", id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("erro ao verificar linhas afetadas: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// Stats computa o resumo em uma única transação para um snapshot consistente.
func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats

	err := r.store.Transaction(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM dados").Scan(&stats.Total); err != nil {
			return fmt.Errorf("erro no total de registros: %w", err)
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT cidade, COUNT(*) AS count FROM dados GROUP BY cidade ORDER BY count DESC LIMIT 10")
		if err != nil {
			return fmt.Errorf("erro na contagem por cidade: %w", err)
		}
		defer rows.Close()

		stats.ByCity = make([]CityCount, 0, 10)
		for rows.Next() {
			var cc CityCount
			if err := rows.Scan(&cc.Cidade, &cc.Count); err != nil {
				return err
			}
			stats.ByCity = append(stats.ByCity, cc)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		return tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM dados WHERE created_at > NOW() - INTERVAL '24 hours'",
		).Scan(&stats.Last24Hours)
	})
	if err != nil {
		return nil, err
	}

	stats.Timestamp = time.Now().UTC()

	return &stats, nil
}
