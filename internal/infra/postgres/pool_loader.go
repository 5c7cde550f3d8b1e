package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"photo-quiz-service/internal/domain"
)

const source = "postgres:quiz_records"

// PoolLoader loads quiz records from Postgres in insertion order.
type PoolLoader struct {
	pool *pgxpool.Pool
}

func NewPoolLoader(pool *pgxpool.Pool) *PoolLoader {
	return &PoolLoader{pool: pool}
}

func (l *PoolLoader) LoadPool(ctx context.Context) (domain.Pool, error) {
	rows, err := l.pool.Query(ctx, `SELECT filename, answer, gender FROM quiz_records ORDER BY id`)
	if err != nil {
		return domain.Pool{}, &domain.LoadError{Source: source, Err: fmt.Errorf("query records: %w", err)}
	}
	defer rows.Close()

	var records []domain.Record
	row := 0
	for rows.Next() {
		row++
		var filename, answer, gender string
		if err := rows.Scan(&filename, &answer, &gender); err != nil {
			return domain.Pool{}, &domain.LoadError{Source: source, Row: row, Err: fmt.Errorf("scan record: %w", err)}
		}
		rec, err := domain.NewRecord(filename, answer, gender)
		if err != nil {
			return domain.Pool{}, &domain.LoadError{Source: source, Row: row, Err: err}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return domain.Pool{}, &domain.LoadError{Source: source, Err: err}
	}
	if len(records) == 0 {
		return domain.Pool{}, &domain.LoadError{Source: source, Err: domain.ErrEmptyPool}
	}
	return domain.NewPool(records), nil
}
