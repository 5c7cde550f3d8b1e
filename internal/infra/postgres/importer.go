package postgres

import (
	"context"
	"time"

	"github.com/uptrace/bun"
	"photo-quiz-service/internal/domain"
)

// QuizRecord is the bun model of the quiz_records table.
type QuizRecord struct {
	bun.BaseModel `bun:"table:quiz_records"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Filename  string    `bun:"filename,notnull,unique"`
	Answer    string    `bun:"answer,notnull"`
	Gender    string    `bun:"gender,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// Importer upserts pool records keyed by filename.
type Importer struct {
	db *bun.DB
}

func NewImporter(db *bun.DB) *Importer {
	return &Importer{db: db}
}

// Import writes every record in one transaction and returns how many rows were touched.
func (i *Importer) Import(ctx context.Context, records []domain.Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	rows := make([]QuizRecord, 0, len(records))
	for _, rec := range records {
		rows = append(rows, QuizRecord{
			Filename: rec.ImageRef,
			Answer:   rec.Answer,
			Gender:   string(rec.Gender),
		})
	}

	var affected int64
	err := i.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewInsert().
			Model(&rows).
			On("CONFLICT (filename) DO UPDATE").
			Set("answer = EXCLUDED.answer").
			Set("gender = EXCLUDED.gender").
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
