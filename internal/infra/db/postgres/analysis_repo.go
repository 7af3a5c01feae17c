package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	domain "github.com/clientproof/backend/internal/domain/analysis"
)

// AnalysisRepository persists records in a single analyses table:
//
//	id TEXT PRIMARY KEY,
//	conversation TEXT NOT NULL,
//	free_analysis JSONB,
//	full_analysis JSONB,
//	paid BOOLEAN NOT NULL DEFAULT FALSE,
//	payment_session_ref TEXT,
//	created_at TIMESTAMPTZ NOT NULL
type AnalysisRepository struct{ db *sql.DB }

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository { return &AnalysisRepository{db: db} }

func (r *AnalysisRepository) Insert(ctx context.Context, rec *domain.Record) error {
	free, err := marshalFree(rec.Free)
	if err != nil {
		return err
	}
	full, err := marshalFull(rec.Full)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO analyses
(id, conversation, free_analysis, full_analysis, paid, payment_session_ref, created_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7);`
	_, err = r.db.ExecContext(ctx, q,
		rec.ID, rec.Conversation, free, full, rec.Paid, rec.PaymentSessionRef, rec.CreatedAt,
	)
	return err
}

func (r *AnalysisRepository) Get(ctx context.Context, id domain.ID) (*domain.Record, error) {
	const q = `
SELECT id, conversation, free_analysis, full_analysis, paid, payment_session_ref, created_at
FROM analyses
WHERE id=$1
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, id)

	var rec domain.Record
	var free, full []byte
	var sessionRef sql.NullString
	if err := row.Scan(&rec.ID, &rec.Conversation, &free, &full, &rec.Paid, &sessionRef, &rec.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	rec.PaymentSessionRef = sessionRef.String
	if len(free) > 0 {
		rec.Free = &domain.FreeAnalysis{}
		if err := json.Unmarshal(free, rec.Free); err != nil {
			return nil, fmt.Errorf("decoding free_analysis for %s: %w", id, err)
		}
	}
	if len(full) > 0 {
		rec.Full = &domain.FullAnalysis{}
		if err := json.Unmarshal(full, rec.Full); err != nil {
			return nil, fmt.Errorf("decoding full_analysis for %s: %w", id, err)
		}
	}
	return &rec, nil
}

// MarkPaid is monotonic: paid never reverts, an empty session ref never
// clears a stored one.
func (r *AnalysisRepository) MarkPaid(ctx context.Context, id domain.ID, sessionRef string) error {
	const q = `
UPDATE analyses
SET paid = TRUE,
    payment_session_ref = COALESCE(NULLIF($2,''), payment_session_ref)
WHERE id = $1;`
	res, err := r.db.ExecContext(ctx, q, id, sessionRef)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetFullAnalysis writes first-wins: the conditional update only touches rows
// with no report yet, so concurrent generators cannot overwrite each other.
func (r *AnalysisRepository) SetFullAnalysis(ctx context.Context, id domain.ID, full *domain.FullAnalysis) (bool, error) {
	data, err := json.Marshal(full)
	if err != nil {
		return false, err
	}
	const q = `
UPDATE analyses
SET full_analysis = $2
WHERE id = $1 AND full_analysis IS NULL;`
	res, err := r.db.ExecContext(ctx, q, id, data)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func marshalFree(v *domain.FreeAnalysis) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func marshalFull(v *domain.FullAnalysis) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}
