package postgres

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
)

var _ repository.DocumentRepository = (*documentRepo)(nil)

const documentColumns = `id, user_id, kind, unlocked, unlocked_at, refund_requested, refund_requested_at, rejection_reason, evidence_ref, admin_comment, refund_history, created_at, updated_at`

type documentRepo struct{ pool *pgxpool.Pool }

func NewDocumentRepo(pool *pgxpool.Pool) *documentRepo {
	return &documentRepo{pool: pool}
}

func scanDocument(row pgx.Row) (*model.Document, error) {
	d := &model.Document{}
	var history []byte
	err := row.Scan(
		&d.ID, &d.UserID, &d.Kind,
		&d.Unlocked, &d.UnlockedAt,
		&d.RefundRequested, &d.RefundRequestedAt, &d.RejectionReason,
		&d.EvidenceRef, &d.AdminComment, &history,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &d.RefundHistory); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return d, nil
}

func (r *documentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanDocument(row)
}

func (r *documentRepo) Save(ctx context.Context, tx repository.Tx, d *model.Document) error {
	history, err := json.Marshal(d.RefundHistory)
	if err != nil {
		return domain.ErrInvalidArgument
	}

	const q = `
INSERT INTO documents (
  id, user_id, kind, unlocked, unlocked_at, refund_requested, refund_requested_at, rejection_reason, evidence_ref, admin_comment, refund_history, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,NOW()
) ON CONFLICT (id) DO UPDATE SET
  unlocked=$4, unlocked_at=$5, refund_requested=$6, refund_requested_at=$7, rejection_reason=$8, evidence_ref=$9, admin_comment=$10, refund_history=$11, updated_at=NOW();`

	_, err = execSQL(ctx, r.pool, tx, q,
		d.ID, d.UserID, d.Kind, d.Unlocked, d.UnlockedAt,
		d.RefundRequested, d.RefundRequestedAt, d.RejectionReason,
		d.EvidenceRef, d.AdminComment, history, d.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *documentRepo) ListPendingRefunds(ctx context.Context, tx repository.Tx) ([]*model.Document, error) {
	const q = `SELECT ` + documentColumns + ` FROM documents WHERE refund_requested=TRUE ORDER BY refund_requested_at ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
