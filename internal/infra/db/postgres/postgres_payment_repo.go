package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

const paymentColumns = `id, user_id, document_id, amount, method, status, gateway_order_id, public_code, transaction_ref, created_at, updated_at, paid_at, refunded_at, admin_note, refund_reason`

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	err := row.Scan(
		&p.ID, &p.UserID, &p.DocumentID, &p.Amount, &p.Method, &p.Status,
		&p.GatewayOrderID, &p.PublicCode, &p.TransactionRef,
		&p.CreatedAt, &p.UpdatedAt, &p.PaidAt, &p.RefundedAt,
		&p.AdminNote, &p.RefundReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (
  id, user_id, document_id, amount, method, status, gateway_order_id, public_code, transaction_ref, created_at, updated_at, paid_at, refunded_at, admin_note, refund_reason
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15
) ON CONFLICT (id) DO UPDATE SET
  status=$6, gateway_order_id=$7, public_code=$8, transaction_ref=$9, updated_at=$11, paid_at=$12, refunded_at=$13, admin_note=$14, refund_reason=$15;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.DocumentID, p.Amount, p.Method, p.Status,
		p.GatewayOrderID, p.PublicCode, p.TransactionRef,
		p.CreatedAt, p.UpdatedAt, p.PaidAt, p.RefundedAt,
		p.AdminNote, p.RefundReason)
	if err != nil {
		var pgErr *pgconn.PgError
		// The partial unique index allows one PENDING row per document.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "uniq_payments_pending_document" {
			return domain.ErrDuplicatePendingPayment
		}
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByPublicCode(ctx context.Context, tx repository.Tx, publicCode string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE public_code=$1 ORDER BY created_at DESC LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, publicCode)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindByTransactionRef(ctx context.Context, tx repository.Tx, ref string) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_ref=$1 LIMIT 1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, ref)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindPendingByDocument(ctx context.Context, tx repository.Tx, documentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE document_id=$1 AND status='PENDING' LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, documentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindSuccessByDocument(ctx context.Context, tx repository.Tx, documentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE document_id=$1 AND status='SUCCESS' ORDER BY paid_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, documentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) FindLatestByDocument(ctx context.Context, tx repository.Tx, documentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE document_id=$1 ORDER BY created_at DESC LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, documentID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE user_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// UpdateStatusIfPending atomically advances status only while the row is
// still PENDING. The returned bool reports whether this caller won the
// transition; a false with nil error means another path settled first.
func (r *paymentRepo) UpdateStatusIfPending(
	ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus,
	transactionRef *string, paidAt *time.Time, adminNote *string,
) (bool, error) {
	const q = `
UPDATE payments
   SET status = $2,
       transaction_ref = COALESCE($3, transaction_ref),
       paid_at = COALESCE($4, paid_at),
       admin_note = COALESCE($5, admin_note),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'PENDING';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, string(status), transactionRef, paidAt, adminNote)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string, refundedAt time.Time, reason *string) (bool, error) {
	const q = `
UPDATE payments
   SET status = 'REFUNDED',
       refunded_at = $2,
       refund_reason = COALESCE($3, refund_reason),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'SUCCESS';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, refundedAt, reason)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) CountRecentSuccessesByUser(ctx context.Context, tx repository.Tx, userID string, since time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM payments WHERE user_id=$1 AND status='SUCCESS' AND paid_at >= $2;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, since)
	if err != nil {
		return 0, err
	}

	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}
