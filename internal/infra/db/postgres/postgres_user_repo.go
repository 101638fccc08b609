package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*userRepo)(nil)

const userColumns = `id, email, tier, weekly_payments, tier_recalc_at, bonus_credits_today, is_admin, created_at, updated_at`

type userRepo struct{ pool *pgxpool.Pool }

func NewUserRepo(pool *pgxpool.Pool) *userRepo {
	return &userRepo{pool: pool}
}

func scanUser(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Tier, &u.WeeklyPayments, &u.TierRecalcAt,
		&u.BonusCreditsToday, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return u, nil
}

func (r *userRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanUser(row)
}

func (r *userRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	const q = `
INSERT INTO users (
  id, email, tier, weekly_payments, tier_recalc_at, bonus_credits_today, is_admin, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,NOW()
) ON CONFLICT (id) DO UPDATE SET
  email=$2, tier=$3, weekly_payments=$4, tier_recalc_at=$5, bonus_credits_today=$6, is_admin=$7, updated_at=NOW();`

	_, err := execSQL(ctx, r.pool, tx, q,
		u.ID, u.Email, u.Tier, u.WeeklyPayments, u.TierRecalcAt,
		u.BonusCreditsToday, u.IsAdmin, u.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) UpdateTier(ctx context.Context, tx repository.Tx, id string, tier, weeklyPayments int, recalcAt time.Time) error {
	const q = `UPDATE users SET tier=$2, weekly_payments=$3, tier_recalc_at=$4, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, tier, weeklyPayments, recalcAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) AddBonusCredits(ctx context.Context, tx repository.Tx, id string, credits int) error {
	const q = `UPDATE users SET bonus_credits_today = bonus_credits_today + $2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, id, credits)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *userRepo) ResetBonusCredits(ctx context.Context, tx repository.Tx) (int, error) {
	const q = `UPDATE users SET bonus_credits_today = 0, updated_at=NOW() WHERE bonus_credits_today <> 0;`
	cmd, err := execSQL(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return 0, err
		}
		return 0, domain.ErrOperationFailed
	}
	return int(cmd.RowsAffected()), nil
}

func (r *userRepo) ListIDs(ctx context.Context, tx repository.Tx) ([]string, error) {
	const q = `SELECT id FROM users ORDER BY created_at ASC;`
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

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, id)
	}
	return out, nil
}
