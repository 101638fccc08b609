package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/repository"
)

// tierWindow is the trailing window of successful payments that feeds the
// tier function.
const tierWindow = 7 * 24 * time.Hour

// Compile-time check
var _ UserUseCase = (*userUC)(nil)

type UserUseCase interface {
	// RecalculateTier recomputes one user's tier from the trailing-window
	// success count and persists it. Safe to call inside a transaction (tx
	// may be nil) and idempotent: recomputing twice yields the same tier.
	RecalculateTier(ctx context.Context, tx repository.Tx, userID string) (tier int, weeklyPayments int, err error)
	// RecalculateAllTiers is the batch path every user's counters converge
	// to regardless of whether the request-time recompute ran.
	RecalculateAllTiers(ctx context.Context) (int, error)
	// ResetDailyBonuses zeroes the bonus-credit counters at day rollover.
	ResetDailyBonuses(ctx context.Context) (int, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type userUC struct {
	users    repository.UserRepository
	payments repository.PaymentRepository
	log      *zerolog.Logger
}

func NewUserUseCase(users repository.UserRepository, payments repository.PaymentRepository, logger *zerolog.Logger) *userUC {
	l := logger.With().Str("component", "UserUC").Logger()
	return &userUC{users: users, payments: payments, log: &l}
}

func (u *userUC) RecalculateTier(ctx context.Context, tx repository.Tx, userID string) (int, int, error) {
	since := time.Now().Add(-tierWindow)
	count, err := u.payments.CountRecentSuccessesByUser(ctx, tx, userID, since)
	if err != nil {
		return 0, 0, err
	}
	tier := model.TierFor(count)
	if err := u.users.UpdateTier(ctx, tx, userID, tier, count, time.Now()); err != nil {
		return 0, 0, err
	}
	return tier, count, nil
}

func (u *userUC) RecalculateAllTiers(ctx context.Context) (int, error) {
	ids, err := u.users.ListIDs(ctx, nil)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, id := range ids {
		if _, _, err := u.RecalculateTier(ctx, nil, id); err != nil {
			u.log.Error().Err(err).Str("user_id", id).Msg("tier recalc failed")
			continue
		}
		n++
	}
	return n, nil
}

func (u *userUC) ResetDailyBonuses(ctx context.Context) (int, error) {
	return u.users.ResetBonusCredits(ctx, nil)
}

func (u *userUC) FindByID(ctx context.Context, id string) (*model.User, error) {
	return u.users.FindByID(ctx, nil, id)
}
