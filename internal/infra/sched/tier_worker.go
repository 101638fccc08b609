package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"legal-docs-platform/internal/infra/metrics"
	"legal-docs-platform/internal/usecase"
)

// TierWorker is the batch convergence path for tier state: every interval it
// recomputes every user's tier from the trailing success window, and once a
// day it zeroes the bonus-credit counters. The sweep is idempotent, so it is
// safe to run alongside the request-time recomputes.
type TierWorker struct {
	interval time.Duration
	userUC   usecase.UserUseCase
	log      *zerolog.Logger

	lastBonusReset time.Time
}

func NewTierWorker(interval time.Duration, userUC usecase.UserUseCase, logger *zerolog.Logger) *TierWorker {
	l := logger.With().Str("component", "TierWorker").Logger()
	if interval <= 0 {
		interval = time.Hour
	}
	return &TierWorker{
		interval: interval,
		userUC:   userUC,
		log:      &l,
	}
}

func (w *TierWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting tier worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping tier worker")
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *TierWorker) tick(ctx context.Context) {
	n, err := w.userUC.RecalculateAllTiers(ctx)
	if err != nil {
		metrics.IncTierRecalc("failed")
		w.log.Error().Err(err).Msg("tier recalculation sweep failed")
	} else {
		metrics.IncTierRecalc("completed")
		if n > 0 {
			w.log.Info().Int("updated", n).Msg("tier recalculation sweep done")
		}
	}

	if w.shouldResetBonuses(time.Now()) {
		reset, err := w.userUC.ResetDailyBonuses(ctx)
		if err != nil {
			w.log.Error().Err(err).Msg("daily bonus reset failed")
			return
		}
		w.lastBonusReset = time.Now()
		w.log.Info().Int("users", reset).Msg("daily bonus credits reset")
	}
}

// shouldResetBonuses fires on the first tick of each calendar day.
func (w *TierWorker) shouldResetBonuses(now time.Time) bool {
	if w.lastBonusReset.IsZero() {
		return true
	}
	y1, m1, d1 := w.lastBonusReset.Date()
	y2, m2, d2 := now.Date()
	return y1 != y2 || m1 != m2 || d1 != d2
}
