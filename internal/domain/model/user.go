package model

import "time"

// Tier levels derived from successful payments in the trailing 7 days.
const (
	TierFree   = 0
	TierBronze = 1
	TierSilver = 2
	TierGold   = 3
)

// BonusCreditsPerPayment is granted on every transition into SUCCESS.
const BonusCreditsPerPayment = 2

type User struct {
	ID    string // UUID
	Email string

	Tier              int
	WeeklyPayments    int // successful payments in the trailing 7 days (denormalized)
	TierRecalcAt      *time.Time
	BonusCreditsToday int

	IsAdmin bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TierFor maps a trailing-7-day successful-payment count to a tier level.
// Pure function: the request-time recompute and the batch job must agree.
func TierFor(weeklyPayments int) int {
	switch {
	case weeklyPayments <= 0:
		return TierFree
	case weeklyPayments == 1:
		return TierBronze
	case weeklyPayments == 2:
		return TierSilver
	default:
		return TierGold
	}
}
