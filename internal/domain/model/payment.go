package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"  // order created at gateway; awaiting confirmation
	PaymentStatusSuccess  PaymentStatus = "SUCCESS"  // confirmed via webhook or reconciliation poll
	PaymentStatusFailed   PaymentStatus = "FAILED"   // denied/expired/cancelled at gateway, or user cancel
	PaymentStatusRefunded PaymentStatus = "REFUNDED" // admin-approved refund of a successful payment
)

type PaymentMethod string

const (
	PaymentMethodVita      PaymentMethod = "VITA"
	PaymentMethodSimulated PaymentMethod = "SIMULATED"
)

// Payment records one attempt to pay for unlocking one document.
type Payment struct {
	ID         string // UUID
	UserID     string // UUID of the owning user
	DocumentID string // UUID of the document this payment unlocks

	Amount int64 // whole COP, no minor units
	Method PaymentMethod
	Status PaymentStatus

	// External gateway references. TransactionRef stays nil until the
	// gateway reports a settled transaction.
	GatewayOrderID string
	PublicCode     string
	TransactionRef *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	PaidAt     *time.Time
	RefundedAt *time.Time

	AdminNote    *string
	RefundReason *string
}

// CanTransitionTo enforces the forward-only status machine:
// PENDING -> {SUCCESS, FAILED}, SUCCESS -> REFUNDED. Nothing re-enters
// PENDING and FAILED is terminal.
func (p *Payment) CanTransitionTo(next PaymentStatus) bool {
	switch p.Status {
	case PaymentStatusPending:
		return next == PaymentStatusSuccess || next == PaymentStatusFailed
	case PaymentStatusSuccess:
		return next == PaymentStatusRefunded
	default:
		return false
	}
}

func (p *Payment) IsFinal() bool {
	return p.Status == PaymentStatusFailed || p.Status == PaymentStatusRefunded
}
