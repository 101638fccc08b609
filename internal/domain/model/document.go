package model

import "time"

type DocumentKind string

const (
	DocumentKindTutela   DocumentKind = "TUTELA"
	DocumentKindPeticion DocumentKind = "DERECHO_PETICION"
)

type RefundDecision string

const (
	RefundDecisionApproved RefundDecision = "approved"
	RefundDecisionRejected RefundDecision = "rejected"
)

// RefundRecord is one entry in a document's append-only refund history.
// Records are never edited or removed once appended.
type RefundRecord struct {
	Decision     RefundDecision `json:"decision"`
	RequestedAt  *time.Time     `json:"requested_at"`
	UserMotive   string         `json:"user_motive"`
	EvidenceRef  *string        `json:"evidence_ref"`
	AdminComment string         `json:"admin_comment"`
	DecidedAt    time.Time      `json:"decided_at"`
}

// Document is the payable entity: content generation lives elsewhere, this
// core only consults/mutates the unlock and refund sub-state.
type Document struct {
	ID     string // UUID
	UserID string // UUID
	Kind   DocumentKind

	Unlocked   bool
	UnlockedAt *time.Time

	RefundRequested   bool
	RefundRequestedAt *time.Time
	RejectionReason   *string // user's motive for the current/last request
	EvidenceRef       *string
	AdminComment      *string // most recent admin decision comment
	RefundHistory     []RefundRecord

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanRequestRefund reports whether a new refund request is admissible:
// the document must be unlocked and no request may be in flight.
// The SUCCESS-payment check happens in the use case, which owns payments.
func (d *Document) CanRequestRefund() bool {
	return d.Unlocked && !d.RefundRequested
}
