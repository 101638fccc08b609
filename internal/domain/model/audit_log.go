package model

import "time"

type AuditAction string

const (
	AuditApproveRefund AuditAction = "approve-refund"
	AuditRejectRefund  AuditAction = "reject-refund"
	AuditProcessRefund AuditAction = "process-refund"
)

// AuditLogEntry is an immutable record of one privileged admin action.
// Entries are only ever appended; there is no update or delete path.
type AuditLogEntry struct {
	ID         string // ULID, sortable by creation time
	ActorID    string
	ActorEmail string
	Action     AuditAction
	Entity     string // "document", "payment", ...
	EntityID   string
	Detail     map[string]any
	SourceIP   string
	CreatedAt  time.Time
}
