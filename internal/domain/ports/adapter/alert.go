package adapter

import "context"

// OperatorAlerter pushes notices that need a human follow-up (webhook
// processing errors, orphan events). Best-effort: callers ignore failures.
type OperatorAlerter interface {
	Alert(ctx context.Context, message string)
}
