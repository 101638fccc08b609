package model

// EventKind is the closed set of webhook/poll event classifications.
type EventKind string

const (
	EventOrderPaid            EventKind = "order-paid"             // payment_order.paid, payment_order_attempt.paid
	EventTransactionCompleted EventKind = "transaction-completed"  // transaction.completed
	EventOrderFailed          EventKind = "order-failed"           // denied/expired/cancelled/failed/time_out/rejected
	EventUnclassified         EventKind = "unclassified"
)

// GatewayEvent is the parsed form of a gateway push or poll event. The raw
// payload hides the order reference in different nested locations depending
// on event type; that search happens once, at parse time, so everything past
// the parser sees a flat variant.
type GatewayEvent struct {
	Kind    EventKind
	RawType string // event_type exactly as received
	EventID string
	Status  string

	// Correlation handles, in lookup priority order. Empty when absent.
	PublicCode     string
	TransactionRef string
	// DocumentRef is the document id recovered from the free-text
	// description ("... - Case #<id>"), the last-resort handle.
	DocumentRef string
	Description string

	Amount    string
	CreatedAt string // gateway timestamp, ISO-8601; kept verbatim
}

// Settles reports whether the event finalizes a payment either way.
func (e GatewayEvent) Settles() bool {
	return e.Kind == EventOrderPaid || e.Kind == EventTransactionCompleted || e.Kind == EventOrderFailed
}

func (e GatewayEvent) Paid() bool {
	return e.Kind == EventOrderPaid || e.Kind == EventTransactionCompleted
}
