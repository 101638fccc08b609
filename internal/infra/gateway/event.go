package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
)

// webhookEnvelope is the loose shape Vita pushes. The payload is effectively
// untyped JSON; everything interesting hides somewhere under "data".
type webhookEnvelope struct {
	EventType string         `json:"event_type"`
	EventID   string         `json:"event_id"`
	CreatedAt string         `json:"created_at"`
	Data      map[string]any `json:"data"`
}

// ParseEvent maps a raw webhook body into the closed GatewayEvent variant.
// The multi-location search for the order reference happens here, once, so
// business logic never touches the raw payload again.
func ParseEvent(rawBody []byte) (model.GatewayEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		return model.GatewayEvent{}, fmt.Errorf("%w: %v", domain.ErrMalformedEventBody, err)
	}
	return eventFromEnvelope(env), nil
}

func eventFromEnvelope(env webhookEnvelope) model.GatewayEvent {
	data := env.Data

	ev := model.GatewayEvent{
		RawType:     env.EventType,
		EventID:     env.EventID,
		CreatedAt:   env.CreatedAt,
		Status:      str(data, "status"),
		Amount:      str(data, "amount"),
		Description: str(data, "description"),
	}
	if id := str(data, "id"); id != "" {
		ev.TransactionRef = id
	}
	ev.PublicCode = findPublicCode(data)
	ev.DocumentRef = documentRefFromDescription(ev.Description)
	ev.Kind = classify(env.EventType, ev.Status)
	return ev
}

// findPublicCode searches the known nesting spots in priority order:
// data.public_code (payment_order.paid), data.order (transaction.completed),
// data.payment_order.public_code (payment_order_attempt.paid), and
// data.attributes.public_code (alternate serialization).
func findPublicCode(data map[string]any) string {
	if v := str(data, "public_code"); v != "" {
		return v
	}
	if v := str(data, "order"); v != "" {
		return v
	}
	if po, ok := data["payment_order"].(map[string]any); ok {
		if v := str(po, "public_code"); v != "" {
			return v
		}
	}
	if attrs, ok := data["attributes"].(map[string]any); ok {
		if v := str(attrs, "public_code"); v != "" {
			return v
		}
	}
	return ""
}

// documentRefFromDescription recovers the document id from descriptions of
// the form "Tutela payment - Case #<id>".
func documentRefFromDescription(desc string) string {
	const marker = "Case #"
	idx := strings.Index(desc, marker)
	if idx < 0 {
		return ""
	}
	rest := desc[idx+len(marker):]
	if end := strings.IndexAny(rest, " \t\n"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

var failureMarkers = []string{"denied", "failed", "time_out", "cancelled", "rejected", "expired"}

func classify(eventType, status string) model.EventKind {
	switch eventType {
	case "payment_order.paid", "payment_order_attempt.paid":
		return model.EventOrderPaid
	case "transaction.completed":
		return model.EventTransactionCompleted
	}
	for _, m := range failureMarkers {
		if strings.Contains(eventType, m) || status == m {
			return model.EventOrderFailed
		}
	}
	// Looser paid markers, seen on some notification categories.
	if strings.Contains(eventType, "completed") || status == "completed" {
		return model.EventTransactionCompleted
	}
	if strings.Contains(eventType, "paid") || status == "paid" {
		return model.EventOrderPaid
	}
	return model.EventUnclassified
}

func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; references are integral.
		return strings.TrimSuffix(fmt.Sprintf("%.1f", v), ".0")
	default:
		return ""
	}
}
