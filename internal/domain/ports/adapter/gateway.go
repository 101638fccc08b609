package adapter

import (
	"context"

	"legal-docs-platform/internal/domain/model"
)

// PaymentOrder is the provider-agnostic result of creating an order.
type PaymentOrder struct {
	GatewayOrderID string
	PublicCode     string
	CheckoutURL    string
	ExpiresAt      string // gateway timestamp, ISO-8601; kept verbatim
	Status         string
}

// PaymentGateway is the hex port for the external payment provider.
//
// Implementations must fail with domain.ErrGatewayUnavailable (wrapped) on
// timeout or connection error and must not retry internally; retrying is the
// caller's decision.
type PaymentGateway interface {
	Name() string
	// CreateOrder registers a checkout order for unlocking one document.
	CreateOrder(ctx context.Context, amount int64, documentID string, kind model.DocumentKind, description string) (*PaymentOrder, error)
	// ListRecentEvents pulls the business event feed, the reconciliation
	// fallback for missed webhooks.
	ListRecentEvents(ctx context.Context) ([]model.GatewayEvent, error)
}
