package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/domain/ports/adapter"
	"legal-docs-platform/internal/infra/gateway"
	"legal-docs-platform/internal/infra/metrics"
)

// WebhookOutcome classifies what processing a verified event amounted to.
// Everything here answers 200 to the gateway; rejections (bad signature,
// malformed body) are returned as errors instead.
type WebhookOutcome string

const (
	WebhookProcessed        WebhookOutcome = "processed"
	WebhookAlreadyProcessed WebhookOutcome = "already_processed"
	WebhookOrphaned         WebhookOutcome = "orphaned"
	WebhookIgnored          WebhookOutcome = "ignored"
	WebhookInternalError    WebhookOutcome = "internal_error"
)

type WebhookResult struct {
	Outcome   WebhookOutcome
	EventID   string
	PaymentID string
	// Err carries the unexpected internal error behind an internal_error
	// outcome. It is logged and alerted, never surfaced to the gateway.
	Err error
}

// EventDeduper remembers recently processed event ids. Purely an
// optimization: a miss still funnels through the conditional status update,
// which is the real idempotence guard.
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) bool
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration)
}

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookUseCase interface {
	// Process authenticates and applies one pushed event.
	//
	// Classifiable rejections come back as errors: ErrMissingAuthHeaders /
	// ErrInvalidSignature (respond 401), ErrMalformedEventBody (respond
	// 400). Anything else - including unexpected internal failures - comes
	// back as a WebhookResult so the handler can acknowledge with 200.
	Process(ctx context.Context, rawBody []byte, authorization, xDate string) (*WebhookResult, error)
}

type webhookUC struct {
	paymentUC PaymentUseCase
	secret    string
	login     string
	dedupe    EventDeduper
	alerter   adapter.OperatorAlerter
	log       *zerolog.Logger
}

func NewWebhookUseCase(paymentUC PaymentUseCase, secret, login string, dedupe EventDeduper, alerter adapter.OperatorAlerter, logger *zerolog.Logger) *webhookUC {
	l := logger.With().Str("component", "WebhookUC").Logger()
	return &webhookUC{
		paymentUC: paymentUC,
		secret:    secret,
		login:     login,
		dedupe:    dedupe,
		alerter:   alerter,
		log:       &l,
	}
}

const dedupeTTL = 24 * time.Hour

func (u *webhookUC) Process(ctx context.Context, rawBody []byte, authorization, xDate string) (*WebhookResult, error) {
	// Body shape first: a malformed body is a 400 regardless of headers.
	ev, err := gateway.ParseEvent(rawBody)
	if err != nil {
		return nil, err
	}

	signature := gateway.ExtractSignature(authorization)
	if signature == "" || xDate == "" {
		return nil, domain.ErrMissingAuthHeaders
	}
	if !gateway.VerifyWebhookSignature(u.secret, u.login, xDate, rawBody, signature) {
		u.log.Warn().Str("event_id", ev.EventID).Str("event_type", ev.RawType).Msg("webhook signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	start := time.Now()
	res := u.apply(ctx, ev)
	metrics.IncWebhook(string(res.Outcome))
	metrics.ObserveWebhookDuration(string(res.Outcome), time.Since(start).Seconds())
	return res, nil
}

// apply runs after authentication. From here on nothing may turn into a
// non-200: unexpected failures are folded into an internal_error outcome,
// logged with full context and pushed to the operator channel, because a 5xx
// would only trigger a redelivery storm for an error redelivery cannot fix.
func (u *webhookUC) apply(ctx context.Context, ev model.GatewayEvent) *WebhookResult {
	if u.dedupe != nil && ev.EventID != "" && u.dedupe.Seen(ctx, ev.EventID) {
		u.log.Debug().Str("event_id", ev.EventID).Msg("duplicate event id, skipping")
		return &WebhookResult{Outcome: WebhookAlreadyProcessed, EventID: ev.EventID}
	}

	p, err := u.paymentUC.FindByEvent(ctx, ev)
	if errors.Is(err, domain.ErrNotFound) {
		u.log.Warn().
			Str("event_id", ev.EventID).
			Str("event_type", ev.RawType).
			Str("public_code", ev.PublicCode).
			Str("transaction_ref", ev.TransactionRef).
			Msg("orphan event: no matching payment")
		u.alert(ctx, fmt.Sprintf("orphan gateway event %s (%s): no matching payment", ev.EventID, ev.RawType))
		return &WebhookResult{Outcome: WebhookOrphaned, EventID: ev.EventID}
	}
	if err != nil {
		return u.internalError(ctx, ev, "", err)
	}

	// Idempotence: redelivery after the payment settled must not re-run
	// benefits. Double-crediting bonus sessions is the failure mode here.
	if p.Status == model.PaymentStatusSuccess || p.Status == model.PaymentStatusRefunded {
		u.log.Info().Str("payment_id", p.ID).Str("event_id", ev.EventID).Msg("payment already processed, acknowledging")
		u.markSeen(ctx, ev)
		return &WebhookResult{Outcome: WebhookAlreadyProcessed, EventID: ev.EventID, PaymentID: p.ID}
	}

	if !ev.Settles() {
		u.log.Info().
			Str("payment_id", p.ID).
			Str("event_type", ev.RawType).
			Str("status", ev.Status).
			Msg("event requires no action")
		return &WebhookResult{Outcome: WebhookIgnored, EventID: ev.EventID, PaymentID: p.ID}
	}

	won, err := u.paymentUC.ApplyEvent(ctx, p, ev)
	if err != nil {
		return u.internalError(ctx, ev, p.ID, err)
	}
	u.markSeen(ctx, ev)
	if !won {
		return &WebhookResult{Outcome: WebhookAlreadyProcessed, EventID: ev.EventID, PaymentID: p.ID}
	}
	u.log.Info().
		Str("payment_id", p.ID).
		Str("event_id", ev.EventID).
		Str("kind", string(ev.Kind)).
		Msg("webhook event applied")
	return &WebhookResult{Outcome: WebhookProcessed, EventID: ev.EventID, PaymentID: p.ID}
}

func (u *webhookUC) internalError(ctx context.Context, ev model.GatewayEvent, paymentID string, err error) *WebhookResult {
	u.log.Error().Err(err).
		Str("event_id", ev.EventID).
		Str("event_type", ev.RawType).
		Str("payment_id", paymentID).
		Msg("webhook processing failed, acknowledging anyway")
	u.alert(ctx, fmt.Sprintf("webhook processing error for event %s (%s): %v", ev.EventID, ev.RawType, err))
	return &WebhookResult{Outcome: WebhookInternalError, EventID: ev.EventID, PaymentID: paymentID, Err: err}
}

func (u *webhookUC) markSeen(ctx context.Context, ev model.GatewayEvent) {
	if u.dedupe != nil && ev.EventID != "" {
		u.dedupe.MarkSeen(ctx, ev.EventID, dedupeTTL)
	}
}

func (u *webhookUC) alert(ctx context.Context, msg string) {
	if u.alerter != nil {
		u.alerter.Alert(ctx, msg)
	}
}
