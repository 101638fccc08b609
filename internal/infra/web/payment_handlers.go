package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/infra/logging"
)

// userIDFrom reads the id of the already-authenticated caller. Session
// handling lives upstream; this subsystem trusts the forwarded identity.
func userIDFrom(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// requestScope tags the context with the caller and document ids so every
// log line downstream carries them.
func requestScope(r *http.Request, documentID string) context.Context {
	ctx := r.Context()
	if uid := userIDFrom(r); uid != "" {
		ctx = logging.WithUserID(ctx, uid)
	}
	if documentID != "" {
		ctx = logging.WithDocumentID(ctx, documentID)
	}
	return ctx
}

type paymentResponse struct {
	PaymentID   string     `json:"payment_id"`
	DocumentID  string     `json:"document_id"`
	Status      string     `json:"status"`
	Amount      int64      `json:"amount"`
	Method      string     `json:"method"`
	PublicCode  string     `json:"public_code,omitempty"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

func paymentToResponse(p *model.Payment, checkoutURL string) paymentResponse {
	return paymentResponse{
		PaymentID:   p.ID,
		DocumentID:  p.DocumentID,
		Status:      string(p.Status),
		Amount:      p.Amount,
		Method:      string(p.Method),
		PublicCode:  p.PublicCode,
		CheckoutURL: checkoutURL,
		CreatedAt:   p.CreatedAt,
		PaidAt:      p.PaidAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handlePaymentStart(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	documentID := chi.URLParam(r, "documentID")
	ctx := requestScope(r, documentID)

	p, checkoutURL, err := s.paymentUC.Start(ctx, userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicatePendingPayment):
			http.Error(w, "A payment for this document is already in progress", http.StatusBadRequest)
		case errors.Is(err, domain.ErrGatewayUnavailable):
			http.Error(w, "Payment provider is unavailable, try again later", http.StatusBadGateway)
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("payment start failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, paymentToResponse(p, checkoutURL))
}

func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	documentID := chi.URLParam(r, "documentID")
	ctx := requestScope(r, documentID)

	info, err := s.paymentUC.Status(ctx, documentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logging.With(ctx, s.log).Error().Err(err).Msg("payment status failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		PaymentID  string `json:"payment_id"`
		Status     string `json:"status"`
		Unlocked   bool   `json:"unlocked"`
		Reconciled bool   `json:"reconciled"`
	}{info.PaymentID, string(info.Status), info.Unlocked, info.Reconciled})
}

func (s *Server) handlePaymentCancel(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	documentID := chi.URLParam(r, "documentID")
	ctx := requestScope(r, documentID)

	p, err := s.paymentUC.Cancel(ctx, userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "No pending payment to cancel", http.StatusNotFound)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("payment cancel failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, paymentToResponse(p, ""))
}

// handlePaymentSimulate settles a payment without the gateway. Registered
// only in dev mode.
func (s *Server) handlePaymentSimulate(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	documentID := chi.URLParam(r, "documentID")
	ctx := requestScope(r, documentID)

	p, err := s.paymentUC.StartSimulated(ctx, userID, documentID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicatePendingPayment):
			http.Error(w, "A payment for this document is already in progress", http.StatusBadRequest)
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("simulated payment failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, paymentToResponse(p, ""))
}

func (s *Server) handlePaymentHistory(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ctx := requestScope(r, "")
	payments, err := s.paymentUC.ListByUser(ctx, userID)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("payment history failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, paymentToResponse(p, ""))
	}
	writeJSON(w, http.StatusOK, struct {
		Data []paymentResponse `json:"data"`
	}{out})
}
