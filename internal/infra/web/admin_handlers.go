package web

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/infra/logging"
)

// handleAdminLogin mints a session for a user whose admin flag is set.
// Primary credential verification happens in the main application; this
// subsystem only issues its own short-lived session from the verified id.
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	user, err := s.userUC.FindByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if !user.IsAdmin {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	token, err := s.auth.Mint(w, user.ID, user.Email)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("session mint failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{token})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePendingRefunds(w http.ResponseWriter, r *http.Request) {
	docs, err := s.refundUC.ListPending(r.Context())
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Msg("pending refund list failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type pendingRefund struct {
		DocumentID  string     `json:"document_id"`
		UserID      string     `json:"user_id"`
		Kind        string     `json:"kind"`
		RequestedAt *time.Time `json:"requested_at"`
		Reason      *string    `json:"reason"`
		EvidenceRef *string    `json:"evidence_ref,omitempty"`
		Attempts    int        `json:"attempts"`
	}
	out := make([]pendingRefund, 0, len(docs))
	for _, d := range docs {
		out = append(out, pendingRefund{
			DocumentID:  d.ID,
			UserID:      d.UserID,
			Kind:        string(d.Kind),
			RequestedAt: d.RefundRequestedAt,
			Reason:      d.RejectionReason,
			EvidenceRef: d.EvidenceRef,
			Attempts:    len(d.RefundHistory) + 1,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Data []pendingRefund `json:"data"`
	}{out})
}

type refundDecisionRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) handleRefundDecision(approve bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := adminClaimsFrom(r.Context())
		if claims == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		documentID := chi.URLParam(r, "documentID")

		// An empty body means no comment; a present but broken one is a
		// client error.
		var req refundDecisionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		actor := &model.User{ID: claims.Subject, Email: claims.Email, IsAdmin: true}
		sourceIP, _, _ := net.SplitHostPort(r.RemoteAddr)
		result, err := s.refundUC.Decide(r.Context(), actor, documentID, approve, req.Comment, sourceIP)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrNoPendingRefund):
				http.Error(w, "No pending refund request for this document", http.StatusNotFound)
			case errors.Is(err, domain.ErrRefundNotEligible):
				http.Error(w, err.Error(), http.StatusBadRequest)
			case errors.Is(err, domain.ErrNotFound):
				http.NotFound(w, r)
			default:
				logging.With(r.Context(), s.log).Error().Err(err).Str("document_id", documentID).Msg("refund decision failed")
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, struct {
			DocumentID string    `json:"document_id"`
			PaymentID  string    `json:"payment_id"`
			Approved   bool      `json:"approved"`
			DecidedAt  time.Time `json:"decided_at"`
		}{result.DocumentID, result.PaymentID, result.Approved, result.DecidedAt})
	}
}

// handleAuditTrail lists the audit entries recorded against one entity,
// newest first.
func (s *Server) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	entityID := chi.URLParam(r, "entityID")

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := s.audit.ListByEntity(r.Context(), entity, entityID, limit)
	if err != nil {
		logging.With(r.Context(), s.log).Error().Err(err).Str("entity", entity).Msg("audit list failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	type auditEntry struct {
		ID         string         `json:"id"`
		ActorEmail string         `json:"actor_email"`
		Action     string         `json:"action"`
		Detail     map[string]any `json:"detail,omitempty"`
		SourceIP   string         `json:"source_ip,omitempty"`
		CreatedAt  time.Time      `json:"created_at"`
	}
	out := make([]auditEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, auditEntry{
			ID:         e.ID,
			ActorEmail: e.ActorEmail,
			Action:     string(e.Action),
			Detail:     e.Detail,
			SourceIP:   e.SourceIP,
			CreatedAt:  e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Data []auditEntry `json:"data"`
	}{out})
}
