package web

import (
	"errors"
	"io"
	"net/http"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/infra/logging"
)

const maxWebhookBody = 1 << 20 // 1 MiB

func (s *Server) handleWebhookLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// handleWebhook maps processing results to the status codes the gateway
// acts on: 401 re-signs nothing, 400 marks the delivery bad, everything
// else is a 200 acknowledgment so the gateway stops redelivering.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	res, err := s.webhookUC.Process(r.Context(), body, r.Header.Get("Authorization"), r.Header.Get("X-Date"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingAuthHeaders), errors.Is(err, domain.ErrInvalidSignature):
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		case errors.Is(err, domain.ErrMalformedEventBody):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			logging.With(r.Context(), s.log).Error().Err(err).Msg("unexpected webhook rejection")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"` + string(res.Outcome) + `"}`))
}
