package web

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/infra/logging"
)

const maxEvidenceSize = 10 << 20 // 10 MiB

func (s *Server) handleRefundRequest(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r)
	if userID == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	documentID := chi.URLParam(r, "documentID")
	ctx := requestScope(r, documentID)

	if err := r.ParseMultipartForm(maxEvidenceSize); err != nil {
		http.Error(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}
	reason := strings.TrimSpace(r.FormValue("reason"))
	if reason == "" {
		http.Error(w, "A reason is required", http.StatusBadRequest)
		return
	}

	var evidenceRef *string
	if file, header, err := r.FormFile("evidence"); err == nil {
		defer file.Close()
		ref, err := s.storeEvidence(documentID, header.Filename, file)
		if err != nil {
			logging.With(ctx, s.log).Error().Err(err).Msg("evidence store failed")
			http.Error(w, "Could not store evidence file", http.StatusInternalServerError)
			return
		}
		evidenceRef = &ref
	}

	doc, err := s.refundUC.Request(ctx, userID, documentID, reason, evidenceRef)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRefundNotEligible):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, domain.ErrNotFound):
			http.NotFound(w, r)
		case errors.Is(err, domain.ErrInvalidArgument):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			logging.With(ctx, s.log).Error().Err(err).Msg("refund request failed")
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusAccepted, struct {
		DocumentID      string  `json:"document_id"`
		RefundRequested bool    `json:"refund_requested"`
		EvidenceRef     *string `json:"evidence_ref,omitempty"`
	}{doc.ID, doc.RefundRequested, doc.EvidenceRef})
}

// storeEvidence writes the uploaded file under its own random name and
// returns the relative ref persisted with the request.
func (s *Server) storeEvidence(documentID, filename string, src io.Reader) (string, error) {
	if err := os.MkdirAll(s.evidenceDir, 0o755); err != nil {
		return "", err
	}
	ext := filepath.Ext(filename)
	if len(ext) > 10 {
		ext = ""
	}
	name := documentID + "-" + uuid.NewString() + ext
	dst, err := os.Create(filepath.Join(s.evidenceDir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()
	if _, err := io.Copy(dst, io.LimitReader(src, maxEvidenceSize)); err != nil {
		return "", err
	}
	return name, nil
}
