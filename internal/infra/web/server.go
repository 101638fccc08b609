package web

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"legal-docs-platform/internal/usecase"
)

type ctxKey string

const ctxAdminClaims ctxKey = "admin_claims"

type Server struct {
	paymentUC usecase.PaymentUseCase
	refundUC  usecase.RefundUseCase
	webhookUC usecase.WebhookUseCase
	userUC    usecase.UserUseCase
	audit     usecase.AuditUseCase

	auth        *AuthManager
	evidenceDir string
	dev         bool
	log         *zerolog.Logger
}

func NewServer(
	paymentUC usecase.PaymentUseCase,
	refundUC usecase.RefundUseCase,
	webhookUC usecase.WebhookUseCase,
	userUC usecase.UserUseCase,
	audit usecase.AuditUseCase,
	auth *AuthManager,
	evidenceDir string,
	dev bool,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		paymentUC:   paymentUC,
		refundUC:    refundUC,
		webhookUC:   webhookUC,
		userUC:      userUC,
		audit:       audit,
		auth:        auth,
		evidenceDir: evidenceDir,
		dev:         dev,
		log:         &l,
	}
}

// Router builds the full route tree.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(traceMiddleware)
	r.Use(requestLogMiddleware(s.log))
	r.Use(recoverMiddleware(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// The gateway probes the webhook URL with a GET before enabling it.
	r.Get("/webhooks/vita", s.handleWebhookLiveness)
	r.Post("/webhooks/vita", s.handleWebhook)

	r.Route("/documents/{documentID}", func(r chi.Router) {
		r.Post("/payment/start", s.handlePaymentStart)
		r.Get("/payment/status", s.handlePaymentStatus)
		r.Post("/payment/cancel", s.handlePaymentCancel)
		if s.dev {
			r.Post("/payment/simulate", s.handlePaymentSimulate)
		}
		r.Post("/refund", s.handleRefundRequest)
	})

	r.Get("/me/payments", s.handlePaymentHistory)

	r.Post("/admin/login", s.handleAdminLogin)
	r.Post("/admin/logout", s.handleAdminLogout)
	r.Route("/admin", func(r chi.Router) {
		r.Use(s.adminMiddleware)
		r.Route("/refunds", func(r chi.Router) {
			r.Get("/pending", s.handlePendingRefunds)
			r.Post("/{documentID}/approve", s.handleRefundDecision(true))
			r.Post("/{documentID}/reject", s.handleRefundDecision(false))
		})
		r.Get("/audit/{entity}/{entityID}", s.handleAuditTrail)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// adminMiddleware validates the admin session and re-checks the admin flag
// against the user store, so a revoked admin loses access before the token
// expires.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		user, err := s.userUC.FindByID(r.Context(), claims.Subject)
		if err != nil || !user.IsAdmin {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAdminClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func adminClaimsFrom(ctx context.Context) *AdminClaims {
	claims, _ := ctx.Value(ctxAdminClaims).(*AdminClaims)
	return claims
}
