//go:build !integration

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"legal-docs-platform/internal/domain"
	"legal-docs-platform/internal/domain/model"
	"legal-docs-platform/internal/usecase"
)

type testServer struct {
	*Server
	payments *mockPaymentUC
	refunds  *mockRefundUC
	webhooks *mockWebhookUC
	users    *mockUserUC
	audit    *mockAuditUC
}

func newTestServer(t *testing.T, dev bool) *testServer {
	t.Helper()
	ts := &testServer{
		payments: &mockPaymentUC{},
		refunds:  &mockRefundUC{},
		webhooks: &mockWebhookUC{},
		users:    &mockUserUC{users: map[string]*model.User{}},
		audit:    &mockAuditUC{},
	}
	auth := NewAuthManager("test-admin-jwt-secret-please-change", false, "", time.Minute)
	ts.Server = NewServer(ts.payments, ts.refunds, ts.webhooks, ts.users, ts.audit, auth, t.TempDir(), dev, newTestLogger())
	return ts
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	ts.Router().ServeHTTP(rr, req)
	return rr
}

func TestWebhookEndpoint(t *testing.T) {
	ts := newTestServer(t, false)

	t.Run("GET probe answers 200", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/webhooks/vita", nil)
		if rr := ts.do(req); rr.Code != http.StatusOK {
			t.Errorf("got %d want %d", rr.Code, http.StatusOK)
		}
	})

	t.Run("bad signature -> 401", func(t *testing.T) {
		ts.webhooks.ProcessFunc = func(ctx context.Context, body []byte, authorization, xDate string) (*usecase.WebhookResult, error) {
			return nil, domain.ErrInvalidSignature
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/vita", bytes.NewBufferString(`{}`))
		if rr := ts.do(req); rr.Code != http.StatusUnauthorized {
			t.Errorf("got %d want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("malformed body -> 400", func(t *testing.T) {
		ts.webhooks.ProcessFunc = func(ctx context.Context, body []byte, authorization, xDate string) (*usecase.WebhookResult, error) {
			return nil, domain.ErrMalformedEventBody
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/vita", bytes.NewBufferString(`not json`))
		if rr := ts.do(req); rr.Code != http.StatusBadRequest {
			t.Errorf("got %d want %d", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("processed -> 200 with outcome", func(t *testing.T) {
		var gotAuth, gotDate string
		ts.webhooks.ProcessFunc = func(ctx context.Context, body []byte, authorization, xDate string) (*usecase.WebhookResult, error) {
			gotAuth, gotDate = authorization, xDate
			return &usecase.WebhookResult{Outcome: usecase.WebhookProcessed}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/vita", bytes.NewBufferString(`{}`))
		req.Header.Set("Authorization", "V2-HMAC-SHA256, Signature: abc")
		req.Header.Set("X-Date", "2026-03-14T09:26:53.589Z")
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d want %d", rr.Code, http.StatusOK)
		}
		if rr.Body.String() != `{"status":"processed"}` {
			t.Errorf("unexpected body %q", rr.Body.String())
		}
		if gotAuth == "" || gotDate == "" {
			t.Error("auth headers not forwarded")
		}
	})

	t.Run("internal error outcome still acknowledges with 200", func(t *testing.T) {
		ts.webhooks.ProcessFunc = func(ctx context.Context, body []byte, authorization, xDate string) (*usecase.WebhookResult, error) {
			return &usecase.WebhookResult{Outcome: usecase.WebhookInternalError}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/vita", bytes.NewBufferString(`{}`))
		if rr := ts.do(req); rr.Code != http.StatusOK {
			t.Errorf("got %d want %d", rr.Code, http.StatusOK)
		}
	})
}

func TestPaymentEndpoints(t *testing.T) {
	t.Run("start without identity -> 401", func(t *testing.T) {
		ts := newTestServer(t, false)
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/start", nil)
		if rr := ts.do(req); rr.Code != http.StatusUnauthorized {
			t.Errorf("got %d want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("start -> 201 with checkout url", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.StartFunc = func(ctx context.Context, userID, documentID string) (*model.Payment, string, error) {
			if userID != "user-1" || documentID != "doc-1" {
				t.Errorf("unexpected args %s %s", userID, documentID)
			}
			return &model.Payment{ID: "pay-1", DocumentID: documentID, Status: model.PaymentStatusPending, Amount: 39000, PublicCode: "PC-1"}, "https://checkout.example/PC-1", nil
		}
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/start", nil)
		req.Header.Set("X-User-ID", "user-1")
		rr := ts.do(req)
		if rr.Code != http.StatusCreated {
			t.Fatalf("got %d want %d", rr.Code, http.StatusCreated)
		}
		var resp paymentResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.CheckoutURL != "https://checkout.example/PC-1" || resp.Status != "PENDING" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("start with one already pending -> 400", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.StartFunc = func(ctx context.Context, userID, documentID string) (*model.Payment, string, error) {
			return nil, "", domain.ErrDuplicatePendingPayment
		}
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/start", nil)
		req.Header.Set("X-User-ID", "user-1")
		if rr := ts.do(req); rr.Code != http.StatusBadRequest {
			t.Errorf("got %d want %d", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("start with gateway down -> 502", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.StartFunc = func(ctx context.Context, userID, documentID string) (*model.Payment, string, error) {
			return nil, "", domain.ErrGatewayUnavailable
		}
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/start", nil)
		req.Header.Set("X-User-ID", "user-1")
		if rr := ts.do(req); rr.Code != http.StatusBadGateway {
			t.Errorf("got %d want %d", rr.Code, http.StatusBadGateway)
		}
	})

	t.Run("status -> 200", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.StatusFunc = func(ctx context.Context, documentID string) (*usecase.PaymentStatusInfo, error) {
			return &usecase.PaymentStatusInfo{PaymentID: "pay-1", Status: model.PaymentStatusSuccess, Unlocked: true, Reconciled: true}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/documents/doc-1/payment/status", nil)
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d want %d", rr.Code, http.StatusOK)
		}
		var resp struct {
			Status     string `json:"status"`
			Unlocked   bool   `json:"unlocked"`
			Reconciled bool   `json:"reconciled"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Status != "SUCCESS" || !resp.Unlocked || !resp.Reconciled {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("status unknown document -> 404", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.StatusFunc = func(ctx context.Context, documentID string) (*usecase.PaymentStatusInfo, error) {
			return nil, domain.ErrNotFound
		}
		req := httptest.NewRequest(http.MethodGet, "/documents/nope/payment/status", nil)
		if rr := ts.do(req); rr.Code != http.StatusNotFound {
			t.Errorf("got %d want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("cancel with nothing pending -> 404", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.CancelFunc = func(ctx context.Context, userID, documentID string) (*model.Payment, error) {
			return nil, domain.ErrNotFound
		}
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/cancel", nil)
		req.Header.Set("X-User-ID", "user-1")
		if rr := ts.do(req); rr.Code != http.StatusNotFound {
			t.Errorf("got %d want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("simulate is absent outside dev mode", func(t *testing.T) {
		ts := newTestServer(t, false)
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/simulate", nil)
		req.Header.Set("X-User-ID", "user-1")
		if rr := ts.do(req); rr.Code != http.StatusNotFound && rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("got %d, want the route to not exist", rr.Code)
		}
	})

	t.Run("simulate -> 201 in dev mode", func(t *testing.T) {
		ts := newTestServer(t, true)
		ts.payments.SimulateFunc = func(ctx context.Context, userID, documentID string) (*model.Payment, error) {
			return &model.Payment{ID: "pay-1", DocumentID: documentID, Status: model.PaymentStatusSuccess, Method: model.PaymentMethodSimulated}, nil
		}
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/payment/simulate", nil)
		req.Header.Set("X-User-ID", "user-1")
		if rr := ts.do(req); rr.Code != http.StatusCreated {
			t.Errorf("got %d want %d", rr.Code, http.StatusCreated)
		}
	})

	t.Run("history -> 200", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.payments.ListByUserFunc = func(ctx context.Context, userID string) ([]*model.Payment, error) {
			return []*model.Payment{{ID: "pay-1"}, {ID: "pay-2"}}, nil
		}
		req := httptest.NewRequest(http.MethodGet, "/me/payments", nil)
		req.Header.Set("X-User-ID", "user-1")
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d want %d", rr.Code, http.StatusOK)
		}
		var resp struct {
			Data []paymentResponse `json:"data"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Data) != 2 {
			t.Errorf("expected 2 payments, got %d", len(resp.Data))
		}
	})
}

func multipartBody(t *testing.T, fields map[string]string, fileField, fileName string, fileContent []byte) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if fileField != "" {
		fw, err := mw.CreateFormFile(fileField, fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(fileContent)
	}
	mw.Close()
	return buf, mw.FormDataContentType()
}

func TestRefundRequestEndpoint(t *testing.T) {
	t.Run("accepts a reason with an evidence file", func(t *testing.T) {
		ts := newTestServer(t, false)
		var gotReason string
		var gotEvidence *string
		ts.refunds.RequestFunc = func(ctx context.Context, userID, documentID, reason string, evidenceRef *string) (*model.Document, error) {
			gotReason, gotEvidence = reason, evidenceRef
			return &model.Document{ID: documentID, RefundRequested: true, EvidenceRef: evidenceRef}, nil
		}

		body, contentType := multipartBody(t, map[string]string{"reason": "court rejected the filing"}, "evidence", "rejection.pdf", []byte("%PDF-1.4"))
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/refund", body)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("Content-Type", contentType)

		rr := ts.do(req)
		if rr.Code != http.StatusAccepted {
			t.Fatalf("got %d want %d: %s", rr.Code, http.StatusAccepted, rr.Body.String())
		}
		if gotReason != "court rejected the filing" {
			t.Errorf("unexpected reason %q", gotReason)
		}
		if gotEvidence == nil || *gotEvidence == "" {
			t.Error("evidence ref not recorded")
		}
	})

	t.Run("missing reason -> 400", func(t *testing.T) {
		ts := newTestServer(t, false)
		body, contentType := multipartBody(t, map[string]string{"reason": "  "}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/refund", body)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("Content-Type", contentType)
		if rr := ts.do(req); rr.Code != http.StatusBadRequest {
			t.Errorf("got %d want %d", rr.Code, http.StatusBadRequest)
		}
	})

	t.Run("ineligible document -> 400", func(t *testing.T) {
		ts := newTestServer(t, false)
		ts.refunds.RequestFunc = func(ctx context.Context, userID, documentID, reason string, evidenceRef *string) (*model.Document, error) {
			return nil, domain.ErrRefundNotEligible
		}
		body, contentType := multipartBody(t, map[string]string{"reason": "motive"}, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/documents/doc-1/refund", body)
		req.Header.Set("X-User-ID", "user-1")
		req.Header.Set("Content-Type", contentType)
		if rr := ts.do(req); rr.Code != http.StatusBadRequest {
			t.Errorf("got %d want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestAdminFlow(t *testing.T) {
	newAdminServer := func(t *testing.T) *testServer {
		ts := newTestServer(t, false)
		ts.users.users["admin-1"] = &model.User{ID: "admin-1", Email: "admin@example.com", IsAdmin: true}
		ts.users.users["user-1"] = &model.User{ID: "user-1", Email: "user@example.com"}
		return ts
	}

	login := func(t *testing.T, ts *testServer) string {
		t.Helper()
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		req.Header.Set("X-User-ID", "admin-1")
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("login failed: %d %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Token string `json:"token"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Token == "" {
			t.Fatal("no token in login response")
		}
		return resp.Token
	}

	t.Run("login without identity -> 401", func(t *testing.T) {
		ts := newAdminServer(t)
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		if rr := ts.do(req); rr.Code != http.StatusUnauthorized {
			t.Errorf("got %d want %d", rr.Code, http.StatusUnauthorized)
		}
	})

	t.Run("login as non-admin -> 403", func(t *testing.T) {
		ts := newAdminServer(t)
		req := httptest.NewRequest(http.MethodPost, "/admin/login", nil)
		req.Header.Set("X-User-ID", "user-1")
		if rr := ts.do(req); rr.Code != http.StatusForbidden {
			t.Errorf("got %d want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("protected route without session -> 403", func(t *testing.T) {
		ts := newAdminServer(t)
		req := httptest.NewRequest(http.MethodGet, "/admin/refunds/pending", nil)
		if rr := ts.do(req); rr.Code != http.StatusForbidden {
			t.Errorf("got %d want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("session of a revoked admin -> 403", func(t *testing.T) {
		ts := newAdminServer(t)
		token := login(t, ts)
		ts.users.users["admin-1"].IsAdmin = false

		req := httptest.NewRequest(http.MethodGet, "/admin/refunds/pending", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		if rr := ts.do(req); rr.Code != http.StatusForbidden {
			t.Errorf("got %d want %d", rr.Code, http.StatusForbidden)
		}
	})

	t.Run("pending refunds with a valid session -> 200", func(t *testing.T) {
		ts := newAdminServer(t)
		requestedAt := time.Now()
		reason := "court rejected the filing"
		ts.refunds.ListPendingFunc = func(ctx context.Context) ([]*model.Document, error) {
			return []*model.Document{{
				ID:                "doc-1",
				UserID:            "user-1",
				Kind:              model.DocumentKindTutela,
				RefundRequested:   true,
				RefundRequestedAt: &requestedAt,
				RejectionReason:   &reason,
				RefundHistory:     []model.RefundRecord{{Decision: model.RefundDecisionRejected}},
			}}, nil
		}
		token := login(t, ts)

		req := httptest.NewRequest(http.MethodGet, "/admin/refunds/pending", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d want %d", rr.Code, http.StatusOK)
		}
		var resp struct {
			Data []struct {
				DocumentID string `json:"document_id"`
				Attempts   int    `json:"attempts"`
			} `json:"data"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Data) != 1 || resp.Data[0].Attempts != 2 {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("approve decision carries the actor and comment", func(t *testing.T) {
		ts := newAdminServer(t)
		var gotActor *model.User
		var gotComment string
		ts.refunds.DecideFunc = func(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*usecase.RefundDecisionResult, error) {
			gotActor, gotComment = actor, adminComment
			if !approve {
				t.Error("expected an approval")
			}
			return &usecase.RefundDecisionResult{Approved: true, DocumentID: documentID, PaymentID: "pay-1", DecidedAt: time.Now()}, nil
		}
		token := login(t, ts)

		body := bytes.NewBufferString(`{"comment":"verified the rejection"}`)
		req := httptest.NewRequest(http.MethodPost, "/admin/refunds/doc-1/approve", body)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d want %d: %s", rr.Code, http.StatusOK, rr.Body.String())
		}
		if gotActor == nil || gotActor.ID != "admin-1" {
			t.Errorf("unexpected actor %+v", gotActor)
		}
		if gotComment != "verified the rejection" {
			t.Errorf("unexpected comment %q", gotComment)
		}
	})

	t.Run("reject with an empty body is allowed", func(t *testing.T) {
		ts := newAdminServer(t)
		ts.refunds.DecideFunc = func(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*usecase.RefundDecisionResult, error) {
			if approve {
				t.Error("expected a rejection")
			}
			return &usecase.RefundDecisionResult{Approved: false, DocumentID: documentID, PaymentID: "pay-1", DecidedAt: time.Now()}, nil
		}
		token := login(t, ts)

		req := httptest.NewRequest(http.MethodPost, "/admin/refunds/doc-1/reject", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		if rr := ts.do(req); rr.Code != http.StatusOK {
			t.Errorf("got %d want %d", rr.Code, http.StatusOK)
		}
	})

	t.Run("decision with no pending request -> 404", func(t *testing.T) {
		ts := newAdminServer(t)
		ts.refunds.DecideFunc = func(ctx context.Context, actor *model.User, documentID string, approve bool, adminComment, sourceIP string) (*usecase.RefundDecisionResult, error) {
			return nil, domain.ErrNoPendingRefund
		}
		token := login(t, ts)

		req := httptest.NewRequest(http.MethodPost, "/admin/refunds/doc-1/approve", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		if rr := ts.do(req); rr.Code != http.StatusNotFound {
			t.Errorf("got %d want %d", rr.Code, http.StatusNotFound)
		}
	})

	t.Run("logout expires the session cookie", func(t *testing.T) {
		ts := newAdminServer(t)
		req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
		rr := ts.do(req)
		if rr.Code != http.StatusNoContent {
			t.Fatalf("got %d want %d", rr.Code, http.StatusNoContent)
		}
		var cleared bool
		for _, c := range rr.Result().Cookies() {
			if c.Name == "admin_session" && c.MaxAge < 0 {
				cleared = true
			}
		}
		if !cleared {
			t.Error("session cookie not cleared")
		}
	})

	t.Run("audit trail lists entries for an entity", func(t *testing.T) {
		ts := newAdminServer(t)
		ts.audit.Entries = []*model.AuditLogEntry{
			{ID: "01A", Entity: "document", EntityID: "doc-1", Action: model.AuditApproveRefund, ActorEmail: "admin@example.com"},
			{ID: "01B", Entity: "document", EntityID: "doc-2", Action: model.AuditRejectRefund},
		}
		token := login(t, ts)

		req := httptest.NewRequest(http.MethodGet, "/admin/audit/document/doc-1", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := ts.do(req)
		if rr.Code != http.StatusOK {
			t.Fatalf("got %d want %d", rr.Code, http.StatusOK)
		}
		var resp struct {
			Data []struct {
				ID     string `json:"id"`
				Action string `json:"action"`
			} `json:"data"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.Data) != 1 || resp.Data[0].Action != "approve-refund" {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("audit trail rejects an out-of-range limit", func(t *testing.T) {
		ts := newAdminServer(t)
		token := login(t, ts)

		req := httptest.NewRequest(http.MethodGet, "/admin/audit/document/doc-1?limit=0", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		if rr := ts.do(req); rr.Code != http.StatusBadRequest {
			t.Errorf("got %d want %d", rr.Code, http.StatusBadRequest)
		}
	})
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := ts.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("got %d want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("unexpected body %q", rr.Body.String())
	}
}
