package admission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"trade-admission/admission/application"
	"trade-admission/admission/domain"
	"trade-admission/admission/infra"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type testServer struct {
	h   http.Handler
	log *infra.MemorySubmissionLog
}

func newTestServer() testServer {
	log := infra.NewMemorySubmissionLog()
	catalog := infra.NewMemoryCatalog(
		domain.CatalogItem{Name: "Titan Speakerman", Value: decimal.NewFromInt(100), Category: "Titan"},
		domain.CatalogItem{Name: "Astro Juggernaut", Value: decimal.NewFromInt(150), Category: "Mythic"},
	)
	engine := application.NewEngine(application.Deps{
		Counters: infra.NewMemoryCounterStore(),
		Log:      log,
		Catalog:  catalog,
		Logger:   zerolog.Nop(),
	}, application.DefaultPolicy())

	h := Handler{
		Engine:   engine,
		Listings: application.Listings{Log: log, RegisteredActiveCap: 20, MaxDescriptionLen: 200, AdminKey: "s3cret"},
		Session:  HeaderSession(true),
		Logger:   zerolog.Nop(),
	}
	return testServer{h: h.Routes(), log: log}
}

func (s testServer) do(method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, "http://example"+target, strings.NewReader(body))
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("User-Agent", "test-agent")
	for k, v := range hdr {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.h.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("invalid json body %q: %v", w.Body.String(), err)
	}
}

const validTrade = `{"player1":[{"Name":"Titan Speakerman"}],"player2":[{"Name":"Astro Juggernaut"}],"discord":"skibidi"}`

func TestSubmit_Accepted(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodPost, "/api/trades", validTrade, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var got struct {
		Success bool              `json:"success"`
		ID      string            `json:"id"`
		Trade   domain.Submission `json:"trade"`
	}
	decode(t, w, &got)
	if !got.Success || got.ID == "" {
		t.Fatalf("unexpected body %s", w.Body.String())
	}
	if got.Trade.Address != "" || got.Trade.Fingerprint != "" {
		t.Fatalf("response must not leak network identity: %s", w.Body.String())
	}
	body := w.Body.String()
	if !strings.Contains(body, `"p1Total":100`) || !strings.Contains(body, `"Value":150`) {
		t.Fatalf("expected numeric values and totals, got %s", body)
	}

	stored, err := s.log.Get(context.Background(), got.ID)
	if err != nil {
		t.Fatalf("expected stored submission: %v", err)
	}
	if stored.Address != "10.0.0.1" || stored.Fingerprint != "10.0.0.1_test-agent" {
		t.Fatalf("unexpected stored identity %q / %q", stored.Address, stored.Fingerprint)
	}
}

func TestSubmit_MalformedBody(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodPost, "/api/trades", "{nope", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	var got errorBody
	decode(t, w, &got)
	if got.Class != "validation" || got.Rule != "malformed-body" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestSubmit_ValidationIs400(t *testing.T) {
	s := newTestServer()
	w := s.do(http.MethodPost, "/api/trades", `{"player1":[{"Name":"Titan Speakerman"}]}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var got errorBody
	decode(t, w, &got)
	if got.Rule != "missing-contact" || got.Error == "" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestSubmit_DuplicateIs429(t *testing.T) {
	s := newTestServer()
	s.do(http.MethodPost, "/api/trades", validTrade, nil)

	w := s.do(http.MethodPost, "/api/trades", validTrade, nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	var got errorBody
	decode(t, w, &got)
	if got.Class != "duplicate" || got.Rule != "exact-duplicate" {
		t.Fatalf("unexpected body %+v", got)
	}
}

type stubSubmitter struct {
	res application.Result
}

func (s stubSubmitter) SubmitTrade(context.Context, application.TradeRequest) application.Result {
	return s.res
}

func TestSubmit_RejectionMapping(t *testing.T) {
	quota := domain.Reject(domain.ClassQuota, domain.RuleAnonymousWeeklyCap, "User trade limit reached")
	quota.Count, quota.Threshold, quota.RetryAfter = 14, 12, 90*time.Minute+time.Millisecond

	cases := []struct {
		name       string
		rej        *domain.Rejection
		status     int
		retryAfter string
	}{
		{name: "quota", rej: quota, status: http.StatusTooManyRequests, retryAfter: "5401"},
		{name: "unavailable", rej: domain.Unavailable(), status: http.StatusServiceUnavailable, retryAfter: "1"},
		{name: "validation", rej: domain.Reject(domain.ClassValidation, domain.RuleUnknownItem, "x"), status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Handler{Engine: stubSubmitter{res: application.Result{Rejection: tc.rej}}, Logger: zerolog.Nop()}
			r := httptest.NewRequest(http.MethodPost, "http://example/api/trades", strings.NewReader(validTrade))
			w := httptest.NewRecorder()
			h.Routes().ServeHTTP(w, r)

			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			if got := w.Header().Get("Retry-After"); got != tc.retryAfter {
				t.Fatalf("expected Retry-After=%q, got %q", tc.retryAfter, got)
			}
		})
	}
}

func TestSubmit_QuotaBodyCarriesCounts(t *testing.T) {
	rej := domain.Reject(domain.ClassQuota, domain.RuleRegisteredActiveCap, "max")
	rej.Count, rej.Threshold = 20, 20
	h := Handler{Engine: stubSubmitter{res: application.Result{Rejection: rej}}}

	r := httptest.NewRequest(http.MethodPost, "http://example/api/trades", strings.NewReader(validTrade))
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, r)

	var got errorBody
	decode(t, w, &got)
	if got.Count != 20 || got.Threshold != 20 || got.Rule != "registered-active-cap" {
		t.Fatalf("unexpected body %+v", got)
	}
}

func TestList_PublicProjection(t *testing.T) {
	s := newTestServer()
	s.do(http.MethodPost, "/api/trades", validTrade, nil)

	w := s.do(http.MethodGet, "/api/trades?search=speakerman&limit=5", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "10.0.0.1") {
		t.Fatalf("listing leaked address: %s", w.Body.String())
	}

	var got struct {
		Success bool                `json:"success"`
		Data    []domain.Submission `json:"data"`
	}
	decode(t, w, &got)
	if len(got.Data) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(got.Data))
	}
}

func TestManage_RequiresAccount(t *testing.T) {
	s := newTestServer()
	if w := s.do(http.MethodGet, "/api/manage/trades", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/trades/deleteOne?id=x", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if w := s.do(http.MethodPatch, "/api/trades/editOne", `{"tradeId":"x"}`, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestOwnerFlow(t *testing.T) {
	s := newTestServer()
	owner := map[string]string{HeaderAccountID: "u1", HeaderAccountName: "Camera Guy", HeaderAccountType: "discord"}
	other := map[string]string{HeaderAccountID: "u2"}

	w := s.do(http.MethodPost, "/api/trades", validTrade, owner)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	decode(t, w, &created)

	w = s.do(http.MethodGet, "/api/manage/trades", "", owner)
	var view struct {
		Active    int `json:"active"`
		MaxActive int `json:"maxActive"`
		Remaining int `json:"remaining"`
	}
	decode(t, w, &view)
	if view.Active != 1 || view.MaxActive != 20 || view.Remaining != 19 {
		t.Fatalf("unexpected manage view %+v", view)
	}

	edit := `{"tradeId":"` + created.ID + `","description":"now with gold clock"}`
	if w := s.do(http.MethodPatch, "/api/trades/editOne", edit, other); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for other owner, got %d", w.Code)
	}
	if w := s.do(http.MethodPatch, "/api/trades/editOne", edit, owner); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := s.do(http.MethodPatch, "/api/trades/editOne", `{"description":"x"}`, owner); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without id, got %d", w.Code)
	}

	if w := s.do(http.MethodDelete, "/api/trades/deleteOne?id="+created.ID, "", other); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for other owner, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/trades/deleteOne?id="+created.ID, "", owner); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if s.log.Len() != 0 {
		t.Fatalf("expected trade deleted")
	}
}

func TestPurge(t *testing.T) {
	s := newTestServer()
	s.do(http.MethodPost, "/api/trades", validTrade, nil)

	if w := s.do(http.MethodDelete, "/api/trades", "", map[string]string{"X-Admin-Key": "nope"}); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := s.do(http.MethodDelete, "/api/trades", "", map[string]string{"X-Admin-Key": "s3cret"}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if s.log.Len() != 0 {
		t.Fatalf("expected everything purged")
	}
}

func TestHealthz(t *testing.T) {
	s := newTestServer()
	if w := s.do(http.MethodGet, "/healthz", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
