package admission

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codalyzer-backend/middleware/admission/application"
	"codalyzer-backend/middleware/admission/domain"
	"codalyzer-backend/middleware/admission/infra"
)

func testController(t *testing.T, clientLimit, globalLimit int64) (*application.Controller, *infra.MemoryCounterStore) {
	t.Helper()
	resolver, err := domain.NewResolver("")
	if err != nil {
		t.Fatal(err)
	}
	store := infra.NewMemoryCounterStore()
	return &application.Controller{
		Configured: true,
		Store:      store,
		Resolver:   resolver,
		Quotas:     domain.Quotas{Client: clientLimit, Global: globalLimit},
		TTLPadding: time.Hour,
	}, store
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
}

func doRequest(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	req.Header.Set("X-Forwarded-For", ip)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestMiddlewareCountsDownAndRejects(t *testing.T) {
	ctrl, _ := testController(t, 3, 100)
	h := Middleware(Options{Controller: ctrl})(okHandler())

	for i := 1; i <= 3; i++ {
		rr := doRequest(h, "1.2.3.4")
		if rr.Code != http.StatusOK {
			t.Fatalf("request #%d status = %d, want 200", i, rr.Code)
		}
		wantRemaining := formatInt(3 - i)
		if got := rr.Header().Get("X-RateLimit-Remaining"); got != wantRemaining {
			t.Errorf("request #%d X-RateLimit-Remaining = %q, want %q", i, got, wantRemaining)
		}
		if got := rr.Header().Get("X-RateLimit-Limit"); got != "3" {
			t.Errorf("request #%d X-RateLimit-Limit = %q, want 3", i, got)
		}
		if _, err := time.Parse(time.RFC3339, rr.Header().Get("X-RateLimit-Reset")); err != nil {
			t.Errorf("request #%d X-RateLimit-Reset unparseable: %v", i, err)
		}
	}

	rr := doRequest(h, "1.2.3.4")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("over-limit status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("Retry-After"); got == "" || got == "0" {
		t.Errorf("Retry-After = %q, want >= 1", got)
	}

	var body struct {
		Error        string `json:"error"`
		RequestsMade int64  `json:"requests_made"`
		Limit        int64  `json:"limit"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("body: %v", err)
	}
	if body.Error != "rate_limit_exceeded" {
		t.Errorf("error = %q, want rate_limit_exceeded", body.Error)
	}
	if body.RequestsMade != 4 || body.Limit != 3 {
		t.Errorf("requests_made/limit = %d/%d, want 4/3", body.RequestsMade, body.Limit)
	}
}

func TestMiddlewareIsolatesClients(t *testing.T) {
	ctrl, _ := testController(t, 1, 100)
	h := Middleware(Options{Controller: ctrl})(okHandler())

	if rr := doRequest(h, "1.2.3.4"); rr.Code != http.StatusOK {
		t.Fatalf("first client status = %d, want 200", rr.Code)
	}
	if rr := doRequest(h, "1.2.3.4"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("first client second request = %d, want 429", rr.Code)
	}
	// Outro cliente não é afetado pelo esgotamento do primeiro.
	if rr := doRequest(h, "5.6.7.8"); rr.Code != http.StatusOK {
		t.Fatalf("second client status = %d, want 200", rr.Code)
	}
}

func TestMiddlewareGlobalRejection(t *testing.T) {
	ctrl, _ := testController(t, 100, 2)
	h := Middleware(Options{Controller: ctrl})(okHandler())

	doRequest(h, "1.1.1.1")
	doRequest(h, "2.2.2.2")

	rr := doRequest(h, "3.3.3.3")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if got := rr.Header().Get("X-RateLimit-Global-Remaining"); got != "0" {
		t.Errorf("X-RateLimit-Global-Remaining = %q, want 0", got)
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Error != "global_limit_exceeded" {
		t.Errorf("error = %q, want global_limit_exceeded", body.Error)
	}
}

func TestMiddlewareDegradedFailsClosed(t *testing.T) {
	resolver, _ := domain.NewResolver("")
	ctrl := &application.Controller{
		Configured: true,
		Store:      nil, // configurado porém sem store: tudo degrada
		Resolver:   resolver,
		Quotas:     domain.Quotas{Client: 10, Global: 100},
	}
	h := Middleware(Options{Controller: ctrl})(okHandler())

	rr := doRequest(h, "1.2.3.4")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	// Estado de quota desconhecido: nenhum header de quota na resposta.
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "" {
		t.Errorf("X-RateLimit-Remaining = %q, want absent", got)
	}
	var body struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &body)
	if body.Error != "service_unavailable" {
		t.Errorf("error = %q, want service_unavailable", body.Error)
	}
}

func TestMiddlewarePassThroughWhenNotConfigured(t *testing.T) {
	ctrl := &application.Controller{Configured: false}
	h := Middleware(Options{Controller: ctrl})(okHandler())

	for i := 0; i < 50; i++ {
		rr := doRequest(h, "1.2.3.4")
		if rr.Code != http.StatusOK {
			t.Fatalf("request #%d status = %d, want 200", i+1, rr.Code)
		}
		if got := rr.Header().Get("X-RateLimit-Limit"); got != "" {
			t.Errorf("X-RateLimit-Limit = %q, want absent in pass-through", got)
		}
	}
}

func TestMiddlewareRefundsOnServerFault(t *testing.T) {
	ctrl, store := testController(t, 2, 100)
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	h := Middleware(Options{Controller: ctrl})(failing)

	doRequest(h, "1.2.3.4")
	doRequest(h, "1.2.3.4")

	// As duas cobranças falharam com 5xx e foram estornadas: o contador está
	// em zero e novas tentativas continuam sendo admitidas.
	clientKey := domain.KeyScheme{}.ClientKey("1.2.3.4", ctrl.Resolver.BucketID(time.Now()))
	globalKey := domain.KeyScheme{}.GlobalKey(ctrl.Resolver.BucketID(time.Now()))
	client, global, _ := store.Read(context.Background(), clientKey, globalKey)
	if client != 0 || global != 0 {
		t.Errorf("counters after refunds = (%d, %d), want (0, 0)", client, global)
	}

	ok := Middleware(Options{Controller: ctrl})(okHandler())
	if rr := doRequest(ok, "1.2.3.4"); rr.Code != http.StatusOK {
		t.Errorf("status after refunds = %d, want 200", rr.Code)
	}
}

func TestMiddlewareDoesNotRefundCallerErrors(t *testing.T) {
	ctrl, store := testController(t, 2, 100)
	badRequest := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad input", http.StatusBadRequest)
	})
	h := Middleware(Options{Controller: ctrl})(badRequest)

	doRequest(h, "1.2.3.4")

	clientKey := domain.KeyScheme{}.ClientKey("1.2.3.4", ctrl.Resolver.BucketID(time.Now()))
	client, _, _ := store.Read(context.Background(), clientKey, "none")
	if client != 1 {
		t.Errorf("client counter = %d, want 1 (4xx stays charged)", client)
	}
}

func TestMiddlewareRejectionIsNotRefunded(t *testing.T) {
	ctrl, store := testController(t, 1, 100)
	h := Middleware(Options{Controller: ctrl})(okHandler())

	doRequest(h, "1.2.3.4")
	rr := doRequest(h, "1.2.3.4")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}

	// A tentativa rejeitada também consome orçamento: contador em 2.
	clientKey := domain.KeyScheme{}.ClientKey("1.2.3.4", ctrl.Resolver.BucketID(time.Now()))
	client, _, _ := store.Read(context.Background(), clientKey, "none")
	if client != 2 {
		t.Errorf("client counter = %d, want 2", client)
	}
}

func TestStatusRecorderDefaultsTo200(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	_, _ = rec.Write([]byte("implicit 200"))
	if rec.status != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.status)
	}

	rr = httptest.NewRecorder()
	rec = &statusRecorder{ResponseWriter: rr, status: http.StatusOK}
	rec.WriteHeader(http.StatusBadGateway)
	rec.WriteHeader(http.StatusOK) // segundo WriteHeader não sobrescreve
	if rec.status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.status)
	}
}
