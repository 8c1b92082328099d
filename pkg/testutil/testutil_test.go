package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// seen records the last request the fake twin received.
type seen struct {
	method  string
	path    string
	query   string
	headers http.Header
	body    map[string]any
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// newFakeTwin answers like the twin: a token endpoint, a bearer-protected
// product collection and a catch-all that echoes the request.
func newFakeTwin(t *testing.T) (*httptest.Server, *seen) {
	t.Helper()
	last := &seen{}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		id, secret, ok := r.BasicAuth()
		if !ok || id != "client" || secret != "secret" || r.URL.Query().Get("grant_type") != "client_credentials" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_client"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"access_token": "A21AA-token", "token_type": "Bearer"})
	})

	mux.HandleFunc("GET /v1/catalogs/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer A21AA-token" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": r.PathValue("id")})
	})

	mux.HandleFunc("GET /v1/catalogs/products/missing", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"name": "RESOURCE_NOT_FOUND"})
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		*last = seen{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, headers: r.Header.Clone()}
		json.NewDecoder(r.Body).Decode(&last.body)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, last
}

func TestNewTwinClient(t *testing.T) {
	srv, _ := newFakeTwin(t)

	tc := NewTwinClient(t, srv)
	if tc.BaseURL != srv.URL {
		t.Errorf("expected BaseURL=%s, got %s", srv.URL, tc.BaseURL)
	}
}

func TestNewTwinClientURL(t *testing.T) {
	tc := NewTwinClientURL(t, "http://localhost:12112/")
	if tc.BaseURL != "http://localhost:12112" {
		t.Errorf("expected trailing slash trimmed, got %s", tc.BaseURL)
	}
}

func TestAccessTokenAndBearer(t *testing.T) {
	srv, _ := newFakeTwin(t)
	tc := NewTwinClient(t, srv)

	token := tc.AccessToken("client", "secret")
	if token != "A21AA-token" {
		t.Fatalf("unexpected token %q", token)
	}

	tc.Get("/v1/catalogs/products/PROD-1").AssertStatus(http.StatusUnauthorized)

	authed := tc.WithBearer(token)
	resp := authed.Get("/v1/catalogs/products/PROD-1").AssertStatus(http.StatusOK)
	if resp.JSONMap()["id"] != "PROD-1" {
		t.Errorf("unexpected body %s", resp.Body)
	}
	if tc.token != "" {
		t.Error("WithBearer should not modify the original client")
	}
}

func TestRequestMethods(t *testing.T) {
	srv, last := newFakeTwin(t)
	tc := NewTwinClient(t, srv).WithBearer("tok")

	tests := []struct {
		name   string
		call   func() *Response
		method string
		header string
		value  string
	}{
		{"post", func() *Response { return tc.Post("/v1/billing/plans", map[string]string{"name": "Basic"}) }, http.MethodPost, "Content-Type", "application/json"},
		{"representation", func() *Response { return tc.PostRepresentation("/v1/billing/plans", map[string]string{}) }, http.MethodPost, "Prefer", "return=representation"},
		{"idempotent", func() *Response { return tc.PostIdempotent("/v1/billing/plans", "req-1", map[string]string{}) }, http.MethodPost, "Paypal-Request-Id", "req-1"},
		{"patch", func() *Response { return tc.Patch("/v1/billing/plans/P-1", []map[string]any{{"op": "replace"}}) }, http.MethodPatch, "Authorization", "Bearer tok"},
		{"delete", func() *Response { return tc.Delete("/v1/billing/plans/P-1") }, http.MethodDelete, "Authorization", "Bearer tok"},
		{"headers", func() *Response {
			return tc.DoWithHeaders(http.MethodGet, "/v1/billing/plans", nil, map[string]string{"X-Custom": "v"})
		}, http.MethodGet, "X-Custom", "v"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call().AssertStatus(http.StatusOK)
			if last.method != tt.method {
				t.Errorf("expected %s, got %s", tt.method, last.method)
			}
			if got := last.headers.Get(tt.header); got != tt.value {
				t.Errorf("expected %s=%q, got %q", tt.header, tt.value, got)
			}
		})
	}
}

func TestResponseHelpers(t *testing.T) {
	srv, _ := newFakeTwin(t)
	tc := NewTwinClient(t, srv)

	resp := tc.Get("/v1/catalogs/products/missing")
	if resp.AssertStatus(http.StatusNotFound) != resp {
		t.Error("expected AssertStatus to return the same Response for chaining")
	}
	if resp.AssertBodyContains("RESOURCE_NOT_FOUND") != resp {
		t.Error("expected AssertBodyContains to return the same Response for chaining")
	}
	resp.AssertErrorName("RESOURCE_NOT_FOUND")

	var body struct {
		Name string `json:"name"`
	}
	resp.JSON(&body)
	if body.Name != "RESOURCE_NOT_FOUND" {
		t.Errorf("unexpected name %q", body.Name)
	}
}

func TestAdminClient(t *testing.T) {
	srv, last := newFakeTwin(t)
	ac := NewAdminClient(NewTwinClient(t, srv))

	tests := []struct {
		name   string
		call   func() *Response
		method string
		path   string
	}{
		{"health", ac.Health, http.MethodGet, "/admin/health"},
		{"reset", ac.Reset, http.MethodPost, "/admin/reset"},
		{"get state", ac.GetState, http.MethodGet, "/admin/state"},
		{"load state", func() *Response { return ac.LoadState(map[string]any{"products": map[string]any{}}) }, http.MethodPost, "/admin/state"},
		{"inject fault", func() *Response { return ac.InjectFault("/v1/billing/plans", map[string]any{"status_code": 503}) }, http.MethodPost, "/admin/fault/v1/billing/plans"},
		{"remove fault", func() *Response { return ac.RemoveFault("/v1/billing/plans") }, http.MethodDelete, "/admin/fault/v1/billing/plans"},
		{"requests", ac.GetRequests, http.MethodGet, "/admin/requests"},
		{"flush", ac.FlushWebhooks, http.MethodPost, "/admin/webhooks/flush"},
		{"advance", func() *Response { return ac.AdvanceTime("1h") }, http.MethodPost, "/admin/time/advance"},
		{"config", func() *Response { return ac.SetConfig(map[string]any{"latency": "10ms"}) }, http.MethodPut, "/admin/config"},
		{"respond", func() *Response { return ac.Respond(503, "down") }, http.MethodPost, "/admin/response"},
		{"approve", func() *Response { return ac.ApproveSubscription("I-1") }, http.MethodPost, "/admin/subscriptions/I-1/approve"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.call().AssertStatus(http.StatusOK)
			if last.method != tt.method || last.path != tt.path {
				t.Errorf("expected %s %s, got %s %s", tt.method, tt.path, last.method, last.path)
			}
		})
	}

	ac.Respond(418, "teapot")
	if last.body["status_code"] != float64(418) || last.body["body"] != "teapot" {
		t.Errorf("unexpected respond body %+v", last.body)
	}
	ac.AdvanceTime("2h")
	if last.body["duration"] != "2h" {
		t.Errorf("unexpected advance body %+v", last.body)
	}
}
