package threedsecure

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const testTokenizationKey = "sandbox_abc123_merchant_id"

type fakeGatewayServer struct {
	*httptest.Server

	configFetches atomic.Int32

	mu       sync.Mutex
	requests []*http.Request
	bodies   [][]byte
}

func newFakeGatewayServer(t *testing.T, lookup func(w http.ResponseWriter, r *http.Request)) *fakeGatewayServer {
	t.Helper()
	f := &fakeGatewayServer{}
	mux := http.NewServeMux()
	record := func(r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.requests = append(f.requests, r.Clone(context.Background()))
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()
	}
	configuration := func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.configFetches.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"environment":         "sandbox",
			"merchantId":          "merchant_id",
			"clientApiUrl":        f.URL + "/merchants/merchant_id/client_api",
			"threeDSecureEnabled": true,
			"threeDSecure":        map[string]string{"cardinalAuthenticationJWT": testCardinalJWT},
		})
	}
	mux.HandleFunc("GET /merchants/merchant_id/client_api/v1/configuration", configuration)
	mux.HandleFunc("GET /client-token/configuration", configuration)
	mux.HandleFunc("POST /merchants/merchant_id/client_api/v1/payment_methods/{nonce}/three_d_secure/lookup", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		lookup(w, r)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGatewayServer) lastRequest() (*http.Request, []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil, nil
	}
	return f.requests[len(f.requests)-1], f.bodies[len(f.bodies)-1]
}

func respondWith(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestGatewayClientConfigurationIsCached(t *testing.T) {
	t.Parallel()

	server := newFakeGatewayServer(t, respondWith(http.StatusOK, frictionlessLookupJSON))
	var (
		mu  sync.Mutex
		now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	client, err := NewGatewayClient(Settings{
		Authorization:    testTokenizationKey,
		Env:              EnvSandbox,
		BaseURL:          server.URL + "/",
		ConfigurationTTL: time.Minute,
	}, withClock(clock))
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}

	ctx := context.Background()
	for range 3 {
		cfg, err := client.Configuration(ctx)
		if err != nil {
			t.Fatalf("configuration: %v", err)
		}
		if !cfg.IsThreeDSecureEnabled() || cfg.CardinalAuthenticationJWT() != testCardinalJWT {
			t.Fatalf("unexpected configuration %+v", cfg)
		}
	}
	if n := server.configFetches.Load(); n != 1 {
		t.Fatalf("expected one fetch, got %d", n)
	}

	req, _ := server.lastRequest()
	if req.URL.Query().Get("configVersion") != "3" {
		t.Fatalf("expected configVersion=3, got %s", req.URL.RawQuery)
	}

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()
	if _, err := client.Configuration(ctx); err != nil {
		t.Fatalf("configuration: %v", err)
	}
	if n := server.configFetches.Load(); n != 2 {
		t.Fatalf("expected a refetch after the ttl, got %d fetches", n)
	}
}

func TestGatewayClientPostHeaders(t *testing.T) {
	t.Parallel()

	server := newFakeGatewayServer(t, respondWith(http.StatusOK, frictionlessLookupJSON))
	client, err := NewGatewayClient(Settings{
		Authorization: testTokenizationKey,
		Env:           EnvSandbox,
		BaseURL:       server.URL,
	})
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}

	ctx := ContextWithClientMetadata(context.Background(), &ClientMetadata{SessionID: "ctx-session", Integration: "dropin", Source: "form"})
	raw, err := client.Post(ctx, "/v1/payment_methods/card-nonce/three_d_secure/lookup", []byte(`{"amount":"10.00"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if result := mustParseResult(t, string(raw)); result.nonce() != "lookup-nonce" {
		t.Fatalf("unexpected response %s", raw)
	}

	req, body := server.lastRequest()
	if req.Method != http.MethodPost || req.URL.Path != "/merchants/merchant_id/client_api/v1/payment_methods/card-nonce/three_d_secure/lookup" {
		t.Fatalf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	if string(body) != `{"amount":"10.00"}` {
		t.Fatalf("unexpected body %s", body)
	}
	wantHeaders := map[string]string{
		"Client-Key":            testTokenizationKey,
		"Content-Type":          "application/json",
		"Accept":                "application/json",
		"User-Agent":            "threedsecure-go/" + LibraryVersion,
		"Braintree-Session-Id":  "ctx-session",
		"Braintree-Integration": "dropin",
		"Braintree-Source":      "form",
	}
	for key, value := range wantHeaders {
		if got := req.Header.Get(key); got != value {
			t.Fatalf("expected header %s=%q, got %q", key, value, got)
		}
	}
	if req.Header.Get("Authorization") != "" {
		t.Fatalf("tokenization keys must not send a bearer token")
	}
}

func TestGatewayClientDefaultMetadata(t *testing.T) {
	t.Parallel()

	server := newFakeGatewayServer(t, respondWith(http.StatusOK, frictionlessLookupJSON))
	client, err := NewGatewayClient(Settings{Authorization: testTokenizationKey, Env: EnvSandbox, BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}
	if _, err := client.Configuration(context.Background()); err != nil {
		t.Fatalf("configuration: %v", err)
	}
	req, _ := server.lastRequest()
	if req.Header.Get("Braintree-Session-Id") == "" {
		t.Fatalf("expected a generated session id")
	}
	if req.Header.Get("Braintree-Integration") != "custom" || req.Header.Get("Braintree-Source") != "client" {
		t.Fatalf("unexpected metadata headers %v", req.Header)
	}
}

func TestGatewayClientErrorMapping(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		status      int
		body        string
		wantMessage string
		want422     bool
	}{
		"validation error": {
			status:      http.StatusUnprocessableEntity,
			body:        `{"error":{"message":"Amount is an invalid format."}}`,
			wantMessage: "Amount is an invalid format.",
			want422:     true,
		},
		"server error": {
			status: http.StatusInternalServerError,
			body:   `{"error":"boom"}`,
		},
		"unauthorized": {
			status: http.StatusUnauthorized,
			body:   ``,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			server := newFakeGatewayServer(t, respondWith(tt.status, tt.body))
			gateway, err := NewGatewayClient(Settings{Authorization: testTokenizationKey, Env: EnvSandbox, BaseURL: server.URL})
			if err != nil {
				t.Fatalf("new gateway client: %v", err)
			}
			_, err = NewAPI(gateway).PerformLookup(context.Background(), validRequest(), "")

			if tt.want422 {
				var withResponse *ErrorWithResponse
				if !errors.As(err, &withResponse) {
					t.Fatalf("expected ErrorWithResponse, got %v", err)
				}
				if withResponse.StatusCode != tt.status || withResponse.Message != tt.wantMessage {
					t.Fatalf("unexpected error %+v", withResponse)
				}
				if string(withResponse.Body) != tt.body {
					t.Fatalf("expected raw body, got %s", withResponse.Body)
				}
				return
			}
			var httpErr *HTTPError
			if !errors.As(err, &httpErr) {
				t.Fatalf("expected HTTPError, got %v", err)
			}
			if httpErr.StatusCode != tt.status || string(httpErr.Body) != tt.body {
				t.Fatalf("unexpected error %+v", httpErr)
			}
			if httpErr.Headers.Get("Content-Type") != "application/json" {
				t.Fatalf("expected response headers to be kept")
			}
		})
	}
}

func TestGatewayClientClientToken(t *testing.T) {
	t.Parallel()

	server := newFakeGatewayServer(t, respondWith(http.StatusOK, frictionlessLookupJSON))
	token, err := json.Marshal(map[string]string{
		"authorizationFingerprint": "fingerprint-abc",
		"configUrl":                server.URL + "/client-token/configuration",
		"merchantId":               "merchant_id",
		"environment":              "sandbox",
	})
	if err != nil {
		t.Fatalf("marshal token: %v", err)
	}
	gateway, err := NewGatewayClient(Settings{
		Authorization: base64.StdEncoding.EncodeToString(token),
		Env:           EnvSandbox,
		BaseURL:       server.URL,
	})
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}

	if _, err := gateway.Post(context.Background(), "v1/payment_methods/card-nonce/three_d_secure/lookup", []byte(`{}`)); err != nil {
		t.Fatalf("post: %v", err)
	}
	if n := server.configFetches.Load(); n != 1 {
		t.Fatalf("expected configuration from the token url, got %d fetches", n)
	}
	req, _ := server.lastRequest()
	if req.Header.Get("Authorization") != "Bearer fingerprint-abc" {
		t.Fatalf("unexpected authorization header %q", req.Header.Get("Authorization"))
	}
	if req.Header.Get("Client-Key") != "" {
		t.Fatalf("client tokens must not send Client-Key")
	}

	auth, err := gateway.Authorization(context.Background())
	if err != nil || auth.Kind != ClientToken || auth.Bearer() != "fingerprint-abc" {
		t.Fatalf("unexpected authorization %+v err=%v", auth, err)
	}
}

func TestGatewayClientSendsAnalyticsWithSession(t *testing.T) {
	t.Parallel()

	var (
		mu      sync.Mutex
		events  []string
		session string
	)
	sink := AnalyticsFunc(func(ctx context.Context, event string) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, event)
		if md := ClientMetadataFromContext(ctx); md != nil {
			session = md.SessionID
		}
	})
	gateway, err := NewGatewayClient(Settings{Authorization: testTokenizationKey, Env: EnvSandbox},
		WithAnalytics(sink),
		WithClientMetadata(&ClientMetadata{SessionID: "fixed-session"}),
	)
	if err != nil {
		t.Fatalf("new gateway client: %v", err)
	}
	gateway.SendAnalyticsEvent(context.Background(), eventInitialized)

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0] != eventInitialized {
		t.Fatalf("unexpected events %v", events)
	}
	if session != "fixed-session" {
		t.Fatalf("expected default session on analytics, got %q", session)
	}
}

func TestNewGatewayClientRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	tests := map[string]Settings{
		"missing authorization": {Env: EnvSandbox},
		"unknown environment":   {Authorization: testTokenizationKey, Env: "qa"},
		"garbage authorization": {Authorization: "%%%not-a-token%%%", Env: EnvSandbox},
	}

	for name, settings := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := NewGatewayClient(settings)
			var typed *Error
			if !errors.As(err, &typed) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if typed.Type != ConfigurationError || typed.Code != InvalidConfigurationValue {
				t.Fatalf("unexpected error %s/%s", typed.Type, typed.Code)
			}
		})
	}
}
