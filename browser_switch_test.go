package threedsecure

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestBrowserSwitchStore(t *testing.T) {
	t.Parallel()

	store := NewBrowserSwitchStore()
	if store.Pending(RequestCodeThreeDSecure) != nil {
		t.Fatalf("new store must be empty")
	}

	store.Put(BrowserSwitchResult{RequestCode: RequestCodeThreeDSecure, Status: BrowserSwitchSuccess})
	store.Put(BrowserSwitchResult{RequestCode: RequestCodeThreeDSecure, Status: BrowserSwitchCanceled})

	if store.Pending(1) != nil || store.Deliver(1) != nil {
		t.Fatalf("results for other request codes must not be returned")
	}
	pending := store.Pending(RequestCodeThreeDSecure)
	if pending == nil || pending.Status != BrowserSwitchCanceled {
		t.Fatalf("expected the newest result, got %+v", pending)
	}
	if store.Pending(RequestCodeThreeDSecure) == nil {
		t.Fatalf("Pending must not consume")
	}
	if got := store.Deliver(RequestCodeThreeDSecure); got == nil || got.Status != BrowserSwitchCanceled {
		t.Fatalf("unexpected delivery %+v", got)
	}
	if store.Deliver(RequestCodeThreeDSecure) != nil {
		t.Fatalf("Deliver must consume")
	}
}

func TestBrowserSwitchHandler(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		target      string
		wantStatus  int
		wantAck     string
		wantPending BrowserSwitchStatus
	}{
		"return": {
			target:      "/three_d_secure/return?auth_response=" + url.QueryEscape(authenticatedJSON),
			wantStatus:  http.StatusOK,
			wantAck:     "success",
			wantPending: BrowserSwitchSuccess,
		},
		"return without auth response": {
			target:     "/three_d_secure/return",
			wantStatus: http.StatusBadRequest,
		},
		"cancel": {
			target:      "/three_d_secure/cancel",
			wantStatus:  http.StatusOK,
			wantAck:     "canceled",
			wantPending: BrowserSwitchCanceled,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			store := NewBrowserSwitchStore()
			var seen bool
			handler := NewBrowserSwitchHandler(store, WithMiddleware(func(next http.HandlerFunc) http.HandlerFunc {
				return func(w http.ResponseWriter, r *http.Request) {
					seen = true
					next(w, r)
				}
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if !seen {
				t.Fatalf("expected middleware to run")
			}
			if tt.wantAck == "" {
				var payload Error
				if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
					t.Fatalf("decode error: %v", err)
				}
				if payload.Code != InvalidRequestField || payload.Param == nil || *payload.Param != "auth_response" {
					t.Fatalf("unexpected error payload %+v", payload)
				}
				if store.Pending(RequestCodeThreeDSecure) != nil {
					t.Fatalf("rejected return must not be stored")
				}
				return
			}

			var ack browserSwitchAck
			if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
				t.Fatalf("decode ack: %v", err)
			}
			if ack.Status != tt.wantAck {
				t.Fatalf("unexpected ack %q", ack.Status)
			}
			pending := store.Pending(RequestCodeThreeDSecure)
			if pending == nil || pending.Status != tt.wantPending {
				t.Fatalf("unexpected pending result %+v", pending)
			}
			if tt.wantPending == BrowserSwitchSuccess && pending.authResponse() != authenticatedJSON {
				t.Fatalf("auth_response not preserved: %q", pending.authResponse())
			}
		})
	}
}

func TestBrowserSwitchHandlerRejectsOtherMethods(t *testing.T) {
	t.Parallel()

	handler := NewBrowserSwitchHandler(NewBrowserSwitchStore())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/three_d_secure/cancel", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestWriteJSONErrorStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		err  *Error
		want int
	}{
		"explicit status": {
			err:  NewInvalidArgumentError(InvalidRequestField, "conflict", WithStatusCode(http.StatusConflict)),
			want: http.StatusConflict,
		},
		"defaults to bad request": {
			err:  NewInvalidArgumentError(InvalidRequestField, "missing"),
			want: http.StatusBadRequest,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			writeJSONError(rec, tt.err)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
			if tt.err.StatusCode() != 0 && tt.err.StatusCode() != tt.want {
				t.Fatalf("status code not recorded on the error")
			}
		})
	}
}
