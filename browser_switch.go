package threedsecure

import (
	"net/http"
	"net/url"
	"sync"
)

// BrowserSwitchStatus tells how the cardholder came back from the browser.
type BrowserSwitchStatus int

const (
	BrowserSwitchSuccess BrowserSwitchStatus = iota + 1
	BrowserSwitchCanceled
)

func (s BrowserSwitchStatus) String() string {
	switch s {
	case BrowserSwitchSuccess:
		return "success"
	case BrowserSwitchCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// BrowserSwitchResult is a return from a browser-hosted challenge.
type BrowserSwitchResult struct {
	RequestCode int
	Status      BrowserSwitchStatus
	DeepLinkURL *url.URL
}

// authResponse returns the auth_response query parameter of the deep link.
func (r *BrowserSwitchResult) authResponse() string {
	if r == nil || r.DeepLinkURL == nil {
		return ""
	}
	return r.DeepLinkURL.Query().Get("auth_response")
}

// BrowserSwitchSource holds browser-switch returns until they are consumed.
type BrowserSwitchSource interface {
	// Pending returns the stored result for requestCode without consuming it.
	Pending(requestCode int) *BrowserSwitchResult
	// Deliver consumes and returns the stored result for requestCode.
	Deliver(requestCode int) *BrowserSwitchResult
}

// BrowserSwitchStore keeps at most one pending return. A newer return
// replaces an unconsumed one.
type BrowserSwitchStore struct {
	mu      sync.Mutex
	pending *BrowserSwitchResult
}

var _ BrowserSwitchSource = (*BrowserSwitchStore)(nil)

// NewBrowserSwitchStore returns an empty store.
func NewBrowserSwitchStore() *BrowserSwitchStore {
	return &BrowserSwitchStore{}
}

// Put stores result.
func (s *BrowserSwitchStore) Put(result BrowserSwitchResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &result
}

// Pending implements [BrowserSwitchSource].
func (s *BrowserSwitchStore) Pending(requestCode int) *BrowserSwitchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.RequestCode != requestCode {
		return nil
	}
	out := *s.pending
	return &out
}

// Deliver implements [BrowserSwitchSource].
func (s *BrowserSwitchStore) Deliver(requestCode int) *BrowserSwitchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.pending.RequestCode != requestCode {
		return nil
	}
	out := s.pending
	s.pending = nil
	return out
}

// BrowserSwitchHandler receives the browser's return deep links.
type BrowserSwitchHandler struct {
	store *BrowserSwitchStore
	mux   *http.ServeMux
	cfg   *config
}

// NewBrowserSwitchHandler builds the return routes backed by net/http's
// ServeMux:
//
//	GET /three_d_secure/return?auth_response=...
//	GET /three_d_secure/cancel
func NewBrowserSwitchHandler(store *BrowserSwitchStore, opts ...Option) *BrowserSwitchHandler {
	if store == nil {
		panic("threedsecure: browser switch store is required")
	}
	h := &BrowserSwitchHandler{
		store: store,
		mux:   http.NewServeMux(),
		cfg:   newConfig(opts),
	}
	h.mux.HandleFunc("GET /three_d_secure/return", applyMiddleware(h.handleReturn, h.cfg.middleware...))
	h.mux.HandleFunc("GET /three_d_secure/cancel", applyMiddleware(h.handleCancel, h.cfg.middleware...))
	return h
}

// ServeHTTP satisfies http.Handler.
func (h *BrowserSwitchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

type browserSwitchAck struct {
	Status string `json:"status"`
}

func (h *BrowserSwitchHandler) handleReturn(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("auth_response") == "" {
		writeJSONError(w, NewInvalidArgumentError(InvalidRequestField, "auth_response is required",
			WithOffendingParam("auth_response"),
			WithStatusCode(http.StatusBadRequest),
		))
		return
	}
	h.store.Put(BrowserSwitchResult{
		RequestCode: RequestCodeThreeDSecure,
		Status:      BrowserSwitchSuccess,
		DeepLinkURL: cloneURL(r.URL),
	})
	h.cfg.logger.Debug("browser switch return received")
	writeJSON(w, http.StatusOK, browserSwitchAck{Status: BrowserSwitchSuccess.String()})
}

func (h *BrowserSwitchHandler) handleCancel(w http.ResponseWriter, r *http.Request) {
	h.store.Put(BrowserSwitchResult{
		RequestCode: RequestCodeThreeDSecure,
		Status:      BrowserSwitchCanceled,
		DeepLinkURL: cloneURL(r.URL),
	})
	h.cfg.logger.Debug("browser switch cancel received")
	writeJSON(w, http.StatusOK, browserSwitchAck{Status: BrowserSwitchCanceled.String()})
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	out := *u
	return &out
}
