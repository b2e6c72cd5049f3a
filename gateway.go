package threedsecure

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LibraryVersion is reported to the gateway in metadata and lookup payloads.
const LibraryVersion = "1.0.0"

// Gateway is the subset of the payments gateway the verification flow needs.
type Gateway interface {
	// Configuration returns the merchant configuration, possibly cached.
	Configuration(ctx context.Context) (*Configuration, error)
	// Authorization returns the credential the client was built with.
	Authorization(ctx context.Context) (Authorization, error)
	// Post sends a JSON body to a client API path such as
	// "/v1/payment_methods/{nonce}/three_d_secure/lookup" and returns the
	// raw response body.
	Post(ctx context.Context, path string, body []byte) ([]byte, error)
	// SendAnalyticsEvent records a named event. It never fails.
	SendAnalyticsEvent(ctx context.Context, event string)
}

// GatewayClient is the HTTP implementation of [Gateway].
type GatewayClient struct {
	settings   Settings
	auth       Authorization
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	analytics  AnalyticsSink
	tracer     trace.Tracer
	metadata   *ClientMetadata
	clock      func() time.Time

	mu        sync.Mutex
	cached    *Configuration
	fetchedAt time.Time
}

var _ Gateway = (*GatewayClient)(nil)

// NewGatewayClient validates settings and parses the authorization.
func NewGatewayClient(settings Settings, opts ...Option) (*GatewayClient, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	auth, err := ParseAuthorization(settings.Authorization)
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: settings.timeout()}
	}
	md := cfg.metadata
	if md == nil {
		md = &ClientMetadata{
			SessionID:   uuid.NewString(),
			Integration: defaultIntegration,
			Source:      defaultSource,
			Version:     LibraryVersion,
		}
	}
	return &GatewayClient{
		settings:   settings,
		auth:       auth,
		baseURL:    settings.DefaultBaseURL(),
		httpClient: httpClient,
		logger:     cfg.logger.Named("gateway"),
		analytics:  cfg.analytics,
		tracer:     cfg.tracer,
		metadata:   md,
		clock:      cfg.clock,
	}, nil
}

// Authorization returns the parsed credential.
func (g *GatewayClient) Authorization(context.Context) (Authorization, error) {
	return g.auth, nil
}

// Configuration fetches the merchant configuration, reusing a cached copy
// for the configured TTL.
func (g *GatewayClient) Configuration(ctx context.Context) (*Configuration, error) {
	g.mu.Lock()
	if g.cached != nil && g.clock().Sub(g.fetchedAt) < g.settings.configurationTTL() {
		cached := g.cached
		g.mu.Unlock()
		return cached, nil
	}
	g.mu.Unlock()

	target, err := g.configurationURL()
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("threedsecure: build configuration request: %w", err)
	}
	body, err := g.do(ctx, req, "threedsecure.gateway.configuration")
	if err != nil {
		return nil, err
	}
	cfg, err := ParseConfiguration(body)
	if err != nil {
		return nil, NewGatewayError(MalformedGatewayResponse, err.Error(), WithCause(err))
	}

	g.mu.Lock()
	g.cached = cfg
	g.fetchedAt = g.clock()
	g.mu.Unlock()
	return cfg, nil
}

// Post sends body to path below the merchant's client API URL.
func (g *GatewayClient) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	cfg, err := g.Configuration(ctx)
	if err != nil {
		return nil, err
	}
	target := g.clientAPIURL(cfg) + "/" + strings.TrimLeft(path, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("threedsecure: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return g.do(ctx, req, "threedsecure.gateway.post")
}

// SendAnalyticsEvent forwards event to the configured sink.
func (g *GatewayClient) SendAnalyticsEvent(ctx context.Context, event string) {
	sendAnalytics(withDefaultMetadata(ctx, g.metadata), g.analytics, g.logger, event)
}

func (g *GatewayClient) configurationURL() (string, error) {
	raw := g.auth.ConfigURL
	if g.auth.Kind == TokenizationKey {
		raw = g.baseURL + "/merchants/" + url.PathEscape(g.auth.MerchantID) + "/client_api/v1/configuration"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", NewConfigurationError(InvalidConfigurationValue, "configuration url is invalid", WithCause(err))
	}
	q := u.Query()
	q.Set("configVersion", "3")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (g *GatewayClient) clientAPIURL(cfg *Configuration) string {
	if cfg != nil && cfg.ClientAPIURL != "" {
		return strings.TrimRight(cfg.ClientAPIURL, "/")
	}
	merchantID := g.auth.MerchantID
	if cfg != nil && cfg.MerchantID != "" {
		merchantID = cfg.MerchantID
	}
	return g.baseURL + "/merchants/" + url.PathEscape(merchantID) + "/client_api"
}

func (g *GatewayClient) do(ctx context.Context, req *http.Request, spanName string) ([]byte, error) {
	ctx, span := g.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", req.Method),
		attribute.String("url.path", req.URL.Path),
	)
	req = req.WithContext(ctx)

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "threedsecure-go/"+LibraryVersion)
	switch g.auth.Kind {
	case ClientToken:
		req.Header.Set("Authorization", "Bearer "+g.auth.Bearer())
	default:
		req.Header.Set("Client-Key", g.auth.Bearer())
	}
	md := ClientMetadataFromContext(ctx)
	if md == nil {
		md = g.metadata
	}
	md.applyHeaders(req.Header)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		g.logger.Warn("gateway call failed", zap.String("method", req.Method), zap.String("path", req.URL.Path), zap.Error(err))
		return nil, fmt.Errorf("threedsecure: %s %s: %w", req.Method, req.URL.Path, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := readBody(resp.Body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read failure")
		return nil, fmt.Errorf("threedsecure: read %s: %w", req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		gwErr := errorFromResponse(resp, body)
		span.RecordError(gwErr)
		span.SetStatus(codes.Error, resp.Status)
		g.logger.Info("gateway rejected call", zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode))
		return nil, gwErr
	}
	g.logger.Debug("gateway call succeeded", zap.String("path", req.URL.Path), zap.Int("status", resp.StatusCode))
	return body, nil
}
