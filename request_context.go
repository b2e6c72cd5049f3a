package threedsecure

import (
	"context"
	"net/http"
)

// ClientMetadata describes the integration making gateway calls. It is sent
// as request headers and embedded in PrepareLookup payloads.
type ClientMetadata struct {
	// Identifier shared by every call of one client session.
	//
	// Example: 3f1c5d0e-55a5-4fb1-9a2a-8b37f2dc5c0e
	SessionID string `json:"sessionId"`
	// How the merchant integrated the SDK.
	//
	// Example: custom
	Integration string `json:"integration"`
	// Where the payment method came from.
	//
	// Example: client
	Source string `json:"source"`
	// Library version reported to the gateway.
	//
	// Example: 4.49.1
	Version string `json:"version,omitempty"`
}

const (
	defaultIntegration = "custom"
	defaultSource      = "client"
)

func (m *ClientMetadata) applyHeaders(h http.Header) {
	if m == nil {
		return
	}
	if m.SessionID != "" {
		h.Set("Braintree-Session-Id", m.SessionID)
	}
	if m.Integration != "" {
		h.Set("Braintree-Integration", m.Integration)
	}
	if m.Source != "" {
		h.Set("Braintree-Source", m.Source)
	}
}

type clientMetadataKey struct{}

// ContextWithClientMetadata attaches metadata to ctx for downstream gateway
// calls.
func ContextWithClientMetadata(ctx context.Context, md *ClientMetadata) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if md == nil {
		return ctx
	}
	return context.WithValue(ctx, clientMetadataKey{}, md)
}

// ClientMetadataFromContext extracts metadata previously stored in ctx.
func ClientMetadataFromContext(ctx context.Context) *ClientMetadata {
	if ctx == nil {
		return nil
	}
	if md, ok := ctx.Value(clientMetadataKey{}).(*ClientMetadata); ok {
		return md
	}
	return nil
}

// withDefaultMetadata attaches fallback metadata unless ctx already has some.
func withDefaultMetadata(ctx context.Context, fallback *ClientMetadata) context.Context {
	if ClientMetadataFromContext(ctx) != nil {
		return ctx
	}
	return ContextWithClientMetadata(ctx, fallback)
}
