package threedsecure

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Configuration is the merchant configuration served by the gateway.
type Configuration struct {
	Environment         string                    `json:"environment"`
	MerchantID          string                    `json:"merchantId"`
	ClientAPIURL        string                    `json:"clientApiUrl"`
	ThreeDSecureEnabled bool                      `json:"threeDSecureEnabled"`
	ThreeDSecure        ThreeDSecureConfiguration `json:"threeDSecure"`
	Analytics           AnalyticsConfiguration    `json:"analytics"`
}

// ThreeDSecureConfiguration carries the 3DS2 settings of a merchant.
type ThreeDSecureConfiguration struct {
	CardinalAuthenticationJWT string `json:"cardinalAuthenticationJWT,omitempty"`
}

// AnalyticsConfiguration points at the gateway's analytics collector.
type AnalyticsConfiguration struct {
	URL string `json:"url,omitempty"`
}

// IsThreeDSecureEnabled reports whether the merchant account may run 3DS.
func (c *Configuration) IsThreeDSecureEnabled() bool {
	return c != nil && c.ThreeDSecureEnabled
}

// CardinalAuthenticationJWT returns the token used to initialize the native
// SDK, or "" when the merchant is not set up for 3DS2.
func (c *Configuration) CardinalAuthenticationJWT() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.ThreeDSecure.CardinalAuthenticationJWT)
}

// ParseConfiguration decodes a configuration document.
func ParseConfiguration(body []byte) (*Configuration, error) {
	var cfg Configuration
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("threedsecure: decode configuration: %w", err)
	}
	return &cfg, nil
}

// AuthorizationKind tells tokenization keys and client tokens apart.
type AuthorizationKind int

const (
	TokenizationKey AuthorizationKind = iota + 1
	ClientToken
)

var tokenizationKeyPattern = regexp.MustCompile(`^([a-zA-Z0-9]+)_[a-zA-Z0-9]+_([a-zA-Z0-9_]+)$`)

// Authorization is a parsed merchant credential.
type Authorization struct {
	Kind AuthorizationKind
	Raw  string

	// Environment and MerchantID are embedded in tokenization keys.
	Environment string
	MerchantID  string

	// Fingerprint and ConfigURL are embedded in client tokens.
	Fingerprint string
	ConfigURL   string
}

type clientTokenJSON struct {
	AuthorizationFingerprint string `json:"authorizationFingerprint"`
	ConfigURL                string `json:"configUrl"`
	MerchantID               string `json:"merchantId"`
	Environment              string `json:"environment"`
}

// ParseAuthorization recognizes a tokenization key (env_random_merchant) or
// a base64 encoded client token.
func ParseAuthorization(raw string) (Authorization, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Authorization{}, NewConfigurationError(InvalidConfigurationValue, "authorization is required")
	}
	if m := tokenizationKeyPattern.FindStringSubmatch(raw); m != nil {
		return Authorization{
			Kind:        TokenizationKey,
			Raw:         raw,
			Environment: m[1],
			MerchantID:  m[2],
		}, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Authorization{}, NewConfigurationError(InvalidConfigurationValue, "authorization is neither a tokenization key nor a client token", WithCause(err))
	}
	var token clientTokenJSON
	if err := json.Unmarshal(decoded, &token); err != nil {
		return Authorization{}, NewConfigurationError(InvalidConfigurationValue, "client token is not valid JSON", WithCause(err))
	}
	if token.AuthorizationFingerprint == "" || token.ConfigURL == "" {
		return Authorization{}, NewConfigurationError(InvalidConfigurationValue, "client token is missing authorizationFingerprint or configUrl")
	}
	return Authorization{
		Kind:        ClientToken,
		Raw:         raw,
		Environment: token.Environment,
		MerchantID:  token.MerchantID,
		Fingerprint: token.AuthorizationFingerprint,
		ConfigURL:   token.ConfigURL,
	}, nil
}

// Bearer is the value sent to the gateway to authorize a call.
func (a Authorization) Bearer() string {
	if a.Kind == ClientToken {
		return a.Fingerprint
	}
	return a.Raw
}
