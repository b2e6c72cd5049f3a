package threedsecure

import (
	"encoding/base64"
	"errors"
	"testing"
)

func TestParseAuthorization(t *testing.T) {
	t.Parallel()

	clientToken := base64.StdEncoding.EncodeToString([]byte(`{"authorizationFingerprint":"fp-1","configUrl":"https://example.com/config","merchantId":"m-1","environment":"sandbox"}`))

	tests := map[string]struct {
		raw     string
		want    Authorization
		wantErr bool
	}{
		"tokenization key": {
			raw:  "production_t2wns2y2_dfy45jdj3dxkmz5m",
			want: Authorization{Kind: TokenizationKey, Raw: "production_t2wns2y2_dfy45jdj3dxkmz5m", Environment: "production", MerchantID: "dfy45jdj3dxkmz5m"},
		},
		"tokenization key with underscore merchant": {
			raw:  testTokenizationKey,
			want: Authorization{Kind: TokenizationKey, Raw: testTokenizationKey, Environment: "sandbox", MerchantID: "merchant_id"},
		},
		"client token": {
			raw:  clientToken,
			want: Authorization{Kind: ClientToken, Raw: clientToken, Environment: "sandbox", MerchantID: "m-1", Fingerprint: "fp-1", ConfigURL: "https://example.com/config"},
		},
		"empty": {
			raw:     "   ",
			wantErr: true,
		},
		"not base64": {
			raw:     "definitely not a token!",
			wantErr: true,
		},
		"base64 but not json": {
			raw:     base64.StdEncoding.EncodeToString([]byte("hello")),
			wantErr: true,
		},
		"client token without fingerprint": {
			raw:     base64.StdEncoding.EncodeToString([]byte(`{"configUrl":"https://example.com/config"}`)),
			wantErr: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseAuthorization(tt.raw)
			if tt.wantErr {
				var typed *Error
				if !errors.As(err, &typed) || typed.Code != InvalidConfigurationValue {
					t.Fatalf("expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got != tt.want {
				t.Fatalf("unexpected authorization\n got: %+v\nwant: %+v", got, tt.want)
			}
		})
	}
}

func TestAuthorizationBearer(t *testing.T) {
	t.Parallel()

	if got := (Authorization{Kind: TokenizationKey, Raw: "key"}).Bearer(); got != "key" {
		t.Fatalf("tokenization key bearer = %q", got)
	}
	if got := (Authorization{Kind: ClientToken, Raw: "token", Fingerprint: "fp"}).Bearer(); got != "fp" {
		t.Fatalf("client token bearer = %q", got)
	}
}

func TestParseConfiguration(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfiguration([]byte(`{
		"environment": "production",
		"merchantId": "m-1",
		"clientApiUrl": "https://api.example.com/merchants/m-1/client_api",
		"threeDSecureEnabled": true,
		"threeDSecure": {"cardinalAuthenticationJWT": "  jwt-value  "},
		"analytics": {"url": "https://analytics.example.com"}
	}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.IsThreeDSecureEnabled() || cfg.CardinalAuthenticationJWT() != "jwt-value" {
		t.Fatalf("unexpected 3DS settings %+v", cfg)
	}
	if cfg.Analytics.URL != "https://analytics.example.com" || cfg.MerchantID != "m-1" {
		t.Fatalf("unexpected configuration %+v", cfg)
	}

	var nilCfg *Configuration
	if nilCfg.IsThreeDSecureEnabled() || nilCfg.CardinalAuthenticationJWT() != "" {
		t.Fatalf("nil configuration must be disabled")
	}

	if _, err := ParseConfiguration([]byte("nope")); err == nil {
		t.Fatalf("expected decode error")
	}
}
