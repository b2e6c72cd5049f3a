package threedsecure

import (
	"encoding/json"
	"testing"
)

func TestParseResult(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		body            string
		wantNonce       string
		wantSuccess     bool
		wantError       string
		wantChallenge   bool
		wantVerified    bool
		wantShifted     bool
		wantPossible    bool
		wantTransaction string
	}{
		"frictionless": {
			body:            frictionlessLookupJSON,
			wantNonce:       "lookup-nonce",
			wantSuccess:     true,
			wantVerified:    true,
			wantShifted:     true,
			wantPossible:    true,
			wantTransaction: "txn-frictionless",
		},
		"challenge": {
			body:            challengeLookupJSON,
			wantNonce:       "lookup-nonce",
			wantSuccess:     true,
			wantChallenge:   true,
			wantVerified:    true,
			wantPossible:    true,
			wantTransaction: "txn-challenge",
		},
		"errors array": {
			body:      authenticateErrorJSON,
			wantError: "Failed to authenticate, please try a different form of payment.",
		},
		"error object": {
			body:      `{"error":{"message":"Invalid nonce"}}`,
			wantError: "Invalid nonce",
		},
		"explicit success false": {
			body:      `{"paymentMethod":{"nonce":"n-1","threeDSecureInfo":{}},"success":false}`,
			wantNonce: "n-1",
		},
		"missing liability keys": {
			body:        `{"paymentMethod":{"nonce":"n-2","threeDSecureInfo":{"liabilityShifted":true}}}`,
			wantNonce:   "n-2",
			wantSuccess: true,
			wantShifted: true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			result := mustParseResult(t, tt.body)
			if result.nonce() != tt.wantNonce {
				t.Fatalf("expected nonce %q, got %q", tt.wantNonce, result.nonce())
			}
			if result.Success != tt.wantSuccess {
				t.Fatalf("expected success=%v", tt.wantSuccess)
			}
			if result.ErrorMessage != tt.wantError || result.HasError() != (tt.wantError != "") {
				t.Fatalf("unexpected error message %q", result.ErrorMessage)
			}
			if result.Lookup.RequiresUserAuthentication() != tt.wantChallenge {
				t.Fatalf("expected challenge=%v", tt.wantChallenge)
			}
			if result.transactionID() != tt.wantTransaction {
				t.Fatalf("expected transaction %q, got %q", tt.wantTransaction, result.transactionID())
			}
			if result.CardNonce == nil {
				return
			}
			info := result.CardNonce.ThreeDSecureInfo
			if info.WasVerified() != tt.wantVerified {
				t.Fatalf("expected verified=%v", tt.wantVerified)
			}
			if info.LiabilityShifted != tt.wantShifted || info.LiabilityShiftPossible != tt.wantPossible {
				t.Fatalf("unexpected liability %v/%v", info.LiabilityShifted, info.LiabilityShiftPossible)
			}
		})
	}
}

func TestParseResultRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	if _, err := ParseResult([]byte(`{"paymentMethod":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestResultSurvivesEncoding(t *testing.T) {
	t.Parallel()

	original := mustParseResult(t, challengeLookupJSON)
	original.CardNonce.ThreeDSecureInfo.Authentication = TransactionStatus{TransStatus: "Y"}
	raw, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	decoded := mustParseResult(t, string(raw))

	if decoded.nonce() != original.nonce() || decoded.transactionID() != original.transactionID() {
		t.Fatalf("identity lost: %+v", decoded)
	}
	if *decoded.Lookup != *original.Lookup {
		t.Fatalf("lookup changed: %+v", decoded.Lookup)
	}
	if decoded.CardNonce.ThreeDSecureInfo != original.CardNonce.ThreeDSecureInfo {
		t.Fatalf("3DS info changed: %+v", decoded.CardNonce.ThreeDSecureInfo)
	}
	if decoded.CardNonce.Details != original.CardNonce.Details {
		t.Fatalf("card details changed")
	}

	unverified := mustParseResult(t, `{"paymentMethod":{"nonce":"n","threeDSecureInfo":{}}}`)
	raw, err = json.Marshal(unverified)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if mustParseResult(t, string(raw)).CardNonce.ThreeDSecureInfo.WasVerified() {
		t.Fatalf("unverified info must stay unverified")
	}
}

func TestLookupRequiresUserAuthentication(t *testing.T) {
	t.Parallel()

	var nilLookup *Lookup
	if nilLookup.RequiresUserAuthentication() {
		t.Fatalf("nil lookup must not require a challenge")
	}
	if (&Lookup{}).RequiresUserAuthentication() {
		t.Fatalf("empty acs url must not require a challenge")
	}
	if !(&Lookup{AcsURL: "https://acs"}).RequiresUserAuthentication() {
		t.Fatalf("acs url must require a challenge")
	}
	if (&Lookup{ThreeDSecureVersion: "1.0.2"}).isVersion2() {
		t.Fatalf("1.0.2 is not a v2 lookup")
	}
}
