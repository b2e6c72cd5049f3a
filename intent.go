package threedsecure

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	canonicaljson "github.com/gibson042/canonicaljson-go"
)

// Result codes reported by the challenge activity.
const (
	ResultCanceled              = 0
	ResultOK                    = -1
	ResultFirstUser             = 1
	ResultCouldNotStartCardinal = ResultFirstUser
)

// RequestCodeThreeDSecure tags challenge launches that go through a [Host].
const RequestCodeThreeDSecure = 13487

// MaxTransactionSize bounds a parceled intent.
const MaxTransactionSize = 1 << 20

// Extras carried across the challenge boundary.
const (
	ExtraThreeDSecureResult = "com.braintreepayments.api.ThreeDSecureActivity.EXTRA_THREE_D_SECURE_RESULT"
	ExtraErrorMessage       = "com.braintreepayments.api.ThreeDSecureActivity.EXTRA_ERROR_MESSAGE"
	ExtraValidationResponse = "com.braintreepayments.api.ThreeDSecureActivity.EXTRA_VALIDATION_RESPONSE"
	ExtraJWT                = "com.braintreepayments.api.ThreeDSecureActivity.EXTRA_JWT"
)

// Intent is the message handed to and returned from the challenge activity.
// Extras are stored in canonical JSON so a parceled intent is byte-stable.
type Intent struct {
	extras map[string]json.RawMessage
}

// NewIntent returns an empty intent.
func NewIntent() *Intent {
	return &Intent{extras: make(map[string]json.RawMessage)}
}

// PutExtra stores v under key.
func (i *Intent) PutExtra(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("threedsecure: encode extra %s: %w", key, err)
	}
	canonical, err := canonicalize(raw)
	if err != nil {
		return fmt.Errorf("threedsecure: canonicalize extra %s: %w", key, err)
	}
	if i.extras == nil {
		i.extras = make(map[string]json.RawMessage)
	}
	i.extras[key] = canonical
	return nil
}

// HasExtra reports whether key is present.
func (i *Intent) HasExtra(key string) bool {
	if i == nil {
		return false
	}
	_, ok := i.extras[key]
	return ok
}

// Extra decodes the value under key into v. It reports false when absent.
func (i *Intent) Extra(key string, v any) (bool, error) {
	if i == nil {
		return false, nil
	}
	raw, ok := i.extras[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err == nil {
		return true, nil
	}
	// Canonical JSON may write integers in exponent form.
	plain, err := plainNumbers(raw)
	if err == nil {
		err = json.Unmarshal(plain, v)
	}
	if err != nil {
		return true, fmt.Errorf("threedsecure: decode extra %s: %w", key, err)
	}
	return true, nil
}

// StringExtra returns the string under key, or "".
func (i *Intent) StringExtra(key string) string {
	var s string
	if ok, err := i.Extra(key, &s); !ok || err != nil {
		return ""
	}
	return s
}

// Parcel serializes the intent. It fails with [ErrTransactionTooLarge]
// when the result exceeds [MaxTransactionSize].
func (i *Intent) Parcel() ([]byte, error) {
	extras := i.extras
	if extras == nil {
		extras = map[string]json.RawMessage{}
	}
	data, err := canonicaljson.Marshal(extras)
	if err != nil {
		return nil, fmt.Errorf("threedsecure: parcel intent: %w", err)
	}
	if len(data) > MaxTransactionSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrTransactionTooLarge, len(data))
	}
	return data, nil
}

// UnparcelIntent restores an intent written by [Intent.Parcel].
func UnparcelIntent(data []byte) (*Intent, error) {
	extras := make(map[string]json.RawMessage)
	if err := json.Unmarshal(data, &extras); err != nil {
		return nil, fmt.Errorf("threedsecure: unparcel intent: %w", err)
	}
	return &Intent{extras: extras}, nil
}

func canonicalize(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("multiple JSON documents")
	}
	return canonicaljson.Marshal(payload)
}

func plainNumbers(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, err
	}
	return json.Marshal(rewriteNumbers(payload))
}

func rewriteNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return t
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f)
		}
		return f
	case map[string]any:
		for k, item := range t {
			t[k] = rewriteNumbers(item)
		}
		return t
	case []any:
		for idx, item := range t {
			t[idx] = rewriteNumbers(item)
		}
		return t
	default:
		return v
	}
}
