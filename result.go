package threedsecure

import (
	"encoding/json"
	"strings"

	"github.com/sumup/threedsecure/cardinal"
)

// CardDetails describes the tokenized card behind a nonce.
type CardDetails struct {
	CardType string `json:"cardType,omitempty"`
	LastTwo  string `json:"lastTwo,omitempty"`
	LastFour string `json:"lastFour,omitempty"`
	BIN      string `json:"bin,omitempty"`
}

// CardNonce is the payment method reference returned by the gateway,
// carrying the 3DS liability information.
type CardNonce struct {
	Nonce            string           `json:"nonce"`
	Type             string           `json:"type,omitempty"`
	Description      string           `json:"description,omitempty"`
	IsDefault        bool             `json:"default"`
	Details          CardDetails      `json:"details"`
	ThreeDSecureInfo ThreeDSecureInfo `json:"threeDSecureInfo"`
}

// TransactionStatus is the issuer's status for one 3DS leg.
type TransactionStatus struct {
	TransStatus       string `json:"transStatus,omitempty"`
	TransStatusReason string `json:"transStatusReason,omitempty"`
}

// ThreeDSecureInfo is the liability-shift verdict embedded in a [CardNonce].
type ThreeDSecureInfo struct {
	LiabilityShifted                bool
	LiabilityShiftPossible          bool
	Status                          string
	Enrolled                        string
	CAVV                            string
	XID                             string
	ECIFlag                         string
	ThreeDSecureVersion             string
	ACSTransactionID                string
	DSTransactionID                 string
	ThreeDSecureServerTransactionID string
	ThreeDSecureAuthenticationID    string
	ParesStatus                     string
	Authentication                  TransactionStatus
	Lookup                          TransactionStatus

	verified bool
}

// WasVerified reports whether the gateway returned a liability verdict at all.
func (i ThreeDSecureInfo) WasVerified() bool {
	return i.verified
}

type threeDSecureInfoJSON struct {
	LiabilityShifted                *bool              `json:"liabilityShifted,omitempty"`
	LiabilityShiftPossible          *bool              `json:"liabilityShiftPossible,omitempty"`
	Status                          string             `json:"status,omitempty"`
	Enrolled                        string             `json:"enrolled,omitempty"`
	CAVV                            string             `json:"cavv,omitempty"`
	XID                             string             `json:"xid,omitempty"`
	ECIFlag                         string             `json:"eciFlag,omitempty"`
	ThreeDSecureVersion             string             `json:"threeDSecureVersion,omitempty"`
	ACSTransactionID                string             `json:"acsTransactionId,omitempty"`
	DSTransactionID                 string             `json:"dsTransactionId,omitempty"`
	ThreeDSecureServerTransactionID string             `json:"threeDSecureServerTransactionId,omitempty"`
	ThreeDSecureAuthenticationID    string             `json:"threeDSecureAuthenticationId,omitempty"`
	ParesStatus                     string             `json:"paresStatus,omitempty"`
	Authentication                  *TransactionStatus `json:"authentication,omitempty"`
	Lookup                          *TransactionStatus `json:"lookup,omitempty"`
}

// MarshalJSON writes the liability keys only for verified results so the
// verdict survives a round trip.
func (i ThreeDSecureInfo) MarshalJSON() ([]byte, error) {
	out := threeDSecureInfoJSON{
		Status:                          i.Status,
		Enrolled:                        i.Enrolled,
		CAVV:                            i.CAVV,
		XID:                             i.XID,
		ECIFlag:                         i.ECIFlag,
		ThreeDSecureVersion:             i.ThreeDSecureVersion,
		ACSTransactionID:                i.ACSTransactionID,
		DSTransactionID:                 i.DSTransactionID,
		ThreeDSecureServerTransactionID: i.ThreeDSecureServerTransactionID,
		ThreeDSecureAuthenticationID:    i.ThreeDSecureAuthenticationID,
		ParesStatus:                     i.ParesStatus,
	}
	if i.verified {
		shifted, possible := i.LiabilityShifted, i.LiabilityShiftPossible
		out.LiabilityShifted = &shifted
		out.LiabilityShiftPossible = &possible
	}
	if i.Authentication != (TransactionStatus{}) {
		auth := i.Authentication
		out.Authentication = &auth
	}
	if i.Lookup != (TransactionStatus{}) {
		lookup := i.Lookup
		out.Lookup = &lookup
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the gateway's threeDSecureInfo object.
func (i *ThreeDSecureInfo) UnmarshalJSON(b []byte) error {
	var in threeDSecureInfoJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*i = ThreeDSecureInfo{
		Status:                          in.Status,
		Enrolled:                        in.Enrolled,
		CAVV:                            in.CAVV,
		XID:                             in.XID,
		ECIFlag:                         in.ECIFlag,
		ThreeDSecureVersion:             in.ThreeDSecureVersion,
		ACSTransactionID:                in.ACSTransactionID,
		DSTransactionID:                 in.DSTransactionID,
		ThreeDSecureServerTransactionID: in.ThreeDSecureServerTransactionID,
		ThreeDSecureAuthenticationID:    in.ThreeDSecureAuthenticationID,
		ParesStatus:                     in.ParesStatus,
		verified:                        in.LiabilityShifted != nil && in.LiabilityShiftPossible != nil,
	}
	if in.LiabilityShifted != nil {
		i.LiabilityShifted = *in.LiabilityShifted
	}
	if in.LiabilityShiftPossible != nil {
		i.LiabilityShiftPossible = *in.LiabilityShiftPossible
	}
	if in.Authentication != nil {
		i.Authentication = *in.Authentication
	}
	if in.Lookup != nil {
		i.Lookup = *in.Lookup
	}
	return nil
}

// Lookup is the gateway's answer to whether a challenge is required.
// MD, TermURL and PaReq are v1 leftovers kept for parsing only.
type Lookup struct {
	AcsURL              string `json:"acsUrl,omitempty"`
	MD                  string `json:"md,omitempty"`
	TermURL             string `json:"termUrl,omitempty"`
	PaReq               string `json:"pareq,omitempty"`
	ThreeDSecureVersion string `json:"threeDSecureVersion,omitempty"`
	TransactionID       string `json:"transactionId,omitempty"`
}

// RequiresUserAuthentication reports whether the cardholder must complete a
// challenge.
func (l *Lookup) RequiresUserAuthentication() bool {
	return l != nil && l.AcsURL != ""
}

func (l *Lookup) isVersion2() bool {
	return l != nil && strings.HasPrefix(l.ThreeDSecureVersion, "2.")
}

// Result is the envelope returned by both lookup and authenticate calls.
type Result struct {
	CardNonce    *CardNonce
	Success      bool
	ErrorMessage string
	Lookup       *Lookup
}

// HasError reports whether the gateway attached an error message.
func (r *Result) HasError() bool {
	return r != nil && r.ErrorMessage != ""
}

func (r *Result) transactionID() string {
	if r == nil || r.Lookup == nil {
		return ""
	}
	return r.Lookup.TransactionID
}

func (r *Result) nonce() string {
	if r == nil || r.CardNonce == nil {
		return ""
	}
	return r.CardNonce.Nonce
}

type gatewayMessage struct {
	Message string `json:"message"`
}

type resultJSON struct {
	PaymentMethod *CardNonce       `json:"paymentMethod,omitempty"`
	Lookup        *Lookup          `json:"lookup,omitempty"`
	Success       *bool            `json:"success,omitempty"`
	Errors        []gatewayMessage `json:"errors,omitempty"`
	Error         *gatewayMessage  `json:"error,omitempty"`
}

// ParseResult decodes a lookup or authenticate response body.
func ParseResult(body []byte) (*Result, error) {
	var r Result
	if err := json.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// MarshalJSON writes the gateway envelope shape.
func (r Result) MarshalJSON() ([]byte, error) {
	success := r.Success
	out := resultJSON{
		PaymentMethod: r.CardNonce,
		Lookup:        r.Lookup,
		Success:       &success,
	}
	if r.ErrorMessage != "" {
		out.Errors = []gatewayMessage{{Message: r.ErrorMessage}}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the gateway envelope shape.
func (r *Result) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Result{
		CardNonce: in.PaymentMethod,
		Lookup:    in.Lookup,
	}
	switch {
	case len(in.Errors) > 0:
		r.ErrorMessage = in.Errors[0].Message
	case in.Error != nil:
		r.ErrorMessage = in.Error.Message
	}
	if in.Success != nil {
		r.Success = *in.Success
	} else {
		r.Success = r.ErrorMessage == ""
	}
	return nil
}

// PaymentAuthResult bridges the native challenge outcome back to the
// client. Exactly one of Err or the {Result, JWT, ValidateResponse} triple
// is populated.
type PaymentAuthResult struct {
	Result           *Result
	JWT              string
	ValidateResponse *cardinal.ValidateResponse
	Err              error
}
