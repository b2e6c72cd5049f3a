package threedsecure

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oapi-codegen/runtime"
	"github.com/shopspring/decimal"
)

// Version is the 3DS protocol version requested for a verification.
type Version string

const (
	// Version1 is deprecated; requesting it always fails.
	Version1 Version = "1"
	// Version2 is the default and the only supported version.
	Version2 Version = "2"
)

// AccountType selects the card account to authenticate against.
type AccountType string

const (
	AccountTypeCredit AccountType = "credit"
	AccountTypeDebit  AccountType = "debit"
)

// ExemptionType names an SCA exemption the merchant asks the issuer for.
type ExemptionType string

const (
	ExemptionLowValue                ExemptionType = "low_value"
	ExemptionSecureCorporate         ExemptionType = "secure_corporate"
	ExemptionTrustedBeneficiary      ExemptionType = "trusted_beneficiary"
	ExemptionTransactionRiskAnalysis ExemptionType = "transaction_risk_analysis"
)

// Request is the input of one verification attempt.
type Request struct {
	// Nonce of the tokenized card to verify.
	Nonce string `json:"nonce" validate:"required"`
	// Amount of the transaction as a decimal string.
	//
	// Example: "10.00"
	Amount string `json:"amount" validate:"required,decimal_amount"`
	// Cardholder contact details.
	Email             string `json:"email,omitempty" validate:"omitempty,email"`
	MobilePhoneNumber string `json:"mobile_phone_number,omitempty" validate:"omitempty,max=25"`
	// Billing address of the cardholder.
	BillingAddress *PostalAddress `json:"billing_address,omitempty" validate:"omitempty"`
	// Two digit shipping method code.
	ShippingMethod string `json:"shipping_method,omitempty" validate:"omitempty,len=2,numeric"`
	// Requested protocol version. Defaults to [Version2].
	VersionRequested Version `json:"version_requested,omitempty" validate:"omitempty,oneof=1 2"`
	// Account type for cards with both a credit and a debit account.
	AccountType AccountType `json:"account_type,omitempty" validate:"omitempty,oneof=credit debit"`
	// Ask the issuer to always present a challenge.
	ChallengeRequested bool `json:"challenge_requested"`
	// Ask for a data-only flow with no challenge.
	DataOnlyRequested bool `json:"data_only_requested"`
	// Ask for an exemption from authentication.
	ExemptionRequested bool `json:"exemption_requested"`
	// Specific exemption to request.
	RequestedExemptionType ExemptionType `json:"requested_exemption_type,omitempty" validate:"omitempty,oneof=low_value secure_corporate trusted_beneficiary transaction_risk_analysis"`
	// Signals whether the card is being added to the merchant's vault.
	CardAddChallengeRequested *bool `json:"card_add,omitempty"`
	// Styling for the native challenge screens.
	V2UICustomization *V2UICustomization `json:"-"`
	// Optional risk signals.
	AdditionalInformation *AdditionalInformation `json:"additional_information,omitempty" validate:"omitempty"`
}

// PostalAddress is a cardholder billing or shipping address.
type PostalAddress struct {
	GivenName         string `json:"given_name,omitempty"`
	Surname           string `json:"surname,omitempty"`
	StreetAddress     string `json:"street_address,omitempty"`
	ExtendedAddress   string `json:"extended_address,omitempty"`
	Line3             string `json:"line3,omitempty"`
	Locality          string `json:"locality,omitempty"`
	Region            string `json:"region,omitempty"`
	PostalCode        string `json:"postal_code,omitempty"`
	CountryCodeAlpha2 string `json:"country_code_alpha2,omitempty" validate:"omitempty,len=2,alpha"`
	PhoneNumber       string `json:"phone_number,omitempty"`
}

func (a *PostalAddress) flatten(prefix string, dst map[string]any) {
	if a == nil {
		return
	}
	put := func(key, value string) {
		if value != "" {
			dst[prefix+key] = value
		}
	}
	put("given_name", a.GivenName)
	put("surname", a.Surname)
	put("line1", a.StreetAddress)
	put("line2", a.ExtendedAddress)
	put("line3", a.Line3)
	put("city", a.Locality)
	put("state", a.Region)
	put("postal_code", a.PostalCode)
	put("country_code", a.CountryCodeAlpha2)
}

func (r Request) version() Version {
	if r.VersionRequested == "" {
		return Version2
	}
	return r.VersionRequested
}

// AmountDecimal parses Amount.
func (r Request) AmountDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(r.Amount)
}

type lookupBody struct {
	Amount                 string          `json:"amount"`
	AdditionalInfo         json.RawMessage `json:"additional_info"`
	AccountType            AccountType     `json:"account_type,omitempty"`
	DFReferenceID          string          `json:"df_reference_id,omitempty"`
	ChallengeRequested     bool            `json:"challenge_requested"`
	DataOnlyRequested      bool            `json:"data_only_requested"`
	ExemptionRequested     bool            `json:"exemption_requested"`
	RequestedExemptionType ExemptionType   `json:"requested_exemption_type,omitempty"`
	CardAdd                *bool           `json:"card_add,omitempty"`
}

// Build renders the lookup request body. dfReferenceID is the Cardinal
// consumer session id and is omitted when empty.
func (r Request) Build(dfReferenceID string) ([]byte, error) {
	info := make(map[string]any)
	if r.MobilePhoneNumber != "" {
		info["mobile_phone_number"] = r.MobilePhoneNumber
	}
	if r.Email != "" {
		info["email"] = r.Email
	}
	if r.ShippingMethod != "" {
		info["shipping_method"] = r.ShippingMethod
	}
	if r.BillingAddress != nil {
		r.BillingAddress.flatten("billing_", info)
		if r.BillingAddress.PhoneNumber != "" {
			info["billing_phone_number"] = r.BillingAddress.PhoneNumber
		}
	}
	additional, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("threedsecure: marshal additional info: %w", err)
	}
	if r.AdditionalInformation != nil {
		patch, err := json.Marshal(r.AdditionalInformation)
		if err != nil {
			return nil, fmt.Errorf("threedsecure: marshal additional information: %w", err)
		}
		additional, err = runtime.JSONMerge(additional, patch)
		if err != nil {
			return nil, fmt.Errorf("threedsecure: merge additional information: %w", err)
		}
	}

	body := lookupBody{
		Amount:                 strings.TrimSpace(r.Amount),
		AdditionalInfo:         additional,
		AccountType:            r.AccountType,
		DFReferenceID:          dfReferenceID,
		ChallengeRequested:     r.ChallengeRequested,
		DataOnlyRequested:      r.DataOnlyRequested,
		ExemptionRequested:     r.ExemptionRequested,
		RequestedExemptionType: r.RequestedExemptionType,
		CardAdd:                r.CardAddChallengeRequested,
	}
	out, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("threedsecure: marshal lookup body: %w", err)
	}
	return out, nil
}

// AdditionalInformation is the optional bag of risk signals forwarded to the
// issuer. Every field is optional; empty fields are not sent.
type AdditionalInformation struct {
	// Shipping address, flattened into shipping_* keys.
	ShippingAddress *PostalAddress `json:"-" validate:"omitempty"`

	ShippingMethodIndicator       string `json:"shipping_method_indicator,omitempty"`
	ProductCode                   string `json:"product_code,omitempty"`
	DeliveryTimeframe             string `json:"delivery_timeframe,omitempty"`
	DeliveryEmail                 string `json:"delivery_email,omitempty" validate:"omitempty,email"`
	ReorderIndicator              string `json:"reorder_indicator,omitempty"`
	PreorderIndicator             string `json:"preorder_indicator,omitempty"`
	PreorderDate                  string `json:"preorder_date,omitempty"`
	GiftCardAmount                string `json:"gift_card_amount,omitempty"`
	GiftCardCurrencyCode          string `json:"gift_card_currency_code,omitempty"`
	GiftCardCount                 string `json:"gift_card_count,omitempty"`
	AccountAgeIndicator           string `json:"account_age_indicator,omitempty"`
	AccountCreateDate             string `json:"account_create_date,omitempty"`
	AccountChangeIndicator        string `json:"account_change_indicator,omitempty"`
	AccountChangeDate             string `json:"account_change_date,omitempty"`
	AccountPwdChangeIndicator     string `json:"account_pwd_change_indicator,omitempty"`
	AccountPwdChangeDate          string `json:"account_pwd_change_date,omitempty"`
	ShippingAddressUsageIndicator string `json:"shipping_address_usage_indicator,omitempty"`
	ShippingAddressUsageDate      string `json:"shipping_address_usage_date,omitempty"`
	TransactionCountDay           string `json:"transaction_count_day,omitempty"`
	TransactionCountYear          string `json:"transaction_count_year,omitempty"`
	AddCardAttempts               string `json:"add_card_attempts,omitempty"`
	AccountPurchases              string `json:"account_purchases,omitempty"`
	FraudActivity                 string `json:"fraud_activity,omitempty"`
	ShippingNameIndicator         string `json:"shipping_name_indicator,omitempty"`
	PaymentAccountIndicator       string `json:"payment_account_indicator,omitempty"`
	PaymentAccountAge             string `json:"payment_account_age,omitempty"`
	AddressMatch                  string `json:"address_match,omitempty"`
	AccountID                     string `json:"account_id,omitempty"`
	IPAddress                     string `json:"ip_address,omitempty" validate:"omitempty,ip"`
	OrderDescription              string `json:"order_description,omitempty"`
	TaxAmount                     string `json:"tax_amount,omitempty"`
	UserAgent                     string `json:"user_agent,omitempty"`
	AuthenticationIndicator       string `json:"authentication_indicator,omitempty"`
	Installment                   string `json:"installment,omitempty"`
	PurchaseDate                  string `json:"purchase_date,omitempty"`
	RecurringEnd                  string `json:"recurring_end,omitempty"`
	RecurringFrequency            string `json:"recurring_frequency,omitempty"`
	SDKMaxTimeout                 string `json:"sdk_max_timeout,omitempty"`
	WorkPhoneNumber               string `json:"work_phone_number,omitempty"`
}

// MarshalJSON flattens the shipping address next to the plain signals.
func (a AdditionalInformation) MarshalJSON() ([]byte, error) {
	type plain AdditionalInformation
	raw, err := json.Marshal(plain(a))
	if err != nil {
		return nil, err
	}
	if a.ShippingAddress == nil {
		return raw, nil
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	a.ShippingAddress.flatten("shipping_", fields)
	if a.ShippingAddress.PhoneNumber != "" {
		fields["shipping_phone"] = a.ShippingAddress.PhoneNumber
	}
	return json.Marshal(fields)
}
