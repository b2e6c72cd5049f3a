// Package cardinal describes the contract of the native 3DS2 authentication
// SDK (device fingerprinting plus the challenge UI) that the verification
// client drives, and ships an in-process [Sandbox] implementation.
package cardinal

import (
	"strings"
	"time"
)

// Environment selects the Cardinal backend.
type Environment int

const (
	Staging Environment = iota
	Production
)

func (e Environment) String() string {
	if e == Production {
		return "production"
	}
	return "staging"
}

// EnvironmentFor maps a gateway environment name onto a Cardinal
// environment. Only "production" (any case) selects Production.
func EnvironmentFor(gatewayEnvironment string) Environment {
	if strings.EqualFold(strings.TrimSpace(gatewayEnvironment), "production") {
		return Production
	}
	return Staging
}

// ActionCode is the SDK's classification of a challenge attempt.
type ActionCode string

const (
	ActionSuccess  ActionCode = "SUCCESS"
	ActionNoAction ActionCode = "NOACTION"
	ActionFailure  ActionCode = "FAILURE"
	ActionError    ActionCode = "ERROR"
	ActionCancel   ActionCode = "CANCEL"
	ActionTimeout  ActionCode = "TIMEOUT"
)

// Valid reports whether c is one of the known action codes.
func (c ActionCode) Valid() bool {
	switch c {
	case ActionSuccess, ActionNoAction, ActionFailure, ActionError, ActionCancel, ActionTimeout:
		return true
	}
	return false
}

// ValidateResponse is handed back by the SDK when a validation completes.
type ValidateResponse struct {
	Validated        bool       `json:"isValidated"`
	ActionCode       ActionCode `json:"actionCode"`
	ErrorNumber      int        `json:"errorNumber,omitempty"`
	ErrorDescription string     `json:"errorDescription,omitempty"`
}

// UIType controls which challenge renderers the SDK may use.
type UIType string

const (
	UITypeNative UIType = "NATIVE"
	UITypeHTML   UIType = "HTML"
	UITypeBoth   UIType = "BOTH"
)

// RenderType enumerates challenge UI variants.
type RenderType string

const (
	RenderOTP          RenderType = "OTP"
	RenderSingleSelect RenderType = "SINGLE_SELECT"
	RenderMultiSelect  RenderType = "MULTI_SELECT"
	RenderOOB          RenderType = "OOB"
	RenderHTML         RenderType = "HTML"
)

// AllRenderTypes lists every render type in the order the SDK documents them.
var AllRenderTypes = []RenderType{RenderOTP, RenderSingleSelect, RenderMultiSelect, RenderOOB, RenderHTML}

// ConfigParameters configures the SDK before Init.
type ConfigParameters struct {
	Environment     Environment
	RequestTimeout  time.Duration
	EnableDFSync    bool
	UIType          UIType
	RenderTypes     []RenderType
	UICustomization *UICustomization
}

// UICustomization styles the native challenge screens.
type UICustomization struct {
	Toolbar *ToolbarCustomization
	Label   *LabelCustomization
	TextBox *TextBoxCustomization
	Buttons map[string]ButtonCustomization
}

// ToolbarCustomization styles the challenge toolbar.
type ToolbarCustomization struct {
	TextFontName    string
	TextColor       string
	TextFontSize    int
	BackgroundColor string
	HeaderText      string
	ButtonText      string
}

// LabelCustomization styles body and heading labels.
type LabelCustomization struct {
	TextFontName        string
	TextColor           string
	TextFontSize        int
	HeadingTextColor    string
	HeadingTextFontName string
	HeadingTextFontSize int
}

// TextBoxCustomization styles input boxes.
type TextBoxCustomization struct {
	TextFontName string
	TextColor    string
	TextFontSize int
	BorderWidth  int
	BorderColor  string
	CornerRadius int
}

// ButtonCustomization styles one button type.
type ButtonCustomization struct {
	TextFontName    string
	TextColor       string
	TextFontSize    int
	BackgroundColor string
	CornerRadius    int
}

// InitService receives the asynchronous outcome of [SDK.Init]. Calls may
// arrive on any goroutine.
type InitService interface {
	OnSetupCompleted(consumerSessionID string)
	OnValidated(resp ValidateResponse, serverJWT string)
}

// ValidateReceiver receives the outcome of a challenge started with
// [SDK.Continue]. It may be invoked on any goroutine.
type ValidateReceiver func(resp ValidateResponse, serverJWT string)

// SDK is the native authentication SDK.
type SDK interface {
	Configure(params ConfigParameters) error
	Init(serverJWT string, svc InitService) error
	Continue(transactionID, payload string, receiver ValidateReceiver) error
}
