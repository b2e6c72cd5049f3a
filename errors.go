package threedsecure

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType classifies a verification failure.
type ErrorType string

const (
	InvalidArgument     ErrorType = "invalid_argument"     // Request failed validation before any network call.
	ConfigurationError  ErrorType = "configuration_error"  // Merchant account is not entitled or configured for 3DS.
	GatewayError        ErrorType = "gateway_error"        // Lookup or authenticate call failed or returned garbage.
	AuthenticationError ErrorType = "authentication_error" // Native SDK setup or challenge failed.
	PlatformError       ErrorType = "platform_error"       // Host platform refused to launch the challenge.
)

// ErrorCode is a machine-readable identifier for the specific failure.
type ErrorCode string

const (
	MissingNonceOrAmount      ErrorCode = "missing_nonce_or_amount"
	InvalidRequestField       ErrorCode = "invalid_request_field"
	VersionOneUnsupported     ErrorCode = "version_one_unsupported"
	ThreeDSecureDisabled      ErrorCode = "three_d_secure_disabled"
	MissingCardinalJWT        ErrorCode = "missing_cardinal_jwt"
	CardinalInitFailed        ErrorCode = "cardinal_init_failed"
	CardinalContinueFailed    ErrorCode = "cardinal_continue_failed"
	CardinalSessionMissing    ErrorCode = "cardinal_session_missing"
	CardinalCouldNotStart     ErrorCode = "cardinal_could_not_start"
	ChallengeFailed           ErrorCode = "challenge_failed"
	TransactionTooLarge       ErrorCode = "transaction_too_large"
	UnknownActivityResult     ErrorCode = "unknown_activity_result"
	MalformedGatewayResponse  ErrorCode = "malformed_gateway_response"
	MissingLookup             ErrorCode = "missing_lookup"
	InvalidConfigurationValue ErrorCode = "invalid_configuration"
)

const (
	msgMissingNonceOrAmount = "The ThreeDSecureRequest nonce and amount cannot be null"
	msgThreeDSecureDisabled = "Three D Secure is not enabled for this account. Please contact Braintree Support for assistance."
	msgMissingCardinalJWT   = "Merchant is not configured for 3DS 2.0. Please contact Braintree Support for assistance."
	msgVersionOneDeprecated = "3D Secure v1 is deprecated and no longer supported. See https://developer.paypal.com/braintree/docs/guides/3d-secure/client-side/android/v4 for more information."
	msgTransactionTooLarge  = "The 3D Secure response returned is too large to continue. Please contact Braintree Support for assistance."
	msgUserCanceled         = "User canceled 3DS."
	msgUnknownActivity      = "An unknown Android error occurred with the activity result API."
	msgSessionMissing       = "consumer session id not available"
	msgCardinalInit         = "Cardinal SDK init Error."
	msgCardinalContinue     = "Cardinal SDK cca_continue Error."
	msgUnableToLaunch       = "Unable to launch 3DS authentication."
)

var (
	// ErrTransactionTooLarge is reported by launchers when the parceled
	// challenge payload exceeds [MaxTransactionSize].
	ErrTransactionTooLarge = errors.New("threedsecure: transaction too large")
	// ErrNoLauncher is returned when neither a registered launcher nor a
	// host is available to start the challenge.
	ErrNoLauncher = errors.New("threedsecure: no challenge launcher or host available")
)

// Error is the structured failure delivered to callers and listeners.
type Error struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Param   *string   `json:"param,omitempty"`

	status int   `json:"-"`
	cause  error `json:"-"`
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// StatusCode returns the HTTP status that produced the error, or zero.
func (e *Error) StatusCode() int {
	if e == nil {
		return 0
	}
	return e.status
}

type errorOption func(*Error)

// WithOffendingParam sets the JSON path for the field that triggered the error.
func WithOffendingParam(jsonPath string) errorOption {
	return func(er *Error) {
		er.Param = &jsonPath
	}
}

// WithStatusCode records the HTTP status associated with the error.
func WithStatusCode(status int) errorOption {
	return func(er *Error) {
		er.status = status
	}
}

// WithCause wraps the underlying error so errors.Is/As can reach it.
func WithCause(err error) errorOption {
	return func(er *Error) {
		er.cause = err
	}
}

// NewInvalidArgumentError builds a validation failure.
func NewInvalidArgumentError(code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(InvalidArgument, code, message, opts...)
}

// NewConfigurationError builds an entitlement or configuration failure.
func NewConfigurationError(code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(ConfigurationError, code, message, opts...)
}

// NewAuthenticationError builds a native SDK failure.
func NewAuthenticationError(code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(AuthenticationError, code, message, opts...)
}

// NewGatewayError builds a lookup/authenticate transport or parse failure.
func NewGatewayError(code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(GatewayError, code, message, opts...)
}

// NewPlatformError builds a failure raised by the host platform.
func NewPlatformError(code ErrorCode, message string, opts ...errorOption) *Error {
	return newError(PlatformError, code, message, opts...)
}

func newError(typ ErrorType, code ErrorCode, message string, opts ...errorOption) *Error {
	errPayload := &Error{
		Type:    typ,
		Code:    code,
		Message: message,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(errPayload)
	}
	return errPayload
}

// UserCanceledError reports that the cardholder backed out of the flow.
// Explicit is true when the cancel came from the challenge UI itself rather
// than from the platform tearing the screen down.
type UserCanceledError struct {
	Message  string
	Explicit bool
}

func (e *UserCanceledError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func newUserCanceledError(explicit bool) *UserCanceledError {
	return &UserCanceledError{Message: msgUserCanceled, Explicit: explicit}
}

// IsUserCanceled reports whether err is (or wraps) a [UserCanceledError].
func IsUserCanceled(err error) bool {
	var canceled *UserCanceledError
	return errors.As(err, &canceled)
}

// ErrorWithResponse carries a gateway validation failure together with the
// raw response body.
type ErrorWithResponse struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *ErrorWithResponse) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("threedsecure: gateway rejected request (%d)", e.StatusCode)
}

// HTTPError is returned when the gateway responds with a non-2xx status that
// does not carry a structured validation error.
type HTTPError struct {
	StatusCode int
	Status     string
	Body       []byte
	Headers    http.Header
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("threedsecure http error %d (%s): %s", e.StatusCode, e.Status, e.Body)
}
