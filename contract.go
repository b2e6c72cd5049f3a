package threedsecure

import (
	"github.com/sumup/threedsecure/cardinal"
)

// ParseChallengeResult maps the challenge activity's result code and intent
// onto a [PaymentAuthResult]:
//
//   - ResultOK carries the JWT, validate response and lookup result.
//   - ResultCanceled is an explicit user cancellation.
//   - ResultCouldNotStartCardinal carries the activity's error message.
//   - anything else is an unknown platform error.
func ParseChallengeResult(resultCode int, data *Intent) *PaymentAuthResult {
	switch resultCode {
	case ResultOK:
		if data == nil {
			return unknownActivityResult(nil)
		}
		var (
			result   Result
			validate cardinal.ValidateResponse
		)
		if ok, err := data.Extra(ExtraThreeDSecureResult, &result); !ok || err != nil {
			return unknownActivityResult(err)
		}
		if ok, err := data.Extra(ExtraValidationResponse, &validate); !ok || err != nil {
			return unknownActivityResult(err)
		}
		return &PaymentAuthResult{
			Result:           &result,
			JWT:              data.StringExtra(ExtraJWT),
			ValidateResponse: &validate,
		}
	case ResultCanceled:
		return &PaymentAuthResult{Err: newUserCanceledError(true)}
	case ResultCouldNotStartCardinal:
		msg := data.StringExtra(ExtraErrorMessage)
		if msg == "" {
			msg = msgUnableToLaunch
		}
		return &PaymentAuthResult{Err: NewAuthenticationError(CardinalCouldNotStart, msg)}
	default:
		return unknownActivityResult(nil)
	}
}

func unknownActivityResult(cause error) *PaymentAuthResult {
	return &PaymentAuthResult{Err: NewPlatformError(UnknownActivityResult, msgUnknownActivity, WithCause(cause))}
}
