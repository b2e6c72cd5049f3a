package threedsecure

import "github.com/sumup/threedsecure/cardinal"

type outcomeKind int

const (
	// outcomeValidated needs its action code resolved and possibly an
	// authenticate call.
	outcomeValidated outcomeKind = iota + 1
	outcomeSucceeded
	outcomeFailed
	outcomeCanceled
)

// ChallengeOutcome is what any delivery channel produces once the native
// challenge, the activity or the browser switch is done.
type ChallengeOutcome struct {
	kind outcomeKind

	lookup   *Result
	jwt      string
	validate cardinal.ValidateResponse

	result *Result
	err    error
}

func validatedOutcome(lookup *Result, jwt string, resp cardinal.ValidateResponse) ChallengeOutcome {
	return ChallengeOutcome{kind: outcomeValidated, lookup: lookup, jwt: jwt, validate: resp}
}

func succeededOutcome(result *Result) ChallengeOutcome {
	return ChallengeOutcome{kind: outcomeSucceeded, result: result}
}

func failedOutcome(err error) ChallengeOutcome {
	if IsUserCanceled(err) {
		return ChallengeOutcome{kind: outcomeCanceled, err: err}
	}
	return ChallengeOutcome{kind: outcomeFailed, err: err}
}

func canceledOutcome(explicit bool) ChallengeOutcome {
	return ChallengeOutcome{kind: outcomeCanceled, err: newUserCanceledError(explicit)}
}

// outcomeFromPaymentAuth adapts the challenge activity's result.
func outcomeFromPaymentAuth(p *PaymentAuthResult) ChallengeOutcome {
	switch {
	case p == nil:
		return failedOutcome(NewPlatformError(UnknownActivityResult, msgUnknownActivity))
	case p.Err != nil:
		return failedOutcome(p.Err)
	case p.ValidateResponse == nil:
		return failedOutcome(NewPlatformError(UnknownActivityResult, msgUnknownActivity))
	default:
		return validatedOutcome(p.Result, p.JWT, *p.ValidateResponse)
	}
}

// settlementKey identifies the attempt an outcome belongs to, or "" when
// the channel cannot tell.
func (o ChallengeOutcome) settlementKey() string {
	switch {
	case o.lookup != nil:
		return o.lookup.transactionID()
	case o.result != nil:
		return o.result.transactionID()
	}
	return ""
}
