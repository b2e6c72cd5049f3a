package threedsecure

import (
	"context"

	"go.uber.org/zap"

	"github.com/sumup/threedsecure/cardinal"
)

// ChallengeActivity hosts one native challenge. It continues the lookup
// carried by the launch intent and finishes with a result code and intent
// once the SDK validates, the challenge cannot start, or ctx is done.
type ChallengeActivity struct {
	cardinal *CardinalClient
	logger   *zap.Logger
}

// NewChallengeActivity builds an activity driving client.
func NewChallengeActivity(client *CardinalClient, opts ...Option) *ChallengeActivity {
	if client == nil {
		panic("threedsecure: cardinal client is required")
	}
	cfg := newConfig(opts)
	return &ChallengeActivity{cardinal: client, logger: cfg.logger.Named("challenge")}
}

type validation struct {
	resp cardinal.ValidateResponse
	jwt  string
}

// Run blocks until the challenge finishes. Cancelling ctx stands for the
// cardholder leaving the screen and yields ResultCanceled with no data.
func (a *ChallengeActivity) Run(ctx context.Context, launch *Intent) (int, *Intent) {
	var result Result
	if ok, err := launch.Extra(ExtraThreeDSecureResult, &result); !ok || err != nil {
		if err != nil {
			a.logger.Warn("launch intent carries an unreadable result", zap.Error(err))
		}
		return a.finishWithError(msgUnableToLaunch)
	}

	validated := make(chan validation, 1)
	receiver := func(resp cardinal.ValidateResponse, serverJWT string) {
		select {
		case validated <- validation{resp: resp, jwt: serverJWT}:
		default:
		}
	}
	if err := a.cardinal.ContinueLookup(&result, receiver); err != nil {
		return a.finishWithError(err.Error())
	}

	select {
	case v := <-validated:
		data := NewIntent()
		for key, value := range map[string]any{
			ExtraJWT:                v.jwt,
			ExtraValidationResponse: v.resp,
			ExtraThreeDSecureResult: result,
		} {
			if err := data.PutExtra(key, value); err != nil {
				return a.finishWithError(err.Error())
			}
		}
		return ResultOK, data
	case <-ctx.Done():
		return ResultCanceled, nil
	}
}

func (a *ChallengeActivity) finishWithError(message string) (int, *Intent) {
	data := NewIntent()
	_ = data.PutExtra(ExtraErrorMessage, message)
	return ResultCouldNotStartCardinal, data
}
