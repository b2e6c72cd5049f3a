package threedsecure

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"
)

const (
	lookupPathFormat       = "/v1/payment_methods/%s/three_d_secure/lookup"
	authenticatePathFormat = "/v1/payment_methods/%s/three_d_secure/authenticate_from_jwt"
)

// API performs the two gateway calls of a verification. Calls are made once;
// failures are returned to the caller without retrying.
type API struct {
	gateway Gateway
	logger  *zap.Logger
}

// NewAPI wraps gateway.
func NewAPI(gateway Gateway, opts ...Option) *API {
	if gateway == nil {
		panic("threedsecure: gateway is required")
	}
	cfg := newConfig(opts)
	return &API{gateway: gateway, logger: cfg.logger.Named("api")}
}

// PerformLookup asks the gateway whether req needs a challenge.
// consumerSessionID is sent as df_reference_id when non-empty.
func (a *API) PerformLookup(ctx context.Context, req Request, consumerSessionID string) (*Result, error) {
	body, err := req.Build(consumerSessionID)
	if err != nil {
		return nil, NewInvalidArgumentError(InvalidRequestField, fmt.Sprintf("build lookup body: %v", err), WithCause(err))
	}
	raw, err := a.gateway.Post(ctx, fmt.Sprintf(lookupPathFormat, url.PathEscape(req.Nonce)), body)
	if err != nil {
		a.logger.Info("lookup failed", nonceField(req.Nonce), zap.Error(err))
		return nil, err
	}
	result, err := ParseResult(raw)
	if err != nil {
		return nil, NewGatewayError(MalformedGatewayResponse, fmt.Sprintf("decode lookup response: %v", err), WithCause(err))
	}
	if result.CardNonce == nil {
		result.CardNonce = &CardNonce{Nonce: req.Nonce}
	}
	a.logger.Debug("lookup completed",
		nonceField(req.Nonce),
		zap.Bool("challenge_required", result.Lookup.RequiresUserAuthentication()),
		zap.Bool("df_reference_id", consumerSessionID != ""),
	)
	return result, nil
}

type authenticateBody struct {
	JWT                string `json:"jwt"`
	PaymentMethodNonce string `json:"paymentMethodNonce"`
}

// AuthenticateCardinalJWT exchanges the challenge JWT for an upgraded nonce.
// When the gateway answers with an error the lookup-time nonce is put back
// on the result so the caller always holds a usable payment method.
func (a *API) AuthenticateCardinalJWT(ctx context.Context, lookup *Result, jwt string) (*Result, error) {
	if lookup == nil {
		return nil, NewInvalidArgumentError(MissingLookup, "lookup result is required")
	}
	nonce := lookup.nonce()
	body, err := json.Marshal(authenticateBody{JWT: jwt, PaymentMethodNonce: nonce})
	if err != nil {
		return nil, fmt.Errorf("threedsecure: encode authenticate body: %w", err)
	}
	raw, err := a.gateway.Post(ctx, fmt.Sprintf(authenticatePathFormat, url.PathEscape(nonce)), body)
	if err != nil {
		a.send(ctx, eventUpgradeErrored)
		return nil, err
	}
	result, err := ParseResult(raw)
	if err != nil {
		a.send(ctx, eventUpgradeErrored)
		return nil, NewGatewayError(MalformedGatewayResponse, fmt.Sprintf("decode authenticate response: %v", err), WithCause(err))
	}
	if result.HasError() {
		result.CardNonce = lookup.CardNonce
		a.send(ctx, eventUpgradeReturnedLookupNonce)
		a.logger.Info("authenticate returned an error, keeping lookup nonce", nonceField(nonce), zap.String("error", result.ErrorMessage))
		return result, nil
	}
	a.send(ctx, eventUpgradeSucceeded)
	return result, nil
}

func (a *API) send(ctx context.Context, event string) {
	sendAnalytics(ctx, AnalyticsFunc(a.gateway.SendAnalyticsEvent), a.logger, event)
}
