package threedsecure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sumup/threedsecure/cardinal"
)

// Listener receives the terminal outcome of challenges.
type Listener interface {
	OnThreeDSecureSuccess(result *Result)
	OnThreeDSecureFailure(err error)
}

// ListenerFuncs adapts a pair of functions into a [Listener].
type ListenerFuncs struct {
	Success func(result *Result)
	Failure func(err error)
}

// OnThreeDSecureSuccess calls Success when set.
func (l ListenerFuncs) OnThreeDSecureSuccess(result *Result) {
	if l.Success != nil {
		l.Success(result)
	}
}

// OnThreeDSecureFailure calls Failure when set.
func (l ListenerFuncs) OnThreeDSecureFailure(err error) {
	if l.Failure != nil {
		l.Failure(err)
	}
}

// Callback receives either a result or an error.
type Callback func(result *Result, err error)

type delivery struct {
	result *Result
	err    error
}

// Client orchestrates 3D Secure verifications: it runs fingerprinting and
// the lookup, launches the challenge when the issuer asks for one, and turns
// whichever channel reports back into exactly one listener notification.
type Client struct {
	gateway    Gateway
	api        *API
	cardinal   *CardinalClient
	dispatcher Dispatcher
	ownedLoop  *MainLoop
	logger     *zap.Logger
	opts       []Option

	mu       sync.Mutex
	listener Listener
	pending  *delivery
	observer *LifecycleObserver
	attempt  attempt
}

// attempt tracks the challenge most recently launched and whether its
// outcome has been delivered.
type attempt struct {
	txn     string
	open    bool
	settled bool
}

// NewClient builds a client on top of gateway. Pass [WithCardinalSDK] to
// enable device fingerprinting and native challenges.
func NewClient(gateway Gateway, opts ...Option) *Client {
	if gateway == nil {
		panic("threedsecure: gateway is required")
	}
	cfg := newConfig(opts)
	c := &Client{
		gateway:  gateway,
		api:      NewAPI(gateway, opts...),
		cardinal: NewCardinalClient(cfg.sdk, opts...),
		logger:   cfg.logger.Named("client"),
		opts:     opts,
	}
	c.dispatcher = cfg.dispatcher
	if c.dispatcher == nil {
		c.ownedLoop = NewMainLoop()
		c.dispatcher = c.ownedLoop
	}
	return c
}

// Close stops the client's private dispatcher, if it owns one.
func (c *Client) Close() {
	if c.ownedLoop != nil {
		c.ownedLoop.Close()
	}
}

// Cardinal exposes the native SDK adapter.
func (c *Client) Cardinal() *CardinalClient {
	return c.cardinal
}

// ChallengeActivity returns an activity that continues lookups through this
// client's native SDK adapter.
func (c *Client) ChallengeActivity() *ChallengeActivity {
	return NewChallengeActivity(c.cardinal, c.opts...)
}

// SetListener registers l. A result that arrived while no listener was set
// is delivered to l right away.
func (c *Client) SetListener(l Listener) {
	c.mu.Lock()
	c.listener = l
	pending := c.pending
	if l != nil {
		c.pending = nil
	}
	c.mu.Unlock()
	if l != nil && pending != nil {
		deliverTo(l, pending)
	}
}

// PerformVerification validates req, checks the merchant configuration,
// runs fingerprinting and performs the lookup. The lookup result tells the
// caller whether [Client.ContinuePerformVerification] will show a challenge.
func (c *Client) PerformVerification(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.version() == Version1 {
		return nil, NewInvalidArgumentError(VersionOneUnsupported, msgVersionOneDeprecated, WithOffendingParam("version_requested"))
	}

	cfg, err := c.gateway.Configuration(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.IsThreeDSecureEnabled() {
		return nil, NewConfigurationError(ThreeDSecureDisabled, msgThreeDSecureDisabled)
	}
	if cfg.CardinalAuthenticationJWT() == "" {
		return nil, NewConfigurationError(MissingCardinalJWT, msgMissingCardinalJWT)
	}
	c.send(ctx, eventInitialized)

	sessionID, initErr := c.cardinal.Initialize(ctx, cfg, req)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if initErr != nil || sessionID == "" {
		// Fingerprinting is best effort: the lookup goes ahead without
		// df_reference_id.
		c.send(ctx, eventCardinalSetupFailed)
		c.logger.Info("native setup failed, continuing lookup", nonceField(req.Nonce), zap.Error(initErr))
		sessionID = ""
	} else {
		c.send(ctx, eventCardinalSetupCompleted)
	}

	return c.api.PerformLookup(ctx, req, sessionID)
}

// ContinuePerformVerification finishes a verification after the caller has
// seen the lookup result. Without a required challenge, result is handed to
// callback. Otherwise the challenge is launched through the attached
// [LifecycleObserver] or, failing that, through host; its outcome reaches
// the listener. A nil callback forwards to the listener as well.
//
// The returned error is non-nil only when launching failed for a reason
// other than an oversized payload.
func (c *Client) ContinuePerformVerification(ctx context.Context, host Host, req Request, result *Result, callback Callback) error {
	callback = c.orListener(callback)
	c.logger.Debug("continuing verification", nonceField(req.Nonce))
	if _, err := c.gateway.Configuration(ctx); err != nil {
		callback(nil, err)
		return nil
	}
	return c.startVerificationFlow(ctx, host, result, callback)
}

// InitializeChallengeWithLookupResponse continues a verification whose
// lookup was performed server side. lookupResponse is the gateway's lookup
// envelope.
func (c *Client) InitializeChallengeWithLookupResponse(ctx context.Context, host Host, req Request, lookupResponse string, callback Callback) error {
	callback = c.orListener(callback)
	c.logger.Debug("initializing challenge from server lookup", nonceField(req.Nonce))
	if _, err := c.gateway.Configuration(ctx); err != nil {
		callback(nil, err)
		return nil
	}
	result, err := ParseResult([]byte(lookupResponse))
	if err != nil {
		callback(nil, NewGatewayError(MalformedGatewayResponse, fmt.Sprintf("decode lookup response: %v", err), WithCause(err)))
		return nil
	}
	return c.startVerificationFlow(ctx, host, result, callback)
}

type prepareLookupMetadata struct {
	RequestedThreeDSecureVersion string `json:"requestedThreeDSecureVersion"`
	SDKVersion                   string `json:"sdkVersion"`
}

type prepareLookupPayload struct {
	AuthorizationFingerprint string                `json:"authorizationFingerprint"`
	BraintreeLibraryVersion  string                `json:"braintreeLibraryVersion"`
	Nonce                    string                `json:"nonce"`
	DFReferenceID            string                `json:"dfReferenceId,omitempty"`
	ClientMetadata           prepareLookupMetadata `json:"clientMetadata"`
}

// PrepareLookup returns the client data a merchant server needs to perform
// the lookup itself. Fingerprinting runs when the merchant is set up for it.
func (c *Client) PrepareLookup(ctx context.Context, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	auth, err := c.gateway.Authorization(ctx)
	if err != nil {
		return "", err
	}
	cfg, err := c.gateway.Configuration(ctx)
	if err != nil {
		return "", err
	}
	payload := prepareLookupPayload{
		AuthorizationFingerprint: auth.Bearer(),
		BraintreeLibraryVersion:  "Go-" + LibraryVersion,
		Nonce:                    req.Nonce,
		ClientMetadata: prepareLookupMetadata{
			RequestedThreeDSecureVersion: string(Version2),
			SDKVersion:                   "Go/" + LibraryVersion,
		},
	}
	if cfg.CardinalAuthenticationJWT() != "" {
		if sessionID, err := c.cardinal.Initialize(ctx, cfg, req); err == nil {
			payload.DFReferenceID = sessionID
		} else if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("threedsecure: encode prepared lookup: %w", err)
	}
	return string(out), nil
}

// OnCardinalResult reconciles a challenge result delivered through a
// registered launcher.
func (c *Client) OnCardinalResult(ctx context.Context, result *PaymentAuthResult) {
	outcome := outcomeFromPaymentAuth(result)
	c.dispatcher.Post(func() {
		c.reconcile(ctx, outcome, nil)
	})
}

// OnActivityResult reconciles the result of a challenge started through a
// [Host]. Results for other request codes are ignored.
func (c *Client) OnActivityResult(ctx context.Context, requestCode, resultCode int, data *Intent) {
	if requestCode != RequestCodeThreeDSecure {
		return
	}
	c.OnCardinalResult(ctx, ParseChallengeResult(resultCode, data))
}

// OnBrowserSwitchResult reconciles a return from a browser-hosted challenge.
func (c *Client) OnBrowserSwitchResult(ctx context.Context, result *BrowserSwitchResult) {
	outcome := c.browserSwitchOutcome(ctx, result)
	c.dispatcher.Post(func() {
		c.reconcile(ctx, outcome, nil)
	})
}

func (c *Client) startVerificationFlow(ctx context.Context, host Host, result *Result, callback Callback) error {
	if result == nil || result.Lookup == nil {
		callback(nil, NewInvalidArgumentError(MissingLookup, "lookup result is required"))
		return nil
	}
	lookup := result.Lookup
	showChallenge := lookup.RequiresUserAuthentication()
	c.send(ctx, fmt.Sprintf(eventChallengePresentedFormat, showChallenge))
	c.send(ctx, fmt.Sprintf(eventVersionFormat, lookup.ThreeDSecureVersion))

	if !showChallenge {
		c.sendLiabilityShifted(ctx, result)
		callback(result, nil)
		return nil
	}
	if !lookup.isVersion2() {
		callback(nil, NewInvalidArgumentError(VersionOneUnsupported, msgVersionOneDeprecated))
		return nil
	}

	intent := NewIntent()
	if err := intent.PutExtra(ExtraThreeDSecureResult, result); err != nil {
		return err
	}

	c.mu.Lock()
	c.attempt = attempt{txn: lookup.TransactionID, open: true}
	observer := c.observer
	c.mu.Unlock()

	var err error
	switch {
	case observer != nil:
		err = observer.Launch(intent)
	case host != nil:
		err = host.StartActivityForResult(intent, RequestCodeThreeDSecure)
	default:
		err = ErrNoLauncher
	}
	if err != nil {
		c.mu.Lock()
		c.attempt.open = false
		c.mu.Unlock()
	}
	if errors.Is(err, ErrTransactionTooLarge) {
		c.send(ctx, eventTransactionTooLarge)
		callback(nil, NewPlatformError(TransactionTooLarge, msgTransactionTooLarge, WithCause(err)))
		return nil
	}
	if err != nil {
		c.send(ctx, eventLaunchFailed)
		return fmt.Errorf("threedsecure: launch challenge: %w", err)
	}
	return nil
}

// reconcile is the single place where a challenge outcome turns into a
// notification. It runs on the dispatcher.
func (c *Client) reconcile(ctx context.Context, outcome ChallengeOutcome, callback Callback) {
	if !c.claim(outcome) {
		c.logger.Debug("dropping outcome outside the current attempt", zap.String("transaction_id", outcome.settlementKey()))
		return
	}
	callback = c.orListener(callback)

	switch outcome.kind {
	case outcomeValidated:
		resp := outcome.validate
		c.send(ctx, fmt.Sprintf(eventActionCodeFormat, strings.ToLower(string(resp.ActionCode))))
		switch resp.ActionCode {
		case cardinal.ActionSuccess, cardinal.ActionNoAction, cardinal.ActionFailure:
			result, err := c.api.AuthenticateCardinalJWT(ctx, outcome.lookup, outcome.jwt)
			if err != nil {
				c.send(ctx, eventFailed)
				callback(nil, err)
				return
			}
			if result.HasError() {
				c.send(ctx, eventFailed)
			} else {
				c.sendLiabilityShifted(ctx, result)
				c.send(ctx, eventCompleted)
			}
			callback(result, nil)
		case cardinal.ActionCancel:
			c.send(ctx, eventCanceled)
			callback(nil, newUserCanceledError(true))
		default:
			c.send(ctx, eventFailed)
			msg := resp.ErrorDescription
			if msg == "" {
				msg = fmt.Sprintf("challenge ended with action code %q", resp.ActionCode)
			}
			callback(nil, NewAuthenticationError(ChallengeFailed, msg))
		}
	case outcomeSucceeded:
		c.sendLiabilityShifted(ctx, outcome.result)
		c.send(ctx, eventCompleted)
		callback(outcome.result, nil)
	case outcomeCanceled:
		c.send(ctx, eventCanceled)
		callback(nil, outcome.err)
	default:
		c.send(ctx, eventFailed)
		callback(nil, outcome.err)
	}
}

// claim reports whether outcome is the first one for the current attempt.
// While a launch is open, keyed outcomes for another transaction are stale.
// Once it settles, repeats of the same transaction and keyless outcomes are
// duplicates until the next launch.
func (c *Client) claim(outcome ChallengeOutcome) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := outcome.settlementKey()
	a := &c.attempt
	switch {
	case a.open:
		if key != "" && key != a.txn {
			return false
		}
		a.open = false
	case key == "":
		if a.settled {
			return false
		}
	case a.settled && key == a.txn:
		return false
	default:
		a.txn = key
	}
	a.settled = true
	return true
}

func (c *Client) browserSwitchOutcome(_ context.Context, result *BrowserSwitchResult) ChallengeOutcome {
	if result == nil {
		return failedOutcome(NewPlatformError(UnknownActivityResult, "browser switch result is required"))
	}
	if result.Status == BrowserSwitchCanceled {
		return canceledOutcome(false)
	}
	authResponse := result.authResponse()
	if authResponse == "" {
		return failedOutcome(NewGatewayError(MalformedGatewayResponse, "auth_response is missing from the return url"))
	}
	parsed, err := ParseResult([]byte(authResponse))
	if err != nil {
		return failedOutcome(NewGatewayError(MalformedGatewayResponse, fmt.Sprintf("decode auth_response: %v", err), WithCause(err)))
	}
	if parsed.HasError() {
		return failedOutcome(&ErrorWithResponse{StatusCode: 422, Message: parsed.ErrorMessage, Body: []byte(authResponse)})
	}
	return succeededOutcome(parsed)
}

func (c *Client) orListener(callback Callback) Callback {
	if callback != nil {
		return callback
	}
	return func(result *Result, err error) {
		c.notify(&delivery{result: result, err: err})
	}
}

func (c *Client) notify(d *delivery) {
	c.mu.Lock()
	l := c.listener
	if l == nil {
		c.pending = d
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	deliverTo(l, d)
}

func deliverTo(l Listener, d *delivery) {
	if d.err != nil {
		l.OnThreeDSecureFailure(d.err)
		return
	}
	l.OnThreeDSecureSuccess(d.result)
}

func (c *Client) attachObserver(o *LifecycleObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observer = o
}

func (c *Client) detachObserver(o *LifecycleObserver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.observer == o {
		c.observer = nil
	}
}

func (c *Client) sendLiabilityShifted(ctx context.Context, result *Result) {
	if result == nil || result.CardNonce == nil {
		return
	}
	info := result.CardNonce.ThreeDSecureInfo
	c.send(ctx, fmt.Sprintf(eventLiabilityShiftedFormat, info.LiabilityShifted))
	c.send(ctx, fmt.Sprintf(eventShiftPossibleFormat, info.LiabilityShiftPossible))
}

func (c *Client) send(ctx context.Context, event string) {
	sendAnalytics(ctx, AnalyticsFunc(c.gateway.SendAnalyticsEvent), c.logger, event)
}
