package threedsecure

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sumup/threedsecure/cardinal"
)

// CardinalRequestTimeout is the setup timeout handed to the native SDK.
const CardinalRequestTimeout = 8000 * time.Millisecond

// setupGrace is how long Initialize waits past CardinalRequestTimeout for an
// SDK that never reports back.
const setupGrace = 2 * time.Second

// CardinalState tracks one verification attempt through the native SDK.
type CardinalState int

const (
	CardinalUninitialized CardinalState = iota
	CardinalInitializing
	CardinalInitialized
	CardinalChallengeLaunched
	CardinalValidated
	CardinalErrored
)

func (s CardinalState) String() string {
	switch s {
	case CardinalInitializing:
		return "initializing"
	case CardinalInitialized:
		return "initialized"
	case CardinalChallengeLaunched:
		return "challenge_launched"
	case CardinalValidated:
		return "validated"
	case CardinalErrored:
		return "errored"
	default:
		return "uninitialized"
	}
}

// CardinalClient adapts the native SDK: it runs device fingerprinting to
// obtain a consumer session id and starts the challenge for a lookup.
type CardinalClient struct {
	sdk       cardinal.SDK
	logger    *zap.Logger
	setupWait time.Duration

	mu         sync.Mutex
	state      CardinalState
	sessionID  string
	generation uint64
}

// NewCardinalClient wraps sdk. A nil sdk makes every Initialize fail, which
// the verification flow tolerates.
func NewCardinalClient(sdk cardinal.SDK, opts ...Option) *CardinalClient {
	cfg := newConfig(opts)
	return &CardinalClient{
		sdk:       sdk,
		logger:    cfg.logger.Named("cardinal"),
		setupWait: CardinalRequestTimeout + setupGrace,
	}
}

// State returns the current attempt state.
func (c *CardinalClient) State() CardinalState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConsumerSessionID returns the session id captured by the last setup, or "".
func (c *CardinalClient) ConsumerSessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

type initOutcome struct {
	sessionID string
	err       error
}

// initService funnels the two native setup callbacks into one outcome.
type initService struct {
	client     *CardinalClient
	generation uint64
	once       sync.Once
	done       chan initOutcome
}

func (s *initService) OnSetupCompleted(consumerSessionID string) {
	s.once.Do(func() {
		s.client.settle(s.generation, consumerSessionID, nil)
		s.done <- initOutcome{sessionID: consumerSessionID}
	})
}

func (s *initService) OnValidated(resp cardinal.ValidateResponse, _ string) {
	s.once.Do(func() {
		sessionID := s.client.ConsumerSessionID()
		if sessionID != "" {
			s.done <- initOutcome{sessionID: sessionID}
			return
		}
		err := NewAuthenticationError(CardinalSessionMissing, msgSessionMissing)
		s.client.logger.Info("native setup validated without a session",
			zap.String("action_code", string(resp.ActionCode)),
			zap.Int("error_number", resp.ErrorNumber),
		)
		s.client.settle(s.generation, "", err)
		s.done <- initOutcome{err: err}
	})
}

func (c *CardinalClient) settle(generation uint64, sessionID string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	if err != nil {
		c.state = CardinalErrored
		return
	}
	c.sessionID = sessionID
	c.state = CardinalInitialized
}

// Initialize configures the native SDK for cfg and waits for setup. It
// returns the consumer session id, or an error when setup failed. The
// outcome is reported once even if the SDK fires both callbacks.
func (c *CardinalClient) Initialize(ctx context.Context, cfg *Configuration, req Request) (string, error) {
	c.mu.Lock()
	c.generation++
	generation := c.generation
	c.state = CardinalInitializing
	c.sessionID = ""
	c.mu.Unlock()

	params := cardinal.ConfigParameters{
		Environment:     cardinal.EnvironmentFor(cfg.Environment),
		RequestTimeout:  CardinalRequestTimeout,
		EnableDFSync:    true,
		UIType:          cardinal.UITypeBoth,
		RenderTypes:     append([]cardinal.RenderType(nil), cardinal.AllRenderTypes...),
		UICustomization: req.V2UICustomization.toCardinal(),
	}
	svc := &initService{client: c, generation: generation, done: make(chan initOutcome, 1)}

	if err := c.start(params, cfg.CardinalAuthenticationJWT(), svc); err != nil {
		c.settle(generation, "", err)
		c.logger.Warn("native setup could not start", zap.Error(err))
		return "", NewAuthenticationError(CardinalInitFailed, msgCardinalInit, WithCause(err))
	}

	timer := time.NewTimer(c.setupWait)
	defer timer.Stop()
	select {
	case out := <-svc.done:
		return out.sessionID, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
	}

	expired := false
	svc.once.Do(func() { expired = true })
	if !expired {
		out := <-svc.done
		return out.sessionID, out.err
	}
	c.settle(generation, "", errSetupTimeout)
	c.logger.Warn("native setup did not report back", zap.Duration("waited", c.setupWait))
	return "", NewAuthenticationError(CardinalInitFailed, msgCardinalInit, WithCause(errSetupTimeout))
}

var errSetupTimeout = errors.New("threedsecure: native setup timed out")

func (c *CardinalClient) start(params cardinal.ConfigParameters, serverJWT string, svc cardinal.InitService) (err error) {
	if c.sdk == nil {
		return fmt.Errorf("threedsecure: no native sdk configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("threedsecure: native sdk panicked: %v", r)
		}
	}()
	if err := c.sdk.Configure(params); err != nil {
		return err
	}
	return c.sdk.Init(serverJWT, svc)
}

// ContinueLookup starts the challenge for result's lookup. receiver fires
// once the cardholder is done, possibly on another goroutine.
func (c *CardinalClient) ContinueLookup(result *Result, receiver cardinal.ValidateReceiver) error {
	if result == nil || result.Lookup == nil {
		return NewAuthenticationError(MissingLookup, msgCardinalContinue)
	}
	if receiver == nil {
		return NewAuthenticationError(CardinalContinueFailed, msgCardinalContinue, WithCause(fmt.Errorf("threedsecure: validate receiver is required")))
	}

	c.mu.Lock()
	generation := c.generation
	c.state = CardinalChallengeLaunched
	c.mu.Unlock()

	wrapped := func(resp cardinal.ValidateResponse, serverJWT string) {
		c.mu.Lock()
		if generation == c.generation {
			c.state = CardinalValidated
		}
		c.mu.Unlock()
		receiver(resp, serverJWT)
	}

	if err := c.continueLookup(result.Lookup.TransactionID, result.Lookup.PaReq, wrapped); err != nil {
		c.mu.Lock()
		if generation == c.generation {
			c.state = CardinalErrored
		}
		c.mu.Unlock()
		c.logger.Warn("native challenge could not start", zap.Error(err))
		return NewAuthenticationError(CardinalContinueFailed, msgCardinalContinue, WithCause(err))
	}
	return nil
}

func (c *CardinalClient) continueLookup(transactionID, payload string, receiver cardinal.ValidateReceiver) (err error) {
	if c.sdk == nil {
		return fmt.Errorf("threedsecure: no native sdk configured")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("threedsecure: native sdk panicked: %v", r)
		}
	}()
	return c.sdk.Continue(transactionID, payload, receiver)
}
