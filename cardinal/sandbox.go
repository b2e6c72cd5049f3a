package cardinal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Decider picks the outcome of a sandbox challenge.
type Decider func(transactionID, payload string) ActionCode

// ChallengePayload is the Payload claim of a sandbox challenge JWT.
type ChallengePayload struct {
	ActionCode       ActionCode `json:"ActionCode"`
	TransactionID    string     `json:"TransactionId"`
	ErrorNumber      int        `json:"ErrorNumber,omitempty"`
	ErrorDescription string     `json:"ErrorDescription,omitempty"`
}

// ChallengeClaims are the claims of a JWT issued by [Sandbox] after a challenge.
type ChallengeClaims struct {
	jwt.RegisteredClaims
	ConsumerSessionID string           `json:"ConsumerSessionId"`
	Payload           ChallengePayload `json:"Payload"`
}

// SandboxOption customizes a [Sandbox].
type SandboxOption func(*Sandbox)

// WithDecider overrides the default SUCCESS outcome.
func WithDecider(d Decider) SandboxOption {
	return func(s *Sandbox) {
		if d != nil {
			s.decide = d
		}
	}
}

// WithInitError makes Init fail synchronously.
func WithInitError(err error) SandboxOption {
	return func(s *Sandbox) {
		s.initErr = err
	}
}

// WithContinueError makes Continue fail synchronously.
func WithContinueError(err error) SandboxOption {
	return func(s *Sandbox) {
		s.continueErr = err
	}
}

// WithSandboxClock provides deterministic issue times in tests.
func WithSandboxClock(fn func() time.Time) SandboxOption {
	return func(s *Sandbox) {
		if fn != nil {
			s.clock = fn
		}
	}
}

// Sandbox is an in-process [SDK]. It never renders UI: Init completes
// setup with a fresh session id and Continue resolves the challenge through
// the configured [Decider], signing the result JWT with an HMAC key.
// Callbacks are delivered on their own goroutine, like the native SDK.
type Sandbox struct {
	key         []byte
	decide      Decider
	initErr     error
	continueErr error
	clock       func() time.Time

	mu         sync.Mutex
	params     *ConfigParameters
	sessionID  string
	continued  []string
	callbacks  sync.WaitGroup
	authClaims jwt.MapClaims
}

// NewSandbox builds a sandbox SDK signing challenge JWTs with key.
func NewSandbox(key []byte, opts ...SandboxOption) *Sandbox {
	if len(key) == 0 {
		panic("cardinal: sandbox signing key is required")
	}
	s := &Sandbox{
		key:   key,
		clock: time.Now,
		decide: func(string, string) ActionCode {
			return ActionSuccess
		},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// Configure records the parameters for later inspection.
func (s *Sandbox) Configure(params ConfigParameters) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := params
	s.params = &p
	return nil
}

// Parameters returns the last configuration, or nil before Configure.
func (s *Sandbox) Parameters() *ConfigParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Init reads the gateway-issued JWT and completes setup asynchronously.
// A malformed JWT is reported through OnValidated without a session id.
func (s *Sandbox) Init(serverJWT string, svc InitService) error {
	if svc == nil {
		return errors.New("cardinal: init service is required")
	}
	if s.initErr != nil {
		return s.initErr
	}
	s.mu.Lock()
	configured := s.params != nil
	s.mu.Unlock()
	if !configured {
		return errors.New("cardinal: Init called before Configure")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(serverJWT, claims); err != nil {
		s.async(func() {
			svc.OnValidated(ValidateResponse{
				ActionCode:       ActionError,
				ErrorNumber:      1010,
				ErrorDescription: fmt.Sprintf("invalid server JWT: %v", err),
			}, "")
		})
		return nil
	}

	sessionID := uuid.NewString()
	s.mu.Lock()
	s.authClaims = claims
	s.sessionID = sessionID
	s.mu.Unlock()
	s.async(func() {
		svc.OnSetupCompleted(sessionID)
	})
	return nil
}

// Continue resolves a challenge for transactionID and reports it to receiver.
func (s *Sandbox) Continue(transactionID, payload string, receiver ValidateReceiver) error {
	if receiver == nil {
		return errors.New("cardinal: validate receiver is required")
	}
	if s.continueErr != nil {
		return s.continueErr
	}
	if transactionID == "" {
		return errors.New("cardinal: transaction id is required")
	}
	s.mu.Lock()
	sessionID := s.sessionID
	s.continued = append(s.continued, transactionID)
	s.mu.Unlock()

	code := s.decide(transactionID, payload)
	s.async(func() {
		resp := ValidateResponse{ActionCode: code}
		switch code {
		case ActionSuccess, ActionNoAction, ActionFailure:
			resp.Validated = true
		case ActionError:
			resp.ErrorNumber = 1020
			resp.ErrorDescription = "sandbox challenge error"
		case ActionTimeout:
			resp.ErrorNumber = 1030
			resp.ErrorDescription = "sandbox challenge timed out"
		}
		if !resp.Validated {
			receiver(resp, "")
			return
		}
		token, err := s.sign(sessionID, transactionID, resp)
		if err != nil {
			receiver(ValidateResponse{
				ActionCode:       ActionError,
				ErrorNumber:      1040,
				ErrorDescription: err.Error(),
			}, "")
			return
		}
		receiver(resp, token)
	})
	return nil
}

// AuthClaims returns the unverified claims of the JWT passed to Init.
func (s *Sandbox) AuthClaims() jwt.MapClaims {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authClaims
}

// Continued returns the transaction ids passed to Continue, in order.
func (s *Sandbox) Continued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.continued...)
}

// Wait blocks until every callback scheduled so far has run.
func (s *Sandbox) Wait() {
	s.callbacks.Wait()
}

func (s *Sandbox) async(fn func()) {
	s.callbacks.Add(1)
	go func() {
		defer s.callbacks.Done()
		fn()
	}()
}

func (s *Sandbox) sign(sessionID, transactionID string, resp ValidateResponse) (string, error) {
	now := s.clock().UTC()
	claims := ChallengeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Issuer:   "cardinal-sandbox",
			IssuedAt: jwt.NewNumericDate(now),
		},
		ConsumerSessionID: sessionID,
		Payload: ChallengePayload{
			ActionCode:       resp.ActionCode,
			TransactionID:    transactionID,
			ErrorNumber:      resp.ErrorNumber,
			ErrorDescription: resp.ErrorDescription,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("cardinal: sign challenge jwt: %w", err)
	}
	return signed, nil
}

// ParseChallengeJWT verifies a JWT issued by a [Sandbox] signing with key.
func ParseChallengeJWT(token string, key []byte) (*ChallengeClaims, error) {
	var claims ChallengeClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("cardinal: parse challenge jwt: %w", err)
	}
	return &claims, nil
}
