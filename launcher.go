package threedsecure

import (
	"context"
	"fmt"
	"sync"
)

// LaunchFunc starts the challenge activity for intent.
type LaunchFunc func(intent *Intent) error

// ActivityResultRegistry hands out launchers whose results come back
// through the callback registered with them.
type ActivityResultRegistry interface {
	Register(key string, callback func(*PaymentAuthResult)) (launch LaunchFunc, unregister func())
}

// Host starts the challenge activity directly. Its result must be handed
// to [Client.OnActivityResult] with the same request code.
type Host interface {
	StartActivityForResult(intent *Intent, requestCode int) error
}

// HostFunc lifts bare functions into [Host].
type HostFunc func(intent *Intent, requestCode int) error

// StartActivityForResult delegates to the wrapped function.
func (f HostFunc) StartActivityForResult(intent *Intent, requestCode int) error {
	return f(intent, requestCode)
}

// ActivityResultHandler receives results of activities started through a
// [Host].
type ActivityResultHandler func(requestCode, resultCode int, data *Intent)

// InProcessRunner is both an [ActivityResultRegistry] and a [Host]. It runs
// each launched [ChallengeActivity] on its own goroutine, passing intents
// through Parcel so size limits apply as they would across processes.
type InProcessRunner struct {
	activity *ChallengeActivity

	mu        sync.Mutex
	callbacks map[string]func(*PaymentAuthResult)
	onResult  ActivityResultHandler
	ctx       context.Context
	cancel    context.CancelFunc
	running   sync.WaitGroup
}

var (
	_ ActivityResultRegistry = (*InProcessRunner)(nil)
	_ Host                   = (*InProcessRunner)(nil)
)

// NewInProcessRunner runs activity for every launch.
func NewInProcessRunner(activity *ChallengeActivity) *InProcessRunner {
	if activity == nil {
		panic("threedsecure: challenge activity is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &InProcessRunner{
		activity:  activity,
		callbacks: make(map[string]func(*PaymentAuthResult)),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Register implements [ActivityResultRegistry]. Registering a key again
// replaces its callback.
func (r *InProcessRunner) Register(key string, callback func(*PaymentAuthResult)) (LaunchFunc, func()) {
	r.mu.Lock()
	r.callbacks[key] = callback
	r.mu.Unlock()

	launch := func(intent *Intent) error {
		return r.start(intent, func(code int, data *Intent) {
			r.mu.Lock()
			cb := r.callbacks[key]
			r.mu.Unlock()
			if cb != nil {
				cb(ParseChallengeResult(code, data))
			}
		})
	}
	unregister := func() {
		r.mu.Lock()
		delete(r.callbacks, key)
		r.mu.Unlock()
	}
	return launch, unregister
}

// SetActivityResultHandler sets where results of
// [InProcessRunner.StartActivityForResult] launches go.
func (r *InProcessRunner) SetActivityResultHandler(fn ActivityResultHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onResult = fn
}

// StartActivityForResult implements [Host].
func (r *InProcessRunner) StartActivityForResult(intent *Intent, requestCode int) error {
	return r.start(intent, func(code int, data *Intent) {
		r.mu.Lock()
		fn := r.onResult
		r.mu.Unlock()
		if fn != nil {
			fn(requestCode, code, data)
		}
	})
}

// Back cancels every running challenge as if the cardholder pressed back.
// Later launches are unaffected.
func (r *InProcessRunner) Back() {
	r.mu.Lock()
	cancel := r.cancel
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()
	cancel()
}

// Wait blocks until every running challenge has finished and delivered.
func (r *InProcessRunner) Wait() {
	r.running.Wait()
}

func (r *InProcessRunner) start(intent *Intent, deliver func(code int, data *Intent)) error {
	if intent == nil {
		return fmt.Errorf("threedsecure: launch intent is required")
	}
	parcel, err := intent.Parcel()
	if err != nil {
		return err
	}
	launched, err := UnparcelIntent(parcel)
	if err != nil {
		return err
	}

	r.mu.Lock()
	ctx := r.ctx
	r.mu.Unlock()

	r.running.Add(1)
	go func() {
		defer r.running.Done()
		code, data := r.activity.Run(ctx, launched)
		if data != nil {
			if p, err := data.Parcel(); err == nil {
				data, _ = UnparcelIntent(p)
			} else {
				code, data = ResultCouldNotStartCardinal, NewIntent()
				_ = data.PutExtra(ExtraErrorMessage, msgTransactionTooLarge)
			}
		}
		deliver(code, data)
	}()
	return nil
}
