package threedsecure

import (
	"context"
	"sync"
)

const resultRegistryKey = "com.braintreepayments.api.ThreeDSecure.RESULT"

// LifecycleObserver ties a challenge launcher to the lifetime of the screen
// that owns it. Create one per screen and forward the screen's lifecycle
// events to it.
type LifecycleObserver struct {
	client   *Client
	registry ActivityResultRegistry

	mu         sync.Mutex
	launch     LaunchFunc
	unregister func()
}

// NewLifecycleObserver binds client to registry.
func NewLifecycleObserver(registry ActivityResultRegistry, client *Client) *LifecycleObserver {
	if registry == nil || client == nil {
		panic("threedsecure: registry and client are required")
	}
	return &LifecycleObserver{client: client, registry: registry}
}

// OnCreate registers the launcher and attaches the observer to the client,
// which then launches challenges through it. Results are reconciled with ctx.
func (o *LifecycleObserver) OnCreate(ctx context.Context) {
	launch, unregister := o.registry.Register(resultRegistryKey, func(result *PaymentAuthResult) {
		o.client.OnCardinalResult(ctx, result)
	})
	o.mu.Lock()
	o.launch, o.unregister = launch, unregister
	o.mu.Unlock()
	o.client.attachObserver(o)
}

// OnResume checks for a pending browser-switch return. The check is posted
// to the client's dispatcher so intent deliveries queued before it settle
// first.
func (o *LifecycleObserver) OnResume(ctx context.Context, source BrowserSwitchSource) {
	if source == nil {
		return
	}
	o.client.dispatcher.Post(func() {
		if source.Pending(RequestCodeThreeDSecure) == nil {
			return
		}
		if result := source.Deliver(RequestCodeThreeDSecure); result != nil {
			o.client.reconcile(ctx, o.client.browserSwitchOutcome(ctx, result), nil)
		}
	})
}

// OnDestroy unregisters the launcher and detaches from the client.
func (o *LifecycleObserver) OnDestroy() {
	o.mu.Lock()
	unregister := o.unregister
	o.launch, o.unregister = nil, nil
	o.mu.Unlock()
	if unregister != nil {
		unregister()
	}
	o.client.detachObserver(o)
}

// Launch starts the challenge through the registered launcher.
func (o *LifecycleObserver) Launch(intent *Intent) error {
	o.mu.Lock()
	launch := o.launch
	o.mu.Unlock()
	if launch == nil {
		return ErrNoLauncher
	}
	return launch(intent)
}
