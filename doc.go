// Package threedsecure verifies cards with 3D Secure against a Braintree
// style gateway and runs the Cardinal challenge when the issuer asks for one.
//
// # Verification
//
// Build a [GatewayClient] from [Settings] (see [LoadSettingsFromEnv]) and
// pass it to [NewClient]. [Client.PerformVerification] validates the
// [Request], prepares the Cardinal session and posts the lookup. The returned
// [Result] goes to [Client.ContinuePerformVerification], which either
// finishes frictionless verifications straight away or launches the
// challenge screen.
//
// Outcomes are delivered once per transaction, either to the [Callback]
// given to the call or to the [Listener] set with [Client.SetListener].
//
// # Challenges
//
// Register a [LifecycleObserver] with an [ActivityResultRegistry] such as
// [InProcessRunner] so challenge results flow back into the client on the
// main loop. Browser-hosted challenges return through
// [BrowserSwitchHandler], and [LifecycleObserver.OnResume] picks up the
// stored [BrowserSwitchResult].
//
// The cardinal subpackage defines the SDK surface the client drives and a
// Sandbox that issues signed challenge tokens for development.
package threedsecure
