package threedsecure

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sumup/threedsecure/cardinal"
)

const instrumentationName = "github.com/sumup/threedsecure"

type config struct {
	logger     *zap.Logger
	analytics  AnalyticsSink
	httpClient *http.Client
	tracer     trace.Tracer
	sdk        cardinal.SDK
	dispatcher Dispatcher
	metadata   *ClientMetadata
	middleware []Middleware
	clock      func() time.Time
}

func newConfig(opts []Option) *config {
	cfg := &config{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(instrumentationName)
	}
	if cfg.analytics == nil {
		cfg.analytics = LoggerAnalytics(cfg.logger)
	}
	return cfg
}

// Middleware wraps the handlers of [BrowserSwitchHandler].
type Middleware func(http.HandlerFunc) http.HandlerFunc

func applyMiddleware(h http.HandlerFunc, middleware ...Middleware) http.HandlerFunc {
	for _, m := range middleware {
		h = m(h)
	}
	return h
}

// Option customizes clients and handlers.
type Option func(*config)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithAnalytics sets the sink receiving flow events. Defaults to debug logs.
func WithAnalytics(sink AnalyticsSink) Option {
	return func(cfg *config) {
		cfg.analytics = sink
	}
}

// WithHTTPClient overrides the HTTP client used for gateway calls.
func WithHTTPClient(client *http.Client) Option {
	return func(cfg *config) {
		cfg.httpClient = client
	}
}

// WithTracerProvider selects where gateway spans are recorded. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *config) {
		if tp != nil {
			cfg.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// WithCardinalSDK sets the native authentication SDK driven by the client.
func WithCardinalSDK(sdk cardinal.SDK) Option {
	return func(cfg *config) {
		cfg.sdk = sdk
	}
}

// WithDispatcher sets the serial executor on which challenge outcomes and
// deferred lifecycle work run. Defaults to a private [MainLoop].
func WithDispatcher(d Dispatcher) Option {
	return func(cfg *config) {
		cfg.dispatcher = d
	}
}

// WithClientMetadata sets the metadata sent with calls whose context does not
// carry any.
func WithClientMetadata(md *ClientMetadata) Option {
	return func(cfg *config) {
		cfg.metadata = md
	}
}

// WithMiddleware appends custom middleware to HTTP handlers in the order
// provided.
func WithMiddleware(mw ...Middleware) Option {
	return func(cfg *config) {
		for _, m := range mw {
			if m == nil {
				continue
			}
			cfg.middleware = append(cfg.middleware, m)
		}
	}
}

// withClock provides deterministic time in tests.
func withClock(fn func() time.Time) Option {
	return func(cfg *config) {
		cfg.clock = fn
	}
}
