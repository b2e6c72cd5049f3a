package threedsecure

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	eventInitialized                = "three-d-secure.initialized"
	eventCardinalSetupCompleted     = "three-d-secure.cardinal-sdk.init.setup-completed"
	eventCardinalSetupFailed        = "three-d-secure.cardinal-sdk.init.setup-failed"
	eventChallengePresentedFormat   = "three-d-secure.verification-flow.challenge-presented.%t"
	eventVersionFormat              = "three-d-secure.verification-flow.3ds-version.%s"
	eventLiabilityShiftedFormat     = "three-d-secure.verification-flow.liability-shifted.%t"
	eventShiftPossibleFormat        = "three-d-secure.verification-flow.liability-shift-possible.%t"
	eventActionCodeFormat           = "three-d-secure.verification-flow.cardinal-sdk.action-code.%s"
	eventUpgradeSucceeded           = "three-d-secure.verification-flow.upgrade-payment-method.succeeded"
	eventUpgradeReturnedLookupNonce = "three-d-secure.verification-flow.upgrade-payment-method.failure.returned-lookup-nonce"
	eventUpgradeErrored             = "three-d-secure.verification-flow.upgrade-payment-method.errored"
	eventCompleted                  = "three-d-secure.verification-flow.completed"
	eventFailed                     = "three-d-secure.verification-flow.failed"
	eventCanceled                   = "three-d-secure.verification-flow.canceled"
	eventTransactionTooLarge        = "three-d-secure.verification-flow.transaction-too-large"
	eventLaunchFailed               = "three-d-secure.verification-flow.launch-failed"
)

// AnalyticsSink receives named flow events. Implementations must not block
// for long; failures are swallowed by the caller.
type AnalyticsSink interface {
	Send(ctx context.Context, event string)
}

// AnalyticsFunc lifts bare functions into [AnalyticsSink].
type AnalyticsFunc func(ctx context.Context, event string)

// Send calls the wrapped function.
func (f AnalyticsFunc) Send(ctx context.Context, event string) {
	f(ctx, event)
}

type loggerAnalytics struct {
	logger *zap.Logger
}

// LoggerAnalytics writes each event as a debug log line.
func LoggerAnalytics(logger *zap.Logger) AnalyticsSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return loggerAnalytics{logger: logger.Named("analytics")}
}

func (a loggerAnalytics) Send(ctx context.Context, event string) {
	fields := []zap.Field{zap.String("event", event)}
	if md := ClientMetadataFromContext(ctx); md != nil && md.SessionID != "" {
		fields = append(fields, zap.String("session_id", md.SessionID))
	}
	a.logger.Debug("analytics event", fields...)
}

type meterAnalytics struct {
	counter metric.Int64Counter
}

// MeterAnalytics counts events on an OpenTelemetry counter named
// threedsecure.analytics.events with an "event" attribute.
func MeterAnalytics(meter metric.Meter) (AnalyticsSink, error) {
	counter, err := meter.Int64Counter(
		"threedsecure.analytics.events",
		metric.WithDescription("3D Secure verification flow events"),
	)
	if err != nil {
		return nil, fmt.Errorf("threedsecure: create analytics counter: %w", err)
	}
	return meterAnalytics{counter: counter}, nil
}

func (a meterAnalytics) Send(ctx context.Context, event string) {
	a.counter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

type multiAnalytics []AnalyticsSink

// MultiAnalytics fans events out to every non-nil sink.
func MultiAnalytics(sinks ...AnalyticsSink) AnalyticsSink {
	out := make(multiAnalytics, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multiAnalytics) Send(ctx context.Context, event string) {
	for _, s := range m {
		s.Send(ctx, event)
	}
}

// sendAnalytics never lets a sink failure reach the flow.
func sendAnalytics(ctx context.Context, sink AnalyticsSink, logger *zap.Logger, event string) {
	if sink == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("analytics sink panicked", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	sink.Send(ctx, event)
}
