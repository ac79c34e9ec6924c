package oracle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/WessleyAI/polidossier/engine/domain"
	"github.com/WessleyAI/polidossier/pkg/metrics"
	"github.com/WessleyAI/polidossier/pkg/resilience"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Guarded routes every call through a circuit breaker. While the breaker is
// open calls fail immediately with domain.ErrUpstreamUnavailable.
func Guarded(gw Gateway, b *resilience.Breaker) Gateway {
	return GatewayFunc(func(ctx context.Context, system, user string, expectJSON bool) (string, error) {
		var out string
		err := b.Call(ctx, func(ctx context.Context) error {
			var err error
			out, err = gw.Complete(ctx, system, user, expectJSON)
			return err
		})
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return "", fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return out, err
	})
}

// Instrumented records a span, a call counter and latency for each call.
func Instrumented(gw Gateway, provider string, m *metrics.Metrics) Gateway {
	return GatewayFunc(func(ctx context.Context, system, user string, expectJSON bool) (string, error) {
		ctx, span := otel.Tracer("engine/oracle").Start(ctx, "oracle.complete")
		defer span.End()
		span.SetAttributes(
			attribute.String("oracle.provider", provider),
			attribute.Bool("oracle.expect_json", expectJSON),
			attribute.Int("oracle.prompt_len", len(user)),
		)

		start := time.Now()
		out, err := gw.Complete(ctx, system, user, expectJSON)
		m.ObserveOracle(provider, err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return out, err
	})
}
