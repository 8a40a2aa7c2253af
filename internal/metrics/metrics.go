// Package metrics exposes OpenTelemetry counters for session
// activity. The global MeterProvider is a no-op unless the embedding
// process installs an exporter, so recording is always safe.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/promptkit/promptkit")

var (
	sessionsStarted   metric.Int64Counter
	answersSubmitted  metric.Int64Counter
	sessionsCompleted metric.Int64Counter
	providerFailures  metric.Int64Counter
	exportsProjected  metric.Int64Counter
)

func init() {
	sessionsStarted, _ = meter.Int64Counter("promptkit.sessions.started",
		metric.WithDescription("Number of enhancement sessions started"))
	answersSubmitted, _ = meter.Int64Counter("promptkit.answers.submitted",
		metric.WithDescription("Number of clarifying answers submitted"))
	sessionsCompleted, _ = meter.Int64Counter("promptkit.sessions.completed",
		metric.WithDescription("Number of sessions that reached an enhanced prompt"))
	providerFailures, _ = meter.Int64Counter("promptkit.provider.failures",
		metric.WithDescription("Number of generation calls that fell back to placeholder output"))
	exportsProjected, _ = meter.Int64Counter("promptkit.exports.projected",
		metric.WithDescription("Number of export projections produced"))
}

// SessionStarted records a started session.
func SessionStarted(ctx context.Context) { sessionsStarted.Add(ctx, 1) }

// AnswerSubmitted records an accepted answer.
func AnswerSubmitted(ctx context.Context) { answersSubmitted.Add(ctx, 1) }

// SessionCompleted records a session reaching its enhanced prompt.
func SessionCompleted(ctx context.Context) { sessionsCompleted.Add(ctx, 1) }

// ProviderFailure records a generation call masked by the fallback policy.
func ProviderFailure(ctx context.Context) { providerFailures.Add(ctx, 1) }

// ExportProjected records a produced export.
func ExportProjected(ctx context.Context) { exportsProjected.Add(ctx, 1) }
