package karaoke

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/loqalabs/loqa-karaoke/karaoke"

type metrics struct {
	utterances     metric.Int64Counter
	songsStarted   metric.Int64Counter
	songsFinished  metric.Int64Counter
	renderFailures metric.Int64Counter
	sessions       metric.Int64UpDownCounter
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}
	utterances, err := meter.Int64Counter("karaoke.utterances",
		metric.WithDescription("Transcripts handled, by outcome"))
	if err != nil {
		return nil, err
	}
	started, err := meter.Int64Counter("karaoke.songs.started",
		metric.WithDescription("Songs started, by selection method"))
	if err != nil {
		return nil, err
	}
	finished, err := meter.Int64Counter("karaoke.songs.finished",
		metric.WithDescription("Songs sung to the last line"))
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("karaoke.render.failures",
		metric.WithDescription("Renders the display surface rejected"))
	if err != nil {
		return nil, err
	}
	sessions, err := meter.Int64UpDownCounter("karaoke.sessions.active",
		metric.WithDescription("Live karaoke sessions"))
	if err != nil {
		return nil, err
	}
	return &metrics{
		utterances:     utterances,
		songsStarted:   started,
		songsFinished:  finished,
		renderFailures: failures,
		sessions:       sessions,
	}, nil
}

func noopMetrics() *metrics {
	m, _ := newMetrics(noop.NewMeterProvider().Meter(meterName))
	return m
}

func (m *metrics) outcome(ctx context.Context, o Outcome) {
	m.utterances.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", string(o))))
}

func (m *metrics) songStarted(ctx context.Context, method string) {
	m.songsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
}
