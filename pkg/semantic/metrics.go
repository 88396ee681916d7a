package semantic

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/contextos/pkg/semantic"

// Metrics holds semantic engine instrumentation.
type Metrics struct {
	meter          metric.Meter
	logger         *zap.Logger
	embedDuration  metric.Float64Histogram
	embedErrors    metric.Int64Counter
	searchDuration metric.Float64Histogram
	searchResults  metric.Int64Histogram
}

// NewMetrics creates semantic metrics instruments.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Metrics{
		meter:  otel.Meter(instrumentationName),
		logger: logger,
	}
	m.init()
	return m
}

func (m *Metrics) init() {
	var err error

	m.embedDuration, err = m.meter.Float64Histogram(
		"contextos.semantic.embedding_duration_seconds",
		metric.WithDescription("Duration of one embedding call in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0),
	)
	if err != nil {
		m.logger.Warn("failed to create embedding duration histogram", zap.Error(err))
	}

	m.embedErrors, err = m.meter.Int64Counter(
		"contextos.semantic.embedding_errors_total",
		metric.WithDescription("Embedding calls that fell back to the zero vector"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		m.logger.Warn("failed to create embedding errors counter", zap.Error(err))
	}

	m.searchDuration, err = m.meter.Float64Histogram(
		"contextos.semantic.search_duration_seconds",
		metric.WithDescription("End-to-end duration of one semantic search, embedding included"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		m.logger.Warn("failed to create search duration histogram", zap.Error(err))
	}

	m.searchResults, err = m.meter.Int64Histogram(
		"contextos.semantic.search_results",
		metric.WithDescription("Results returned per semantic search after similarity filtering"),
		metric.WithUnit("{result}"),
		metric.WithExplicitBucketBoundaries(0, 1, 2, 5, 10, 25, 50),
	)
	if err != nil {
		m.logger.Warn("failed to create search results histogram", zap.Error(err))
	}
}

// RecordEmbedding records one embedding call.
func (m *Metrics) RecordEmbedding(ctx context.Context, duration time.Duration, err error) {
	if m.embedDuration != nil {
		m.embedDuration.Record(ctx, duration.Seconds())
	}
	if err != nil && m.embedErrors != nil {
		m.embedErrors.Add(ctx, 1)
	}
}

// RecordSearch records one completed search.
func (m *Metrics) RecordSearch(ctx context.Context, duration time.Duration, windowSize, resultCount int) {
	attrs := metric.WithAttributes(attribute.Int("window", windowSize))
	if m.searchDuration != nil {
		m.searchDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.searchResults != nil {
		m.searchResults.Record(ctx, int64(resultCount), attrs)
	}
}
