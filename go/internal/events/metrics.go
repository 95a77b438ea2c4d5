package events

import (
	"context"
	"time"
)

// MetricsCollector defines the interface for collecting publish metrics
type MetricsCollector interface {
	RecordEventProcessed(eventType string, success bool, duration time.Duration)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordEventProcessed(string, bool, time.Duration) {}

// MetricPublisher wraps a Publisher with metrics collection
type MetricPublisher struct {
	publisher Publisher
	metrics   MetricsCollector
}

func NewMetricPublisher(publisher Publisher, metrics MetricsCollector) *MetricPublisher {
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &MetricPublisher{
		publisher: publisher,
		metrics:   metrics,
	}
}

func (p *MetricPublisher) Publish(ctx context.Context, event Event) error {
	start := time.Now()

	err := p.publisher.Publish(ctx, event)

	p.metrics.RecordEventProcessed(string(event.Type), err == nil, time.Since(start))
	return err
}
