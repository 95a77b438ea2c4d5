// Package metrics exposes floor activity to Prometheus.
package metrics

import (
	"time"

	"github.com/mcdev12/gamefloor/go/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamefloor_events_total",
		Help: "Floor events published by type and outcome",
	}, []string{"type", "outcome"}) // outcome=success|failure

	eventPublishDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamefloor_event_publish_duration_seconds",
		Help:    "Time spent publishing a floor event",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})

	machines = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gamefloor_machines",
		Help: "Machines on the floor by status (last roster change)",
	}, []string{"status"}) // status=available|in_session

	pollFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamefloor_poll_failures_total",
		Help: "Background poll failures by poll",
	}, []string{"poll"}) // poll=refresh|auto_stop
)

// Collector records event publishing into the package metrics.
type Collector struct{}

func (Collector) RecordEventProcessed(eventType string, success bool, duration time.Duration) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	eventsTotal.WithLabelValues(eventType, outcome).Inc()
	eventPublishDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// SetMachines updates the per-status machine gauge from a roster snapshot.
func SetMachines(snapshot []models.Machine) {
	var available, inSession int
	for _, m := range snapshot {
		if m.Status == models.MachineStatusInSession {
			inSession++
		} else {
			available++
		}
	}
	machines.WithLabelValues(string(models.MachineStatusAvailable)).Set(float64(available))
	machines.WithLabelValues(string(models.MachineStatusInSession)).Set(float64(inSession))
}

// RecordPollFailure counts a swallowed background poll failure.
func RecordPollFailure(poll string) {
	if poll == "" {
		poll = "unknown"
	}
	pollFailuresTotal.WithLabelValues(poll).Inc()
}
