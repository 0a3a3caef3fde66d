package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registered once at init; the hub is a process singleton so package-level
// collectors are enough. Exposed through /metrics on the HTTP router.
var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resonance_connections",
		Help: "Current number of open socket connections",
	})

	boundUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resonance_bound_users",
		Help: "Current number of authenticated identity bindings",
	})

	voiceRoomsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "resonance_voice_rooms",
		Help: "Current number of live voice rooms",
	})

	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "resonance_events_total",
		Help: "Total number of inbound client events by type",
	}, []string{"type"})

	droppedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "resonance_dropped_frames_total",
		Help: "Total number of outbound frames dropped on saturated or closed connections",
	})
)
