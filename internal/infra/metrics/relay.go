package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	enqueue(
		wsConnections,
		relayEvents,
		relayBroadcasts,
		relayDropped,
	)
}

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ws_connections",
			Help: "Currently open WebSocket connections.",
		},
	)

	relayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Inbound chat events handled, by kind.",
		},
		[]string{"kind"},
	)

	relayBroadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Outbound emissions, by event name.",
		},
		[]string{"event"},
	)

	relayDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_clients_dropped_total",
			Help: "Clients dropped because their send buffer stayed full.",
		},
	)
)

func ConnOpened()    { wsConnections.Inc() }
func ConnClosed()    { wsConnections.Dec() }
func ClientDropped() { relayDropped.Inc() }

func ObserveEvent(kind string)      { relayEvents.WithLabelValues(kind).Inc() }
func ObserveBroadcast(event string) { relayBroadcasts.WithLabelValues(event).Inc() }
