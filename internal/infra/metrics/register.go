// Package metrics exposes the Prometheus collectors for the relay and
// the AI gateway. Collector files enqueue their collectors at init
// time; main registers the whole set once.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once       sync.Once
	collectors []prometheus.Collector
)

func enqueue(cs ...prometheus.Collector) {
	collectors = append(collectors, cs...)
}

// MustRegister registers every enqueued collector with the default
// Prometheus registry. Safe to call more than once; only the first
// call does anything.
func MustRegister() {
	once.Do(func() {
		if len(collectors) > 0 {
			prometheus.MustRegister(collectors...)
		}
	})
}
