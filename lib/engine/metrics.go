package engine

import (
	"fmt"

	"github.com/VictoriaMetrics/metrics"
)

// poolMetrics bundles the connection pool counters of one engine.
//
// All metrics carry an `engine` label so several engines in one process stay
// distinguishable. They are exported through the default metrics set, which
// the network server exposes on its /metrics endpoint.
type poolMetrics struct {
	acquired *metrics.Counter
	released *metrics.Counter
	opened   *metrics.Counter
	closed   *metrics.Counter
}

func newPoolMetrics(engineName string) *poolMetrics {
	return &poolMetrics{
		acquired: metrics.GetOrCreateCounter(fmt.Sprintf(`syndb_pool_acquired_total{engine=%q}`, engineName)),
		released: metrics.GetOrCreateCounter(fmt.Sprintf(`syndb_pool_released_total{engine=%q}`, engineName)),
		opened:   metrics.GetOrCreateCounter(fmt.Sprintf(`syndb_pool_conns_opened_total{engine=%q}`, engineName)),
		closed:   metrics.GetOrCreateCounter(fmt.Sprintf(`syndb_pool_conns_closed_total{engine=%q}`, engineName)),
	}
}

// registerIdleGauge exports the current idle connection count of a pool
func registerIdleGauge(engineName string, pool connPool) {
	metrics.GetOrCreateGauge(fmt.Sprintf(`syndb_pool_conns_idle{engine=%q}`, engineName), func() float64 {
		return float64(pool.idle())
	})
}
