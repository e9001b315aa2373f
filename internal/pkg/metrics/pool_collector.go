package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStats is a point-in-time view of a connection pool.
type PoolStats struct {
	Acquired        int32
	Idle            int32
	Max             int32
	Acquires        int64
	CanceledAcquire int64
	EmptyAcquire    int64
	AcquireSeconds  float64
}

// StatsOf reads the stats of a pgx pool.
func StatsOf(pool *pgxpool.Pool) func() PoolStats {
	return func() PoolStats {
		s := pool.Stat()
		return PoolStats{
			Acquired:        s.AcquiredConns(),
			Idle:            s.IdleConns(),
			Max:             s.MaxConns(),
			Acquires:        s.AcquireCount(),
			CanceledAcquire: s.CanceledAcquireCount(),
			EmptyAcquire:    s.EmptyAcquireCount(),
			AcquireSeconds:  s.AcquireDuration().Seconds(),
		}
	}
}

// PoolCollector exports pool stats at scrape time.
type PoolCollector struct {
	stats func() PoolStats

	connections     *prometheus.Desc
	acquires        *prometheus.Desc
	canceledAcquire *prometheus.Desc
	emptyAcquire    *prometheus.Desc
	acquireSeconds  *prometheus.Desc
}

// NewPoolCollector creates a collector reading from stats on every scrape.
func NewPoolCollector(stats func() PoolStats) *PoolCollector {
	name := func(n string) string { return prometheus.BuildFQName(namespace, "db", n) }
	return &PoolCollector{
		stats: stats,
		connections: prometheus.NewDesc(name("pool_connections"),
			"Number of database connections by state", []string{"state"}, nil),
		acquires: prometheus.NewDesc(name("pool_acquires_total"),
			"Connections acquired from the pool", nil, nil),
		canceledAcquire: prometheus.NewDesc(name("pool_canceled_acquires_total"),
			"Acquires abandoned because the request context ended", nil, nil),
		emptyAcquire: prometheus.NewDesc(name("pool_empty_acquires_total"),
			"Acquires that had to wait for a free connection", nil, nil),
		acquireSeconds: prometheus.NewDesc(name("pool_acquire_seconds_total"),
			"Time spent waiting for connections", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.connections
	ch <- c.acquires
	ch <- c.canceledAcquire
	ch <- c.emptyAcquire
	ch <- c.acquireSeconds
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Acquired), "in_use")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Idle), "idle")
	ch <- prometheus.MustNewConstMetric(c.connections, prometheus.GaugeValue, float64(s.Max), "max")
	ch <- prometheus.MustNewConstMetric(c.acquires, prometheus.CounterValue, float64(s.Acquires))
	ch <- prometheus.MustNewConstMetric(c.canceledAcquire, prometheus.CounterValue, float64(s.CanceledAcquire))
	ch <- prometheus.MustNewConstMetric(c.emptyAcquire, prometheus.CounterValue, float64(s.EmptyAcquire))
	ch <- prometheus.MustNewConstMetric(c.acquireSeconds, prometheus.CounterValue, s.AcquireSeconds)
}
