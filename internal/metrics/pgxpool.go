package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterPoolMetrics exposes connection statistics of the control-plane
// database pool as Prometheus gauges.
func RegisterPoolMetrics(pool *pgxpool.Pool) {
	gauge := func(name, help string, value func(*pgxpool.Stat) int32) prometheus.GaugeFunc {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return float64(value(pool.Stat()))
		})
	}

	prometheus.MustRegister(
		gauge("db_pool_acquired_conns", "Currently acquired connections", func(s *pgxpool.Stat) int32 { return s.AcquiredConns() }),
		gauge("db_pool_idle_conns", "Currently idle connections", func(s *pgxpool.Stat) int32 { return s.IdleConns() }),
		gauge("db_pool_total_conns", "Total connections in the pool", func(s *pgxpool.Stat) int32 { return s.TotalConns() }),
		gauge("db_pool_max_conns", "Configured connection ceiling", func(s *pgxpool.Stat) int32 { return s.MaxConns() }),
	)
}
