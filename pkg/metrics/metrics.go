// Package metrics exposes prometheus collectors for lifecycle operations.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// InstancesCreated counts provisioning attempts by result (ok/error).
	InstancesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waplane_instances_created_total",
			Help: "Total number of instance provisioning attempts",
		},
		[]string{"result"},
	)

	// Migrations counts instance migrations by result (ok/error).
	Migrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waplane_migrations_total",
			Help: "Total number of instance migrations",
		},
		[]string{"result"},
	)

	// InstancesDeleted counts instance deletions.
	InstancesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "waplane_instances_deleted_total",
			Help: "Total number of instance deletions",
		},
	)

	// NodeProbes counts node probe outcomes by status (ok/unreachable).
	NodeProbes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waplane_node_probes_total",
			Help: "Total number of node engine probes",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(InstancesCreated, Migrations, InstancesDeleted, NodeProbes)
}

// Handler returns the /metrics endpoint handler.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
