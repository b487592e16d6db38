// Package metrics holds the Prometheus instruments for allocation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns a private Prometheus registry and the allocation instruments
// registered in it.
type Registry struct {
	reg          *prometheus.Registry
	Allocations  *prometheus.CounterVec
	OutOfStock   *prometheus.CounterVec
	Deallocation prometheus.Counter
	BatchesAdded prometheus.Counter
	LatencySec   prometheus.Histogram
}

// NewRegistry creates a Registry with every instrument registered.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_allocations_total",
		Help: "Order lines allocated to a batch.",
	}, []string{"sku"})
	outOfStock := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_out_of_stock_total",
		Help: "Allocation requests no batch could satisfy.",
	}, []string{"sku"})
	deallocations := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_deallocations_total",
		Help: "Order lines released from a batch.",
	})
	added := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_batches_added_total",
		Help: "Batches added to the store, one at a time or by import.",
	})
	latency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_latency_seconds",
		Help:    "Time spent allocating one order line, including the store write.",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(allocations, outOfStock, deallocations, added, latency)
	return &Registry{
		reg:          r,
		Allocations:  allocations,
		OutOfStock:   outOfStock,
		Deallocation: deallocations,
		BatchesAdded: added,
		LatencySec:   latency,
	}
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
