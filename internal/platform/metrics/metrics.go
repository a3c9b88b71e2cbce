package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nftmarket/contexts/trading/nft-marketplace/domain/entities"
)

// Collector records marketplace operation samples on its own registry and
// satisfies ports.OperationObserver.
type Collector struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	droppedEvents *prometheus.CounterVec
	busDrops      *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Name:      "operations_total",
			Help:      "Marketplace operations by outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nftmarket",
			Name:      "operation_duration_seconds",
			Help:      "Marketplace operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Name:      "events_dropped_total",
			Help:      "Events skipped because a subscriber buffer was full.",
		}, []string{"kind"}),
		busDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nftmarket",
			Name:      "bus_dropped_total",
			Help:      "Envelopes skipped by the event bus because a consumer was full.",
		}, []string{"topic"}),
	}
	c.registry.MustRegister(
		c.operations,
		c.durations,
		c.droppedEvents,
		c.busDrops,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) ObserveOperation(operation string, outcome string, elapsed time.Duration) {
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.durations.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (c *Collector) ObserveDroppedEvent(kind entities.EventKind) {
	c.droppedEvents.WithLabelValues(string(kind)).Inc()
}

// ObserveBusDrop matches the messaging bus OnDrop callback.
func (c *Collector) ObserveBusDrop(topic string) {
	c.busDrops.WithLabelValues(topic).Inc()
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
