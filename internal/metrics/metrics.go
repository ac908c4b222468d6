// Package metrics exposes Prometheus counters for the realtime and commerce paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the hub and services depend on.
type Recorder interface {
	ConnectionOpened()
	ConnectionClosed()
	ChatMessage()
	Notification(kind string)
	BroadcastDropped()
	OrderCreated()
	Payment(purpose, status string)
}

type Collector struct {
	wsConnections    prometheus.Gauge
	chatMessages     prometheus.Counter
	notifications    *prometheus.CounterVec
	broadcastDropped prometheus.Counter
	orders           prometheus.Counter
	payments         *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		wsConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "thriftly_ws_connections",
			Help: "Open websocket connections.",
		}),
		chatMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftly_chat_messages_total",
			Help: "Chat messages persisted and relayed.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thriftly_notifications_total",
			Help: "Notifications created, by type.",
		}, []string{"type"}),
		broadcastDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftly_broadcast_dropped_total",
			Help: "Events dropped because a client send buffer was full.",
		}),
		orders: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "thriftly_orders_total",
			Help: "Orders created.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "thriftly_payments_total",
			Help: "Payment callbacks processed, by purpose and outcome.",
		}, []string{"purpose", "status"}),
	}

	reg.MustRegister(
		c.wsConnections,
		c.chatMessages,
		c.notifications,
		c.broadcastDropped,
		c.orders,
		c.payments,
	)
	return c
}

func (c *Collector) ConnectionOpened()        { c.wsConnections.Inc() }
func (c *Collector) ConnectionClosed()        { c.wsConnections.Dec() }
func (c *Collector) ChatMessage()             { c.chatMessages.Inc() }
func (c *Collector) Notification(kind string) { c.notifications.WithLabelValues(kind).Inc() }
func (c *Collector) BroadcastDropped()        { c.broadcastDropped.Inc() }
func (c *Collector) OrderCreated()            { c.orders.Inc() }

func (c *Collector) Payment(purpose, status string) {
	c.payments.WithLabelValues(purpose, status).Inc()
}

// Handler returns the scrape endpoint for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything; used where metrics are not wired, such as tests.
type Nop struct{}

func (Nop) ConnectionOpened()      {}
func (Nop) ConnectionClosed()      {}
func (Nop) ChatMessage()           {}
func (Nop) Notification(string)    {}
func (Nop) BroadcastDropped()      {}
func (Nop) OrderCreated()          {}
func (Nop) Payment(string, string) {}
