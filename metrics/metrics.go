// Package metrics registers the Prometheus collectors the observer
// and scheduler update on every tick.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dnsentinel",
		Name:      "ticks_total",
		Help:      "Number of scheduler ticks completed.",
	})

	DomainChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dnsentinel",
		Name:      "domain_checks_total",
		Help:      "Number of per-domain observer checks, by outcome.",
	}, []string{"outcome"})

	ResolverErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dnsentinel",
		Name:      "resolver_errors_total",
		Help:      "Number of resolver transport errors encountered.",
	})

	NotificationsEmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dnsentinel",
		Name:      "notifications_emitted_total",
		Help:      "Number of notifications emitted, by title.",
	}, []string{"title"})

	NotificationsSuppressedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "dnsentinel",
		Name:      "notifications_suppressed_total",
		Help:      "Number of changes suppressed by the dampening calculator.",
	})

	DomainsMonitored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "dnsentinel",
		Name:      "domains_monitored",
		Help:      "Current count of monitored domains (static + dynamic).",
	})
)

// MustRegister registers every collector with the given registerer.
// Call once at startup.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		TicksTotal,
		DomainChecksTotal,
		ResolverErrorsTotal,
		NotificationsEmittedTotal,
		NotificationsSuppressedTotal,
		DomainsMonitored,
	)
}
