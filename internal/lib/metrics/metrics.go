// Package metrics содержит счётчики Prometheus для биллинга.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics счётчики операций биллинга.
type Metrics struct {
	InvoicesCreated    *prometheus.CounterVec // kind: free | priced
	Settlements        *prometheus.CounterVec // result: applied | duplicate
	CouponOvershoots   prometheus.Counter
	PriceFeedFailures  prometheus.Counter
	PublishFailures    prometheus.Counter
	ProvisioningEvents *prometheus.CounterVec // result: completed | skipped
}

// New создаёт счётчики и регистрирует их в reg. Если reg == nil, счётчики не регистрируются.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvoicesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmr_billing",
			Subsystem: "invoice",
			Name:      "created_total",
			Help:      "Number of invoices created",
		}, []string{"kind"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmr_billing",
			Subsystem: "settlement",
			Name:      "total",
			Help:      "Number of settlement attempts by result",
		}, []string{"result"}),
		CouponOvershoots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmr_billing",
			Subsystem: "coupon",
			Name:      "overshoot_total",
			Help:      "Settlements that found the coupon already exhausted",
		}),
		PriceFeedFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmr_billing",
			Subsystem: "pricefeed",
			Name:      "failures_total",
			Help:      "Failed exchange rate lookups",
		}),
		PublishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "xmr_billing",
			Subsystem: "provisioning",
			Name:      "publish_failures_total",
			Help:      "Provisioning jobs that could not be published",
		}),
		ProvisioningEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xmr_billing",
			Subsystem: "provisioning",
			Name:      "jobs_total",
			Help:      "Processed provisioning jobs by result",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.InvoicesCreated,
			m.Settlements,
			m.CouponOvershoots,
			m.PriceFeedFailures,
			m.PublishFailures,
			m.ProvisioningEvents,
		)
	}
	return m
}

// NewNop возвращает незарегистрированные счётчики для тестов.
func NewNop() *Metrics {
	return New(nil)
}
