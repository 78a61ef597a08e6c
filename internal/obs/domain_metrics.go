package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// CheckoutTotal counts checkout attempts by outcome.
	CheckoutTotal *prometheus.CounterVec
	// PaymentIntentTotal counts payment intent creation attempts.
	PaymentIntentTotal *prometheus.CounterVec
	// PaymentWebhookTotal counts inbound payment webhook processing outcomes.
	PaymentWebhookTotal *prometheus.CounterVec
	// FinancingPaymentTotal counts financing pay-down attempts by outcome.
	FinancingPaymentTotal *prometheus.CounterVec
	// FinancingSweepLines counts lines examined by the periodic expiry sweep, by status.
	FinancingSweepLines *prometheus.CounterVec
	// PaymentIntentExpired counts payment intents expired by the background worker.
	PaymentIntentExpired prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		CheckoutTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_total",
			Help:      "Count of checkout attempts by outcome.",
		}, []string{"result"})
		PaymentIntentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_total",
			Help:      "Count of payment intent processing outcomes.",
		}, []string{"provider", "kind", "result"})
		PaymentWebhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_total",
			Help:      "Count of processed payment webhooks by outcome.",
		}, []string{"provider", "result"})
		FinancingPaymentTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "financing_payment_total",
			Help:      "Count of financing line pay-down attempts by outcome.",
		}, []string{"result"})
		FinancingSweepLines = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "financing_sweep_lines_total",
			Help:      "Lines examined by the financing expiry sweep, grouped by status.",
		}, []string{"status"})
		PaymentIntentExpired = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_intent_expired_total",
			Help:      "Number of pending payment intents expired by the worker.",
		})

		mustRegisterCollector(reg, CheckoutTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				CheckoutTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentIntentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentIntentTotal = v
			}
		})
		mustRegisterCollector(reg, PaymentWebhookTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				PaymentWebhookTotal = v
			}
		})
		mustRegisterCollector(reg, FinancingPaymentTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FinancingPaymentTotal = v
			}
		})
		mustRegisterCollector(reg, FinancingSweepLines, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				FinancingSweepLines = v
			}
		})
		mustRegisterCollector(reg, PaymentIntentExpired, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				PaymentIntentExpired = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
