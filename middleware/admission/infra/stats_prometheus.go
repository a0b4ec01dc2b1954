package infra

import (
	"context"

	"codalyzer-backend/middleware/admission/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder publica os resultados do controle de admissão como
// contadores Prometheus, rotulados apenas pelo outcome (nunca pelo cliente,
// para não explodir cardinalidade).
type PrometheusRecorder struct {
	decisions *prometheus.CounterVec
}

func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codalyzer",
		Subsystem: "admission",
		Name:      "decisions_total",
		Help:      "Admission control outcomes, by result.",
	}, []string{"outcome"})
	reg.MustRegister(decisions)

	r := &PrometheusRecorder{decisions: decisions}
	// Pré-registra as séries para que apareçam zeradas no scrape.
	for _, o := range []domain.Outcome{
		domain.OutcomeAdmitted,
		domain.OutcomeRejectedClient,
		domain.OutcomeRejectedGlobal,
		domain.OutcomeDegraded,
		domain.OutcomeStoreError,
		domain.OutcomeRefunded,
		domain.OutcomeRefundFailed,
	} {
		decisions.WithLabelValues(string(o))
	}
	return r
}

func (r *PrometheusRecorder) Record(_ context.Context, ev domain.Event) error {
	r.decisions.WithLabelValues(string(ev.Outcome)).Inc()
	return nil
}
