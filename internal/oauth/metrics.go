package oauth

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics agrupa los contadores del protocolo. Un *Metrics nil no registra nada.
type Metrics struct {
	grants         *prometheus.CounterVec
	codesIssued    prometheus.Counter
	introspections *prometheus.CounterVec
	swept          *prometheus.CounterVec
}

// NewMetrics crea y registra los contadores. Con reg nil quedan sin registrar
// (útil en tests con testutil.ToFloat64).
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		grants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicauth_grants_total",
			Help: "Intercambios en /token por grant_type y resultado",
		}, []string{"grant_type", "outcome"}),
		codesIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clinicauth_codes_issued_total",
			Help: "Authorization codes emitidos",
		}),
		introspections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicauth_introspections_total",
			Help: "Introspecciones por resultado",
		}, []string{"active"}),
		swept: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clinicauth_swept_records_total",
			Help: "Registros vencidos borrados por el sweeper",
		}, []string{"kind"}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.grants, m.codesIssued, m.introspections, m.swept} {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) grant(grantType, outcome string) {
	if m == nil {
		return
	}
	m.grants.WithLabelValues(grantType, outcome).Inc()
}

func (m *Metrics) codeIssued() {
	if m == nil {
		return
	}
	m.codesIssued.Inc()
}

func (m *Metrics) introspection(active bool) {
	if m == nil {
		return
	}
	label := "false"
	if active {
		label = "true"
	}
	m.introspections.WithLabelValues(label).Inc()
}

func (m *Metrics) sweptRecords(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.WithLabelValues(kind).Add(float64(n))
}
