package sessionstore

import (
	"github.com/prometheus/client_golang/prometheus"
)

// load results
const (
	loadNoCookie  = "no_cookie"
	loadBadCookie = "bad_cookie"
	loadMissing   = "missing"
	loadExisting  = "existing"
	loadCorrupt   = "corrupt"
)

// save cookie actions
const (
	saveSet     = "set"
	saveRefresh = "refresh"
	saveExpire  = "expire"
)

// Metrics counts session store activity. A nil *Metrics is valid and
// counts nothing.
type Metrics struct {
	loads  *prometheus.CounterVec
	saves  *prometheus.CounterVec
	errors *prometheus.CounterVec
}

// NewMetrics creates the session store counters and registers them with
// reg. If reg is nil the counters are not registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessions",
			Name:      "loads_total",
			Help:      "Sessions loaded, by result.",
		}, []string{"result"}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessions",
			Name:      "saves_total",
			Help:      "Sessions saved, by cookie action.",
		}, []string{"cookie"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sessions",
			Name:      "errors_total",
			Help:      "Session store errors, by operation.",
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.loads, m.saves, m.errors)
	}
	return m
}

func (m *Metrics) load(result string) {
	if m != nil {
		m.loads.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) save(action string) {
	if m != nil {
		m.saves.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) failed(op string) {
	if m != nil {
		m.errors.WithLabelValues(op).Inc()
	}
}
