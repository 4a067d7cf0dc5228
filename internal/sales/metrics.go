package sales

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts registry activity. A nil *Metrics records nothing.
type Metrics struct {
	created   *prometheus.CounterVec
	fulfilled *prometheus.CounterVec
	failed    *prometheus.CounterVec
	expired   prometheus.Counter
	active    prometheus.Gauge
}

// NewMetrics registers the registry collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "sales_created_total",
			Help:      "number of sales listed",
		}, []string{"standard"}),
		fulfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "sales_fulfilled_total",
			Help:      "number of successful purchases",
		}, []string{"standard"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "operations_failed_total",
			Help:      "number of rejected registry operations",
		}, []string{"operation"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Name:      "sales_expired_total",
			Help:      "number of listings dropped because the seller can no longer deliver",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "marketplace",
			Name:      "active_sales",
			Help:      "number of sales with units remaining",
		}),
	}
	for _, c := range []prometheus.Collector{m.created, m.fulfilled, m.failed, m.expired, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) saleCreated(std Standard) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(string(std)).Inc()
	m.active.Inc()
}

func (m *Metrics) saleFulfilled(std Standard, cleared bool) {
	if m == nil {
		return
	}
	m.fulfilled.WithLabelValues(string(std)).Inc()
	if cleared {
		m.active.Dec()
	}
}

func (m *Metrics) salesExpired(n int) {
	if m == nil || n == 0 {
		return
	}
	m.expired.Add(float64(n))
	m.active.Sub(float64(n))
}

func (m *Metrics) operationFailed(op string) {
	if m == nil {
		return
	}
	m.failed.WithLabelValues(op).Inc()
}

func (m *Metrics) setActive(n int) {
	if m == nil {
		return
	}
	m.active.Set(float64(n))
}
