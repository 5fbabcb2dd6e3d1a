package relworld

import "github.com/prometheus/client_golang/prometheus"

// Metrics метрики реестра вторичных миров
type Metrics struct {
	Worlds       prometheus.Gauge
	Members      prometheus.Gauge
	Translations prometheus.Counter
	Reassigned   prometheus.Counter
}

// NewMetrics создаёт метрики; reg == nil — без регистрации
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Worlds: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relworld",
			Name:      "worlds",
			Help:      "Количество загруженных вторичных миров.",
		}),
		Members: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relworld",
			Name:      "members",
			Help:      "Количество сущностей, привязанных к вторичным мирам.",
		}),
		Translations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relworld",
			Name:      "translations_total",
			Help:      "Сдвиги начала координат вторичных миров.",
		}),
		Reassigned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relworld",
			Name:      "reassignments_total",
			Help:      "Переходы сущностей между вторичными мирами.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Worlds, m.Members, m.Translations, m.Reassigned)
	}
	return m
}
