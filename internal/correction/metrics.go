package correction

import "github.com/prometheus/client_golang/prometheus"

// Metrics счётчики коррекции позиций
type Metrics struct {
	Corrections   prometheus.Counter
	InitialSnaps  prometheus.Counter
	PassThrough   prometheus.Counter
	PhysicsSyncs  prometheus.Counter
	PhysicsTarget prometheus.Counter
	WeldedSkips   prometheus.Counter
	NaNWarnings   prometheus.Counter
}

// NewMetrics создаёт метрики; reg == nil — без регистрации
func NewMetrics(reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relworld",
			Subsystem: "correction",
			Name:      name,
			Help:      help,
		})
	}

	m := &Metrics{
		Corrections:   counter("movement_corrected_total", "Обновления движения, пересчитанные с учётом начала координат мира."),
		InitialSnaps:  counter("initial_snaps_total", "Разовые переносы позиции при первой синхронизации."),
		PassThrough:   counter("pass_through_total", "Обновления движения, переданные обработчику по умолчанию."),
		PhysicsSyncs:  counter("physics_syncs_total", "Переключения симуляции физики по реплицированному флагу."),
		PhysicsTarget: counter("physics_targets_total", "Цели репликации, переданные физике."),
		WeldedSkips:   counter("welded_skips_total", "Физические обновления, пропущенные для приваренных тел."),
		NaNWarnings:   counter("nan_warnings_total", "Некорректные числа в реплицированном движении."),
	}
	if reg != nil {
		reg.MustRegister(m.Corrections, m.InitialSnaps, m.PassThrough, m.PhysicsSyncs,
			m.PhysicsTarget, m.WeldedSkips, m.NaNWarnings)
	}
	return m
}

func (m *Metrics) inc(pick func(*Metrics) prometheus.Counter) {
	if m == nil {
		return
	}
	pick(m).Inc()
}
