package chop

import "github.com/prometheus/client_golang/prometheus"

// Metrics Prometheus-метрики рубки
type Metrics struct {
	started  prometheus.Counter
	finished *prometheus.CounterVec
	blocks   *prometheus.CounterVec
	drops    prometheus.Counter
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
	rejected *prometheus.CounterVec
}

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется глобальный регистр Prometheus.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "treefell",
			Name:      "chops_started_total",
			Help:      "Количество запущенных конвейеров рубки.",
		}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treefell",
			Name:      "chops_finished_total",
			Help:      "Завершённые рубки по состоянию и причине.",
		}, []string{"state", "reason"}),
		blocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treefell",
			Name:      "blocks_felled_total",
			Help:      "Убранные при рубке блоки.",
		}, []string{"kind"}),
		drops: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "treefell",
			Name:      "drops_materialized_total",
			Help:      "Предметы, появившиеся в мире после рубки.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "treefell",
			Name:      "chop_duration_seconds",
			Help:      "Длительность конвейера рубки.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"state"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "treefell",
			Name:      "chops_active",
			Help:      "Текущее количество конвейеров рубки.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "treefell",
			Name:      "breaks_skipped_total",
			Help:      "Разрушения блоков, не запустившие рубку.",
		}, []string{"reason"}),
	}

	for _, c := range []prometheus.Collector{m.started, m.finished, m.blocks, m.drops, m.duration, m.active, m.rejected} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) chopQueued() {
	m.active.Inc()
}

func (m *Metrics) chopStarted() {
	m.started.Inc()
}

func (m *Metrics) chopFinished(r Result) {
	m.active.Dec()
	m.finished.WithLabelValues(r.State.String(), r.Reason).Inc()
	m.duration.WithLabelValues(r.State.String()).Observe(r.Duration.Seconds())
	m.blocks.WithLabelValues("log").Add(float64(r.Logs))
	m.blocks.WithLabelValues("leaf").Add(float64(r.Leaves))
	m.drops.Add(float64(r.Drops))
}

func (m *Metrics) breakSkipped(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
