// Package metrics — счётчики Prometheus для кэша и мутаций списка.
// Nil *Metrics безопасен: все методы превращаются в no-op.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "mylist"

// Результаты для меток result.
const (
	ResultHit       = "hit"
	ResultMiss      = "miss"
	ResultError     = "error"
	ResultAcquired  = "acquired"
	ResultContended = "contended"
	ResultCreated   = "created"
	ResultExisting  = "existing"
	ResultConflict  = "conflict"
	ResultDeleted   = "deleted"
	ResultNotFound  = "not_found"
)

// Операции для метки op.
const (
	OpAdd    = "add"
	OpRemove = "remove"
)

type Metrics struct {
	cacheLookups *prometheus.CounterVec
	cacheLock    *prometheus.CounterVec
	rebuilds     prometheus.Counter
	mutations    *prometheus.CounterVec
}

// New создаёт и регистрирует счётчики в reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Page cache lookups by result.",
		}, []string{"result"}),
		cacheLock: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lock_total",
			Help:      "Rebuild lock attempts by result.",
		}, []string{"result"}),
		rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_rebuilds_total",
			Help:      "Pages read from the persistent store.",
		}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mutations_total",
			Help:      "List mutations by operation and result.",
		}, []string{"op", "result"}),
	}

	for _, c := range []prometheus.Collector{m.cacheLookups, m.cacheLock, m.rebuilds, m.mutations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// MustNew — New с panic при ошибке регистрации.
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}

	return m
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}

	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheLock(result string) {
	if m == nil {
		return
	}

	m.cacheLock.WithLabelValues(result).Inc()
}

func (m *Metrics) PageRebuild() {
	if m == nil {
		return
	}

	m.rebuilds.Inc()
}

func (m *Metrics) Mutation(op, result string) {
	if m == nil {
		return
	}

	m.mutations.WithLabelValues(op, result).Inc()
}
