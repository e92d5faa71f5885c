// Package metrics records engine activity. The engine talks to the Collector interface; the
// Prometheus implementation is installed by the server and worker commands.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives engine events.
type Collector interface {
	AssignmentCreated(tier, source string)
	MatchingSkipped(reason string)
	BatchCompleted(d time.Duration)
	LedgerEntry(kind string, amount int64)
	ConflictRetry(op string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) AssignmentCreated(string, string) {}
func (Nop) MatchingSkipped(string)           {}
func (Nop) BatchCompleted(time.Duration)     {}
func (Nop) LedgerEntry(string, int64)        {}
func (Nop) ConflictRetry(string)             {}

var _ Collector = Nop{}

// Prometheus implements Collector with client_golang vectors.
type Prometheus struct {
	assignments   *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	batchDuration prometheus.Histogram
	ledgerEntries *prometheus.CounterVec
	ledgerCredits *prometheus.CounterVec
	retries       *prometheus.CounterVec
}

var _ Collector = (*Prometheus)(nil)

// NewPrometheus registers the engine metrics on reg (prometheus.DefaultRegisterer when nil)
// under namespace ("reviewloop" when empty). Metrics that are already registered are reused.
func NewPrometheus(reg prometheus.Registerer, namespace string) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "reviewloop"
	}

	p := &Prometheus{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "assignments_created_total",
			Help:      "Assignments created by owner tier and source (batch, request).",
		}, []string{"tier", "source"}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "items_skipped_total",
			Help:      "Queued items left in the queue by a matching pass, by reason.",
		}, []string{"reason"}),
		batchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "batch_duration_seconds",
			Help:      "Duration of matching batches in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries appended by kind.",
		}, []string{"kind"}),
		ledgerCredits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "credits_total",
			Help:      "Absolute credits moved by kind.",
		}, []string{"kind"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "conflict_retries_total",
			Help:      "Transactions retried after a concurrency conflict, by operation.",
		}, []string{"op"}),
	}

	var err error
	if p.assignments, err = registerOrReuse(reg, p.assignments); err != nil {
		return nil, err
	}
	if p.skipped, err = registerOrReuse(reg, p.skipped); err != nil {
		return nil, err
	}
	if p.batchDuration, err = registerOrReuse(reg, p.batchDuration); err != nil {
		return nil, err
	}
	if p.ledgerEntries, err = registerOrReuse(reg, p.ledgerEntries); err != nil {
		return nil, err
	}
	if p.ledgerCredits, err = registerOrReuse(reg, p.ledgerCredits); err != nil {
		return nil, err
	}
	if p.retries, err = registerOrReuse(reg, p.retries); err != nil {
		return nil, err
	}
	return p, nil
}

func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (p *Prometheus) AssignmentCreated(tier, source string) {
	p.assignments.WithLabelValues(tier, source).Inc()
}

func (p *Prometheus) MatchingSkipped(reason string) {
	p.skipped.WithLabelValues(reason).Inc()
}

func (p *Prometheus) BatchCompleted(d time.Duration) {
	p.batchDuration.Observe(d.Seconds())
}

func (p *Prometheus) LedgerEntry(kind string, amount int64) {
	if amount < 0 {
		amount = -amount
	}
	p.ledgerEntries.WithLabelValues(kind).Inc()
	p.ledgerCredits.WithLabelValues(kind).Add(float64(amount))
}

func (p *Prometheus) ConflictRetry(op string) {
	p.retries.WithLabelValues(op).Inc()
}
