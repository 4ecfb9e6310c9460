package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "d21_ledger"

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
}

// Ledger counts ledger activity. It satisfies the election ledger's Metrics
// port.
type Ledger struct {
	electionsCreated   prometheus.Counter
	votesAccepted      prometheus.Counter
	ballotsRejected    *prometheus.CounterVec
	electionsFinalized prometheus.Counter
}

func NewLedger(registry prometheus.Registerer) *Ledger {
	factory := promauto.With(registry)
	return &Ledger{
		electionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elections_created_total",
			Help:      "number of elections initialized",
		}),
		votesAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_accepted_total",
			Help:      "number of candidate votes counted",
		}),
		ballotsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ballots_rejected_total",
			Help:      "number of rejected ballots by error code",
		}, []string{"code"}),
		electionsFinalized: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elections_finalized_total",
			Help:      "number of elections finalized by tally",
		}),
	}
}

func (l *Ledger) ElectionCreated() {
	l.electionsCreated.Inc()
}

func (l *Ledger) VotesAccepted(count int) {
	if count > 0 {
		l.votesAccepted.Add(float64(count))
	}
}

func (l *Ledger) BallotRejected(code string) {
	l.ballotsRejected.WithLabelValues(code).Inc()
}

func (l *Ledger) ElectionFinalized() {
	l.electionsFinalized.Inc()
}
