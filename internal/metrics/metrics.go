package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/timmy/memevote/internal/domain"
)

/*
VotingMetrics tracks the voting core:

- votes_total / memes_total count outcomes by result ("accepted" or a
  rejection reason such as "vote_limit"), so rejection spikes are visible
  per cause.

- document_operation_seconds is a histogram of whole-document load/save
  latency per document and operation.

All metrics register on the Registerer passed to New, never the global one.
A nil *VotingMetrics is valid and records nothing.
*/
type VotingMetrics struct {
	Votes       *prometheus.CounterVec
	Memes       *prometheus.CounterVec
	DocumentOps *prometheus.HistogramVec
}

func New(reg prometheus.Registerer, namespace string) *VotingMetrics {
	factory := promauto.With(reg)
	return &VotingMetrics{
		Votes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "votes_total",
				Help:      "Vote attempts by result",
			},
			[]string{"result"},
		),
		Memes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "memes_total",
				Help:      "Meme creation attempts by result",
			},
			[]string{"result"},
		),
		DocumentOps: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "document_operation_seconds",
				Help:      "Latency of whole-document loads and saves",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"document", "op", "status"},
		),
	}
}

// ObserveVote records the outcome of a vote attempt.
func (m *VotingMetrics) ObserveVote(err error) {
	if m == nil {
		return
	}
	m.Votes.WithLabelValues(Result(err)).Inc()
}

// ObserveCreate records the outcome of a meme creation attempt.
func (m *VotingMetrics) ObserveCreate(err error) {
	if m == nil {
		return
	}
	m.Memes.WithLabelValues(Result(err)).Inc()
}

// ObserveDocumentOp implements repository.Observer.
func (m *VotingMetrics) ObserveDocumentOp(document, op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.DocumentOps.WithLabelValues(document, op, status).Observe(elapsed.Seconds())
}

// Result maps an operation error to a metric label.
func Result(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, domain.ErrVoteLimitReached):
		return "vote_limit"
	case errors.Is(err, domain.ErrAlreadyVoted):
		return "already_voted"
	case errors.Is(err, domain.ErrAlreadyCreated):
		return "already_created"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

// HTTPMetrics tracks request latency per route.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer, namespace string) *HTTPMetrics {
	return &HTTPMetrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Histogram of HTTP request latencies",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
}

// ObserveRequest records one finished request.
func (m *HTTPMetrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
