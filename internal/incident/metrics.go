package incident

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the incident pipeline.
type Metrics struct {
	IngestsTotal      *prometheus.CounterVec
	IngestDuration    *prometheus.HistogramVec
	AnalysisTotal     *prometheus.CounterVec
	QueriesTotal      *prometheus.CounterVec
	QueryResultRows   prometheus.Histogram
	LLMTokensIn       prometheus.Counter
	LLMTokensOut      prometheus.Counter
}

// NewMetrics registers and returns pipeline metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		IngestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentd_ingests_total",
			Help: "Total ingest pipeline runs by result.",
		}, []string{"result"}),
		IngestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "incidentd_ingest_duration_seconds",
			Help:    "Duration of ingest pipeline runs in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 0.25s .. ~128s
		}, []string{"outcome"}),
		AnalysisTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentd_analysis_total",
			Help: "Total action plan generations by outcome (validated or degraded).",
		}, []string{"outcome"}),
		QueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "incidentd_queries_total",
			Help: "Total natural-language queries by result.",
		}, []string{"result"}),
		QueryResultRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "incidentd_query_result_rows",
			Help:    "Records returned per successful query.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 9), // 1 .. 256
		}),
		LLMTokensIn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "incidentd_llm_tokens_input_total",
			Help: "Total model input tokens consumed.",
		}),
		LLMTokensOut: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "incidentd_llm_tokens_output_total",
			Help: "Total model output tokens consumed.",
		}),
	}

	reg.MustRegister(
		m.IngestsTotal,
		m.IngestDuration,
		m.AnalysisTotal,
		m.QueriesTotal,
		m.QueryResultRows,
		m.LLMTokensIn,
		m.LLMTokensOut,
	)

	return m
}

// observeIngest is nil-safe so the service never branches on metrics.
func (m *Metrics) observeIngest(result string, outcome Outcome, dur time.Duration) {
	if m == nil {
		return
	}
	m.IngestsTotal.WithLabelValues(result).Inc()
	m.IngestDuration.WithLabelValues(string(outcome)).Observe(dur.Seconds())
	m.AnalysisTotal.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) observeQuery(result string, rows int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		m.QueryResultRows.Observe(float64(rows))
	}
}

// InstrumentProvider wraps p so every completion feeds the token counters.
func (m *Metrics) InstrumentProvider(p Provider) Provider {
	if m == nil {
		return p
	}
	return &meteredProvider{provider: p, metrics: m}
}

type meteredProvider struct {
	provider Provider
	metrics  *Metrics
}

func (p *meteredProvider) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	resp, err := p.provider.Complete(ctx, req)
	if err == nil {
		p.metrics.LLMTokensIn.Add(float64(resp.Usage.InputTokens))
		p.metrics.LLMTokensOut.Add(float64(resp.Usage.OutputTokens))
	}
	return resp, err
}
