package observability

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/medreport-backend/internal/platform/envutil"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests    *CounterVec
	apiLatency     *HistogramVec
	apiInflight    *Gauge
	apiReqTotal    *Counter
	apiReqError    *Counter
	reports        *CounterVec
	reportLatency  *HistogramVec
	summarizer     *CounterVec
	summarizerTime *HistogramVec
	interactions   *CounterVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

// MetricsEnabled reports whether METRICS_ENABLED turns metrics on.
func MetricsEnabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init returns nil when METRICS_ENABLED is off. Every method is nil-safe.
func Init(log *logger.Logger) *Metrics {
	if !MetricsEnabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled", "path", "/metrics")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		apiRequests: NewCounterVec("mr_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"mr_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		),
		apiInflight: NewGauge("mr_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: NewCounter("mr_api_requests_total_all", "Total API requests (all)."),
		apiReqError: NewCounter("mr_api_requests_error_total", "Total API requests answered with a 5xx."),
		reports:     NewCounterVec("mr_reports_total", "Processed reports by format and summary outcome.", []string{"format", "summary"}),
		reportLatency: NewHistogramVec(
			"mr_report_duration_seconds",
			"End-to-end report processing latency by format.",
			[]string{"format"},
			[]float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		summarizer: NewCounterVec("mr_summarizer_calls_total", "Summarizer calls by backend and status.", []string{"backend", "status"}),
		summarizerTime: NewHistogramVec(
			"mr_summarizer_duration_seconds",
			"Summarizer call latency including retries.",
			[]string{"backend", "status"},
			[]float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		),
		interactions: NewCounterVec("mr_interactions_total", "Interaction replies by kind and category.", []string{"kind", "category"}),
	}
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, pw := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.reports, m.reportLatency, m.summarizer, m.summarizerTime, m.interactions,
	} {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.Inc()
	if isServerErrorStatus(status) {
		m.apiReqError.Inc()
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveReport records one processed upload. summary is "ok", "fallback"
// or "missing".
func (m *Metrics) ObserveReport(format, summary string, dur time.Duration) {
	if m == nil {
		return
	}
	m.reports.Inc(format, summary)
	m.reportLatency.Observe(dur.Seconds(), format)
}

func (m *Metrics) ObserveSummarizer(backend string, failed bool, attempts int, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "failed"
	}
	if attempts > 1 {
		status += "_retried"
	}
	m.summarizer.Inc(backend, status)
	m.summarizerTime.Observe(dur.Seconds(), backend, status)
}

func (m *Metrics) IncInteraction(kind, category string) {
	if m == nil {
		return
	}
	m.interactions.Inc(strings.TrimSpace(kind), strings.TrimSpace(category))
}

func isServerErrorStatus(status string) bool {
	status = strings.TrimSpace(status)
	if len(status) < 3 {
		return false
	}
	if _, err := strconv.Atoi(status); err != nil {
		return false
	}
	return status[0] == '5'
}
