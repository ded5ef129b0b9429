// Package metrics 應用程式 Prometheus 指標
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "meal_analyzer"

// 預設分桶
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultUpstreamDurationBuckets = []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30}
	DefaultScoreBuckets            = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	DefaultItemBuckets             = []float64{0, 1, 2, 3, 5, 8, 13}
)

// AppMetrics 應用指標；nil 值的所有方法皆為 no-op
type AppMetrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration prometheus.Histogram
	FusedItems       prometheus.Histogram
	MealScore        *prometheus.HistogramVec

	UpstreamCallsTotal *prometheus.CounterVec
	UpstreamDuration   *prometheus.HistogramVec
	FallbacksTotal     *prometheus.CounterVec
}

// NewAppMetrics 在獨立 registry 上註冊全部指標
func NewAppMetrics() *AppMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{Namespace: namespace}),
		prometheus.NewGoCollector(),
	)

	m := &AppMetrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds", Help: "HTTP request duration",
			Buckets: DefaultHTTPDurationBuckets,
		}, []string{"method", "path"}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "analyses_total", Help: "Meal analyses by outcome",
		}, []string{"status"}),
		AnalysisDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "analysis_duration_seconds", Help: "End-to-end meal analysis duration",
			Buckets: DefaultUpstreamDurationBuckets,
		}),
		FusedItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "fused_items", Help: "Items remaining after fusion",
			Buckets: DefaultItemBuckets,
		}),
		MealScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "meal_score", Help: "Composite meal score",
			Buckets: DefaultScoreBuckets,
		}, []string{"quality"}),
		UpstreamCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "upstream_calls_total", Help: "Calls to detection collaborators",
		}, []string{"collaborator", "status"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "upstream_duration_seconds", Help: "Collaborator call duration",
			Buckets: DefaultUpstreamDurationBuckets,
		}, []string{"collaborator"}),
		FallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fallbacks_total", Help: "Fallback paths taken during analysis",
		}, []string{"kind"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.AnalysesTotal, m.AnalysisDuration, m.FusedItems, m.MealScore,
		m.UpstreamCallsTotal, m.UpstreamDuration, m.FallbacksTotal,
	)
	return m
}

// Handler /metrics 處理器
func (m *AppMetrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// ObserveHTTP 記錄一次 HTTP 請求
func (m *AppMetrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// ObserveUpstream 記錄一次協作者呼叫
func (m *AppMetrics) ObserveUpstream(collaborator string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.UpstreamCallsTotal.WithLabelValues(collaborator, status).Inc()
	m.UpstreamDuration.WithLabelValues(collaborator).Observe(d.Seconds())
}

// ObserveAnalysis 記錄一次分析結果
func (m *AppMetrics) ObserveAnalysis(status string, fused int, score float64, quality string, d time.Duration) {
	if m == nil {
		return
	}
	m.AnalysesTotal.WithLabelValues(status).Inc()
	m.AnalysisDuration.Observe(d.Seconds())
	m.FusedItems.Observe(float64(fused))
	m.MealScore.WithLabelValues(quality).Observe(score)
}

// IncFallback 記錄 classifier 或 heuristic 備援
func (m *AppMetrics) IncFallback(kind string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(kind).Inc()
}
