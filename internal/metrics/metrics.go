package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"catalog-import-service/internal/models"
)

type Registry struct {
	reg            *prometheus.Registry
	Runs           *prometheus.CounterVec
	Rows           *prometheus.CounterVec
	RunDurationSec *prometheus.HistogramVec
	FetchErrors    *prometheus.CounterVec
	RunsInProgress prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPLatencySec *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_runs_total",
		Help: "Import runs by source and final status",
	}, []string{"source", "status"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_rows_total",
		Help: "Processed import rows by outcome",
	}, []string{"outcome"})
	runDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_import_run_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	fetchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_fetch_errors_total",
	}, []string{"source"})
	inProgress := prometheus.NewGauge(prometheus.GaugeOpts{Name: "catalog_import_runs_in_progress"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_import_http_requests_total",
	}, []string{"method", "route", "status"})
	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "catalog_import_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.MustRegister(runs, rows, runDuration, fetchErrors, inProgress, httpRequests, httpLatency)
	return &Registry{
		reg:            r,
		Runs:           runs,
		Rows:           rows,
		RunDurationSec: runDuration,
		FetchErrors:    fetchErrors,
		RunsInProgress: inProgress,
		HTTPRequests:   httpRequests,
		HTTPLatencySec: httpLatency,
	}
}

// ObserveRun records the counters of one finished run
func (r *Registry) ObserveRun(source models.SourceType, status models.ImportStatus, result models.ImportResult) {
	r.Runs.WithLabelValues(string(source), string(status)).Inc()
	r.Rows.WithLabelValues("created").Add(float64(result.Created))
	r.Rows.WithLabelValues("updated").Add(float64(result.Updated))
	r.Rows.WithLabelValues("failed").Add(float64(result.Failed))
	if !result.StartedAt.IsZero() && !result.FinishedAt.IsZero() {
		r.RunDurationSec.WithLabelValues(string(source)).Observe(result.FinishedAt.Sub(result.StartedAt).Seconds())
	}
}

func (r *Registry) ObserveFetchError(source models.SourceType) {
	r.FetchErrors.WithLabelValues(string(source)).Inc()
}

// Middleware records request counts and latency per route
func (r *Registry) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		r.HTTPLatencySec.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
