package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DaysProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "b3_days_processed_total",
		Help: "Total number of trading-session codes processed, by final outcome",
	}, []string{"outcome"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "b3_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	ArchivesDownloaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "b3_archives_downloaded_total",
		Help: "Total number of archive download attempts",
	}, []string{"status"})

	DownloadedBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "b3_downloaded_bytes_total",
		Help: "Total number of bytes downloaded",
	})

	FilesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "b3_files_extracted_total",
		Help: "Total number of leaf files extracted from archives",
	})

	RecordsParsed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "b3_records_parsed_total",
		Help: "Total number of price-report records parsed",
	})

	MergedRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "b3_merged_rows",
		Help: "Number of rows in the last merged table",
	})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total number of cache hits",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total number of cache misses",
	})

	DatabaseQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "database_queries_total",
		Help: "Total number of database queries",
	}, []string{"query_type", "status"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "b3_http_requests_total",
		Help: "Total number of API requests",
	}, []string{"method", "route", "status_code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "b3_http_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "database_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query_type"})
)

func RecordCacheHit() {
	CacheHits.Inc()
}

func RecordCacheMiss() {
	CacheMisses.Inc()
}

func QueryStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func RecordDatabaseQuery(queryType, status string, duration float64) {
	DatabaseQueries.WithLabelValues(queryType, status).Inc()
	DatabaseQueryDuration.WithLabelValues(queryType).Observe(duration)
}

func RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RecordDay(outcome string) {
	DaysProcessed.WithLabelValues(outcome).Inc()
}

func RecordDownload(status string, bytes int64) {
	ArchivesDownloaded.WithLabelValues(status).Inc()
	if bytes > 0 {
		DownloadedBytes.Add(float64(bytes))
	}
}

// WriteTextfile grava o registro padrão no formato do textfile collector do
// node_exporter; usado pelas execuções da CLI, que não expõem HTTP.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{
		start: time.Now(),
	}
}

func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(time.Since(t.start).Seconds())
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
