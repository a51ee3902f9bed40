package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aluiziolira/go-scrape-alkoteka/proxy"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry             *prometheus.Registry
	RequestsTotal        *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	ProductsScrapedTotal prometheus.Counter
	PagesCrawledTotal    *prometheus.CounterVec
	RetriesTotal         prometheus.Counter
	ErrorsTotal          *prometheus.CounterVec
	ProxiesAvailable     prometheus.Gauge
	ProxiesBlacklisted   prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total HTTP requests issued by the scraper.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for scraper requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	productsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_products_scraped_total",
			Help: "Total number of product records sent to the pipeline.",
		},
	)
	pagesCrawled := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_crawled_total",
			Help: "Total pages fetched, by page kind.",
		},
		[]string{"kind"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)
	proxiesAvailable := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_proxies_available",
			Help: "Proxies currently usable (loaded minus blacklisted).",
		},
	)
	proxiesBlacklisted := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scraper_proxies_blacklisted",
			Help: "Proxies currently blacklisted after failures.",
		},
	)

	registry.MustRegister(requests, requestDuration, productsScraped, pagesCrawled,
		retries, errorsTotal, proxiesAvailable, proxiesBlacklisted)

	return &Metrics{
		Registry:             registry,
		RequestsTotal:        requests,
		RequestDuration:      requestDuration,
		ProductsScrapedTotal: productsScraped,
		PagesCrawledTotal:    pagesCrawled,
		RetriesTotal:         retries,
		ErrorsTotal:          errorsTotal,
		ProxiesAvailable:     proxiesAvailable,
		ProxiesBlacklisted:   proxiesBlacklisted,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncProducts increments the products scraped counter.
func (m *Metrics) IncProducts() {
	if m == nil {
		return
	}
	m.ProductsScrapedTotal.Inc()
}

// IncPage increments the crawled pages counter for a page kind.
func (m *Metrics) IncPage(kind string) {
	if m == nil {
		return
	}
	m.PagesCrawledTotal.WithLabelValues(kind).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetProxyStats updates the proxy pool gauges from a stats snapshot.
func (m *Metrics) SetProxyStats(stats proxy.Stats) {
	if m == nil {
		return
	}
	m.ProxiesAvailable.Set(float64(stats.Available))
	m.ProxiesBlacklisted.Set(float64(stats.Blacklisted))
}
