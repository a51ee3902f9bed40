// Package scraper drives the two-phase crawl: category listing pages are
// walked for product links and pagination, and each product page is parsed
// into a record and handed to the pipeline.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/aluiziolira/go-scrape-alkoteka/config"
	"github.com/aluiziolira/go-scrape-alkoteka/extract"
	"github.com/aluiziolira/go-scrape-alkoteka/models"
	"github.com/aluiziolira/go-scrape-alkoteka/pipeline"
	"github.com/aluiziolira/go-scrape-alkoteka/proxy"
)

const (
	kindCategory = "category"
	kindProduct  = "product"
)

// Scraper wraps the colly collector, proxy pool, and retry logic.
type Scraper struct {
	cfg       *config.Config
	collector *colly.Collector
	extractor *extract.Extractor
	retry     *retryManager
	Metrics   *Metrics

	proxies *proxy.Pool

	requestCount int64
	pageCount    int64
	errorCount   int64

	mu           sync.Mutex
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewScraper builds a scraper instance configured from cfg. When proxies
// are enabled the pool is loaded up front so a missing or empty proxy file
// fails fast.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.Async(true),
		colly.AllowedDomains(parsed.Host),
		colly.UserAgent(cfg.UserAgent),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: cfg.Parallelism,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	s := &Scraper{
		cfg:          cfg,
		collector:    collector,
		extractor:    extract.NewExtractor(cfg.Region),
		errorsByType: make(map[string]int),
		Metrics:      NewMetrics(),
	}

	if cfg.ProxyEnabled {
		pool, err := proxy.LoadFile(cfg.ProxyFile)
		if err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		if pool.Size() == 0 {
			return nil, fmt.Errorf("proxy file %s has no usable entries", cfg.ProxyFile)
		}
		collector.SetProxyFunc(pool.ProxyFunc())
		s.proxies = pool
		slog.Info("proxy rotation enabled", slog.Int("proxies", pool.Size()))
	}

	s.retry = newRetryManager(cfg, s.Metrics)
	return s, nil
}

// ProxyStats returns a snapshot of the proxy pool counters, or a zero
// value when proxies are disabled.
func (s *Scraper) ProxyStats() proxy.Stats {
	if s.proxies == nil {
		return proxy.Stats{}
	}
	return s.proxies.Stats()
}

// Run starts the crawl from each configured category and streams extracted
// records through the pipeline.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.ScrapeResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.retry.SetContext(ctx)
	s.configureHandlers(ctx, p)

	start := time.Now()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.collector.Wait()
			s.retry.Stop()
		case <-done:
		}
	}()

	visited := 0
	for _, path := range s.cfg.CategoryPaths {
		categoryURL := s.cfg.BaseURL + path
		if err := s.request(categoryURL, kindCategory, 1); err != nil {
			slog.Error("category visit failed",
				slog.String("url", categoryURL),
				slog.Any("error", err),
			)
			continue
		}
		visited++
	}
	if visited == 0 {
		return nil, fmt.Errorf("no category could be visited")
	}

	s.collector.Wait()
	s.retry.Stop()

	result := &models.ScrapeResult{
		StartTime:    start,
		EndTime:      time.Now(),
		ErrorCount:   int(atomic.LoadInt64(&s.errorCount)),
		FailedURLs:   s.snapshotFailedURLs(),
		ErrorsByType: s.snapshotErrors(),
		RetryCount:   s.retry.TotalRetries(),
		RequestCount: int(atomic.LoadInt64(&s.requestCount)),
		PageCount:    int(atomic.LoadInt64(&s.pageCount)),
	}

	if metrics := p.GetMetrics(); metrics != nil {
		if processed, ok := metrics["processed_products"].(int64); ok {
			result.TotalCount = int(processed)
		}
	}

	return result, nil
}

// request issues a GET carrying the page kind and pagination depth in the
// request context, so response dispatch and retries both know what they
// are fetching.
func (s *Scraper) request(pageURL, kind string, page int) error {
	cctx := colly.NewContext()
	cctx.Put("kind", kind)
	cctx.Put("page", strconv.Itoa(page))
	return s.collector.Request(http.MethodGet, pageURL, nil, cctx, nil)
}

func (s *Scraper) configureHandlers(ctx context.Context, p *pipeline.Pipeline) {
	s.handlersOnce.Do(func() {
		s.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())

			// The target localizes prices and availability by region;
			// without these the site answers for its default city.
			r.Headers.Set("X-Region", s.cfg.Region)
			r.Headers.Set("X-City", s.cfg.Region)
			r.Headers.Set("Cookie",
				fmt.Sprintf("city=%s; selected_region=%s", s.cfg.Region, s.cfg.Region))

			current := atomic.AddInt64(&s.requestCount, 1)
			if s.Metrics != nil {
				s.Metrics.IncRequest("started")
			}
			if current%50 == 0 {
				slog.Debug("scraper request progress",
					slog.Int64("requests", current),
					slog.Int64("pages", atomic.LoadInt64(&s.pageCount)),
					slog.String("url", r.URL.String()),
				)
			}
		})

		s.collector.OnResponse(func(r *colly.Response) {
			if s.proxies != nil && r.Request.ProxyURL != "" {
				s.proxies.ReportSuccess(r.Request.ProxyURL)
				s.Metrics.SetProxyStats(s.proxies.Stats())
			}
			if s.Metrics != nil {
				if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
					s.Metrics.ObserveDuration(time.Since(start))
				}
			}
			if r.StatusCode >= http.StatusBadRequest {
				slog.Error("non-200 response",
					slog.Int("status", r.StatusCode),
					slog.String("url", r.Request.URL.String()),
				)
				return
			}

			switch r.Ctx.Get("kind") {
			case kindProduct:
				s.handleProduct(r, p)
			default:
				s.handleCategory(ctx, r)
			}
		})

		s.collector.OnError(func(r *colly.Response, err error) {
			atomic.AddInt64(&s.errorCount, 1)
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			classified := classifyError(err, statusCode)
			category := errorTypeLabel(classified)

			s.mu.Lock()
			s.errorsByType[category]++
			s.mu.Unlock()

			pageURL := ""
			var req *colly.Request
			if r != nil && r.Request != nil {
				req = r.Request
				if req.URL != nil {
					pageURL = req.URL.String()
				}
				if s.proxies != nil && req.ProxyURL != "" {
					s.proxies.ReportFailure(req.ProxyURL)
					s.Metrics.SetProxyStats(s.proxies.Stats())
				}
			}

			slog.Error("request error",
				slog.String("url", pageURL),
				slog.String("category", category),
				slog.Any("error", err),
			)
			if s.Metrics != nil {
				s.Metrics.IncError(category)
			}

			if !s.retry.Schedule(pageURL, req) {
				s.mu.Lock()
				s.failedURLs = append(s.failedURLs, pageURL)
				s.mu.Unlock()
			}
		})
	})
}

// handleCategory collects product links from a listing page and follows
// pagination until MaxPages per category.
func (s *Scraper) handleCategory(ctx context.Context, r *colly.Response) {
	atomic.AddInt64(&s.pageCount, 1)
	if s.Metrics != nil {
		s.Metrics.IncPage(kindCategory)
	}
	if ctx.Err() != nil {
		return
	}

	page, err := extract.NewPage(bytes.NewReader(r.Body), r.Request.URL.String())
	if err != nil {
		slog.Error("parse category page",
			slog.String("url", r.Request.URL.String()),
			slog.Any("error", err),
		)
		return
	}

	links := extract.ProductLinks(page)
	for _, link := range links {
		if err := s.request(link, kindProduct, 1); err != nil &&
			!errors.Is(err, colly.ErrAlreadyVisited) {
			slog.Debug("product visit failed",
				slog.String("url", link),
				slog.Any("error", err),
			)
		}
	}

	pageNum := 1
	if n, err := strconv.Atoi(r.Ctx.Get("page")); err == nil {
		pageNum = n
	}
	if pageNum >= s.cfg.MaxPages {
		return
	}
	if next := extract.NextPageURL(page); next != "" {
		if err := s.request(next, kindCategory, pageNum+1); err != nil &&
			!errors.Is(err, colly.ErrAlreadyVisited) {
			slog.Debug("next page visit failed",
				slog.String("url", next),
				slog.Any("error", err),
			)
		}
	}
}

// handleProduct parses a product page and submits the record downstream.
func (s *Scraper) handleProduct(r *colly.Response, p *pipeline.Pipeline) {
	atomic.AddInt64(&s.pageCount, 1)
	if s.Metrics != nil {
		s.Metrics.IncPage(kindProduct)
	}

	page, err := extract.NewPage(bytes.NewReader(r.Body), r.Request.URL.String())
	if err != nil {
		slog.Error("parse product page",
			slog.String("url", r.Request.URL.String()),
			slog.Any("error", err),
		)
		return
	}

	product := s.extractor.Extract(page)
	if product == nil {
		slog.Debug("no product on page", slog.String("url", r.Request.URL.String()))
		return
	}

	if s.Metrics != nil {
		s.Metrics.IncProducts()
	}
	if err := p.Process(product); err != nil && err != pipeline.ErrPipelineClosed {
		slog.Error("pipeline process error", slog.Any("error", err))
	}
}

func (s *Scraper) snapshotFailedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failedURLs))
	copy(out, s.failedURLs)
	return out
}

func (s *Scraper) snapshotErrors() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.errorsByType))
	for k, v := range s.errorsByType {
		out[k] = v
	}
	return out
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}

// retryManager re-issues failed requests with capped exponential backoff.
// Retries go through colly's Request.Retry, which skips the revisit filter
// and keeps the original request context (page kind, pagination depth).
type retryManager struct {
	cfg     *config.Config
	metrics *Metrics
	ctx     context.Context

	mu           sync.Mutex
	attempts     map[string]int
	timers       map[string]*time.Timer
	totalRetries int
	stopped      bool
}

func newRetryManager(cfg *config.Config, metrics *Metrics) *retryManager {
	return &retryManager{
		cfg:      cfg,
		attempts: make(map[string]int),
		timers:   make(map[string]*time.Timer),
		metrics:  metrics,
		ctx:      context.Background(),
	}
}

func (rm *retryManager) Schedule(url string, req *colly.Request) bool {
	if url == "" || req == nil || rm.cfg.MaxRetries == 0 {
		return false
	}

	if rm.ctx != nil {
		select {
		case <-rm.ctx.Done():
			return false
		default:
		}
	}

	rm.mu.Lock()

	if rm.stopped {
		rm.mu.Unlock()
		return false
	}
	if rm.ctx != nil && rm.ctx.Err() != nil {
		rm.mu.Unlock()
		return false
	}

	attempt := rm.attempts[url]
	if attempt >= rm.cfg.MaxRetries {
		rm.mu.Unlock()
		return false
	}

	attempt++
	rm.attempts[url] = attempt
	rm.totalRetries++
	if rm.metrics != nil {
		rm.metrics.IncRetries()
	}

	delay := rm.backoff(attempt)
	rm.resetTimerLocked(url)
	rm.timers[url] = time.AfterFunc(delay, func() {
		rm.fireRetry(url, req)
	})
	rm.mu.Unlock()
	return true
}

func (rm *retryManager) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}

	base := rm.cfg.RetryBackoff
	if base <= 0 {
		base = 100 * time.Millisecond
	}

	delay := base * time.Duration(1<<(attempt-1))
	if max := rm.cfg.RetryBackoffMax; max > 0 && delay > max {
		delay = max
	}
	return delay
}

func (rm *retryManager) resetTimerLocked(url string) {
	if timer, ok := rm.timers[url]; ok {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) fireRetry(url string, req *colly.Request) {
	rm.mu.Lock()
	if rm.stopped {
		rm.mu.Unlock()
		return
	}
	ctx := rm.ctx
	rm.mu.Unlock()

	if ctx != nil && ctx.Err() != nil {
		return
	}
	if err := req.Retry(); err != nil {
		slog.Debug("retry visit failed", slog.String("url", url), slog.Any("error", err))
	}

	rm.mu.Lock()
	delete(rm.timers, url)
	rm.mu.Unlock()
}

func (rm *retryManager) Stop() {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.stopped {
		return
	}

	rm.stopped = true
	for url, timer := range rm.timers {
		timer.Stop()
		delete(rm.timers, url)
	}
}

func (rm *retryManager) TotalRetries() int {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.totalRetries
}

func (rm *retryManager) SetContext(ctx context.Context) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if ctx == nil {
		rm.ctx = context.Background()
		return
	}
	rm.ctx = ctx
}
