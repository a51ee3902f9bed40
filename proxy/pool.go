// Package proxy maintains the rotating pool of outbound proxies with
// blacklist-on-failure and recovery-on-success semantics. The pool is the
// one piece of shared mutable state in the scraper; every operation is
// atomic under a single mutex so overlapping in-flight requests never see a
// torn blacklist or lose a counter update.
package proxy

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
)

// Pool owns a fixed, cyclically-rotated list of proxy addresses. The list
// is established at load time and never grows or shrinks; only blacklist
// membership changes at runtime.
type Pool struct {
	mu        sync.Mutex
	proxies   []string
	blacklist map[string]struct{}
	cursor    int

	total   int64
	success int64
	failed  int64
}

// Stats is a snapshot of the pool's counters for external reporting.
type Stats struct {
	TotalRequests int64
	Successful    int64
	Failed        int64
	Blacklisted   int
	Available     int
}

// Load reads proxy addresses from r, one per line. Blank lines and lines
// starting with '#' are ignored. An empty result is not an error: the pool
// simply never hands out a proxy.
func Load(r io.Reader) (*Pool, error) {
	p := &Pool{blacklist: make(map[string]struct{})}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.proxies = append(p.proxies, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read proxy list: %w", err)
	}
	return p, nil
}

// LoadFile loads a pool from a proxies file on disk.
func LoadFile(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open proxy file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Size returns the number of loaded proxies.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.proxies)
}

// Acquire returns the next non-blacklisted proxy in rotation order. It
// scans at most once around the full rotation; if every proxy is
// blacklisted (or the pool is empty) it reports false, which the request
// layer treats as "go direct", not as an error.
func (p *Pool) Acquire() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for attempts := 0; attempts < len(p.proxies); attempts++ {
		proxy := p.proxies[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.proxies)
		if _, bad := p.blacklist[proxy]; !bad {
			p.total++
			return proxy, true
		}
	}
	return "", false
}

// ReportSuccess records a successful use. A blacklisted proxy that works
// again is recovered into rotation.
func (p *Pool) ReportSuccess(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.success++
	delete(p.blacklist, proxy)
}

// ReportFailure records a failed use and blacklists the proxy until a
// later success recovers it.
func (p *Pool) ReportFailure(proxy string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failed++
	p.blacklist[proxy] = struct{}{}
}

// HasAvailable reports whether at least one proxy is not blacklisted. A
// retry policy may re-issue a failed request as long as this holds.
func (p *Pool) HasAvailable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blacklist) < len(p.proxies)
}

// Stats returns a consistent snapshot of the counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	return Stats{
		TotalRequests: p.total,
		Successful:    p.success,
		Failed:        p.failed,
		Blacklisted:   len(p.blacklist),
		Available:     len(p.proxies) - len(p.blacklist),
	}
}

// ProxyFunc adapts the pool to colly's SetProxyFunc. A nil URL return
// means the request goes out without a proxy.
func (p *Pool) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(_ *http.Request) (*url.URL, error) {
		addr, ok := p.Acquire()
		if !ok {
			return nil, nil
		}
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address %q: %w", addr, err)
		}
		return u, nil
	}
}
