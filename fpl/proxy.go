package fpl

import (
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// proxyEndpoint is one egress path in the rotation. The URL and the HTTP
// client bound to it are immutable; the health counters are guarded by the
// owning pool's mutex because they are shared across concurrent fetches.
type proxyEndpoint struct {
	url    *url.URL
	client *http.Client

	consecutiveFailures int
	lastFailure         time.Time
}

// proxyPool owns the shared proxy health state. It is an explicitly
// constructed, lock-guarded structure injected into the Fetcher — never a
// package-level singleton — so independent fetchers keep independent health.
type proxyPool struct {
	mu        sync.Mutex
	endpoints []*proxyEndpoint
	// lastSuccess is the index of the proxy that most recently succeeded, or
	// -1. The rotation starts there, so a known-good proxy is re-tried first
	// and known-bad ones aren't probed on every call.
	lastSuccess int

	failureThreshold int
	cooldown         time.Duration
}

// ProxyStatus is a point-in-time snapshot of one proxy's health, exposed for
// operational visibility.
type ProxyStatus struct {
	URL                 string    `json:"url"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastFailure         time.Time `json:"lastFailure,omitempty"`
}

func newProxyPool(proxyURLs []string, attemptTimeout time.Duration, threshold int, cooldown time.Duration) (*proxyPool, error) {
	p := &proxyPool{
		endpoints:        make([]*proxyEndpoint, 0, len(proxyURLs)),
		lastSuccess:      -1,
		failureThreshold: threshold,
		cooldown:         cooldown,
	}

	for _, raw := range proxyURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse proxy URL %q: %w", raw, err)
		}
		proxyURL := u
		p.endpoints = append(p.endpoints, &proxyEndpoint{
			url: proxyURL,
			client: &http.Client{
				Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
				Timeout:   attemptTimeout,
			},
		})
	}

	return p, nil
}

// candidates returns the endpoint indexes to try, in rotation order starting
// at the last proxy that succeeded, skipping endpoints that are over the
// failure threshold and still inside their cool-down window.
func (p *proxyPool) candidates(now time.Time) []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.endpoints)
	start := p.lastSuccess
	if start < 0 {
		start = 0
	}
	out := make([]int, 0, n)
	for off := 0; off < n; off++ {
		i := (start + off) % n
		ep := p.endpoints[i]
		if ep.consecutiveFailures > p.failureThreshold && now.Sub(ep.lastFailure) < p.cooldown {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (p *proxyPool) markSuccess(i int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints[i].consecutiveFailures = 0
	p.lastSuccess = i
}

func (p *proxyPool) markFailure(i int, now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.endpoints[i].consecutiveFailures++
	p.endpoints[i].lastFailure = now
}

func (p *proxyPool) status() []ProxyStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]ProxyStatus, 0, len(p.endpoints))
	for _, ep := range p.endpoints {
		out = append(out, ProxyStatus{
			URL:                 ep.url.Redacted(),
			ConsecutiveFailures: ep.consecutiveFailures,
			LastFailure:         ep.lastFailure,
		})
	}
	return out
}
