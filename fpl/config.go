package fpl

import "time"

// Config carries the static configuration the fetch subsystem consumes. It is
// populated once at startup (flags or environment) and injected into NewClient;
// nothing in this package reads configuration from globals.
type Config struct {
	// BaseURL is the root of the FPL API, without a trailing slash.
	BaseURL string

	// Headers are sent with every upstream request. When nil, DefaultHeaders
	// is used; the upstream rejects requests that don't look like a browser.
	Headers map[string]string

	// ProxyURLs lists the egress proxies tried, in order, when the direct path
	// is blocked. Ignored unless ProxyEnabled is set.
	ProxyURLs []string

	// ProxyEnabled turns proxy fallback on.
	ProxyEnabled bool

	// AttemptTimeout bounds each individual network attempt (direct or proxy).
	AttemptTimeout time.Duration

	// FailureThreshold is the number of consecutive failures after which a
	// proxy is skipped while inside the cool-down window.
	FailureThreshold int

	// Cooldown is how long a proxy over the failure threshold is skipped
	// before being retried.
	Cooldown time.Duration

	// CacheTTL is the default freshness window for upstream responses.
	CacheTTL time.Duration

	// CurrentGameweekTTL is the shorter freshness window for the current
	// gameweek, which changes during live matches.
	CurrentGameweekTTL time.Duration

	// RateLimit caps upstream calls at RateLimit requests per RatePeriod.
	RateLimit  int
	RatePeriod time.Duration
}

// Configuration defaults, matching the deployed service.
const (
	DefaultBaseURL = "https://fantasy.premierleague.com/api"

	DefaultAttemptTimeout     = 30 * time.Second
	DefaultFailureThreshold   = 3
	DefaultCooldown           = 5 * time.Minute
	DefaultCacheTTL           = time.Hour
	DefaultCurrentGameweekTTL = 10 * time.Minute
	DefaultRateLimit          = 20
	DefaultRatePeriod         = time.Minute
)

// DefaultHeaders returns the browser-like header set sent to the upstream.
// The FPL API serves 403s to clients that don't present these.
func DefaultHeaders() map[string]string {
	return map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Accept":          "application/json, text/plain, */*",
		"Accept-Language": "en-US,en;q=0.9",
		"Referer":         "https://fantasy.premierleague.com/",
		"Origin":          "https://fantasy.premierleague.com",
	}
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Headers == nil {
		c.Headers = DefaultHeaders()
	}
	if c.AttemptTimeout == 0 {
		c.AttemptTimeout = DefaultAttemptTimeout
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.Cooldown == 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.CacheTTL == 0 {
		c.CacheTTL = DefaultCacheTTL
	}
	if c.CurrentGameweekTTL == 0 {
		c.CurrentGameweekTTL = DefaultCurrentGameweekTTL
	}
	if c.RateLimit == 0 {
		c.RateLimit = DefaultRateLimit
	}
	if c.RatePeriod == 0 {
		c.RatePeriod = DefaultRatePeriod
	}
	return c
}
