// Package fpl talks to the Fantasy Premier League API. The upstream
// intermittently blocks datacenter IP ranges with 403/429 responses, so every
// logical request tries the direct network path first and falls back to an
// ordered list of egress proxies with per-endpoint health tracking. Results are
// memoized in a TTL cache that coalesces concurrent identical requests into a
// single upstream call.
package fpl
