package fpl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrNoGameweeks is returned when the upstream reports an empty events list.
var ErrNoGameweeks = errors.New("no gameweeks available")

// Client is the typed surface over the FPL API. All reads flow through the
// response cache and the resilient fetcher, so repeated calls inside the TTL
// window cost one upstream request no matter how many sessions issue them.
type Client struct {
	baseURL string
	fetcher *Fetcher
	cache   *Cache
	logger  *slog.Logger

	ttl                time.Duration
	currentGameweekTTL time.Duration
}

// ClientOption represents the options for the Client.
type ClientOption func(*Client)

// NewClient creates an FPL API client from the given configuration.
func NewClient(cfg Config, options ...ClientOption) (*Client, error) {
	cfg = cfg.withDefaults()

	c := &Client{
		baseURL:            cfg.BaseURL,
		cache:              NewCache(),
		logger:             slog.Default(),
		ttl:                cfg.CacheTTL,
		currentGameweekTTL: cfg.CurrentGameweekTTL,
	}
	for _, opt := range options {
		opt(c)
	}

	if c.fetcher == nil {
		fetcher, err := NewFetcher(cfg, WithFetcherLogger(c.logger))
		if err != nil {
			return nil, err
		}
		c.fetcher = fetcher
	}

	return c, nil
}

// WithClientLogger sets the logger for the client.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger.With(
			slog.String("component", "fpl-client"),
		)
	}
}

// WithFetcher injects a prebuilt fetcher instead of constructing one from the
// configuration.
func WithFetcher(fetcher *Fetcher) ClientOption {
	return func(c *Client) {
		c.fetcher = fetcher
	}
}

// Fetcher returns the underlying fetcher, exposing proxy health for
// operational endpoints.
func (c *Client) Fetcher() *Fetcher { return c.fetcher }

// StartCacheSweeper runs the cache's periodic sweep until ctx is cancelled.
func (c *Client) StartCacheSweeper(ctx context.Context, interval time.Duration) {
	c.cache.StartSweeper(ctx, interval)
}

// get fetches one endpoint through the cache with the given ttl.
func (c *Client) get(ctx context.Context, path string, ttl time.Duration) ([]byte, error) {
	key := CacheKey(path, nil)
	return c.cache.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		return c.fetcher.Fetch(ctx, c.baseURL+"/"+path)
	})
}

// BootstrapStatic returns the season's static reference data: players, teams,
// gameweeks, and phases.
func (c *Client) BootstrapStatic(ctx context.Context) (*Bootstrap, error) {
	body, err := c.get(ctx, "bootstrap-static/", c.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bootstrap-static: %w", err)
	}

	var data Bootstrap
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode bootstrap-static: %w", err)
	}

	// The upstream reports null highest scores for phases that haven't begun.
	for i, phase := range data.Phases {
		if phase.HighestScore == nil {
			zero := 0
			data.Phases[i].HighestScore = &zero
		}
	}

	return &data, nil
}

// Fixtures returns all fixtures of the season.
func (c *Client) Fixtures(ctx context.Context) ([]Fixture, error) {
	body, err := c.get(ctx, "fixtures/", c.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch fixtures: %w", err)
	}

	var fixtures []Fixture
	if err := json.Unmarshal(body, &fixtures); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	return fixtures, nil
}

// Gameweeks returns all gameweeks of the season.
func (c *Client) Gameweeks(ctx context.Context) ([]Gameweek, error) {
	data, err := c.BootstrapStatic(ctx)
	if err != nil {
		return nil, err
	}
	return data.Events, nil
}

// CurrentGameweek returns the gameweek marked current, falling back to the
// next one and then the first. The result is cached under its own key with a
// shorter TTL because it changes during live matches.
func (c *Client) CurrentGameweek(ctx context.Context) (*Gameweek, error) {
	body, err := c.cache.GetOrFetch(ctx, "gameweeks/current", c.currentGameweekTTL,
		func(ctx context.Context) ([]byte, error) {
			gameweeks, err := c.Gameweeks(ctx)
			if err != nil {
				return nil, err
			}
			gw, err := pickCurrentGameweek(gameweeks)
			if err != nil {
				return nil, err
			}
			return json.Marshal(gw)
		})
	if err != nil {
		return nil, err
	}

	var gw Gameweek
	if err := json.Unmarshal(body, &gw); err != nil {
		return nil, fmt.Errorf("failed to decode current gameweek: %w", err)
	}
	return &gw, nil
}

// PlayerSummary returns detailed data for one player.
func (c *Client) PlayerSummary(ctx context.Context, playerID int) (*PlayerSummary, error) {
	path := fmt.Sprintf("element-summary/%d/", playerID)
	body, err := c.get(ctx, path, c.ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch player summary: %w", err)
	}

	var summary PlayerSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return nil, fmt.Errorf("failed to decode player summary: %w", err)
	}
	return &summary, nil
}

// Players returns all players of the season.
func (c *Client) Players(ctx context.Context) ([]Player, error) {
	data, err := c.BootstrapStatic(ctx)
	if err != nil {
		return nil, err
	}
	return data.Elements, nil
}

// Teams returns all teams of the season.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	data, err := c.BootstrapStatic(ctx)
	if err != nil {
		return nil, err
	}
	return data.Teams, nil
}

func pickCurrentGameweek(gameweeks []Gameweek) (Gameweek, error) {
	if len(gameweeks) == 0 {
		return Gameweek{}, ErrNoGameweeks
	}
	for _, gw := range gameweeks {
		if gw.IsCurrent {
			return gw, nil
		}
	}
	for _, gw := range gameweeks {
		if gw.IsNext {
			return gw, nil
		}
	}
	return gameweeks[0], nil
}
