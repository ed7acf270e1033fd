package fantasy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fplmcp/fplgate"
)

// Resource URIs exposed by the gateway.
const (
	ResourcePlayers         = "fpl://static/players"
	ResourceTeams           = "fpl://static/teams"
	ResourceGameweeks       = "fpl://gameweeks"
	ResourceCurrentGameweek = "fpl://gameweeks/current"
	ResourceFixtures        = "fpl://fixtures"
)

func (s *Server) resourceEntries() []fplgate.ResourceEntry {
	return []fplgate.ResourceEntry{
		{
			Resource: fplgate.Resource{
				URI:         ResourcePlayers,
				Name:        "All Players",
				Description: "Complete list of Premier League players with season statistics",
				MimeType:    "application/json",
			},
			Handler: s.readJSON(func(ctx context.Context) (any, error) {
				return s.client.Players(ctx)
			}),
		},
		{
			Resource: fplgate.Resource{
				URI:         ResourceTeams,
				Name:        "All Teams",
				Description: "Premier League teams with strength ratings",
				MimeType:    "application/json",
			},
			Handler: s.readJSON(func(ctx context.Context) (any, error) {
				return s.client.Teams(ctx)
			}),
		},
		{
			Resource: fplgate.Resource{
				URI:         ResourceGameweeks,
				Name:        "All Gameweeks",
				Description: "Every gameweek of the season with deadlines and scores",
				MimeType:    "application/json",
			},
			Handler: s.readJSON(func(ctx context.Context) (any, error) {
				return s.client.Gameweeks(ctx)
			}),
		},
		{
			Resource: fplgate.Resource{
				URI:         ResourceCurrentGameweek,
				Name:        "Current Gameweek",
				Description: "The gameweek currently in progress, or the next one",
				MimeType:    "application/json",
			},
			Handler: s.readJSON(func(ctx context.Context) (any, error) {
				return s.client.CurrentGameweek(ctx)
			}),
		},
		{
			Resource: fplgate.Resource{
				URI:         ResourceFixtures,
				Name:        "All Fixtures",
				Description: "Every fixture of the season with scores and difficulty ratings",
				MimeType:    "application/json",
			},
			Handler: s.readJSON(func(ctx context.Context) (any, error) {
				return s.client.Fixtures(ctx)
			}),
		},
	}
}

// readJSON adapts a data accessor into a resource handler producing one JSON
// text content block. The URI in the contents echoes the requested one.
func (s *Server) readJSON(load func(ctx context.Context) (any, error)) fplgate.ResourceHandler {
	return func(ctx context.Context, params fplgate.ReadResourceParams) (fplgate.ReadResourceResult, error) {
		data, err := load(ctx)
		if err != nil {
			return fplgate.ReadResourceResult{}, err
		}

		text, err := json.Marshal(data)
		if err != nil {
			return fplgate.ReadResourceResult{}, fmt.Errorf("failed to marshal resource contents: %w", err)
		}

		return fplgate.ReadResourceResult{
			Contents: []fplgate.ResourceContents{
				{
					URI:      params.URI,
					MimeType: "application/json",
					Text:     string(text),
				},
			},
		}, nil
	}
}
