package fantasy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fplmcp/fplgate"
)

func (s *Server) toolEntries() []fplgate.ToolEntry {
	return []fplgate.ToolEntry{
		{
			Tool: fplgate.Tool{
				Name: "analyze_players",
				Description: `
Analyze Premier League players with flexible filtering and sorting.
Filter by position, team, name pattern, and price range, then sort by
any numeric metric such as total_points, form, price, or
selected_by_percent. Returns the matching players together with a
summary of the full matched set.
        `,
				InputSchema: analyzePlayersSchema,
			},
			Handler: s.analyzePlayers,
		},
		{
			Tool: fplgate.Tool{
				Name: "compare_players",
				Description: `
Compare two or more players side by side across chosen metrics.
Player names are matched case-insensitively against both the short
display name and the full name. For every metric the per-player
values are reported along with the player leading it.
        `,
				InputSchema: comparePlayersSchema,
			},
			Handler: s.comparePlayers,
		},
		{
			Tool: fplgate.Tool{
				Name: "analyze_player_fixtures",
				Description: `
Analyze the upcoming fixture run of a single player. Reports each
unfinished fixture with opponent, venue, and difficulty, plus an
average difficulty score and an easy/average/hard rating for the run.
        `,
				InputSchema: analyzeFixturesSchema,
			},
			Handler: s.analyzeFixtures,
		},
	}
}

func (s *Server) analyzePlayers(ctx context.Context, args json.RawMessage) (fplgate.CallToolResult, error) {
	var apArgs AnalyzePlayersArgs
	if err := json.Unmarshal(args, &apArgs); err != nil {
		return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	players, err := s.client.Players(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch players: %w", err)
	}
	teams, err := s.client.Teams(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch teams: %w", err)
	}

	filter := PlayerFilter{
		Position: apArgs.Position,
		Team:     apArgs.Team,
		Name:     apArgs.Name,
		MinPrice: apArgs.MinPrice,
		MaxPrice: apArgs.MaxPrice,
	}
	analysis, err := analyzePlayers(players, teams, filter, apArgs.SortBy, apArgs.SortOrder, apArgs.Limit)
	if err != nil {
		return toolError(err.Error()), nil
	}

	return toolJSON(analysis)
}

func (s *Server) comparePlayers(ctx context.Context, args json.RawMessage) (fplgate.CallToolResult, error) {
	var cpArgs ComparePlayersArgs
	if err := json.Unmarshal(args, &cpArgs); err != nil {
		return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	players, err := s.client.Players(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch players: %w", err)
	}
	teams, err := s.client.Teams(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch teams: %w", err)
	}

	comparison, err := comparePlayers(players, teams, cpArgs.Names, cpArgs.Metrics)
	if err != nil {
		return toolError(err.Error()), nil
	}

	return toolJSON(comparison)
}

func (s *Server) analyzeFixtures(ctx context.Context, args json.RawMessage) (fplgate.CallToolResult, error) {
	var afArgs AnalyzeFixturesArgs
	if err := json.Unmarshal(args, &afArgs); err != nil {
		return toolError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	if afArgs.Name == "" {
		return toolError("player_name is required"), nil
	}

	players, err := s.client.Players(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch players: %w", err)
	}
	teams, err := s.client.Teams(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch teams: %w", err)
	}
	fixtures, err := s.client.Fixtures(ctx)
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to fetch fixtures: %w", err)
	}

	analysis, err := analyzePlayerFixtures(players, teams, fixtures, afArgs.Name, afArgs.NumFixtures)
	if err != nil {
		return toolError(err.Error()), nil
	}

	return toolJSON(analysis)
}

// toolJSON renders a tool result as a single JSON text content block.
func toolJSON(v any) (fplgate.CallToolResult, error) {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fplgate.CallToolResult{}, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return fplgate.CallToolResult{
		Content: []fplgate.Content{
			{
				Type: fplgate.ContentTypeText,
				Text: string(bs),
			},
		},
		IsError: false,
	}, nil
}

// toolError reports a domain-level failure to the caller without turning it
// into a protocol error. The call itself succeeded; the arguments didn't make
// sense against the data.
func toolError(msg string) fplgate.CallToolResult {
	return fplgate.CallToolResult{
		Content: []fplgate.Content{
			{
				Type: fplgate.ContentTypeText,
				Text: msg,
			},
		},
		IsError: true,
	}
}
