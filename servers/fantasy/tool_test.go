package fantasy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fplmcp/fplgate"
	"github.com/fplmcp/fplgate/fpl"
)

const bootstrapFixture = `{
	"events": [
		{"id": 1, "name": "Gameweek 1", "finished": true},
		{"id": 2, "name": "Gameweek 2", "is_current": true}
	],
	"teams": [
		{"id": 1, "name": "Man City", "short_name": "MCI", "strength": 5},
		{"id": 2, "name": "Liverpool", "short_name": "LIV", "strength": 5}
	],
	"elements": [
		{"id": 1, "web_name": "Haaland", "first_name": "Erling", "second_name": "Haaland",
		 "team": 1, "element_type": 4, "now_cost": 151, "total_points": 224,
		 "form": "9.1", "goals_scored": 27, "assists": 5},
		{"id": 2, "web_name": "M.Salah", "first_name": "Mohamed", "second_name": "Salah",
		 "team": 2, "element_type": 3, "now_cost": 131, "total_points": 211,
		 "form": "8.4", "goals_scored": 18, "assists": 10}
	],
	"phases": []
}`

const fixturesFixture = `[
	{"id": 1, "event": 3, "team_h": 1, "team_a": 2,
	 "team_h_difficulty": 4, "team_a_difficulty": 4},
	{"id": 2, "event": 4, "team_h": 2, "team_a": 1,
	 "team_h_difficulty": 4, "team_a_difficulty": 4}
]`

func newTestServer(t *testing.T) *Server {
	t.Helper()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/bootstrap-static/":
			_, _ = w.Write([]byte(bootstrapFixture))
		case "/fixtures/":
			_, _ = w.Write([]byte(fixturesFixture))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	client, err := fpl.NewClient(fpl.Config{BaseURL: upstream.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return NewServer(client)
}

func callTool(t *testing.T, s *Server, name string, args any) fplgate.CallToolResult {
	t.Helper()

	argsBs, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("failed to marshal arguments: %v", err)
	}

	entry, ok := s.Registry().ResolveTool(name)
	if !ok {
		t.Fatalf("tool %s is not registered", name)
	}

	result, err := entry.Handler(context.Background(), argsBs)
	if err != nil {
		t.Fatalf("tool %s failed: %v", name, err)
	}
	return result
}

func TestRegistryLists(t *testing.T) {
	registry := newTestServer(t).Registry()

	resources := registry.ListResources().Resources
	if len(resources) != 5 {
		t.Errorf("expected 5 resources, got %d", len(resources))
	}

	tools := registry.ListTools().Tools
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	for _, tool := range tools {
		if len(tool.InputSchema) == 0 {
			t.Errorf("tool %s has no input schema", tool.Name)
		}
	}
}

func TestReadPlayersResource(t *testing.T) {
	s := newTestServer(t)

	entry, ok := s.Registry().ResolveResource(ResourcePlayers)
	if !ok {
		t.Fatal("players resource is not registered")
	}

	result, err := entry.Handler(context.Background(), fplgate.ReadResourceParams{URI: ResourcePlayers})
	if err != nil {
		t.Fatalf("failed to read resource: %v", err)
	}
	if len(result.Contents) != 1 {
		t.Fatalf("expected 1 content block, got %d", len(result.Contents))
	}
	if result.Contents[0].URI != ResourcePlayers {
		t.Errorf("expected uri %s echoed, got %s", ResourcePlayers, result.Contents[0].URI)
	}

	var players []fpl.Player
	if err := json.Unmarshal([]byte(result.Contents[0].Text), &players); err != nil {
		t.Fatalf("failed to unmarshal contents: %v", err)
	}
	if len(players) != 2 {
		t.Errorf("expected 2 players, got %d", len(players))
	}
}

func TestAnalyzePlayersTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "analyze_players", AnalyzePlayersArgs{
		Position: "FWD",
		SortBy:   "total_points",
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var analysis PlayerAnalysis
	if err := json.Unmarshal([]byte(result.Content[0].Text), &analysis); err != nil {
		t.Fatalf("failed to unmarshal analysis: %v", err)
	}
	if analysis.Summary.TotalMatches != 1 || analysis.Players[0].Name != "Haaland" {
		t.Errorf("expected only Haaland, got %+v", analysis)
	}
}

func TestComparePlayersTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "compare_players", ComparePlayersArgs{
		Names:   []string{"Haaland", "Salah"},
		Metrics: []string{"total_points", "assists"},
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var comparison PlayerComparison
	if err := json.Unmarshal([]byte(result.Content[0].Text), &comparison); err != nil {
		t.Fatalf("failed to unmarshal comparison: %v", err)
	}
	if comparison.Metrics["total_points"].Winner != "Haaland" {
		t.Errorf("expected Haaland to lead total_points, got %s",
			comparison.Metrics["total_points"].Winner)
	}
	if comparison.Metrics["assists"].Winner != "M.Salah" {
		t.Errorf("expected Salah to lead assists, got %s",
			comparison.Metrics["assists"].Winner)
	}
}

func TestComparePlayersToolUnknownPlayer(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "compare_players", ComparePlayersArgs{
		Names: []string{"Haaland", "Zlatan"},
	})
	if !result.IsError {
		t.Fatal("expected a tool error for an unknown player")
	}
	if !strings.Contains(result.Content[0].Text, "Zlatan") {
		t.Errorf("expected the message to name the missing player, got %s", result.Content[0].Text)
	}
}

func TestAnalyzeFixturesTool(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "analyze_player_fixtures", AnalyzeFixturesArgs{
		Name:        "Haaland",
		NumFixtures: 3,
	})
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var analysis FixtureAnalysis
	if err := json.Unmarshal([]byte(result.Content[0].Text), &analysis); err != nil {
		t.Fatalf("failed to unmarshal analysis: %v", err)
	}
	if len(analysis.Fixtures) != 2 {
		t.Fatalf("expected 2 fixtures, got %d", len(analysis.Fixtures))
	}
	if analysis.Analysis.Rating != "hard" {
		t.Errorf("expected rating hard for average 4, got %s", analysis.Analysis.Rating)
	}
}

func TestComparePlayersEndToEnd(t *testing.T) {
	s := newTestServer(t)

	dispatcher := fplgate.NewDispatcher(fplgate.Info{Name: "fplgate", Version: "test"}, s.Registry())
	gateway := httptest.NewServer(fplgate.NewPostServer(dispatcher).Handler())
	defer gateway.Close()

	payload := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"compare_players","arguments":{"player_names":["Salah","Haaland"],"metrics":["total_points"]}}}`
	resp, err := http.Post(gateway.URL, "application/json", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to post request: %v", err)
	}
	defer resp.Body.Close()

	var msg fplgate.JSONRPCMessage
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if msg.Error != nil {
		t.Fatalf("tools/call failed: %v", msg.Error)
	}
	if string(msg.ID) != "1" {
		t.Errorf("expected id echoed exactly as 1, got %s", msg.ID)
	}

	var result fplgate.CallToolResult
	if err := json.Unmarshal(msg.Result, &result); err != nil {
		t.Fatalf("failed to unmarshal result: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", result.Content[0].Text)
	}

	var comparison PlayerComparison
	if err := json.Unmarshal([]byte(result.Content[0].Text), &comparison); err != nil {
		t.Fatalf("failed to unmarshal comparison: %v", err)
	}
	if comparison.Metrics["total_points"].Winner != "Haaland" {
		t.Errorf("expected Haaland to lead total_points, got %s",
			comparison.Metrics["total_points"].Winner)
	}
}

func TestAnalyzeFixturesToolMissingName(t *testing.T) {
	s := newTestServer(t)

	result := callTool(t, s, "analyze_player_fixtures", AnalyzeFixturesArgs{})
	if !result.IsError {
		t.Fatal("expected a tool error when player_name is missing")
	}
}
