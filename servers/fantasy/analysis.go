package fantasy

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	"github.com/fplmcp/fplgate/fpl"
)

// PlayerView is the flattened player representation returned by the analysis
// tools.
type PlayerView struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	FullName          string  `json:"full_name"`
	Team              string  `json:"team"`
	Position          string  `json:"position"`
	Price             float64 `json:"price"`
	Points            int     `json:"points"`
	Form              string  `json:"form"`
	SelectedByPercent string  `json:"selected_by_percent"`
	GoalsScored       int     `json:"goals_scored"`
	Assists           int     `json:"assists"`
	Minutes           int     `json:"minutes"`
	Bonus             int     `json:"bonus"`
}

// PlayerAnalysis is the result of the analyze_players tool.
type PlayerAnalysis struct {
	Players []PlayerView    `json:"players"`
	Summary AnalysisSummary `json:"summary"`
}

// AnalysisSummary aggregates the matched player set.
type AnalysisSummary struct {
	TotalMatches  int     `json:"total_matches"`
	AveragePoints float64 `json:"average_points"`
}

// PlayerFilter narrows the player set before sorting.
type PlayerFilter struct {
	Position string
	Team     string
	Name     string
	MinPrice float64
	MaxPrice float64
}

// PlayerComparison is the result of the compare_players tool.
type PlayerComparison struct {
	Players []PlayerView                `json:"players"`
	Metrics map[string]MetricComparison `json:"metrics"`
}

// MetricComparison holds one metric's per-player values and its winner.
type MetricComparison struct {
	Values map[string]float64 `json:"values"`
	Winner string             `json:"winner"`
}

// FixtureAnalysis is the result of the analyze_player_fixtures tool.
type FixtureAnalysis struct {
	Player   PlayerView        `json:"player"`
	Fixtures []UpcomingMatch   `json:"fixtures"`
	Analysis DifficultySummary `json:"analysis"`
}

// UpcomingMatch is one of the analyzed upcoming fixtures.
type UpcomingMatch struct {
	Gameweek   int    `json:"gameweek"`
	Opponent   string `json:"opponent"`
	Home       bool   `json:"home"`
	Difficulty int    `json:"difficulty"`
}

// DifficultySummary aggregates the fixture difficulty of the analyzed run.
type DifficultySummary struct {
	FixturesAnalyzed  int     `json:"fixtures_analyzed"`
	AverageDifficulty float64 `json:"average_difficulty"`
	Rating            string  `json:"rating"`
}

// analyzePlayers filters, sorts, and truncates the player set. It is a pure
// function over already-fetched data.
func analyzePlayers(
	players []fpl.Player,
	teams []fpl.Team,
	filter PlayerFilter,
	sortBy, sortOrder string,
	limit int,
) (PlayerAnalysis, error) {
	if sortBy == "" {
		sortBy = "total_points"
	}
	if _, ok := metricValue(fpl.Player{}, sortBy); !ok {
		return PlayerAnalysis{}, fmt.Errorf("unknown sort metric: %s", sortBy)
	}
	if limit <= 0 {
		limit = 10
	}

	var nameGlob glob.Glob
	if filter.Name != "" {
		pattern := strings.ToLower(filter.Name)
		if !strings.ContainsAny(pattern, "*?[") {
			pattern = "*" + pattern + "*"
		}
		compiled, err := glob.Compile(pattern)
		if err != nil {
			return PlayerAnalysis{}, fmt.Errorf("invalid name pattern: %w", err)
		}
		nameGlob = compiled
	}

	teamNames := teamNameIndex(teams)
	shortNames := teamShortNameIndex(teams)

	matched := make([]fpl.Player, 0, len(players))
	for _, p := range players {
		if filter.Position != "" && !strings.EqualFold(filter.Position, p.Position()) {
			continue
		}
		if filter.Team != "" && !strings.EqualFold(filter.Team, teamNames[p.Team]) &&
			!strings.EqualFold(filter.Team, shortNames[p.Team]) {
			continue
		}
		if filter.MinPrice > 0 && p.Price() < filter.MinPrice {
			continue
		}
		if filter.MaxPrice > 0 && p.Price() > filter.MaxPrice {
			continue
		}
		if nameGlob != nil &&
			!nameGlob.Match(strings.ToLower(p.WebName)) &&
			!nameGlob.Match(strings.ToLower(p.FullName())) {
			continue
		}
		matched = append(matched, p)
	}

	desc := sortOrder != "asc"
	sort.SliceStable(matched, func(i, j int) bool {
		vi, _ := metricValue(matched[i], sortBy)
		vj, _ := metricValue(matched[j], sortBy)
		if desc {
			return vi > vj
		}
		return vi < vj
	})

	var totalPoints int
	for _, p := range matched {
		totalPoints += p.TotalPoints
	}
	summary := AnalysisSummary{TotalMatches: len(matched)}
	if len(matched) > 0 {
		summary.AveragePoints = round2(float64(totalPoints) / float64(len(matched)))
	}

	if len(matched) > limit {
		matched = matched[:limit]
	}

	views := make([]PlayerView, 0, len(matched))
	for _, p := range matched {
		views = append(views, playerView(p, teamNames))
	}

	return PlayerAnalysis{Players: views, Summary: summary}, nil
}

// comparePlayers resolves each name and reports per-metric values with a
// winner per metric.
func comparePlayers(
	players []fpl.Player,
	teams []fpl.Team,
	names []string,
	metrics []string,
) (PlayerComparison, error) {
	if len(names) < 2 {
		return PlayerComparison{}, fmt.Errorf("at least two player names are required")
	}
	if len(metrics) == 0 {
		metrics = []string{"total_points"}
	}

	teamNames := teamNameIndex(teams)

	resolved := make([]fpl.Player, 0, len(names))
	views := make([]PlayerView, 0, len(names))
	for _, name := range names {
		p, ok := findPlayer(players, name)
		if !ok {
			return PlayerComparison{}, fmt.Errorf("player not found: %s", name)
		}
		resolved = append(resolved, p)
		views = append(views, playerView(p, teamNames))
	}

	comparison := PlayerComparison{
		Players: views,
		Metrics: make(map[string]MetricComparison, len(metrics)),
	}
	labels := comparisonLabels(views)

	for _, metric := range metrics {
		values := make(map[string]float64, len(resolved))
		winner := ""
		best := 0.0
		for i, p := range resolved {
			v, ok := metricValue(p, metric)
			if !ok {
				return PlayerComparison{}, fmt.Errorf("unknown metric: %s", metric)
			}
			values[labels[i]] = v
			if winner == "" || v > best {
				winner = labels[i]
				best = v
			}
		}
		comparison.Metrics[metric] = MetricComparison{Values: values, Winner: winner}
	}

	return comparison, nil
}

// comparisonLabels picks a distinct label per compared player: the web name
// when it is unique within the comparison, the full name when the web name
// collides, and full name plus id when even that collides.
func comparisonLabels(views []PlayerView) []string {
	webNames := make(map[string]int, len(views))
	fullNames := make(map[string]int, len(views))
	for _, v := range views {
		webNames[v.Name]++
		fullNames[v.FullName]++
	}

	labels := make([]string, len(views))
	for i, v := range views {
		switch {
		case webNames[v.Name] == 1:
			labels[i] = v.Name
		case fullNames[v.FullName] == 1:
			labels[i] = v.FullName
		default:
			labels[i] = fmt.Sprintf("%s (%d)", v.FullName, v.ID)
		}
	}
	return labels
}

// analyzePlayerFixtures scores the difficulty of a player's upcoming run.
func analyzePlayerFixtures(
	players []fpl.Player,
	teams []fpl.Team,
	fixtures []fpl.Fixture,
	name string,
	numFixtures int,
) (FixtureAnalysis, error) {
	if numFixtures <= 0 {
		numFixtures = 5
	}

	player, ok := findPlayer(players, name)
	if !ok {
		return FixtureAnalysis{}, fmt.Errorf("player not found: %s", name)
	}

	teamNames := teamNameIndex(teams)

	upcoming := make([]fpl.Fixture, 0, numFixtures)
	for _, f := range fixtures {
		if f.Finished || f.Started || f.Event == nil {
			continue
		}
		if f.TeamH != player.Team && f.TeamA != player.Team {
			continue
		}
		upcoming = append(upcoming, f)
	}
	sort.Slice(upcoming, func(i, j int) bool {
		return *upcoming[i].Event < *upcoming[j].Event
	})
	if len(upcoming) > numFixtures {
		upcoming = upcoming[:numFixtures]
	}

	matches := make([]UpcomingMatch, 0, len(upcoming))
	var totalDifficulty int
	for _, f := range upcoming {
		home := f.TeamH == player.Team
		difficulty := f.TeamADifficulty
		opponent := f.TeamH
		if home {
			difficulty = f.TeamHDifficulty
			opponent = f.TeamA
		}
		totalDifficulty += difficulty
		matches = append(matches, UpcomingMatch{
			Gameweek:   *f.Event,
			Opponent:   teamNames[opponent],
			Home:       home,
			Difficulty: difficulty,
		})
	}

	summary := DifficultySummary{FixturesAnalyzed: len(matches)}
	if len(matches) > 0 {
		summary.AverageDifficulty = round2(float64(totalDifficulty) / float64(len(matches)))
		summary.Rating = difficultyRating(summary.AverageDifficulty)
	}

	return FixtureAnalysis{
		Player:   playerView(player, teamNames),
		Fixtures: matches,
		Analysis: summary,
	}, nil
}

// findPlayer matches a name case-insensitively against web names and full
// names, preferring exact matches over substring ones.
func findPlayer(players []fpl.Player, name string) (fpl.Player, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return fpl.Player{}, false
	}

	for _, p := range players {
		if strings.ToLower(p.WebName) == needle || strings.ToLower(p.FullName()) == needle {
			return p, true
		}
	}
	for _, p := range players {
		if strings.Contains(strings.ToLower(p.WebName), needle) ||
			strings.Contains(strings.ToLower(p.FullName()), needle) {
			return p, true
		}
	}
	return fpl.Player{}, false
}

// metricValue extracts a numeric metric from a player. String-typed upstream
// fields are parsed; a parse failure counts as zero rather than an error so a
// single malformed row doesn't poison a whole comparison.
func metricValue(p fpl.Player, metric string) (float64, bool) {
	switch metric {
	case "total_points":
		return float64(p.TotalPoints), true
	case "event_points":
		return float64(p.EventPoints), true
	case "price", "now_cost":
		return p.Price(), true
	case "form":
		return parseFloat(p.Form), true
	case "points_per_game":
		return parseFloat(p.PointsPerGame), true
	case "selected_by_percent":
		return parseFloat(p.SelectedByPercent), true
	case "goals_scored":
		return float64(p.GoalsScored), true
	case "assists":
		return float64(p.Assists), true
	case "clean_sheets":
		return float64(p.CleanSheets), true
	case "minutes":
		return float64(p.Minutes), true
	case "bonus":
		return float64(p.Bonus), true
	case "bps":
		return float64(p.BPS), true
	case "saves":
		return float64(p.Saves), true
	default:
		return 0, false
	}
}

func playerView(p fpl.Player, teamNames map[int]string) PlayerView {
	return PlayerView{
		ID:                p.ID,
		Name:              p.WebName,
		FullName:          p.FullName(),
		Team:              teamNames[p.Team],
		Position:          p.Position(),
		Price:             p.Price(),
		Points:            p.TotalPoints,
		Form:              p.Form,
		SelectedByPercent: p.SelectedByPercent,
		GoalsScored:       p.GoalsScored,
		Assists:           p.Assists,
		Minutes:           p.Minutes,
		Bonus:             p.Bonus,
	}
}

func teamNameIndex(teams []fpl.Team) map[int]string {
	idx := make(map[int]string, len(teams))
	for _, t := range teams {
		idx[t.ID] = t.Name
	}
	return idx
}

func teamShortNameIndex(teams []fpl.Team) map[int]string {
	idx := make(map[int]string, len(teams))
	for _, t := range teams {
		idx[t.ID] = t.ShortName
	}
	return idx
}

func difficultyRating(avg float64) string {
	switch {
	case avg <= 2.5:
		return "easy"
	case avg <= 3.5:
		return "average"
	default:
		return "hard"
	}
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
