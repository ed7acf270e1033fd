package fpl

// Bootstrap is the payload of the bootstrap-static endpoint: the game's static
// reference data for the season.
type Bootstrap struct {
	Events   []Gameweek `json:"events"`
	Teams    []Team     `json:"teams"`
	Elements []Player   `json:"elements"`
	Phases   []Phase    `json:"phases"`
}

// Player is one entry of the bootstrap elements list. Several numeric-looking
// fields (form, points per game, ownership) arrive as strings from the
// upstream and are kept that way.
type Player struct {
	ID          int    `json:"id"`
	WebName     string `json:"web_name"`
	FirstName   string `json:"first_name"`
	SecondName  string `json:"second_name"`
	Team        int    `json:"team"`
	ElementType int    `json:"element_type"`
	Status      string `json:"status"`

	NowCost     int `json:"now_cost"`
	TotalPoints int `json:"total_points"`
	EventPoints int `json:"event_points"`

	Form              string `json:"form"`
	PointsPerGame     string `json:"points_per_game"`
	SelectedByPercent string `json:"selected_by_percent"`

	Minutes       int `json:"minutes"`
	GoalsScored   int `json:"goals_scored"`
	Assists       int `json:"assists"`
	CleanSheets   int `json:"clean_sheets"`
	GoalsConceded int `json:"goals_conceded"`
	Bonus         int `json:"bonus"`
	BPS           int `json:"bps"`
	YellowCards   int `json:"yellow_cards"`
	RedCards      int `json:"red_cards"`
	Saves         int `json:"saves"`
}

// FullName returns the player's first and second name joined.
func (p Player) FullName() string {
	return p.FirstName + " " + p.SecondName
}

// Position maps the element type to the familiar position short code.
func (p Player) Position() string {
	switch p.ElementType {
	case 1:
		return "GKP"
	case 2:
		return "DEF"
	case 3:
		return "MID"
	case 4:
		return "FWD"
	default:
		return "UNK"
	}
}

// Price returns the player's cost in millions; the upstream reports tenths.
func (p Player) Price() float64 {
	return float64(p.NowCost) / 10
}

// Team is one entry of the bootstrap teams list.
type Team struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name"`
	Strength  int    `json:"strength"`

	StrengthOverallHome int `json:"strength_overall_home"`
	StrengthOverallAway int `json:"strength_overall_away"`
	StrengthAttackHome  int `json:"strength_attack_home"`
	StrengthAttackAway  int `json:"strength_attack_away"`
	StrengthDefenceHome int `json:"strength_defence_home"`
	StrengthDefenceAway int `json:"strength_defence_away"`
}

// Gameweek is one entry of the bootstrap events list.
type Gameweek struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	DeadlineTime      string `json:"deadline_time"`
	AverageEntryScore int    `json:"average_entry_score"`
	HighestScore      *int   `json:"highest_score"`
	Finished          bool   `json:"finished"`
	DataChecked       bool   `json:"data_checked"`
	IsPrevious        bool   `json:"is_previous"`
	IsCurrent         bool   `json:"is_current"`
	IsNext            bool   `json:"is_next"`
}

// Phase is one entry of the bootstrap phases list. HighestScore is null
// upstream until the phase has begun.
type Phase struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	StartEvent   int    `json:"start_event"`
	StopEvent    int    `json:"stop_event"`
	HighestScore *int   `json:"highest_score"`
}

// Fixture is one entry of the fixtures endpoint. Scores are null until the
// match kicks off; Event is null for unscheduled fixtures.
type Fixture struct {
	ID          int    `json:"id"`
	Event       *int   `json:"event"`
	TeamH       int    `json:"team_h"`
	TeamA       int    `json:"team_a"`
	TeamHS      *int   `json:"team_h_score"`
	TeamAS      *int   `json:"team_a_score"`
	KickoffTime string `json:"kickoff_time"`
	Finished    bool   `json:"finished"`
	Started     bool   `json:"started"`

	TeamHDifficulty int `json:"team_h_difficulty"`
	TeamADifficulty int `json:"team_a_difficulty"`
}

// PlayerSummary is the payload of the element-summary endpoint for one player.
type PlayerSummary struct {
	Fixtures []UpcomingFixture `json:"fixtures"`
	History  []MatchHistory    `json:"history"`
}

// UpcomingFixture is one of a player's remaining fixtures.
type UpcomingFixture struct {
	ID          int    `json:"id"`
	Event       *int   `json:"event"`
	EventName   string `json:"event_name"`
	TeamH       int    `json:"team_h"`
	TeamA       int    `json:"team_a"`
	IsHome      bool   `json:"is_home"`
	Difficulty  int    `json:"difficulty"`
	KickoffTime string `json:"kickoff_time"`
}

// MatchHistory is one of a player's completed appearances this season.
type MatchHistory struct {
	Fixture      int    `json:"fixture"`
	Round        int    `json:"round"`
	OpponentTeam int    `json:"opponent_team"`
	WasHome      bool   `json:"was_home"`
	KickoffTime  string `json:"kickoff_time"`
	TotalPoints  int    `json:"total_points"`
	Minutes      int    `json:"minutes"`
	GoalsScored  int    `json:"goals_scored"`
	Assists      int    `json:"assists"`
	CleanSheets  int    `json:"clean_sheets"`
	Bonus        int    `json:"bonus"`
}
