package fantasy

// AnalyzePlayersArgs is an argument struct for the analyze_players tool.
type AnalyzePlayersArgs struct {
	Position  string  `json:"position"`
	Team      string  `json:"team"`
	Name      string  `json:"name"`
	MinPrice  float64 `json:"min_price"`
	MaxPrice  float64 `json:"max_price"`
	SortBy    string  `json:"sort_by"`
	SortOrder string  `json:"sort_order"`
	Limit     int     `json:"limit"`
}

// ComparePlayersArgs is an argument struct for the compare_players tool.
type ComparePlayersArgs struct {
	Names   []string `json:"player_names"`
	Metrics []string `json:"metrics"`
}

// AnalyzeFixturesArgs is an argument struct for the analyze_player_fixtures tool.
type AnalyzeFixturesArgs struct {
	Name        string `json:"player_name"`
	NumFixtures int    `json:"num_fixtures"`
}

var analyzePlayersSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "position": {
        "type": "string",
        "enum": ["GKP", "DEF", "MID", "FWD"],
        "description": "Filter by playing position"
      },
      "team": {
        "type": "string",
        "description": "Filter by team name or short name, e.g. 'Arsenal' or 'ARS'"
      },
      "name": {
        "type": "string",
        "description": "Filter by player name; supports glob patterns like 'Haal*'"
      },
      "min_price": {
        "type": "number",
        "description": "Minimum price in millions"
      },
      "max_price": {
        "type": "number",
        "description": "Maximum price in millions"
      },
      "sort_by": {
        "type": "string",
        "description": "Metric to sort by, e.g. total_points, form, price, selected_by_percent"
      },
      "sort_order": {
        "type": "string",
        "enum": ["asc", "desc"],
        "description": "Sort direction, defaults to desc"
      },
      "limit": {
        "type": "integer",
        "description": "Maximum number of players to return, defaults to 10"
      }
    }
  }
`)

var comparePlayersSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "player_names": {
        "type": "array",
        "items": {
          "type": "string"
        },
        "minItems": 2,
        "description": "Names of the players to compare"
      },
      "metrics": {
        "type": "array",
        "items": {
          "type": "string"
        },
        "description": "Metrics to compare, defaults to total_points"
      }
    },
    "required": ["player_names"]
  }
`)

var analyzeFixturesSchema = []byte(`
  {
    "type": "object",
    "properties": {
      "player_name": {
        "type": "string",
        "description": "Name of the player whose upcoming fixtures to analyze"
      },
      "num_fixtures": {
        "type": "integer",
        "description": "Number of upcoming fixtures to analyze, defaults to 5"
      }
    },
    "required": ["player_name"]
  }
`)
