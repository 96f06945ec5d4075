package models

import "time"

type Team struct {
	ID           int     `json:"id" db:"id"`
	FullName     string  `json:"full_name" db:"full_name"`
	ShortName    *string `json:"short_name,omitempty" db:"short_name"`
	HeadCoach    *string `json:"head_coach,omitempty" db:"head_coach"`
	HomeKitColor *string `json:"home_kit_color,omitempty" db:"home_kit_color"`
	AwayKitColor *string `json:"away_kit_color,omitempty" db:"away_kit_color"`
	Achievements *string `json:"achievements,omitempty" db:"achievements"`
	StadiumID    *int    `json:"stadium_id,omitempty" db:"stadium_id"`

	LogoKey *string `json:"-" db:"logo"`
}

// LeagueTeam - регистрация команды в конкретной лиге.
// Счетчики побед/ничьих - денормализованный кэш, пересобирается из истории матчей.
type LeagueTeam struct {
	ID                int        `json:"id" db:"id"`
	LeagueID          int        `json:"league_id" db:"league_id"`
	TeamID            int        `json:"team_id" db:"team_id"`
	Wins              int        `json:"wins" db:"wins"`
	Draws             int        `json:"draws" db:"draws"`
	Losses            int        `json:"losses" db:"losses"`
	GoalsFor          int        `json:"goals_for" db:"goals_for"`
	GoalsAgainst      int        `json:"goals_against" db:"goals_against"`
	CountersUpdatedAt *time.Time `json:"counters_updated_at,omitempty" db:"counters_updated_at"`

	Team *Team `json:"team,omitempty" db:"-"`
}
