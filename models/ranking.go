package models

// RankingRow is one derived line of a league table. It is never persisted.
type RankingRow struct {
	LeagueTeamID   int     `json:"league_team_id"`
	TeamName       string  `json:"team_name"`
	TeamLogo       *string `json:"team_logo,omitempty"`
	Played         int     `json:"played"`
	Won            int     `json:"won"`
	Drawn          int     `json:"drawn"`
	Lost           int     `json:"lost"`
	GoalsFor       int     `json:"goals_for"`
	GoalsAgainst   int     `json:"goals_against"`
	GoalDifference int     `json:"goal_difference"`
	Points         int     `json:"points"`
	Rank           int     `json:"rank"`
}

// LeagueTeamEntry - зарегистрированная команда лиги с данными для таблицы.
type LeagueTeamEntry struct {
	LeagueTeamID int
	TeamID       int
	TeamName     string
	TeamLogo     *string
}

// ParticipationResult - строка участия в завершенном матче.
type ParticipationResult struct {
	MatchID      int
	LeagueTeamID int
	Goals        *int
}
