package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "SCHEDULED"
	MatchStatusCompleted MatchStatus = "COMPLETED"
)

func (s MatchStatus) Valid() bool {
	return s == MatchStatusScheduled || s == MatchStatusCompleted
}

// ResultTag - итог матча для одного участника.
type ResultTag string

const (
	ResultWin  ResultTag = "Win"
	ResultDraw ResultTag = "Draw"
	ResultLose ResultTag = "Lose"
)

const (
	RoleHome = "Home"
	RoleAway = "Away"
)

type Match struct {
	ID          int         `json:"id" db:"id"`
	Date        Date        `json:"date" db:"match_date"`
	TimeStart   ClockTime   `json:"time_start" db:"time_start"`
	Description *string     `json:"description,omitempty" db:"description"`
	Status      MatchStatus `json:"status" db:"status"`
	StadiumID   int         `json:"stadium_id" db:"stadium_id"`
	RoundID     *int        `json:"round_id,omitempty" db:"round_id"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`

	StadiumName  *string            `json:"stadium_name,omitempty" db:"-"`
	RoundName    *string            `json:"round_name,omitempty" db:"-"`
	Participants []*LeagueTeamMatch `json:"participants" db:"-"`
}

// LeagueTeamMatch - участие одной команды лиги в матче.
type LeagueTeamMatch struct {
	ID           int        `json:"id" db:"id"`
	MatchID      int        `json:"match_id" db:"match_id"`
	LeagueTeamID int        `json:"league_team_id" db:"league_team_id"`
	Role         *string    `json:"role,omitempty" db:"role"`
	Goals        *int       `json:"goals" db:"goal"`
	Result       *ResultTag `json:"result,omitempty" db:"result"`

	TeamName *string `json:"team_name,omitempty" db:"-"`
}
