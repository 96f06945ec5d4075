package models

// League представляет сезон лиги.
type League struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	StartDate   *Date   `json:"start_date,omitempty" db:"start_date"`
	EndDate     *Date   `json:"end_date,omitempty" db:"end_date"`
	Description *string `json:"description,omitempty" db:"description"`

	Rounds      []Round      `json:"rounds,omitempty" db:"-"`
	LeagueTeams []LeagueTeam `json:"league_teams,omitempty" db:"-"`
}

type Round struct {
	ID          int     `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	StartDate   *Date   `json:"start_date,omitempty" db:"start_date"`
	EndDate     *Date   `json:"end_date,omitempty" db:"end_date"`
	Description *string `json:"description,omitempty" db:"description"`
	LeagueID    int     `json:"league_id" db:"league_id"`
}

type Stadium struct {
	ID       int     `json:"id" db:"id"`
	Name     string  `json:"name" db:"name"`
	Address  *string `json:"address,omitempty" db:"address"`
	Capacity *int    `json:"capacity,omitempty" db:"capacity"`
}
