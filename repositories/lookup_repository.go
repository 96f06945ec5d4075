package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Dosada05/league-manager/models"
)

var (
	ErrLeagueNotFound     = errors.New("league not found")
	ErrStadiumNotFound    = errors.New("stadium not found")
	ErrRoundNotFound      = errors.New("round not found")
	ErrLeagueTeamNotFound = errors.New("league team not found")
)

// LookupRepository отдает справочные сущности по id. CRUD для них живет вне этого сервиса.
type LookupRepository interface {
	GetLeague(ctx context.Context, id int) (*models.League, error)
	GetStadium(ctx context.Context, id int) (*models.Stadium, error)
	GetRound(ctx context.Context, id int) (*models.Round, error)
	GetLeagueTeam(ctx context.Context, id int) (*models.LeagueTeam, error)
}

type postgresLookupRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresLookupRepository(db *sql.DB, queryTimeout time.Duration) LookupRepository {
	return &postgresLookupRepository{db: db, queryTimeout: queryTimeout}
}

func (r *postgresLookupRepository) GetLeague(ctx context.Context, id int) (*models.League, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	l := &models.League{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, description FROM league WHERE id = $1`, id,
	).Scan(&l.ID, &l.Name, &l.StartDate, &l.EndDate, &l.Description)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, err
	}
	return l, nil
}

func (r *postgresLookupRepository) GetStadium(ctx context.Context, id int) (*models.Stadium, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	s := &models.Stadium{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, address, capacity FROM stadium WHERE id = $1`, id,
	).Scan(&s.ID, &s.Name, &s.Address, &s.Capacity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStadiumNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresLookupRepository) GetRound(ctx context.Context, id int) (*models.Round, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	rd := &models.Round{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, start_date, end_date, description, league_id FROM round WHERE id = $1`, id,
	).Scan(&rd.ID, &rd.Name, &rd.StartDate, &rd.EndDate, &rd.Description, &rd.LeagueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, err
	}
	return rd, nil
}

func (r *postgresLookupRepository) GetLeagueTeam(ctx context.Context, id int) (*models.LeagueTeam, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT lt.id, lt.league_id, lt.team_id, lt.wins, lt.draws, lt.losses,
		       lt.goals_for, lt.goals_against, lt.counters_updated_at,
		       t.id, t.full_name, t.short_name, t.logo
		FROM leagueteam lt
		JOIN team t ON lt.team_id = t.id
		WHERE lt.id = $1`

	lt := &models.LeagueTeam{Team: &models.Team{}}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&lt.ID, &lt.LeagueID, &lt.TeamID, &lt.Wins, &lt.Draws, &lt.Losses,
		&lt.GoalsFor, &lt.GoalsAgainst, &lt.CountersUpdatedAt,
		&lt.Team.ID, &lt.Team.FullName, &lt.Team.ShortName, &lt.Team.LogoKey,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueTeamNotFound
		}
		return nil, err
	}
	return lt, nil
}
