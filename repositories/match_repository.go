package repositories

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/league-manager/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound            = errors.New("match not found")
	ErrParticipationNotFound    = errors.New("match participation not found")
	ErrParticipationDuplicate   = errors.New("league team already participates in this match")
	ErrMatchStadiumInvalid      = errors.New("match stadium conflict or invalid")
	ErrMatchRoundInvalid        = errors.New("match round conflict or invalid")
	ErrParticipationTeamInvalid = errors.New("match participant league team conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	CreateParticipations(ctx context.Context, exec SQLExecutor, participations []*models.LeagueTeamMatch) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByLeague(ctx context.Context, leagueID int, status *models.MatchStatus) ([]*models.Match, error)
	ListByLeagueTeam(ctx context.Context, leagueTeamID int, status *models.MatchStatus) ([]*models.Match, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error

	ListParticipations(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.LeagueTeamMatch, error)
	ListParticipationsByMatches(ctx context.Context, matchIDs []int) (map[int][]*models.LeagueTeamMatch, error)
	UpdateParticipationResult(ctx context.Context, exec SQLExecutor, participationID int, goals int, result models.ResultTag) error
}

type postgresMatchRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresMatchRepository(db *sql.DB, queryTimeout time.Duration) MatchRepository {
	return &postgresMatchRepository{db: db, queryTimeout: queryTimeout}
}

const matchSelectColumns = `
		SELECT m.id, m.match_date, m.time_start, m.description, m.status, m.stadium_id, m.round_id, m.created_at,
		       s.name AS stadium_name, r.name AS round_name
		FROM "match" m
		LEFT JOIN stadium s ON m.stadium_id = s.id
		LEFT JOIN round r ON m.round_id = r.id`

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		INSERT INTO "match" (match_date, time_start, description, status, stadium_id, round_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := executorOrDB(exec, r.db).QueryRowContext(ctx, query,
		match.Date,
		match.TimeStart,
		match.Description,
		match.Status,
		match.StadiumID,
		match.RoundID,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) CreateParticipations(ctx context.Context, exec SQLExecutor, participations []*models.LeagueTeamMatch) error {
	if len(participations) == 0 {
		return nil
	}
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	executor := executorOrDB(exec, r.db)
	query := `
		INSERT INTO leagueteammatch (match_id, league_team_id, role, goal, result)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`

	for _, p := range participations {
		err := executor.QueryRowContext(ctx, query,
			p.MatchID, p.LeagueTeamID, p.Role, p.Goals, p.Result,
		).Scan(&p.ID)
		if err != nil {
			return r.handleMatchError(err)
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := executorOrDB(exec, r.db).QueryRowContext(ctx, matchSelectColumns+` WHERE m.id = $1`, id)
	return r.scanMatch(row)
}

// GetByIDForUpdate блокирует строку матча до конца транзакции.
func (r *postgresMatchRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT m.id, m.match_date, m.time_start, m.description, m.status, m.stadium_id, m.round_id, m.created_at,
		       NULL::text, NULL::text
		FROM "match" m
		WHERE m.id = $1
		FOR UPDATE`
	row := executorOrDB(exec, r.db).QueryRowContext(ctx, query, id)
	return r.scanMatch(row)
}

func (r *postgresMatchRepository) ListByLeague(ctx context.Context, leagueID int, status *models.MatchStatus) ([]*models.Match, error) {
	return r.list(ctx, ` WHERE r.league_id = $1`, leagueID, status)
}

func (r *postgresMatchRepository) ListByLeagueTeam(ctx context.Context, leagueTeamID int, status *models.MatchStatus) ([]*models.Match, error) {
	return r.list(ctx, ` WHERE EXISTS (SELECT 1 FROM leagueteammatch ltm WHERE ltm.match_id = m.id AND ltm.league_team_id = $1)`, leagueTeamID, status)
}

func (r *postgresMatchRepository) list(ctx context.Context, where string, id int, statusFilter *models.MatchStatus) ([]*models.Match, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	var queryBuilder strings.Builder
	queryBuilder.WriteString(matchSelectColumns)
	queryBuilder.WriteString(where)

	args := []interface{}{id}
	placeholderIndex := 2

	if statusFilter != nil {
		queryBuilder.WriteString(" AND m.status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *statusFilter)
	}

	queryBuilder.WriteString(" ORDER BY m.match_date ASC, m.time_start ASC, m.id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.MatchStatus) error {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	result, err := executorOrDB(exec, r.db).ExecContext(ctx, `UPDATE "match" SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	var m models.Match
	var stadiumName, roundName sql.NullString
	err := rowScanner.Scan(
		&m.ID,
		&m.Date,
		&m.TimeStart,
		&m.Description,
		&m.Status,
		&m.StadiumID,
		&m.RoundID,
		&m.CreatedAt,
		&stadiumName,
		&roundName,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	if stadiumName.Valid {
		m.StadiumName = &stadiumName.String
	}
	if roundName.Valid {
		m.RoundName = &roundName.String
	}
	m.Participants = make([]*models.LeagueTeamMatch, 0)
	return &m, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "leagueteammatch_match_league_team_key" {
				return ErrParticipationDuplicate
			}
		case pqForeignKeyViolation:
			switch pqErr.Constraint {
			case "match_stadium_id_fkey":
				return ErrMatchStadiumInvalid
			case "match_round_id_fkey":
				return ErrMatchRoundInvalid
			case "leagueteammatch_league_team_id_fkey":
				return ErrParticipationTeamInvalid
			}
		}
	}
	return err
}
