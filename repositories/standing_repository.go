package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dosada05/league-manager/models"
)

// StandingsRepository reads the raw material of a league table and writes the
// denormalized counters on leagueteam.
type StandingsRepository interface {
	ListLeagueIDs(ctx context.Context, exec SQLExecutor) ([]int, error)
	ListRegisteredTeams(ctx context.Context, exec SQLExecutor, leagueID int) ([]models.LeagueTeamEntry, error)
	ListCompletedResults(ctx context.Context, exec SQLExecutor, leagueID int) ([]models.ParticipationResult, error)
	UpdateCounters(ctx context.Context, exec SQLExecutor, rows []models.RankingRow) error
}

type postgresStandingsRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresStandingsRepository(db *sql.DB, queryTimeout time.Duration) StandingsRepository {
	return &postgresStandingsRepository{db: db, queryTimeout: queryTimeout}
}

func (r *postgresStandingsRepository) ListLeagueIDs(ctx context.Context, exec SQLExecutor) ([]int, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := executorOrDB(exec, r.db).QueryContext(ctx, `SELECT id FROM league ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]int, 0)
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *postgresStandingsRepository) ListRegisteredTeams(ctx context.Context, exec SQLExecutor, leagueID int) ([]models.LeagueTeamEntry, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT lt.id, t.id, t.full_name, t.logo
		FROM leagueteam lt
		JOIN team t ON lt.team_id = t.id
		WHERE lt.league_id = $1
		ORDER BY lt.id`

	rows, err := executorOrDB(exec, r.db).QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.LeagueTeamEntry, 0)
	for rows.Next() {
		var e models.LeagueTeamEntry
		if err := rows.Scan(&e.LeagueTeamID, &e.TeamID, &e.TeamName, &e.TeamLogo); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListCompletedResults возвращает участия в завершенных матчах раундов лиги.
func (r *postgresStandingsRepository) ListCompletedResults(ctx context.Context, exec SQLExecutor, leagueID int) ([]models.ParticipationResult, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT ltm.match_id, ltm.league_team_id, ltm.goal
		FROM leagueteammatch ltm
		JOIN "match" m ON ltm.match_id = m.id
		JOIN round r ON m.round_id = r.id
		WHERE r.league_id = $1 AND m.status = $2
		ORDER BY ltm.match_id, ltm.id`

	rows, err := executorOrDB(exec, r.db).QueryContext(ctx, query, leagueID, models.MatchStatusCompleted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]models.ParticipationResult, 0)
	for rows.Next() {
		var pr models.ParticipationResult
		if err := rows.Scan(&pr.MatchID, &pr.LeagueTeamID, &pr.Goals); err != nil {
			return nil, err
		}
		results = append(results, pr)
	}
	return results, rows.Err()
}

func (r *postgresStandingsRepository) UpdateCounters(ctx context.Context, exec SQLExecutor, rows []models.RankingRow) error {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	executor := executorOrDB(exec, r.db)
	query := `
		UPDATE leagueteam SET
			wins = $1, draws = $2, losses = $3, goals_for = $4, goals_against = $5,
			counters_updated_at = NOW()
		WHERE id = $6`

	for _, row := range rows {
		result, err := executor.ExecContext(ctx, query,
			row.Won, row.Drawn, row.Lost, row.GoalsFor, row.GoalsAgainst, row.LeagueTeamID)
		if err != nil {
			return fmt.Errorf("failed to update counters for league team %d: %w", row.LeagueTeamID, err)
		}
		if err := checkAffectedRows(result, ErrLeagueTeamNotFound); err != nil {
			return fmt.Errorf("league team %d: %w", row.LeagueTeamID, err)
		}
	}
	return nil
}
