package repositories

import (
	"context"
	"database/sql"

	"github.com/Dosada05/league-manager/models"
	"github.com/lib/pq"
)

const participationSelectColumns = `
		SELECT ltm.id, ltm.match_id, ltm.league_team_id, ltm.role, ltm.goal, ltm.result, t.full_name
		FROM leagueteammatch ltm
		JOIN leagueteam lt ON ltm.league_team_id = lt.id
		JOIN team t ON lt.team_id = t.id`

func (r *postgresMatchRepository) ListParticipations(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.LeagueTeamMatch, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := executorOrDB(exec, r.db).QueryContext(ctx, participationSelectColumns+`
		WHERE ltm.match_id = $1
		ORDER BY ltm.id`, matchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*models.LeagueTeamMatch, 0, 2)
	for rows.Next() {
		p, scanErr := scanParticipation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		list = append(list, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// ListParticipationsByMatches загружает участников сразу для набора матчей (для списков).
func (r *postgresMatchRepository) ListParticipationsByMatches(ctx context.Context, matchIDs []int) (map[int][]*models.LeagueTeamMatch, error) {
	result := make(map[int][]*models.LeagueTeamMatch, len(matchIDs))
	if len(matchIDs) == 0 {
		return result, nil
	}
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, participationSelectColumns+`
		WHERE ltm.match_id = ANY($1)
		ORDER BY ltm.match_id, ltm.id`, pq.Array(matchIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, scanErr := scanParticipation(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		result[p.MatchID] = append(result[p.MatchID], p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresMatchRepository) UpdateParticipationResult(ctx context.Context, exec SQLExecutor, participationID int, goals int, result models.ResultTag) error {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	res, err := executorOrDB(exec, r.db).ExecContext(ctx,
		`UPDATE leagueteammatch SET goal = $1, result = $2 WHERE id = $3`,
		goals, result, participationID)
	if err != nil {
		return err
	}
	return checkAffectedRows(res, ErrParticipationNotFound)
}

func scanParticipation(rowScanner interface{ Scan(...interface{}) error }) (*models.LeagueTeamMatch, error) {
	var p models.LeagueTeamMatch
	var teamName sql.NullString
	if err := rowScanner.Scan(
		&p.ID,
		&p.MatchID,
		&p.LeagueTeamID,
		&p.Role,
		&p.Goals,
		&p.Result,
		&teamName,
	); err != nil {
		return nil, err
	}
	if teamName.Valid {
		p.TeamName = &teamName.String
	}
	return &p, nil
}
