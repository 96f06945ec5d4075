package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Dosada05/league-manager/models"
	"github.com/lib/pq"
)

// ScheduleRepository holds the read-only availability queries used by match
// admission, plus the advisory locks that serialize competing admissions.
type ScheduleRepository interface {
	// LockKeys takes transaction-scoped advisory locks; exec must be a transaction.
	LockKeys(ctx context.Context, exec SQLExecutor, keys []string) error
	StadiumBooked(ctx context.Context, exec SQLExecutor, stadiumID int, date models.Date, start models.ClockTime, window time.Duration) (bool, error)
	FindBusyTeam(ctx context.Context, exec SQLExecutor, leagueTeamIDs []int, date models.Date, start models.ClockTime, window time.Duration) (int, bool, error)
	FindTeamInRound(ctx context.Context, exec SQLExecutor, roundID int, leagueTeamIDs []int) (int, bool, error)
}

type postgresScheduleRepository struct {
	db           *sql.DB
	queryTimeout time.Duration
}

func NewPostgresScheduleRepository(db *sql.DB, queryTimeout time.Duration) ScheduleRepository {
	return &postgresScheduleRepository{db: db, queryTimeout: queryTimeout}
}

func (r *postgresScheduleRepository) LockKeys(ctx context.Context, exec SQLExecutor, keys []string) error {
	if exec == nil {
		return errors.New("advisory locks require a transaction")
	}
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	// Один и тот же порядок во всех транзакциях, иначе возможен deadlock
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	for i, key := range sorted {
		if i > 0 && key == sorted[i-1] {
			continue
		}
		if _, err := exec.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
	}
	return nil
}

func (r *postgresScheduleRepository) StadiumBooked(ctx context.Context, exec SQLExecutor, stadiumID int, date models.Date, start models.ClockTime, window time.Duration) (bool, error) {
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT EXISTS (
			SELECT 1 FROM "match"
			WHERE stadium_id = $1 AND match_date = $2
			  AND ABS(EXTRACT(EPOCH FROM time_start) - EXTRACT(EPOCH FROM $3::time)) < $4
		)`

	var booked bool
	err := executorOrDB(exec, r.db).QueryRowContext(ctx, query,
		stadiumID, date, start, int(window/time.Second),
	).Scan(&booked)
	return booked, err
}

func (r *postgresScheduleRepository) FindBusyTeam(ctx context.Context, exec SQLExecutor, leagueTeamIDs []int, date models.Date, start models.ClockTime, window time.Duration) (int, bool, error) {
	if len(leagueTeamIDs) == 0 {
		return 0, false, nil
	}
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT ltm.league_team_id
		FROM leagueteammatch ltm
		JOIN "match" m ON ltm.match_id = m.id
		WHERE ltm.league_team_id = ANY($1) AND m.match_date = $2
		  AND ABS(EXTRACT(EPOCH FROM m.time_start) - EXTRACT(EPOCH FROM $3::time)) < $4
		ORDER BY array_position($1, ltm.league_team_id)
		LIMIT 1`

	return scanOptionalID(executorOrDB(exec, r.db).QueryRowContext(ctx, query,
		pq.Array(leagueTeamIDs), date, start, int(window/time.Second),
	))
}

func (r *postgresScheduleRepository) FindTeamInRound(ctx context.Context, exec SQLExecutor, roundID int, leagueTeamIDs []int) (int, bool, error) {
	if len(leagueTeamIDs) == 0 {
		return 0, false, nil
	}
	ctx, cancel := withQueryTimeout(ctx, r.queryTimeout)
	defer cancel()

	query := `
		SELECT ltm.league_team_id
		FROM leagueteammatch ltm
		JOIN "match" m ON ltm.match_id = m.id
		WHERE m.round_id = $1 AND ltm.league_team_id = ANY($2)
		ORDER BY array_position($2, ltm.league_team_id)
		LIMIT 1`

	return scanOptionalID(executorOrDB(exec, r.db).QueryRowContext(ctx, query,
		roundID, pq.Array(leagueTeamIDs),
	))
}

func scanOptionalID(row *sql.Row) (int, bool, error) {
	var id int
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return id, true, nil
}
