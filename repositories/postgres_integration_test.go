package repositories_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/league-manager/db"
	"github.com/Dosada05/league-manager/models"
	"github.com/Dosada05/league-manager/repositories"
	"github.com/Dosada05/league-manager/services"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const window = 2 * time.Hour

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestDB применяет миграции к TEST_DATABASE_URL и возвращает пул.
// Без переменной тесты пропускаются.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	require.NoError(t, db.Migrate(dsn, quietLogger()))

	conn, err := db.Connect(context.Background(), dsn, 5*time.Second, db.PoolOptions{MaxOpenConns: 10, MaxIdleConns: 10})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// leagueFixture - свежие лига, раунды, стадионы и команды; id не пересекаются с другими тестами.
type leagueFixture struct {
	leagueID    int
	rounds      [2]int
	stadiums    [2]int
	teams       [4]int
	leagueTeams [4]int
}

func insertID(t *testing.T, conn *sql.DB, query string, args ...interface{}) int {
	t.Helper()
	var id int
	require.NoError(t, conn.QueryRow(query, args...).Scan(&id))
	return id
}

func newLeagueFixture(t *testing.T, conn *sql.DB) leagueFixture {
	t.Helper()
	var f leagueFixture
	f.leagueID = insertID(t, conn, `INSERT INTO league (name) VALUES ($1) RETURNING id`, t.Name())
	for i := range f.rounds {
		f.rounds[i] = insertID(t, conn, `INSERT INTO round (name, league_id) VALUES ($1, $2) RETURNING id`,
			fmt.Sprintf("Round %d", i+1), f.leagueID)
	}
	for i := range f.stadiums {
		f.stadiums[i] = insertID(t, conn, `INSERT INTO stadium (name) VALUES ($1) RETURNING id`,
			fmt.Sprintf("Stadium %d", i+1))
	}
	for i := range f.leagueTeams {
		f.teams[i] = insertID(t, conn, `INSERT INTO team (full_name) VALUES ($1) RETURNING id`,
			fmt.Sprintf("Team %d", i+1))
		f.leagueTeams[i] = insertID(t, conn, `INSERT INTO leagueteam (league_id, team_id) VALUES ($1, $2) RETURNING id`,
			f.leagueID, f.teams[i])
	}
	t.Cleanup(func() {
		stadiums := []interface{}{f.stadiums[0], f.stadiums[1]}
		_, _ = conn.Exec(`DELETE FROM "match" WHERE stadium_id IN ($1, $2)`, stadiums...)
		_, _ = conn.Exec(`DELETE FROM league WHERE id = $1`, f.leagueID)
		_, _ = conn.Exec(`DELETE FROM stadium WHERE id IN ($1, $2)`, stadiums...)
		_, _ = conn.Exec(`DELETE FROM team WHERE id = ANY($1)`, pq.Array(f.teams[:]))
	})
	return f
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustClock(t *testing.T, s string) models.ClockTime {
	t.Helper()
	c, err := models.ParseClockTime(s)
	require.NoError(t, err)
	return c
}

// seedMatch пишет матч напрямую через репозиторий, минуя правила расписания.
func seedMatch(t *testing.T, repo repositories.MatchRepository, date, start string, stadiumID int, roundID *int, status models.MatchStatus, goals map[int]int, leagueTeamIDs ...int) int {
	t.Helper()
	ctx := context.Background()
	m := &models.Match{Date: mustDate(t, date), TimeStart: mustClock(t, start), StadiumID: stadiumID, RoundID: roundID, Status: status}
	require.NoError(t, repo.Create(ctx, nil, m))

	parts := make([]*models.LeagueTeamMatch, len(leagueTeamIDs))
	for i, lt := range leagueTeamIDs {
		parts[i] = &models.LeagueTeamMatch{MatchID: m.ID, LeagueTeamID: lt}
		if g, ok := goals[lt]; ok {
			parts[i].Goals = &g
		}
	}
	require.NoError(t, repo.CreateParticipations(ctx, nil, parts))
	return m.ID
}

func TestScheduleQueriesPostgres(t *testing.T) {
	conn := openTestDB(t)
	f := newLeagueFixture(t, conn)
	matches := repositories.NewPostgresMatchRepository(conn, 5*time.Second)
	schedule := repositories.NewPostgresScheduleRepository(conn, 5*time.Second)
	ctx := context.Background()

	lt := f.leagueTeams
	round := f.rounds[0]
	seedMatch(t, matches, "2031-03-01", "18:00", f.stadiums[0], &round, models.MatchStatusScheduled, nil, lt[0], lt[1])
	date := mustDate(t, "2031-03-01")

	t.Run("stadium window", func(t *testing.T) {
		tests := []struct {
			date   string
			start  string
			booked bool
		}{
			{"2031-03-01", "18:00", true},
			{"2031-03-01", "19:59:59", true},
			{"2031-03-01", "20:00", false},
			{"2031-03-01", "16:00:01", true},
			{"2031-03-01", "16:00", false},
			{"2031-03-02", "18:00", false},
		}
		for _, tt := range tests {
			booked, err := schedule.StadiumBooked(ctx, nil, f.stadiums[0], mustDate(t, tt.date), mustClock(t, tt.start), window)
			require.NoError(t, err)
			assert.Equal(t, tt.booked, booked, "%s %s", tt.date, tt.start)
		}

		booked, err := schedule.StadiumBooked(ctx, nil, f.stadiums[1], date, mustClock(t, "18:00"), window)
		require.NoError(t, err)
		assert.False(t, booked)
	})

	t.Run("team window", func(t *testing.T) {
		id, busy, err := schedule.FindBusyTeam(ctx, nil, []int{lt[2], lt[1], lt[0]}, date, mustClock(t, "19:00"), window)
		require.NoError(t, err)
		assert.True(t, busy)
		// первый занятый в порядке запроса
		assert.Equal(t, lt[1], id)

		_, busy, err = schedule.FindBusyTeam(ctx, nil, []int{lt[2], lt[3]}, date, mustClock(t, "19:00"), window)
		require.NoError(t, err)
		assert.False(t, busy)

		_, busy, err = schedule.FindBusyTeam(ctx, nil, []int{lt[0]}, date, mustClock(t, "20:00"), window)
		require.NoError(t, err)
		assert.False(t, busy)
	})

	t.Run("round exclusivity", func(t *testing.T) {
		id, found, err := schedule.FindTeamInRound(ctx, nil, round, []int{lt[3], lt[1], lt[0]})
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, lt[1], id)

		_, found, err = schedule.FindTeamInRound(ctx, nil, f.rounds[1], []int{lt[0], lt[1]})
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestLockKeysRequiresTransaction(t *testing.T) {
	conn := openTestDB(t)
	schedule := repositories.NewPostgresScheduleRepository(conn, time.Second)
	assert.Error(t, schedule.LockKeys(context.Background(), nil, []string{"stadium:1:2031-03-01"}))

	tx := repositories.NewPostgresTransactor(conn, 0, quietLogger())
	err := tx.WithinTx(context.Background(), func(ctx context.Context, exec repositories.SQLExecutor) error {
		return schedule.LockKeys(ctx, exec, []string{"team:2:2031-03-01", "stadium:1:2031-03-01", "team:2:2031-03-01"})
	})
	assert.NoError(t, err)
}

func TestStandingsQueriesPostgres(t *testing.T) {
	conn := openTestDB(t)
	f := newLeagueFixture(t, conn)
	matches := repositories.NewPostgresMatchRepository(conn, 5*time.Second)
	standings := repositories.NewPostgresStandingsRepository(conn, 5*time.Second)
	ctx := context.Background()

	lt := f.leagueTeams
	r1, r2 := f.rounds[0], f.rounds[1]
	completed := seedMatch(t, matches, "2031-04-01", "18:00", f.stadiums[0], &r1, models.MatchStatusCompleted,
		map[int]int{lt[0]: 3, lt[1]: 1}, lt[0], lt[1])
	seedMatch(t, matches, "2031-04-08", "18:00", f.stadiums[0], &r2, models.MatchStatusScheduled, nil, lt[2], lt[0])
	// матч без раунда в таблицу лиги не попадает
	seedMatch(t, matches, "2031-04-09", "18:00", f.stadiums[1], nil, models.MatchStatusCompleted,
		map[int]int{lt[2]: 5, lt[3]: 0}, lt[2], lt[3])

	teams, err := standings.ListRegisteredTeams(ctx, nil, f.leagueID)
	require.NoError(t, err)
	require.Len(t, teams, 4)
	assert.Equal(t, lt[0], teams[0].LeagueTeamID)
	assert.Equal(t, "Team 1", teams[0].TeamName)

	results, err := standings.ListCompletedResults(ctx, nil, f.leagueID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, completed, r.MatchID)
		require.NotNil(t, r.Goals)
	}

	rows := services.AggregateStandings(teams, results)
	require.NoError(t, standings.UpdateCounters(ctx, nil, rows))

	var wins, losses, goalsFor, goalsAgainst int
	require.NoError(t, conn.QueryRow(
		`SELECT wins, losses, goals_for, goals_against FROM leagueteam WHERE id = $1`, lt[0],
	).Scan(&wins, &losses, &goalsFor, &goalsAgainst))
	assert.Equal(t, 1, wins)
	assert.Equal(t, 0, losses)
	assert.Equal(t, 3, goalsFor)
	assert.Equal(t, 1, goalsAgainst)

	empty, err := standings.ListRegisteredTeams(ctx, nil, -1)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func newAdmissionService(conn *sql.DB, maxRetries int) services.MatchService {
	logger := quietLogger()
	return services.NewMatchService(
		repositories.NewPostgresTransactor(conn, maxRetries, logger),
		repositories.NewPostgresMatchRepository(conn, 5*time.Second),
		repositories.NewPostgresScheduleRepository(conn, 5*time.Second),
		repositories.NewPostgresLookupRepository(conn, 5*time.Second),
		nil, nil, logger,
	)
}

func admission(t *testing.T, date, start string, stadiumID int, roundID *int, leagueTeamIDs ...int) services.MatchCandidate {
	t.Helper()
	d, c := mustDate(t, date), mustClock(t, start)
	cand := services.MatchCandidate{Date: &d, TimeStart: &c, StadiumID: &stadiumID, RoundID: roundID}
	for _, id := range leagueTeamIDs {
		cand.Participants = append(cand.Participants, services.ParticipantInput{LeagueTeamID: id})
	}
	return cand
}

func TestAdmitMatchRulesPostgres(t *testing.T) {
	conn := openTestDB(t)
	f := newLeagueFixture(t, conn)
	svc := newAdmissionService(conn, 0)
	ctx := context.Background()
	lt := f.leagueTeams
	r1 := f.rounds[0]

	first, err := svc.AdmitMatch(ctx, admission(t, "2031-05-01", "18:00", f.stadiums[0], &r1, lt[0], lt[1]))
	require.NoError(t, err)
	require.Len(t, first.Participants, 2)

	tests := []struct {
		name   string
		cand   services.MatchCandidate
		reason string
	}{
		{"stadium booked", admission(t, "2031-05-01", "19:59:59", f.stadiums[0], nil, lt[2], lt[3]), services.ReasonStadiumBooked},
		{"team busy", admission(t, "2031-05-01", "19:00", f.stadiums[1], nil, lt[2], lt[1]), services.ReasonTeamBusy},
		{"team played round", admission(t, "2031-06-01", "12:00", f.stadiums[1], &r1, lt[0], lt[3]), services.ReasonTeamPlayedRound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.AdmitMatch(ctx, tt.cand)
			var cErr *services.ConflictError
			require.ErrorAs(t, err, &cErr)
			assert.Equal(t, tt.reason, cErr.Reason)
		})
	}

	// ровно два часа спустя - уже не конфликт
	_, err = svc.AdmitMatch(ctx, admission(t, "2031-05-01", "20:00", f.stadiums[0], nil, lt[2], lt[3]))
	assert.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM "match" WHERE stadium_id IN ($1, $2)`,
		f.stadiums[0], f.stadiums[1]).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestConcurrentAdmissionsPostgres(t *testing.T) {
	conn := openTestDB(t)
	f := newLeagueFixture(t, conn)
	// без повторов: проигравший должен получить Conflict, а не transient-ошибку
	svc := newAdmissionService(conn, 0)
	lt := f.leagueTeams

	candidates := []services.MatchCandidate{
		admission(t, "2031-07-01", "18:00", f.stadiums[0], nil, lt[0], lt[1]),
		admission(t, "2031-07-01", "18:30", f.stadiums[0], nil, lt[2], lt[3]),
	}

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
		errs  = make([]error, len(candidates))
	)
	for i, c := range candidates {
		wg.Add(1)
		go func(i int, c services.MatchCandidate) {
			defer wg.Done()
			<-start
			_, errs[i] = svc.AdmitMatch(context.Background(), c)
		}(i, c)
	}
	close(start)
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, services.ErrScheduleConflict):
			conflicted++
			assert.False(t, services.IsTransient(err))
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)

	var count int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM "match" WHERE stadium_id = $1`, f.stadiums[0]).Scan(&count))
	assert.Equal(t, 1, count)
}
