package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/league-manager/models"
	"github.com/Dosada05/league-manager/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func datePtr(t *testing.T, s string) *models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	if err != nil {
		t.Fatalf("parse date %q: %v", s, err)
	}
	return &d
}

func clockPtr(t *testing.T, s string) *models.ClockTime {
	t.Helper()
	c, err := models.ParseClockTime(s)
	if err != nil {
		t.Fatalf("parse time %q: %v", s, err)
	}
	return &c
}

// fakeStore is an in-memory stand-in for the postgres repositories. WithinTx
// runs transactions one at a time and rolls back their writes on error, which
// gives the same observable behaviour as the advisory locks.
type fakeStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	leagues     map[int]*models.League
	stadiums    map[int]*models.Stadium
	rounds      map[int]*models.Round
	teams       map[int]*models.Team
	leagueTeams map[int]*models.LeagueTeam

	matches []*models.Match
	parts   []*models.LeagueTeamMatch
	nextID  int

	counters map[int]models.RankingRow

	lockedKeys        [][]string
	failParticipation error
	failStandings     error
	standingsReads    int
	// afterResultsRead runs once the completed results have been read,
	// outside the store lock.
	afterResultsRead func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		leagues:     make(map[int]*models.League),
		stadiums:    make(map[int]*models.Stadium),
		rounds:      make(map[int]*models.Round),
		teams:       make(map[int]*models.Team),
		leagueTeams: make(map[int]*models.LeagueTeam),
		counters:    make(map[int]models.RankingRow),
		nextID:      1000,
	}
}

func (s *fakeStore) addLeague(id int) {
	s.leagues[id] = &models.League{ID: id, Name: "League"}
}

func (s *fakeStore) addStadium(id int) {
	s.stadiums[id] = &models.Stadium{ID: id, Name: "Stadium"}
}

func (s *fakeStore) addRound(id, leagueID int) {
	s.rounds[id] = &models.Round{ID: id, Name: "Round", LeagueID: leagueID}
}

// addLeagueTeam registers team teamID in league under league-team id ltID.
func (s *fakeStore) addLeagueTeam(ltID, leagueID, teamID int, name string, logo *string) {
	if _, ok := s.teams[teamID]; !ok {
		s.teams[teamID] = &models.Team{ID: teamID, FullName: name, LogoKey: logo}
	}
	s.leagueTeams[ltID] = &models.LeagueTeam{ID: ltID, LeagueID: leagueID, TeamID: teamID, Team: s.teams[teamID]}
}

// seedMatch stores a match directly, bypassing admission rules.
func (s *fakeStore) seedMatch(date, start string, stadiumID int, roundID *int, status models.MatchStatus, goals map[int]*int, ltIDs ...int) int {
	d, _ := models.ParseDate(date)
	c, _ := models.ParseClockTime(start)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m := &models.Match{ID: s.nextID, Date: d, TimeStart: c, StadiumID: stadiumID, RoundID: roundID, Status: status}
	s.matches = append(s.matches, m)
	for _, lt := range ltIDs {
		s.nextID++
		p := &models.LeagueTeamMatch{ID: s.nextID, MatchID: m.ID, LeagueTeamID: lt}
		if g, ok := goals[lt]; ok && g != nil {
			v := *g
			p.Goals = &v
		}
		s.parts = append(s.parts, p)
	}
	return m.ID
}

func (s *fakeStore) matchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func (s *fakeStore) participationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.parts)
}

func cloneMatch(m *models.Match) *models.Match {
	c := *m
	c.Participants = nil
	return &c
}

func clonePart(p *models.LeagueTeamMatch) *models.LeagueTeamMatch {
	c := *p
	if p.Goals != nil {
		g := *p.Goals
		c.Goals = &g
	}
	if p.Result != nil {
		r := *p.Result
		c.Result = &r
	}
	if p.Role != nil {
		r := *p.Role
		c.Role = &r
	}
	return &c
}

// Transactor

func (s *fakeStore) WithinTx(ctx context.Context, fn repositories.TxFunc) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	matches := make([]*models.Match, len(s.matches))
	for i, m := range s.matches {
		matches[i] = cloneMatch(m)
	}
	parts := make([]*models.LeagueTeamMatch, len(s.parts))
	for i, p := range s.parts {
		parts[i] = clonePart(p)
	}
	counters := make(map[int]models.RankingRow, len(s.counters))
	for k, v := range s.counters {
		counters[k] = v
	}
	nextID := s.nextID
	s.mu.Unlock()

	if err := fn(ctx, nil); err != nil {
		s.mu.Lock()
		s.matches, s.parts, s.counters, s.nextID = matches, parts, counters, nextID
		s.mu.Unlock()
		return err
	}
	return nil
}

// ScheduleRepository

func (s *fakeStore) LockKeys(_ context.Context, _ repositories.SQLExecutor, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockedKeys = append(s.lockedKeys, append([]string(nil), keys...))
	return nil
}

func (s *fakeStore) StadiumBooked(_ context.Context, _ repositories.SQLExecutor, stadiumID int, date models.Date, start models.ClockTime, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.matches {
		if m.StadiumID == stadiumID && m.Date.Equal(date) && m.TimeStart.WithinWindow(start, window) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) FindBusyTeam(_ context.Context, _ repositories.SQLExecutor, ids []int, date models.Date, start models.ClockTime, window time.Duration) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for _, p := range s.parts {
			if p.LeagueTeamID != id {
				continue
			}
			m := s.matchByIDLocked(p.MatchID)
			if m != nil && m.Date.Equal(date) && m.TimeStart.WithinWindow(start, window) {
				return id, true, nil
			}
		}
	}
	return 0, false, nil
}

func (s *fakeStore) FindTeamInRound(_ context.Context, _ repositories.SQLExecutor, roundID int, ids []int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		for _, p := range s.parts {
			if p.LeagueTeamID != id {
				continue
			}
			m := s.matchByIDLocked(p.MatchID)
			if m != nil && m.RoundID != nil && *m.RoundID == roundID {
				return id, true, nil
			}
		}
	}
	return 0, false, nil
}

func (s *fakeStore) matchByIDLocked(id int) *models.Match {
	for _, m := range s.matches {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// MatchRepository

func (s *fakeStore) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stadiums[match.StadiumID]; !ok {
		return repositories.ErrMatchStadiumInvalid
	}
	s.nextID++
	match.ID = s.nextID
	match.CreatedAt = time.Now()
	s.matches = append(s.matches, cloneMatch(match))
	return nil
}

func (s *fakeStore) CreateParticipations(_ context.Context, _ repositories.SQLExecutor, participations []*models.LeagueTeamMatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failParticipation != nil {
		return s.failParticipation
	}
	for _, p := range participations {
		if _, ok := s.leagueTeams[p.LeagueTeamID]; !ok {
			return repositories.ErrParticipationTeamInvalid
		}
		for _, existing := range s.parts {
			if existing.MatchID == p.MatchID && existing.LeagueTeamID == p.LeagueTeamID {
				return repositories.ErrParticipationDuplicate
			}
		}
		s.nextID++
		p.ID = s.nextID
		s.parts = append(s.parts, clonePart(p))
	}
	return nil
}

func (s *fakeStore) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matchByIDLocked(id)
	if m == nil {
		return nil, repositories.ErrMatchNotFound
	}
	return cloneMatch(m), nil
}

func (s *fakeStore) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return s.GetByID(ctx, exec, id)
}

func (s *fakeStore) listMatches(filter func(*models.Match) bool, status *models.MatchStatus) []*models.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range s.matches {
		if status != nil && m.Status != *status {
			continue
		}
		if filter(m) {
			out = append(out, cloneMatch(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date.Time)
		}
		if out[i].TimeStart != out[j].TimeStart {
			return out[i].TimeStart < out[j].TimeStart
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *fakeStore) ListByLeague(_ context.Context, leagueID int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.listMatches(func(m *models.Match) bool {
		if m.RoundID == nil {
			return false
		}
		r, ok := s.rounds[*m.RoundID]
		return ok && r.LeagueID == leagueID
	}, status), nil
}

func (s *fakeStore) ListByLeagueTeam(_ context.Context, leagueTeamID int, status *models.MatchStatus) ([]*models.Match, error) {
	return s.listMatches(func(m *models.Match) bool {
		for _, p := range s.parts {
			if p.MatchID == m.ID && p.LeagueTeamID == leagueTeamID {
				return true
			}
		}
		return false
	}, status), nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, _ repositories.SQLExecutor, id int, status models.MatchStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.matchByIDLocked(id)
	if m == nil {
		return repositories.ErrMatchNotFound
	}
	m.Status = status
	return nil
}

func (s *fakeStore) ListParticipations(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.LeagueTeamMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participationsLocked(matchID), nil
}

func (s *fakeStore) participationsLocked(matchID int) []*models.LeagueTeamMatch {
	out := make([]*models.LeagueTeamMatch, 0)
	for _, p := range s.parts {
		if p.MatchID != matchID {
			continue
		}
		c := clonePart(p)
		if lt, ok := s.leagueTeams[p.LeagueTeamID]; ok && lt.Team != nil {
			name := lt.Team.FullName
			c.TeamName = &name
		}
		out = append(out, c)
	}
	return out
}

func (s *fakeStore) ListParticipationsByMatches(_ context.Context, matchIDs []int) (map[int][]*models.LeagueTeamMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[int][]*models.LeagueTeamMatch, len(matchIDs))
	for _, id := range matchIDs {
		if parts := s.participationsLocked(id); len(parts) > 0 {
			out[id] = parts
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateParticipationResult(_ context.Context, _ repositories.SQLExecutor, participationID int, goals int, result models.ResultTag) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.parts {
		if p.ID == participationID {
			g, r := goals, result
			p.Goals, p.Result = &g, &r
			return nil
		}
	}
	return repositories.ErrParticipationNotFound
}

// LookupRepository

func (s *fakeStore) GetLeague(_ context.Context, id int) (*models.League, error) {
	if l, ok := s.leagues[id]; ok {
		c := *l
		return &c, nil
	}
	return nil, repositories.ErrLeagueNotFound
}

func (s *fakeStore) GetStadium(_ context.Context, id int) (*models.Stadium, error) {
	if st, ok := s.stadiums[id]; ok {
		c := *st
		return &c, nil
	}
	return nil, repositories.ErrStadiumNotFound
}

func (s *fakeStore) GetRound(_ context.Context, id int) (*models.Round, error) {
	if r, ok := s.rounds[id]; ok {
		c := *r
		return &c, nil
	}
	return nil, repositories.ErrRoundNotFound
}

func (s *fakeStore) GetLeagueTeam(_ context.Context, id int) (*models.LeagueTeam, error) {
	if lt, ok := s.leagueTeams[id]; ok {
		c := *lt
		return &c, nil
	}
	return nil, repositories.ErrLeagueTeamNotFound
}

// StandingsRepository

func (s *fakeStore) ListLeagueIDs(_ context.Context, _ repositories.SQLExecutor) ([]int, error) {
	ids := make([]int, 0, len(s.leagues))
	for id := range s.leagues {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}

func (s *fakeStore) ListRegisteredTeams(_ context.Context, _ repositories.SQLExecutor, leagueID int) ([]models.LeagueTeamEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.standingsReads++
	if s.failStandings != nil {
		return nil, s.failStandings
	}
	out := make([]models.LeagueTeamEntry, 0)
	for _, lt := range s.leagueTeams {
		if lt.LeagueID != leagueID {
			continue
		}
		out = append(out, models.LeagueTeamEntry{
			LeagueTeamID: lt.ID,
			TeamID:       lt.TeamID,
			TeamName:     lt.Team.FullName,
			TeamLogo:     lt.Team.LogoKey,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LeagueTeamID < out[j].LeagueTeamID })
	return out, nil
}

func (s *fakeStore) ListCompletedResults(_ context.Context, _ repositories.SQLExecutor, leagueID int) ([]models.ParticipationResult, error) {
	out := s.completedResults(leagueID)
	if s.afterResultsRead != nil {
		s.afterResultsRead()
	}
	return out, nil
}

func (s *fakeStore) completedResults(leagueID int) []models.ParticipationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ParticipationResult, 0)
	for _, p := range s.parts {
		m := s.matchByIDLocked(p.MatchID)
		if m == nil || m.Status != models.MatchStatusCompleted || m.RoundID == nil {
			continue
		}
		r, ok := s.rounds[*m.RoundID]
		if !ok || r.LeagueID != leagueID {
			continue
		}
		pr := models.ParticipationResult{MatchID: p.MatchID, LeagueTeamID: p.LeagueTeamID}
		if p.Goals != nil {
			g := *p.Goals
			pr.Goals = &g
		}
		out = append(out, pr)
	}
	return out
}

func (s *fakeStore) UpdateCounters(_ context.Context, _ repositories.SQLExecutor, rows []models.RankingRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		if _, ok := s.leagueTeams[r.LeagueTeamID]; !ok {
			return repositories.ErrLeagueTeamNotFound
		}
		s.counters[r.LeagueTeamID] = r
	}
	return nil
}

// memCache is a StandingsCache kept in a map, with the same generation
// rules as the Redis one.
type memCache struct {
	mu          sync.Mutex
	rows        map[int][]models.RankingRow
	generations map[int]int64
	invalidated []int
	getErr      error
}

func newMemCache() *memCache {
	return &memCache{
		rows:        make(map[int][]models.RankingRow),
		generations: make(map[int]int64),
	}
}

func (c *memCache) Generation(_ context.Context, leagueID int) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[leagueID], nil
}

func (c *memCache) Get(_ context.Context, leagueID int) ([]models.RankingRow, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	rows, ok := c.rows[leagueID]
	if !ok {
		return nil, false, nil
	}
	return append([]models.RankingRow(nil), rows...), true, nil
}

func (c *memCache) SetIfCurrent(_ context.Context, leagueID int, generation int64, rows []models.RankingRow) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[leagueID] != generation {
		return false, nil
	}
	c.rows[leagueID] = append([]models.RankingRow(nil), rows...)
	return true, nil
}

func (c *memCache) Invalidate(_ context.Context, leagueID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[leagueID]++
	delete(c.rows, leagueID)
	c.invalidated = append(c.invalidated, leagueID)
	return nil
}

type publishedEvent struct {
	LeagueID int
	Type     string
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishLeagueEvent(leagueID int, eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{LeagueID: leagueID, Type: eventType})
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type stubLogos struct {
	fail map[string]bool
}

func (l stubLogos) ResolveLogoURL(_ context.Context, key string) (string, error) {
	if l.fail[key] {
		return "", errors.New("resolve failed")
	}
	return "https://cdn.test/" + key, nil
}
