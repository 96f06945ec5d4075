package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/Dosada05/league-manager/models"
	"github.com/Dosada05/league-manager/repositories"
	"golang.org/x/sync/errgroup"
)

type MatchService interface {
	AdmitMatch(ctx context.Context, candidate MatchCandidate) (*models.Match, error)
	RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*models.Match, error)
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListMatchesByLeague(ctx context.Context, leagueID int, status *models.MatchStatus) ([]*models.Match, error)
	ListMatchesByLeagueTeam(ctx context.Context, leagueTeamID int, status *models.MatchStatus) ([]*models.Match, error)
	ListParticipations(ctx context.Context, matchID int) ([]*models.LeagueTeamMatch, error)
}

type matchService struct {
	tx           repositories.Transactor
	matchRepo    repositories.MatchRepository
	scheduleRepo repositories.ScheduleRepository
	lookupRepo   repositories.LookupRepository
	validator    *SchedulingValidator
	cache        StandingsCache
	publisher    EventPublisher
	logger       *slog.Logger
}

func NewMatchService(
	tx repositories.Transactor,
	matchRepo repositories.MatchRepository,
	scheduleRepo repositories.ScheduleRepository,
	lookupRepo repositories.LookupRepository,
	cache StandingsCache,
	publisher EventPublisher,
	logger *slog.Logger,
) MatchService {
	if cache == nil {
		cache = noopStandingsCache{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &matchService{
		tx:           tx,
		matchRepo:    matchRepo,
		scheduleRepo: scheduleRepo,
		lookupRepo:   lookupRepo,
		validator:    NewSchedulingValidator(scheduleRepo),
		cache:        cache,
		publisher:    publisher,
		logger:       logger,
	}
}

// AdmitMatch validates the candidate and stores the match with all its
// participation rows as one unit. Validation and inserts share one
// READ COMMITTED transaction that first takes advisory locks on every
// stadium/date, team/date and team/round key the candidate touches. A
// competing admission waits on the lock; its validation queries run after
// the holder commits, so it gets the same Conflict it would get against
// committed data.
func (s *matchService) AdmitMatch(ctx context.Context, candidate MatchCandidate) (*models.Match, error) {
	ids, err := s.validator.CheckInput(candidate)
	if err != nil {
		return nil, err
	}

	leagueID, err := s.resolveReferences(ctx, candidate, ids)
	if err != nil {
		return nil, err
	}

	status := models.MatchStatusScheduled
	if candidate.Status != nil {
		status = *candidate.Status
	}

	match := &models.Match{
		Date:        *candidate.Date,
		TimeStart:   *candidate.TimeStart,
		Description: candidate.Description,
		Status:      status,
		StadiumID:   *candidate.StadiumID,
		RoundID:     candidate.RoundID,
	}
	participants := buildParticipations(candidate.Participants)
	lockKeys := schedulingLockKeys(candidate, ids)

	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		if err := s.scheduleRepo.LockKeys(ctx, exec, lockKeys); err != nil {
			return err
		}
		if err := s.validator.Validate(ctx, exec, candidate); err != nil {
			return err
		}
		if err := s.matchRepo.Create(ctx, exec, match); err != nil {
			return fmt.Errorf("insert match: %w", err)
		}
		for _, p := range participants {
			p.MatchID = match.ID
		}
		if err := s.matchRepo.CreateParticipations(ctx, exec, participants); err != nil {
			return fmt.Errorf("insert participations: %w", err)
		}
		return nil
	})
	if err != nil {
		err = handleRepositoryError("admit match", err)
		var cErr *ConflictError
		if errors.As(err, &cErr) {
			s.logger.InfoContext(ctx, "match rejected by scheduling rules",
				slog.String("reason", cErr.Reason),
				slog.Int("stadium_id", *candidate.StadiumID),
				slog.String("date", candidate.Date.String()),
				slog.String("time_start", candidate.TimeStart.String()),
			)
		}
		return nil, err
	}

	match.Participants = participants
	s.logger.InfoContext(ctx, "match admitted",
		slog.Int("match_id", match.ID),
		slog.Int("participants", len(participants)),
		slog.String("status", string(match.Status)),
	)

	if leagueID != 0 {
		s.afterLeagueWrite(ctx, leagueID, EventMatchScheduled, match)
	}
	return match, nil
}

// resolveReferences проверяет существование стадиона, раунда и команд лиги.
// Возвращает id лиги раунда (0, если раунд не указан).
func (s *matchService) resolveReferences(ctx context.Context, c MatchCandidate, ids []int) (int, error) {
	g, gctx := errgroup.WithContext(ctx)

	stadiumID := *c.StadiumID
	g.Go(func() error {
		_, err := s.lookupRepo.GetStadium(gctx, stadiumID)
		return lookupError(err, repositories.ErrStadiumNotFound, "stadium", stadiumID)
	})

	var leagueID int
	if c.RoundID != nil {
		roundID := *c.RoundID
		g.Go(func() error {
			round, err := s.lookupRepo.GetRound(gctx, roundID)
			if err != nil {
				return lookupError(err, repositories.ErrRoundNotFound, "round", roundID)
			}
			leagueID = round.LeagueID
			return nil
		})
	}

	for _, id := range ids {
		leagueTeamID := id
		g.Go(func() error {
			_, err := s.lookupRepo.GetLeagueTeam(gctx, leagueTeamID)
			return lookupError(err, repositories.ErrLeagueTeamNotFound, "league team", leagueTeamID)
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}
	return leagueID, nil
}

func lookupError(err, notFound error, entity string, id int) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, notFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return newPersistenceError("lookup "+entity, err)
}

func buildParticipations(inputs []ParticipantInput) []*models.LeagueTeamMatch {
	participants := make([]*models.LeagueTeamMatch, 0, len(inputs))
	for i, in := range inputs {
		role := in.Role
		if role == "" {
			switch i {
			case 0:
				role = models.RoleHome
			case 1:
				role = models.RoleAway
			}
		}
		p := &models.LeagueTeamMatch{LeagueTeamID: in.LeagueTeamID}
		if role != "" {
			r := role
			p.Role = &r
		}
		participants = append(participants, p)
	}
	return participants
}

// schedulingLockKeys - ключи advisory-локов, покрывающие все три правила конфликтов.
func schedulingLockKeys(c MatchCandidate, ids []int) []string {
	date := c.Date.String()
	keys := make([]string, 0, 1+2*len(ids))
	keys = append(keys, "stadium:"+strconv.Itoa(*c.StadiumID)+":"+date)
	for _, id := range ids {
		keys = append(keys, "team:"+strconv.Itoa(id)+":"+date)
		if c.RoundID != nil {
			keys = append(keys, "round:"+strconv.Itoa(*c.RoundID)+":team:"+strconv.Itoa(id))
		}
	}
	return keys
}

// afterLeagueWrite сбрасывает кэш таблицы и уведомляет подписчиков лиги.
func (s *matchService) afterLeagueWrite(ctx context.Context, leagueID int, eventType string, match *models.Match) {
	if err := s.cache.Invalidate(ctx, leagueID); err != nil {
		s.logger.WarnContext(ctx, "failed to invalidate standings cache",
			slog.Int("league_id", leagueID), slog.Any("error", err))
	}
	s.publisher.PublishLeagueEvent(leagueID, eventType, match)
	if match.Status == models.MatchStatusCompleted {
		s.publisher.PublishLeagueEvent(leagueID, EventStandingsUpdated, map[string]int{"league_id": leagueID})
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, &NotFoundError{Entity: "match", ID: id}
		}
		return nil, newPersistenceError("get match", err)
	}
	participants, err := s.matchRepo.ListParticipations(ctx, nil, id)
	if err != nil {
		return nil, newPersistenceError("list participations", err)
	}
	match.Participants = participants
	return match, nil
}

func (s *matchService) ListMatchesByLeague(ctx context.Context, leagueID int, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByLeague(ctx, leagueID, status)
	if err != nil {
		return nil, newPersistenceError(fmt.Sprintf("list matches for league %d", leagueID), err)
	}
	return s.attachParticipants(ctx, matches)
}

func (s *matchService) ListMatchesByLeagueTeam(ctx context.Context, leagueTeamID int, status *models.MatchStatus) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByLeagueTeam(ctx, leagueTeamID, status)
	if err != nil {
		return nil, newPersistenceError(fmt.Sprintf("list matches for league team %d", leagueTeamID), err)
	}
	return s.attachParticipants(ctx, matches)
}

func (s *matchService) attachParticipants(ctx context.Context, matches []*models.Match) ([]*models.Match, error) {
	if len(matches) == 0 {
		return []*models.Match{}, nil
	}
	ids := make([]int, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	byMatch, err := s.matchRepo.ListParticipationsByMatches(ctx, ids)
	if err != nil {
		return nil, newPersistenceError("list participations", err)
	}
	for _, m := range matches {
		if parts, ok := byMatch[m.ID]; ok {
			m.Participants = parts
		} else {
			m.Participants = []*models.LeagueTeamMatch{}
		}
	}
	return matches, nil
}

func (s *matchService) ListParticipations(ctx context.Context, matchID int) ([]*models.LeagueTeamMatch, error) {
	participants, err := s.matchRepo.ListParticipations(ctx, nil, matchID)
	if err != nil {
		return nil, newPersistenceError("list participations", err)
	}
	return participants, nil
}
