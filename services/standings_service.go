package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/league-manager/models"
	"github.com/Dosada05/league-manager/repositories"
	"github.com/Dosada05/league-manager/storage"
	"golang.org/x/sync/singleflight"
)

type StandingsService interface {
	ComputeStandings(ctx context.Context, leagueID int) ([]models.RankingRow, error)
	RebuildCounters(ctx context.Context) error
}

type standingsService struct {
	tx       repositories.Transactor
	repo     repositories.StandingsRepository
	cache    StandingsCache
	logos    storage.LogoResolver
	logger   *slog.Logger
	inflight singleflight.Group
}

func NewStandingsService(
	tx repositories.Transactor,
	repo repositories.StandingsRepository,
	cache StandingsCache,
	logos storage.LogoResolver,
	logger *slog.Logger,
) StandingsService {
	if cache == nil {
		cache = noopStandingsCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &standingsService{
		tx:     tx,
		repo:   repo,
		cache:  cache,
		logos:  logos,
		logger: logger,
	}
}

// ComputeStandings returns the current table of a league. An unknown league
// or a league without registered teams yields an empty table.
func (s *standingsService) ComputeStandings(ctx context.Context, leagueID int) ([]models.RankingRow, error) {
	if leagueID <= 0 {
		return []models.RankingRow{}, nil
	}

	// поколение читаем до расчета: если лигу сбросят во время расчета, таблица не попадет в кэш
	gen, err := s.cache.Generation(ctx, leagueID)
	cacheUsable := err == nil
	if err != nil {
		s.logger.WarnContext(ctx, "standings cache generation read failed", slog.Int("league_id", leagueID), slog.Any("error", err))
	}

	if cacheUsable {
		if rows, ok, err := s.cache.Get(ctx, leagueID); err != nil {
			s.logger.WarnContext(ctx, "standings cache read failed", slog.Int("league_id", leagueID), slog.Any("error", err))
		} else if ok {
			return s.withLogoURLs(ctx, rows), nil
		}
	}

	flightKey := fmt.Sprintf("%d:%d", leagueID, gen)
	if !cacheUsable {
		flightKey = fmt.Sprintf("%d:nocache", leagueID)
	}
	v, err, _ := s.inflight.Do(flightKey, func() (interface{}, error) {
		rows, err := s.aggregate(ctx, nil, leagueID)
		if err != nil {
			return nil, err
		}
		if !cacheUsable {
			return rows, nil
		}
		stored, err := s.cache.SetIfCurrent(ctx, leagueID, gen, rows)
		if err != nil {
			s.logger.WarnContext(ctx, "standings cache write failed", slog.Int("league_id", leagueID), slog.Any("error", err))
		} else if !stored {
			s.logger.DebugContext(ctx, "standings changed during computation, cache write skipped", slog.Int("league_id", leagueID))
		}
		return rows, nil
	})
	if err != nil {
		return nil, newPersistenceError(fmt.Sprintf("compute standings for league %d", leagueID), err)
	}

	shared := v.([]models.RankingRow)
	rows := make([]models.RankingRow, len(shared))
	copy(rows, shared)
	return s.withLogoURLs(ctx, rows), nil
}

func (s *standingsService) aggregate(ctx context.Context, exec repositories.SQLExecutor, leagueID int) ([]models.RankingRow, error) {
	teams, err := s.repo.ListRegisteredTeams(ctx, exec, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list registered teams: %w", err)
	}
	if len(teams) == 0 {
		return []models.RankingRow{}, nil
	}
	results, err := s.repo.ListCompletedResults(ctx, exec, leagueID)
	if err != nil {
		return nil, fmt.Errorf("list completed results: %w", err)
	}
	return AggregateStandings(teams, results), nil
}

// withLogoURLs заменяет ключи логотипов на URL. Строки из кэша хранят ключи.
func (s *standingsService) withLogoURLs(ctx context.Context, rows []models.RankingRow) []models.RankingRow {
	if s.logos == nil {
		return rows
	}
	for i := range rows {
		if rows[i].TeamLogo == nil || *rows[i].TeamLogo == "" {
			continue
		}
		url, err := s.logos.ResolveLogoURL(ctx, *rows[i].TeamLogo)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve team logo",
				slog.Int("league_team_id", rows[i].LeagueTeamID), slog.Any("error", err))
			rows[i].TeamLogo = nil
			continue
		}
		rows[i].TeamLogo = &url
	}
	return rows
}

// RebuildCounters пересчитывает счетчики leagueteam по всем лигам, по транзакции на лигу.
func (s *standingsService) RebuildCounters(ctx context.Context) error {
	leagueIDs, err := s.repo.ListLeagueIDs(ctx, nil)
	if err != nil {
		return newPersistenceError("list leagues", err)
	}

	var failed int
	for _, leagueID := range leagueIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.tx.WithinTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
			rows, err := s.aggregate(ctx, exec, leagueID)
			if err != nil {
				return err
			}
			return s.repo.UpdateCounters(ctx, exec, rows)
		})
		if err != nil {
			failed++
			s.logger.ErrorContext(ctx, "failed to rebuild league counters",
				slog.Int("league_id", leagueID), slog.Any("error", err))
			continue
		}
	}

	s.logger.InfoContext(ctx, "league counters rebuilt",
		slog.Int("leagues", len(leagueIDs)), slog.Int("failed", failed))
	if failed > 0 {
		return fmt.Errorf("counters rebuild failed for %d of %d leagues", failed, len(leagueIDs))
	}
	return nil
}
