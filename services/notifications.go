package services

import (
	"context"

	"github.com/Dosada05/league-manager/models"
)

// Типы событий для live-обновлений лиги.
const (
	EventMatchScheduled   = "MATCH_SCHEDULED"
	EventMatchCompleted   = "MATCH_COMPLETED"
	EventStandingsUpdated = "STANDINGS_UPDATED"
)

// EventPublisher доставляет события подписчикам лиги (websocket hub).
type EventPublisher interface {
	PublishLeagueEvent(leagueID int, eventType string, payload interface{})
}

// StandingsCache is a read-through cache of computed league tables.
// Invalidate bumps the league generation and drops the entry; SetIfCurrent
// stores a table only if the generation still equals the one read before
// the table was computed, so a slow reader cannot put back a table that a
// concurrent write has already invalidated.
type StandingsCache interface {
	Generation(ctx context.Context, leagueID int) (int64, error)
	Get(ctx context.Context, leagueID int) ([]models.RankingRow, bool, error)
	SetIfCurrent(ctx context.Context, leagueID int, generation int64, rows []models.RankingRow) (bool, error)
	Invalidate(ctx context.Context, leagueID int) error
}

type noopPublisher struct{}

func (noopPublisher) PublishLeagueEvent(int, string, interface{}) {}

type noopStandingsCache struct{}

func (noopStandingsCache) Generation(context.Context, int) (int64, error) { return 0, nil }

func (noopStandingsCache) Get(context.Context, int) ([]models.RankingRow, bool, error) {
	return nil, false, nil
}

func (noopStandingsCache) SetIfCurrent(context.Context, int, int64, []models.RankingRow) (bool, error) {
	return false, nil
}

func (noopStandingsCache) Invalidate(context.Context, int) error { return nil }
