package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/league-manager/models"
	"github.com/Dosada05/league-manager/repositories"
)

type ScoreInput struct {
	LeagueTeamID int  `json:"league_team_id"`
	Goals        *int `json:"goals"`
}

type RecordResultInput struct {
	Scores []ScoreInput `json:"scores"`
}

func (in RecordResultInput) goalsByTeam() (map[int]int, error) {
	if len(in.Scores) == 0 {
		return nil, &ValidationError{Reason: "scores are required"}
	}
	goals := make(map[int]int, len(in.Scores))
	for _, s := range in.Scores {
		if s.LeagueTeamID <= 0 {
			return nil, newValidationError("invalid league team id %d", s.LeagueTeamID)
		}
		if s.Goals == nil || *s.Goals < 0 {
			return nil, newValidationError("league team %d needs a non-negative score", s.LeagueTeamID)
		}
		if _, dup := goals[s.LeagueTeamID]; dup {
			return nil, newValidationError("league team %d is listed more than once", s.LeagueTeamID)
		}
		goals[s.LeagueTeamID] = *s.Goals
	}
	return goals, nil
}

// RecordResult сохраняет счет всех участников и переводит матч в COMPLETED.
// Повторная запись по завершенному матчу перезаписывает результат.
func (s *matchService) RecordResult(ctx context.Context, matchID int, input RecordResultInput) (*models.Match, error) {
	if matchID <= 0 {
		return nil, newValidationError("invalid match id %d", matchID)
	}
	goals, err := input.goalsByTeam()
	if err != nil {
		return nil, err
	}

	var match *models.Match
	err = s.tx.WithinTx(ctx, func(ctx context.Context, exec repositories.SQLExecutor) error {
		m, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return &NotFoundError{Entity: "match", ID: matchID}
			}
			return fmt.Errorf("lock match: %w", err)
		}

		participants, err := s.matchRepo.ListParticipations(ctx, exec, matchID)
		if err != nil {
			return fmt.Errorf("list participations: %w", err)
		}
		if len(participants) != len(goals) {
			return newValidationError("expected scores for %d participants, got %d", len(participants), len(goals))
		}

		scores := make([]int, len(participants))
		for i, p := range participants {
			g, ok := goals[p.LeagueTeamID]
			if !ok {
				return newValidationError("missing score for league team %d", p.LeagueTeamID)
			}
			scores[i] = g
		}

		for i, p := range participants {
			result := decideOutcome(scores[i], opponentScores(scores, i))
			if err := s.matchRepo.UpdateParticipationResult(ctx, exec, p.ID, scores[i], result); err != nil {
				return fmt.Errorf("update participation %d: %w", p.ID, err)
			}
			g := scores[i]
			p.Goals = &g
			p.Result = &result
		}

		if err := s.matchRepo.UpdateStatus(ctx, exec, matchID, models.MatchStatusCompleted); err != nil {
			return fmt.Errorf("update match status: %w", err)
		}
		m.Status = models.MatchStatusCompleted
		m.Participants = participants
		match = m
		return nil
	})
	if err != nil {
		return nil, handleRepositoryError("record result", err)
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("match_id", match.ID),
		slog.Int("participants", len(match.Participants)),
	)

	if match.RoundID != nil {
		round, err := s.lookupRepo.GetRound(ctx, *match.RoundID)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to resolve league of completed match",
				slog.Int("match_id", match.ID), slog.Any("error", err))
			return match, nil
		}
		s.afterLeagueWrite(ctx, round.LeagueID, EventMatchCompleted, match)
	}
	return match, nil
}

func opponentScores(scores []int, self int) []int {
	out := make([]int, 0, len(scores)-1)
	for i, g := range scores {
		if i != self {
			out = append(out, g)
		}
	}
	return out
}
