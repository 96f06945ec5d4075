package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dosada05/league-manager/models"
	"github.com/Dosada05/league-manager/repositories"
)

// ConflictWindow - два матча в один день ближе этого интервала считаются пересекающимися.
const ConflictWindow = 7200 * time.Second

type ParticipantInput struct {
	LeagueTeamID int    `json:"league_team_id"`
	Role         string `json:"role,omitempty"`
}

// MatchCandidate is a proposed match as submitted by a caller.
type MatchCandidate struct {
	Date         *models.Date        `json:"date"`
	TimeStart    *models.ClockTime   `json:"time_start"`
	StadiumID    *int                `json:"stadium_id"`
	RoundID      *int                `json:"round_id,omitempty"`
	Description  *string             `json:"description,omitempty"`
	Status       *models.MatchStatus `json:"status,omitempty"`
	Participants []ParticipantInput  `json:"participants"`
}

// SchedulingValidator decides whether a candidate match may be admitted.
// It only reads; callers that need the answer to stay true until they write
// must run it inside the same transaction as the write.
type SchedulingValidator struct {
	schedule repositories.ScheduleRepository
	window   time.Duration
}

func NewSchedulingValidator(schedule repositories.ScheduleRepository) *SchedulingValidator {
	return &SchedulingValidator{schedule: schedule, window: ConflictWindow}
}

// CheckInput applies the rules that need no stored state: required fields and
// participant list shape. It returns the league-team ids in input order.
func (v *SchedulingValidator) CheckInput(c MatchCandidate) ([]int, error) {
	if c.Date == nil || c.Date.IsZero() || c.TimeStart == nil || c.StadiumID == nil || *c.StadiumID <= 0 {
		return nil, &ValidationError{Reason: MsgRequiredFields}
	}

	ids := make([]int, 0, len(c.Participants))
	seen := make(map[int]bool, len(c.Participants))
	duplicate := 0
	for _, p := range c.Participants {
		if p.LeagueTeamID <= 0 {
			continue
		}
		if seen[p.LeagueTeamID] {
			if duplicate == 0 {
				duplicate = p.LeagueTeamID
			}
			continue
		}
		seen[p.LeagueTeamID] = true
		ids = append(ids, p.LeagueTeamID)
	}

	if len(ids) < 2 {
		return nil, &ValidationError{Reason: MsgMinimumParticipants}
	}
	for _, p := range c.Participants {
		if p.LeagueTeamID <= 0 {
			return nil, newValidationError("invalid league team id %d", p.LeagueTeamID)
		}
	}
	if duplicate != 0 {
		return nil, newValidationError("league team %d is listed more than once", duplicate)
	}
	if c.RoundID != nil && *c.RoundID <= 0 {
		return nil, newValidationError("invalid round id %d", *c.RoundID)
	}
	if c.Status != nil && !c.Status.Valid() {
		return nil, newValidationError("invalid match status %q", *c.Status)
	}
	return ids, nil
}

// Validate runs every admission rule in order; the first failing rule wins.
// exec may be nil to read outside a transaction.
func (v *SchedulingValidator) Validate(ctx context.Context, exec repositories.SQLExecutor, c MatchCandidate) error {
	ids, err := v.CheckInput(c)
	if err != nil {
		return err
	}

	booked, err := v.schedule.StadiumBooked(ctx, exec, *c.StadiumID, *c.Date, *c.TimeStart, v.window)
	if err != nil {
		return fmt.Errorf("check stadium availability: %w", err)
	}
	if booked {
		return &ConflictError{Reason: ReasonStadiumBooked}
	}

	busyID, busy, err := v.schedule.FindBusyTeam(ctx, exec, ids, *c.Date, *c.TimeStart, v.window)
	if err != nil {
		return fmt.Errorf("check team availability: %w", err)
	}
	if busy {
		return &ConflictError{Reason: ReasonTeamBusy, LeagueTeamID: busyID}
	}

	if c.RoundID != nil {
		playedID, played, err := v.schedule.FindTeamInRound(ctx, exec, *c.RoundID, ids)
		if err != nil {
			return fmt.Errorf("check round exclusivity: %w", err)
		}
		if played {
			return &ConflictError{Reason: ReasonTeamPlayedRound, LeagueTeamID: playedID}
		}
	}

	return nil
}
