package services

import (
	"errors"
	"fmt"

	"github.com/Dosada05/league-manager/repositories"
)

// Общие ошибки, используемые в сервисах и маппинге HTTP.
var (
	ErrNotFound         = errors.New("requested resource not found")
	ErrValidationFailed = errors.New("validation failed")
	ErrScheduleConflict = errors.New("scheduling conflict")
	ErrPersistence      = errors.New("persistence failure")
)

// Причины конфликтов расписания.
const (
	ReasonStadiumBooked    = "stadium booked"
	ReasonTeamBusy         = "team busy"
	ReasonTeamPlayedRound  = "team already played in round"
	ReasonDuplicateEntrant = "league team already participates in this match"
)

// Сообщения ошибок валидации.
const (
	MsgRequiredFields      = "Date, Time and Stadium are required"
	MsgMinimumParticipants = "A match requires at least 2 teams"
)

// ValidationError is malformed or incomplete input. Caller-fixable, never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func (e *ValidationError) Is(target error) bool { return target == ErrValidationFailed }

func newValidationError(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError means admitting the match would break a scheduling rule.
type ConflictError struct {
	Reason       string
	LeagueTeamID int // 0 when the conflict is not about a particular team
}

func (e *ConflictError) Error() string {
	if e.LeagueTeamID != 0 {
		return fmt.Sprintf("conflict: %s (league team %d)", e.Reason, e.LeagueTeamID)
	}
	return "conflict: " + e.Reason
}

func (e *ConflictError) Is(target error) bool { return target == ErrScheduleConflict }

type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	if e.ID == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// PersistenceError wraps a storage failure. Transient ones (timeouts, lost
// connections, exhausted serialization retries) may be retried by the caller.
type PersistenceError struct {
	Op        string
	Transient bool
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

// IsTransient reports whether err is a retryable storage failure.
func IsTransient(err error) bool {
	var pErr *PersistenceError
	return errors.As(err, &pErr) && pErr.Transient
}

func newPersistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Transient: repositories.IsTransient(err), Err: err}
}

// handleRepositoryError оставляет типизированные ошибки как есть, остальное заворачивает в PersistenceError.
func handleRepositoryError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		vErr *ValidationError
		cErr *ConflictError
		nErr *NotFoundError
		pErr *PersistenceError
	)
	switch {
	case errors.As(err, &vErr), errors.As(err, &cErr), errors.As(err, &nErr), errors.As(err, &pErr):
		return err
	case errors.Is(err, repositories.ErrParticipationDuplicate):
		return &ConflictError{Reason: ReasonDuplicateEntrant}
	case errors.Is(err, repositories.ErrMatchStadiumInvalid):
		return &NotFoundError{Entity: "stadium"}
	case errors.Is(err, repositories.ErrMatchRoundInvalid):
		return &NotFoundError{Entity: "round"}
	case errors.Is(err, repositories.ErrParticipationTeamInvalid):
		return &NotFoundError{Entity: "league team"}
	}
	return newPersistenceError(op, err)
}
