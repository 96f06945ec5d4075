package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/league-manager/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// CreateMatch - POST /api/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	var input services.MatchCandidate
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.AdmitMatch(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListMatches - GET /api/matches?leagueId=..|leagueTeamId=..&status=..
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	leagueID, byLeague, err := getOptionalQueryID(r, "leagueId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	leagueTeamID, byLeagueTeam, err := getOptionalQueryID(r, "leagueTeamId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	status, err := getStatusFilter(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	switch {
	case byLeague && byLeagueTeam:
		badRequestResponse(w, r, errors.New("use either leagueId or leagueTeamId, not both"))
		return
	case !byLeague && !byLeagueTeam:
		badRequestResponse(w, r, errors.New("leagueId or leagueTeamId query parameter is required"))
		return
	}

	ctx := r.Context()
	var matches interface{}
	if byLeague {
		matches, err = h.matchService.ListMatchesByLeague(ctx, leagueID, status)
	} else {
		matches, err = h.matchService.ListMatchesByLeagueTeam(ctx, leagueTeamID, status)
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetMatch - GET /api/matches/{matchID}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RecordResult - PUT /api/matches/{matchID}/result
func (h *MatchHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.RecordResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.RecordResult(r.Context(), matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"match": match}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ListParticipations - GET /api/league-team-matches?matchId=..
func (h *MatchHandler) ListParticipations(w http.ResponseWriter, r *http.Request) {
	matchID, ok, err := getOptionalQueryID(r, "matchId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !ok {
		badRequestResponse(w, r, errors.New("matchId query parameter is required"))
		return
	}

	participations, err := h.matchService.ListParticipations(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"league_team_matches": participations}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
