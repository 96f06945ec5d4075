package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/league-manager/services"
)

type StandingsHandler struct {
	standingsService services.StandingsService
}

func NewStandingsHandler(ss services.StandingsService) *StandingsHandler {
	return &StandingsHandler{standingsService: ss}
}

// GetRankings - GET /api/rankings?leagueId=..
func (h *StandingsHandler) GetRankings(w http.ResponseWriter, r *http.Request) {
	leagueID, ok, err := getOptionalQueryID(r, "leagueId")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if !ok {
		badRequestResponse(w, r, errors.New("leagueId query parameter is required"))
		return
	}
	h.respondStandings(w, r, leagueID)
}

// GetLeagueStandings - GET /api/leagues/{leagueID}/standings
func (h *StandingsHandler) GetLeagueStandings(w http.ResponseWriter, r *http.Request) {
	leagueID, err := getIDFromURL(r, "leagueID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.respondStandings(w, r, leagueID)
}

func (h *StandingsHandler) respondStandings(w http.ResponseWriter, r *http.Request, leagueID int) {
	rows, err := h.standingsService.ComputeStandings(r.Context(), leagueID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"league_id": leagueID, "standings": rows}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
