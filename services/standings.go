package services

import (
	"sort"

	"github.com/Dosada05/league-manager/models"
)

const (
	pointsWin  = 3
	pointsDraw = 1
)

// AggregateStandings builds the league table from the registered teams and
// the participation rows of completed matches. Rows for teams that are not
// registered in the league are ignored; rows without an opponent are skipped.
// A row counts as played even when goals are missing, but it gets a win, draw
// or loss only when every participant of the match has goals recorded.
func AggregateStandings(teams []models.LeagueTeamEntry, results []models.ParticipationResult) []models.RankingRow {
	rows := make([]models.RankingRow, len(teams))
	index := make(map[int]int, len(teams))
	for i, t := range teams {
		rows[i] = models.RankingRow{
			LeagueTeamID: t.LeagueTeamID,
			TeamName:     t.TeamName,
			TeamLogo:     t.TeamLogo,
		}
		index[t.LeagueTeamID] = i
	}

	byMatch := make(map[int][]models.ParticipationResult)
	matchOrder := make([]int, 0)
	for _, r := range results {
		if _, ok := byMatch[r.MatchID]; !ok {
			matchOrder = append(matchOrder, r.MatchID)
		}
		byMatch[r.MatchID] = append(byMatch[r.MatchID], r)
	}

	for _, matchID := range matchOrder {
		entries := byMatch[matchID]
		if len(entries) < 2 {
			continue
		}
		scores := make([]int, len(entries))
		scored := true
		for i, e := range entries {
			if e.Goals == nil {
				scored = false
				continue
			}
			scores[i] = *e.Goals
		}

		for i, e := range entries {
			pos, ok := index[e.LeagueTeamID]
			if !ok {
				continue
			}
			row := &rows[pos]
			row.Played++
			if e.Goals != nil {
				row.GoalsFor += scores[i]
			}
			for j, o := range entries {
				if j != i && o.Goals != nil {
					row.GoalsAgainst += scores[j]
				}
			}
			// без полного счета исход не определен
			if !scored {
				continue
			}
			switch decideOutcome(scores[i], opponentScores(scores, i)) {
			case models.ResultWin:
				row.Won++
			case models.ResultDraw:
				row.Drawn++
			default:
				row.Lost++
			}
		}
	}

	for i := range rows {
		rows[i].GoalDifference = rows[i].GoalsFor - rows[i].GoalsAgainst
		rows[i].Points = pointsWin*rows[i].Won + pointsDraw*rows[i].Drawn
	}

	sortStandings(rows)
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows
}

// decideOutcome: победа, если забито больше лучшего соперника, ничья при равенстве.
func decideOutcome(goals int, opponents []int) models.ResultTag {
	best := 0
	for i, g := range opponents {
		if i == 0 || g > best {
			best = g
		}
	}
	switch {
	case goals > best:
		return models.ResultWin
	case goals == best:
		return models.ResultDraw
	default:
		return models.ResultLose
	}
}

// sortStandings: очки, разница мячей, забитые (по убыванию), затем league_team_id по возрастанию.
func sortStandings(rows []models.RankingRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference != b.GoalDifference {
			return a.GoalDifference > b.GoalDifference
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		return a.LeagueTeamID < b.LeagueTeamID
	})
}
