package game

import (
	"context"
	"sort"

	"github.com/milad1377/stork-quiz-game/internal/store"
)

// Standing is one row of the final leaderboard: a session joined with
// its aggregate answer stats.
type Standing struct {
	Player store.SessionView  `json:"player"`
	Stats  store.SessionStats `json:"stats"`
	Rank   int                `json:"rank"`
}

// FinalStandings ranks the room's sessions by total score descending,
// ties broken by join order. Stats lookups are best-effort; a failed one
// leaves zeros rather than sinking the whole board.
func FinalStandings(ctx context.Context, st store.Store, players []store.SessionView) []Standing {
	standings := make([]Standing, 0, len(players))
	for _, p := range players {
		stats, err := st.SessionStatsByID(ctx, p.ID)
		if err != nil {
			stats = store.SessionStats{}
		}
		standings = append(standings, Standing{Player: p, Stats: stats})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Player.TotalScore > standings[j].Player.TotalScore
	})
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}
