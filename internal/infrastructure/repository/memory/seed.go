package memory

import (
	"time"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
)

func intPtr(v int) *int { return &v }

// SeedGames returns a small cross-sport data set for dev mode: one live game,
// one recently completed game, one upcoming game, and one row with a missing
// away team to exercise the placeholder path.
func SeedGames(now time.Time) []game.RawGame {
	return []game.RawGame{
		{
			ID:     "gm-bkb-001",
			Sport:  "basketball",
			League: "NBA",
			HomeTeam: &game.RawTeam{
				ID: "tm-lal", Name: "Los Angeles Lakers", Abbreviation: "LAL",
			},
			AwayTeam: &game.RawTeam{
				ID: "tm-bos", Name: "Boston Celtics", Abbreviation: "BOS",
			},
			HomeScore: intPtr(87),
			AwayScore: intPtr(90),
			Status:    "in_progress",
			Venue:     "Crypto.com Arena",
			StartsAt:  now.Add(-90 * time.Minute),
			UpdatedAt: now,
		},
		{
			ID:     "gm-bkb-002",
			Sport:  "basketball",
			League: "NBA",
			HomeTeam: &game.RawTeam{
				ID: "tm-gsw", Name: "Golden State Warriors", Abbreviation: "GSW",
			},
			AwayTeam: &game.RawTeam{
				ID: "tm-phx", Name: "Phoenix Suns", Abbreviation: "PHX",
			},
			HomeScore: intPtr(112),
			AwayScore: intPtr(104),
			Status:    "final",
			Venue:     "Chase Center",
			StartsAt:  now.Add(-6 * time.Hour),
			UpdatedAt: now.Add(-3 * time.Hour),
		},
		{
			ID:     "gm-fbl-001",
			Sport:  "football",
			League: "NFL",
			HomeTeam: &game.RawTeam{
				ID: "tm-kc", Name: "Kansas City Chiefs", Abbreviation: "KC",
			},
			AwayTeam: &game.RawTeam{
				ID: "tm-buf", Name: "Buffalo Bills", Abbreviation: "BUF",
			},
			Status:    "scheduled",
			Venue:     "Arrowhead Stadium",
			StartsAt:  now.Add(48 * time.Hour),
			UpdatedAt: now.Add(-24 * time.Hour),
		},
		{
			ID:     "gm-hky-001",
			Sport:  "hockey",
			League: "NHL",
			HomeTeam: &game.RawTeam{
				ID: "tm-tor", Name: "Toronto Maple Leafs", Abbreviation: "TOR",
			},
			// Away team intentionally missing; normalization fills the
			// placeholder name.
			HomeScore: intPtr(2),
			AwayScore: intPtr(2),
			Status:    "live",
			StartsAt:  now.Add(-30 * time.Minute),
			UpdatedAt: now,
		},
	}
}
