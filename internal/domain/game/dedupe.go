package game

import (
	"strconv"
	"strings"
)

// Dedup collapses games that refer to the same underlying fixture into one,
// keeping the first occurrence and preserving input order. Games without an
// id fall back to a composite key of both team names plus the start time, so
// two genuinely different fixtures are never merged while exact duplicates
// (the same fetch returned twice, or live/recent sets overlapping at a
// boundary) collapse to one.
func Dedup(games []Game) []Game {
	if len(games) <= 1 {
		return games
	}

	seen := make(map[string]struct{}, len(games))
	out := make([]Game, 0, len(games))
	for _, g := range games {
		key := dedupKey(g)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}

	return out
}

func dedupKey(g Game) string {
	if id := strings.TrimSpace(g.ID); id != "" {
		return "id:" + id
	}
	return "ck:" + g.HomeTeam.Name + "|" + g.AwayTeam.Name + "|" + strconv.FormatInt(g.StartsAt.Unix(), 10)
}
