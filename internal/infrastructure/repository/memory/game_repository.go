package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
)

// GameRepository is an in-memory game store for dev mode and tests. Rows keep
// raw status strings so the same normalization path runs against it as
// against postgres.
type GameRepository struct {
	mu           sync.RWMutex
	gamesBySport map[string][]game.RawGame
}

func NewGameRepository(games []game.RawGame) *GameRepository {
	gamesBySport := make(map[string][]game.RawGame)
	for _, g := range games {
		sport := strings.ToLower(strings.TrimSpace(g.Sport))
		gamesBySport[sport] = append(gamesBySport[sport], g)
	}

	return &GameRepository{gamesBySport: gamesBySport}
}

// Replace swaps the full row set for one sport.
func (r *GameRepository) Replace(sport string, games []game.RawGame) {
	sport = strings.ToLower(strings.TrimSpace(sport))

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gamesBySport[sport] = append([]game.RawGame(nil), games...)
}

func (r *GameRepository) ListLive(_ context.Context, sport string) ([]game.RawGame, error) {
	return r.filter(sport, func(g game.RawGame) bool {
		return game.ParseStatus(g.Status).IsLive()
	}), nil
}

func (r *GameRepository) ListRecent(_ context.Context, sport string, since time.Time) ([]game.RawGame, error) {
	return r.filter(sport, func(g game.RawGame) bool {
		return game.ParseStatus(g.Status) == game.StatusCompleted && !g.StartsAt.Before(since)
	}), nil
}

func (r *GameRepository) ListUpcoming(_ context.Context, sport string, until time.Time) ([]game.RawGame, error) {
	now := time.Now()
	return r.filter(sport, func(g game.RawGame) bool {
		return game.ParseStatus(g.Status) == game.StatusScheduled &&
			!g.StartsAt.Before(now) && !g.StartsAt.After(until)
	}), nil
}

func (r *GameRepository) filter(sport string, keep func(game.RawGame) bool) []game.RawGame {
	sport = strings.ToLower(strings.TrimSpace(sport))

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]game.RawGame, 0)
	for _, g := range r.gamesBySport[sport] {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartsAt.Before(out[j].StartsAt)
	})

	return out
}
