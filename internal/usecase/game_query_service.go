package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
	"github.com/SolanaSergio/apexbets-live/internal/platform/cache"
)

// GameQueryConfig carries the query windows and the read-through cache TTL.
// Recent/upcoming windows are explicit parameters rather than inferred
// tunables; the defaults match the polling subsystem's contract.
type GameQueryConfig struct {
	RecentLookback    time.Duration
	UpcomingLookahead time.Duration
	CacheTTL          time.Duration
}

func (c GameQueryConfig) withDefaults() GameQueryConfig {
	if c.RecentLookback <= 0 {
		c.RecentLookback = 24 * time.Hour
	}
	if c.UpcomingLookahead <= 0 {
		c.UpcomingLookahead = 7 * 24 * time.Hour
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 20 * time.Second
	}
	return c
}

// GameQueryService reads game rows for one sport and returns them in
// canonical, deduplicated form. All reads go through a short-TTL cache that
// also de-duplicates concurrent fetches for the same key, shielding storage
// from repeated identical queries within one poll interval.
type GameQueryService struct {
	repo  game.Repository
	store *cache.Store
	cfg   GameQueryConfig
	now   func() time.Time
}

func NewGameQueryService(repo game.Repository, store *cache.Store, cfg GameQueryConfig) *GameQueryService {
	return &GameQueryService{
		repo:  repo,
		store: store,
		cfg:   cfg.withDefaults(),
		now:   time.Now,
	}
}

// LiveGames returns the sport's currently live games. Rows whose canonical
// status does not classify as live are dropped even when storage still tags
// them with a live-like status string.
func (s *GameQueryService) LiveGames(ctx context.Context, sport string) ([]game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameQueryService.LiveGames")
	defer span.End()

	sport, err := normalizeSport(sport)
	if err != nil {
		return nil, err
	}

	return s.cached(ctx, "games:live:"+sport, func(ctx context.Context) ([]game.Game, error) {
		rows, err := s.repo.ListLive(ctx, sport)
		if err != nil {
			return nil, fmt.Errorf("list live games sport=%s: %w", sport, err)
		}
		games := game.Dedup(game.NormalizeAll(rows))
		out := make([]game.Game, 0, len(games))
		for _, g := range games {
			if g.Status.IsLive() {
				out = append(out, g)
			}
		}
		return out, nil
	})
}

// RecentGames returns games completed within the lookback window.
func (s *GameQueryService) RecentGames(ctx context.Context, sport string) ([]game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameQueryService.RecentGames")
	defer span.End()

	sport, err := normalizeSport(sport)
	if err != nil {
		return nil, err
	}

	since := s.now().Add(-s.cfg.RecentLookback)
	return s.cached(ctx, "games:recent:"+sport, func(ctx context.Context) ([]game.Game, error) {
		rows, err := s.repo.ListRecent(ctx, sport, since)
		if err != nil {
			return nil, fmt.Errorf("list recent games sport=%s: %w", sport, err)
		}
		return game.Dedup(game.NormalizeAll(rows)), nil
	})
}

// UpcomingGames returns games scheduled within the lookahead window.
func (s *GameQueryService) UpcomingGames(ctx context.Context, sport string) ([]game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameQueryService.UpcomingGames")
	defer span.End()

	sport, err := normalizeSport(sport)
	if err != nil {
		return nil, err
	}

	until := s.now().Add(s.cfg.UpcomingLookahead)
	return s.cached(ctx, "games:upcoming:"+sport, func(ctx context.Context) ([]game.Game, error) {
		rows, err := s.repo.ListUpcoming(ctx, sport, until)
		if err != nil {
			return nil, fmt.Errorf("list upcoming games sport=%s: %w", sport, err)
		}
		return game.Dedup(game.NormalizeAll(rows)), nil
	})
}

// Snapshot returns the combined live+recent+upcoming view for one sport,
// deduplicated across the three sets (live and recent overlap at the
// completion boundary).
func (s *GameQueryService) Snapshot(ctx context.Context, sport string) ([]game.Game, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.GameQueryService.Snapshot")
	defer span.End()

	live, err := s.LiveGames(ctx, sport)
	if err != nil {
		return nil, err
	}
	recent, err := s.RecentGames(ctx, sport)
	if err != nil {
		return nil, err
	}
	upcoming, err := s.UpcomingGames(ctx, sport)
	if err != nil {
		return nil, err
	}

	combined := make([]game.Game, 0, len(live)+len(recent)+len(upcoming))
	combined = append(combined, live...)
	combined = append(combined, recent...)
	combined = append(combined, upcoming...)
	return game.Dedup(combined), nil
}

func (s *GameQueryService) cached(ctx context.Context, key string, loader func(context.Context) ([]game.Game, error)) ([]game.Game, error) {
	if s.store == nil {
		return loader(ctx)
	}

	value, err := s.store.GetOrLoad(ctx, key, s.cfg.CacheTTL, func(ctx context.Context) (any, error) {
		return loader(ctx)
	})
	if err != nil {
		return nil, err
	}

	games, ok := value.([]game.Game)
	if !ok {
		return nil, fmt.Errorf("unexpected cache entry type for key=%s", key)
	}
	return games, nil
}

func normalizeSport(sport string) (string, error) {
	sport = strings.ToLower(strings.TrimSpace(sport))
	if sport == "" {
		return "", fmt.Errorf("%w: sport is required", ErrInvalidInput)
	}
	return sport, nil
}
