package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
	qb "github.com/SolanaSergio/apexbets-live/internal/platform/querybuilder"
)

// Live status strings kept in storage. Rows are stored with provider status
// values; the canonical enum fold happens in the domain layer, so the live
// query has to match every spelling a provider may write.
var liveStatusValues = []any{"live", "in_progress", "in progress"}

var gameSelectColumns = []string{
	"g.public_id",
	"g.sport",
	"g.league",
	"ht.public_id AS home_team_id",
	"ht.name AS home_team_name",
	"ht.abbreviation AS home_team_abbr",
	"ht.logo_url AS home_team_logo",
	"at.public_id AS away_team_id",
	"at.name AS away_team_name",
	"at.abbreviation AS away_team_abbr",
	"at.logo_url AS away_team_logo",
	"g.home_score",
	"g.away_score",
	"g.status",
	"g.venue",
	"g.starts_at",
	"g.updated_at",
}

type GameRepository struct {
	db *sqlx.DB
}

func NewGameRepository(db *sqlx.DB) *GameRepository {
	return &GameRepository{db: db}
}

func (r *GameRepository) ListLive(ctx context.Context, sport string) ([]game.RawGame, error) {
	query, args, err := gameSelect().
		Where(
			qb.Eq("g.sport", sport),
			qb.In("LOWER(g.status)", liveStatusValues),
			qb.IsNull("g.deleted_at"),
		).
		OrderBy("g.starts_at", "g.public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select live games query: %w", err)
	}

	return r.selectGames(ctx, "select live games", query, args)
}

func (r *GameRepository) ListRecent(ctx context.Context, sport string, since time.Time) ([]game.RawGame, error) {
	query, args, err := gameSelect().
		Where(
			qb.Eq("g.sport", sport),
			qb.In("LOWER(g.status)", []any{"completed", "final", "finished", "closed", "ft"}),
			qb.Gte("g.starts_at", since),
			qb.IsNull("g.deleted_at"),
		).
		OrderBy("g.starts_at DESC", "g.public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select recent games query: %w", err)
	}

	return r.selectGames(ctx, "select recent games", query, args)
}

func (r *GameRepository) ListUpcoming(ctx context.Context, sport string, until time.Time) ([]game.RawGame, error) {
	now := time.Now()
	query, args, err := gameSelect().
		Where(
			qb.Eq("g.sport", sport),
			qb.In("LOWER(g.status)", []any{"scheduled", "upcoming", "pre", "pregame", "not_started", "ns"}),
			qb.Gte("g.starts_at", now),
			qb.Lte("g.starts_at", until),
			qb.IsNull("g.deleted_at"),
		).
		OrderBy("g.starts_at", "g.public_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select upcoming games query: %w", err)
	}

	return r.selectGames(ctx, "select upcoming games", query, args)
}

func gameSelect() *qb.SelectBuilder {
	return qb.Select(gameSelectColumns...).
		From("games g").
		LeftJoin("teams ht", "ht.public_id = g.home_team_public_id").
		LeftJoin("teams at", "at.public_id = g.away_team_public_id")
}

func (r *GameRepository) selectGames(ctx context.Context, op, query string, args []any) ([]game.RawGame, error) {
	var rows []gameTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]game.RawGame, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toRawGame())
	}

	return out, nil
}
