package game

import (
	"context"
	"time"
)

// Repository exposes read-only queries against the games store. The store is
// an external collaborator: this service never writes to it and never owns
// its schema or transactions.
type Repository interface {
	// ListLive returns rows whose stored status tags them as in progress.
	ListLive(ctx context.Context, sport string) ([]RawGame, error)
	// ListRecent returns completed rows that started after since.
	ListRecent(ctx context.Context, sport string, since time.Time) ([]RawGame, error)
	// ListUpcoming returns scheduled rows that start before until.
	ListUpcoming(ctx context.Context, sport string, until time.Time) ([]RawGame, error)
}
