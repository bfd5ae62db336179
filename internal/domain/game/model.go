package game

import (
	"strings"
	"time"
)

// Status is the closed set of canonical game states. Raw storage rows carry
// free-form status strings; they are folded into this enum once at the
// normalization boundary and never re-inspected as strings downstream.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusCompleted Status = "completed"
	StatusPostponed Status = "postponed"
	StatusCanceled  Status = "canceled"
	StatusUnknown   Status = "unknown"
)

const (
	placeholderHomeName = "Home Team"
	placeholderAwayName = "Visiting Team"
)

// Team is the canonical team shape embedded in a Game.
type Team struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation,omitempty"`
	LogoURL      string `json:"logoUrl,omitempty"`
}

// Game is the canonical, sport-agnostic representation of one fixture.
// Values are immutable records passed by copy between components.
type Game struct {
	ID        string    `json:"id"`
	Sport     string    `json:"sport"`
	League    string    `json:"league,omitempty"`
	HomeTeam  Team      `json:"homeTeam"`
	AwayTeam  Team      `json:"awayTeam"`
	HomeScore *int      `json:"homeScore,omitempty"`
	AwayScore *int      `json:"awayScore,omitempty"`
	Status    Status    `json:"status"`
	Venue     string    `json:"venue,omitempty"`
	StartsAt  time.Time `json:"startsAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// RawTeam mirrors the team sub-object joined onto a stored game row.
type RawTeam struct {
	ID           string
	Name         string
	Abbreviation string
	LogoURL      string
}

// RawGame mirrors one stored game row before normalization. Team sub-objects
// may be absent when the join produced no match.
type RawGame struct {
	ID        string
	Sport     string
	League    string
	HomeTeam  *RawTeam
	AwayTeam  *RawTeam
	HomeScore *int
	AwayScore *int
	Status    string
	Venue     string
	StartsAt  time.Time
	UpdatedAt time.Time
}

// ParseStatus folds a raw status string into the canonical enum. It is total:
// any unrecognized input maps to StatusUnknown, never an error.
func ParseStatus(value string) Status {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "scheduled", "upcoming", "pre", "pregame", "not_started", "ns":
		return StatusScheduled
	case "live", "in_progress", "in progress":
		return StatusLive
	case "completed", "complete", "final", "finished", "closed", "ft":
		return StatusCompleted
	case "postponed":
		return StatusPostponed
	case "canceled", "cancelled", "abandoned":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}

// IsLive reports whether the status means in-progress play. It is the single
// liveness authority: a false positive would push a stale "live" badge to
// every subscriber, so anything not exactly live counts as not live.
func (s Status) IsLive() bool {
	return s == StatusLive
}

// Normalize turns a raw stored row into a canonical Game with defensive
// defaults, so downstream consumers never branch on absent team data.
func Normalize(raw RawGame) Game {
	return Game{
		ID:        strings.TrimSpace(raw.ID),
		Sport:     strings.ToLower(strings.TrimSpace(raw.Sport)),
		League:    strings.TrimSpace(raw.League),
		HomeTeam:  normalizeTeam(raw.HomeTeam, placeholderHomeName),
		AwayTeam:  normalizeTeam(raw.AwayTeam, placeholderAwayName),
		HomeScore: raw.HomeScore,
		AwayScore: raw.AwayScore,
		Status:    ParseStatus(raw.Status),
		Venue:     strings.TrimSpace(raw.Venue),
		StartsAt:  raw.StartsAt,
		UpdatedAt: raw.UpdatedAt,
	}
}

// NormalizeAll maps Normalize over a fetch batch, preserving order.
func NormalizeAll(raw []RawGame) []Game {
	out := make([]Game, 0, len(raw))
	for _, row := range raw {
		out = append(out, Normalize(row))
	}
	return out
}

// Canonicalize re-applies normalization defaults to an already-shaped Game,
// so batches arriving from external producers carry the same guarantees as
// rows read from storage: trimmed fields, folded status, never an absent
// team name.
func Canonicalize(g Game) Game {
	return Normalize(RawGame{
		ID:     g.ID,
		Sport:  g.Sport,
		League: g.League,
		HomeTeam: &RawTeam{
			ID:           g.HomeTeam.ID,
			Name:         g.HomeTeam.Name,
			Abbreviation: g.HomeTeam.Abbreviation,
			LogoURL:      g.HomeTeam.LogoURL,
		},
		AwayTeam: &RawTeam{
			ID:           g.AwayTeam.ID,
			Name:         g.AwayTeam.Name,
			Abbreviation: g.AwayTeam.Abbreviation,
			LogoURL:      g.AwayTeam.LogoURL,
		},
		HomeScore: g.HomeScore,
		AwayScore: g.AwayScore,
		Status:    string(g.Status),
		Venue:     g.Venue,
		StartsAt:  g.StartsAt,
		UpdatedAt: g.UpdatedAt,
	})
}

func normalizeTeam(raw *RawTeam, placeholder string) Team {
	if raw == nil {
		return Team{Name: placeholder}
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		name = placeholder
	}

	return Team{
		ID:           strings.TrimSpace(raw.ID),
		Name:         name,
		Abbreviation: strings.TrimSpace(raw.Abbreviation),
		LogoURL:      strings.TrimSpace(raw.LogoURL),
	}
}
