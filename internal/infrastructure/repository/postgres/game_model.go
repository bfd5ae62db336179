package postgres

import (
	"database/sql"
	"time"

	"github.com/SolanaSergio/apexbets-live/internal/domain/game"
)

type gameTableModel struct {
	PublicID     string         `db:"public_id"`
	Sport        string         `db:"sport"`
	League       sql.NullString `db:"league"`
	HomeTeamID   sql.NullString `db:"home_team_id"`
	HomeTeamName sql.NullString `db:"home_team_name"`
	HomeTeamAbbr sql.NullString `db:"home_team_abbr"`
	HomeTeamLogo sql.NullString `db:"home_team_logo"`
	AwayTeamID   sql.NullString `db:"away_team_id"`
	AwayTeamName sql.NullString `db:"away_team_name"`
	AwayTeamAbbr sql.NullString `db:"away_team_abbr"`
	AwayTeamLogo sql.NullString `db:"away_team_logo"`
	HomeScore    sql.NullInt64  `db:"home_score"`
	AwayScore    sql.NullInt64  `db:"away_score"`
	Status       string         `db:"status"`
	Venue        sql.NullString `db:"venue"`
	StartsAt     time.Time      `db:"starts_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

func (m gameTableModel) toRawGame() game.RawGame {
	raw := game.RawGame{
		ID:        m.PublicID,
		Sport:     m.Sport,
		League:    m.League.String,
		HomeScore: nullInt64ToIntPtr(m.HomeScore),
		AwayScore: nullInt64ToIntPtr(m.AwayScore),
		Status:    m.Status,
		Venue:     m.Venue.String,
		StartsAt:  m.StartsAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.HomeTeamID.Valid || m.HomeTeamName.Valid {
		raw.HomeTeam = &game.RawTeam{
			ID:           m.HomeTeamID.String,
			Name:         m.HomeTeamName.String,
			Abbreviation: m.HomeTeamAbbr.String,
			LogoURL:      m.HomeTeamLogo.String,
		}
	}
	if m.AwayTeamID.Valid || m.AwayTeamName.Valid {
		raw.AwayTeam = &game.RawTeam{
			ID:           m.AwayTeamID.String,
			Name:         m.AwayTeamName.String,
			Abbreviation: m.AwayTeamAbbr.String,
			LogoURL:      m.AwayTeamLogo.String,
		}
	}
	return raw
}

func nullInt64ToIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	out := int(v.Int64)
	return &out
}
