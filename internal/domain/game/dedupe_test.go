package game

import (
	"testing"
	"time"
)

func TestDedup_FirstWinsByID(t *testing.T) {
	score1 := 10
	score2 := 20
	in := []Game{
		{ID: "gm-1", Sport: "basketball", HomeScore: &score1},
		{ID: "gm-2", Sport: "basketball"},
		{ID: "gm-1", Sport: "basketball", HomeScore: &score2},
	}

	out := Dedup(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 games, got %d", len(out))
	}
	if out[0].ID != "gm-1" || out[1].ID != "gm-2" {
		t.Fatalf("order must be preserved, got %q then %q", out[0].ID, out[1].ID)
	}
	if *out[0].HomeScore != score1 {
		t.Fatalf("first occurrence must win, got score %d", *out[0].HomeScore)
	}
}

func TestDedup_CompositeKeyFallback(t *testing.T) {
	kickoff := time.Date(2026, 3, 1, 19, 0, 0, 0, time.UTC)
	in := []Game{
		{Sport: "soccer", HomeTeam: Team{Name: "Arsenal"}, AwayTeam: Team{Name: "Chelsea"}, StartsAt: kickoff},
		{Sport: "soccer", HomeTeam: Team{Name: "Arsenal"}, AwayTeam: Team{Name: "Chelsea"}, StartsAt: kickoff},
		{Sport: "soccer", HomeTeam: Team{Name: "Arsenal"}, AwayTeam: Team{Name: "Chelsea"}, StartsAt: kickoff.Add(time.Hour)},
	}

	out := Dedup(in)
	if len(out) != 2 {
		t.Fatalf("expected composite-key dedup to keep 2 games, got %d", len(out))
	}
}

func TestDedup_Idempotent(t *testing.T) {
	in := []Game{
		{ID: "gm-1"},
		{ID: "gm-2"},
		{ID: "gm-1"},
	}

	once := Dedup(in)
	twice := Dedup(once)
	if len(once) != len(twice) {
		t.Fatalf("dedup must be idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("order changed on second pass at %d", i)
		}
	}
}

func TestDedup_EmptyInput(t *testing.T) {
	if out := Dedup(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}
