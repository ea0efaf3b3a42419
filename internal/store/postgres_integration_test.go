//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"
)

func setupTestDB(t *testing.T) *PostgresStore {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	t.Cleanup(func() {
		// Truncate in dependency order
		_, _ = s.pool.Exec(ctx, "TRUNCATE history CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE participants CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE matches CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE players CASCADE")
		_, _ = s.pool.Exec(ctx, "TRUNCATE ladders CASCADE")
		s.Close()
	})

	return s
}

func testConfig(name string) *LadderConfig {
	return &LadderConfig{
		Name:            name,
		Mu:              1200,
		Sigma:           200,
		Beta:            100,
		Tau:             4,
		DrawProbability: 0,
	}
}

func TestLadderConfigRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if _, err := s.GetLadderConfig(ctx, "office"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.UpsertLadderConfig(ctx, testConfig("office")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	cfg, err := s.GetLadderConfig(ctx, "office")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Mu != 1200 || cfg.Sigma != 200 || cfg.LastRanked != 0 {
		t.Errorf("unexpected config: %+v", cfg)
	}

	// Changing parameters must not move the watermark.
	if err := s.CommitRecalculation(ctx, "office", nil, nil, 0, 99); err != nil {
		t.Fatalf("commit: %v", err)
	}
	cfg.Beta = 150
	if err := s.UpsertLadderConfig(ctx, cfg); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	cfg, err = s.GetLadderConfig(ctx, "office")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if cfg.Beta != 150 {
		t.Errorf("beta = %f, want 150", cfg.Beta)
	}
	if cfg.LastRanked != 99 {
		t.Errorf("watermark = %d, want 99 preserved across upsert", cfg.LastRanked)
	}
}

func TestMatchLifecycle(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.UpsertLadderConfig(ctx, testConfig("office")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	m := &Match{
		Ladder:    "office",
		Timestamp: 1000,
		Teams: []Team{
			{Rank: 0, Players: []string{"alice"}},
			{Rank: 1, Players: []string{"bob", "carol"}},
		},
	}
	if err := s.CreateMatch(ctx, m); err != nil {
		t.Fatalf("create match: %v", err)
	}
	if m.ID == 0 {
		t.Fatal("expected match id assigned")
	}

	// Participants got default player rows.
	p, err := s.GetPlayer(ctx, "office", "carol")
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	if p.Mu != 1200 || p.Sigma != 200 || p.GamesCount != 0 {
		t.Errorf("unexpected default player: %+v", p)
	}

	got, err := s.ListMatchesAfter(ctx, "office", 0)
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got))
	}
	if len(got[0].Teams) != 2 || got[0].Teams[1].Players[0] != "bob" {
		t.Errorf("unexpected teams: %+v", got[0].Teams)
	}

	if got, err := s.ListMatchesAfter(ctx, "office", 1000); err != nil || len(got) != 0 {
		t.Errorf("expected no matches past the watermark, got %d (%v)", len(got), err)
	}

	recent, err := s.ListRecentMatches(ctx, "office", 10, 0)
	if err != nil || len(recent) != 1 {
		t.Fatalf("recent: %d matches, err %v", len(recent), err)
	}

	if err := s.DeleteMatch(ctx, "office", m.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteMatch(ctx, "office", m.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestDrawnMatchRoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.UpsertLadderConfig(ctx, testConfig("office")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Two-team draw and a three-team outcome with a second-place draw:
	// equal ranks must come back as the teams that were stored, not as
	// one merged team.
	draws := []*Match{
		{
			Ladder:    "office",
			Timestamp: 1000,
			Teams: []Team{
				{Rank: 0, Players: []string{"alice"}},
				{Rank: 0, Players: []string{"bob"}},
			},
		},
		{
			Ladder:    "office",
			Timestamp: 2000,
			Teams: []Team{
				{Rank: 0, Players: []string{"alice", "bob"}},
				{Rank: 1, Players: []string{"carol"}},
				{Rank: 1, Players: []string{"dave"}},
			},
		},
	}
	for _, m := range draws {
		if err := s.CreateMatch(ctx, m); err != nil {
			t.Fatalf("create match ts=%d: %v", m.Timestamp, err)
		}
	}

	got, err := s.ListMatchesAfter(ctx, "office", 0)
	if err != nil {
		t.Fatalf("list after: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	for i, want := range draws {
		if len(got[i].Teams) != len(want.Teams) {
			t.Fatalf("match %d: %d teams, want %d: %+v", i, len(got[i].Teams), len(want.Teams), got[i].Teams)
		}
		for j, team := range want.Teams {
			if got[i].Teams[j].Rank != team.Rank {
				t.Errorf("match %d team %d: rank %d, want %d", i, j, got[i].Teams[j].Rank, team.Rank)
			}
			if len(got[i].Teams[j].Players) != len(team.Players) {
				t.Fatalf("match %d team %d: players %v, want %v", i, j, got[i].Teams[j].Players, team.Players)
			}
			for k, name := range team.Players {
				if got[i].Teams[j].Players[k] != name {
					t.Errorf("match %d team %d seat %d: %q, want %q", i, j, k, got[i].Teams[j].Players[k], name)
				}
			}
		}
	}
}

func TestCreateMatchRejectsStaleTimestamp(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.UpsertLadderConfig(ctx, testConfig("office")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.CommitRecalculation(ctx, "office", nil, nil, 0, 1000); err != nil {
		t.Fatalf("commit: %v", err)
	}

	m := &Match{
		Ladder:    "office",
		Timestamp: 1000,
		Teams: []Team{
			{Rank: 0, Players: []string{"alice"}},
			{Rank: 1, Players: []string{"bob"}},
		},
	}
	if err := s.CreateMatch(ctx, m); !errors.Is(err, ErrStaleTimestamp) {
		t.Fatalf("expected ErrStaleTimestamp, got %v", err)
	}

	// A newer timestamp and a server-assigned one are both fine.
	m.Timestamp = 1001
	if err := s.CreateMatch(ctx, m); err != nil {
		t.Fatalf("create at ts 1001: %v", err)
	}
	m2 := &Match{Ladder: "office", Teams: m.Teams}
	if err := s.CreateMatch(ctx, m2); err != nil {
		t.Fatalf("create with server timestamp: %v", err)
	}
}

func TestCommitRecalculationConflict(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	if err := s.UpsertLadderConfig(ctx, testConfig("office")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	players := []*Player{{Ladder: "office", Name: "alice", Mu: 1250, Sigma: 180, GamesCount: 1, WinsCount: 1}}
	history := []*HistoryEntry{{Ladder: "office", Player: "alice", Timestamp: 1000, Mu: 1250}}

	if err := s.CommitRecalculation(ctx, "office", players, history, 0, 1000); err != nil {
		t.Fatalf("first commit: %v", err)
	}

	// A second commit from the same stale watermark must conflict.
	err := s.CommitRecalculation(ctx, "office", players, history, 0, 2000)
	if !errors.Is(err, ErrConcurrentRecalculation) {
		t.Errorf("expected ErrConcurrentRecalculation, got %v", err)
	}

	entries, err := s.PlayerHistory(ctx, "office", "alice", 100)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 history row, got %d", len(entries))
	}

	standings, err := s.ListStandings(ctx, "office")
	if err != nil || len(standings) != 1 {
		t.Fatalf("standings: %d players, err %v", len(standings), err)
	}
	if standings[0].Mu != 1250 {
		t.Errorf("standing mu = %f, want 1250", standings[0].Mu)
	}
}
