// Package rank drives incremental recalculation of a ladder's ratings:
// it replays the matches accumulated since the ladder's watermark, in
// chronological order, exactly once each, and commits the outcome
// atomically.
package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ladderhq/ladderd/internal/events"
	"github.com/ladderhq/ladderd/internal/store"
	"github.com/ladderhq/ladderd/internal/trueskill"
)

var (
	// ErrConfigMissing means the ladder has no configuration row; the
	// run is aborted and nothing is retried.
	ErrConfigMissing = errors.New("ladder has no configuration")

	// ErrMalformedMatch means a stored match violates the data model
	// (fewer than two teams, an empty team). It indicates an upstream
	// integrity bug and is never skipped over: skipping would advance
	// the watermark past a match that was not applied.
	ErrMalformedMatch = errors.New("malformed match")
)

type Ranker struct {
	store  store.Store
	events events.Client
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(s store.Store, ev events.Client, logger *slog.Logger) *Ranker {
	return &Ranker{
		store:  s,
		events: ev,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// ladderLock serializes recalculations of one ladder within this
// process. Across processes the watermark check inside
// CommitRecalculation is the backstop.
func (r *Ranker) ladderLock(ladder string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[ladder]
	if !ok {
		l = &sync.Mutex{}
		r.locks[ladder] = l
	}
	return l
}

// Recalculate folds every match newer than the ladder's watermark into
// the ladder's ratings. It is idempotent: with no new matches it reads
// the store once and writes nothing.
func (r *Ranker) Recalculate(ctx context.Context, ladder string) error {
	lock := r.ladderLock(ladder)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	err := r.recalculate(ctx, ladder)
	recalcDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		recalcTotal.WithLabelValues("error").Inc()
		return err
	}
	recalcTotal.WithLabelValues("ok").Inc()
	return nil
}

func (r *Ranker) recalculate(ctx context.Context, ladder string) error {
	cfg, err := r.store.GetLadderConfig(ctx, ladder)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrConfigMissing, ladder)
	}
	if err != nil {
		return fmt.Errorf("read ladder config: %w", err)
	}

	matches, err := r.store.ListMatchesAfter(ctx, ladder, cfg.LastRanked)
	if err != nil {
		return fmt.Errorf("list unprocessed matches: %w", err)
	}
	if len(matches) == 0 {
		return nil
	}

	params := trueskill.Params{
		Beta:            cfg.Beta,
		Tau:             cfg.Tau,
		DrawProbability: cfg.DrawProbability,
	}
	cache := newRatingCache(r.store, cfg)
	var history []*store.HistoryEntry
	maxTimestamp := cfg.LastRanked

	for _, m := range matches {
		if err := validateMatch(m); err != nil {
			return err
		}
		r.logger.Info("processing match",
			"ladder", ladder, "match_id", m.ID, "timestamp", m.Timestamp)

		teams := make([][]trueskill.Rating, len(m.Teams))
		ranks := make([]int, len(m.Teams))
		minRank := m.Teams[0].Rank
		for ti, team := range m.Teams {
			ranks[ti] = team.Rank
			if team.Rank < minRank {
				minRank = team.Rank
			}
			teams[ti] = make([]trueskill.Rating, len(team.Players))
			for pi, name := range team.Players {
				st, err := cache.get(ctx, name)
				if err != nil {
					return fmt.Errorf("load player %q: %w", name, err)
				}
				teams[ti][pi] = st.rating
			}
		}

		rated, err := trueskill.Rate(teams, ranks, params)
		if err != nil {
			return fmt.Errorf("%w: match %d: %v", ErrMalformedMatch, m.ID, err)
		}

		for ti, team := range m.Teams {
			for pi, name := range team.Players {
				st, err := cache.get(ctx, name)
				if err != nil {
					return fmt.Errorf("load player %q: %w", name, err)
				}
				st.rating = rated[ti][pi]
				st.games++
				if team.Rank == minRank {
					st.wins++
				}
				history = append(history, &store.HistoryEntry{
					Ladder:    ladder,
					Player:    name,
					Timestamp: m.Timestamp,
					Mu:        st.rating.Mu,
				})
			}
		}

		if m.Timestamp > maxTimestamp {
			maxTimestamp = m.Timestamp
		}
	}

	players := cache.players()
	if err := r.store.CommitRecalculation(ctx, ladder, players, history, cfg.LastRanked, maxTimestamp); err != nil {
		return fmt.Errorf("commit recalculation: %w", err)
	}

	matchesProcessed.Add(float64(len(matches)))
	r.logger.Info("recalculation committed",
		"ladder", ladder,
		"matches", len(matches),
		"players", len(players),
		"watermark", maxTimestamp,
	)

	if r.events != nil {
		_ = r.events.Publish(events.SubjectRankingUpdated(ladder), events.NewRankingUpdated(ladder, len(matches), maxTimestamp))
	}
	return nil
}

// Standings returns the ladder's players sorted by mean skill
// descending, ties broken by name. Callers wanting an up-to-date view
// invoke Recalculate first; it is a cheap no-op when current.
func (r *Ranker) Standings(ctx context.Context, ladder string) ([]*store.Player, error) {
	return r.store.ListStandings(ctx, ladder)
}

func validateMatch(m *store.Match) error {
	if len(m.Teams) < 2 {
		return fmt.Errorf("%w: match %d has %d teams", ErrMalformedMatch, m.ID, len(m.Teams))
	}
	for i, team := range m.Teams {
		if len(team.Players) == 0 {
			return fmt.Errorf("%w: match %d team %d is empty", ErrMalformedMatch, m.ID, i)
		}
	}
	return nil
}
