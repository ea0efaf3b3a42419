package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a ladder, player or match does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConcurrentRecalculation is returned by CommitRecalculation when
	// another run advanced the watermark first. The caller should re-invoke
	// from a freshly read watermark.
	ErrConcurrentRecalculation = errors.New("concurrent recalculation")

	// ErrStaleTimestamp is returned by CreateMatch when the supplied
	// timestamp is at or before the ladder's watermark. Recalculation
	// only replays strictly newer matches, so such a submission would
	// never be rated; delete a match first to rewind the watermark.
	ErrStaleTimestamp = errors.New("timestamp at or before last ranked match")
)

// LadderConfig holds a ladder's rating parameters and its watermark:
// the timestamp of the newest match already folded into current ratings.
type LadderConfig struct {
	Name            string  `json:"name"`
	Mu              float64 `json:"mu"`
	Sigma           float64 `json:"sigma"`
	Beta            float64 `json:"beta"`
	Tau             float64 `json:"tau"`
	DrawProbability float64 `json:"draw_probability"`
	LastRanked      int64   `json:"last_ranked"`
}

// Player is one competitor's current state, scoped to a ladder.
type Player struct {
	Ladder     string  `json:"ladder"`
	Name       string  `json:"name"`
	Mu         float64 `json:"mu"`
	Sigma      float64 `json:"sigma"`
	GamesCount uint64  `json:"games_count"`
	WinsCount  uint64  `json:"wins_count"`
}

// Team is an ordered group of players sharing one finish rank.
// Lower rank is a better finish; equal ranks denote a draw.
type Team struct {
	Rank    int      `json:"rank"`
	Players []string `json:"players"`
}

// Match is one recorded outcome. Immutable once created.
type Match struct {
	ID        int64  `json:"id"`
	Ladder    string `json:"ladder"`
	Timestamp int64  `json:"timestamp"`
	Teams     []Team `json:"teams"`
}

// HistoryEntry is one point of a player's rating time series,
// appended during recalculation.
type HistoryEntry struct {
	Ladder    string  `json:"ladder"`
	Player    string  `json:"player"`
	Timestamp int64   `json:"timestamp"`
	Mu        float64 `json:"mu"`
}

type Store interface {
	// Ladder configuration. Upsert preserves the watermark of an
	// existing ladder; only match deletion moves it backward.
	GetLadderConfig(ctx context.Context, ladder string) (*LadderConfig, error)
	UpsertLadderConfig(ctx context.Context, cfg *LadderConfig) error
	LadderExists(ctx context.Context, ladder string) (bool, error)

	// Matches. CreateMatch also creates missing player rows with the
	// ladder defaults; a non-zero timestamp at or before the watermark
	// fails with ErrStaleTimestamp. DeleteMatch removes the match, clears the
	// ladder's history and ratings and resets the watermark so the
	// next recalculation replays the full sequence.
	CreateMatch(ctx context.Context, m *Match) error
	DeleteMatch(ctx context.Context, ladder string, id int64) error
	ListMatchesAfter(ctx context.Context, ladder string, afterTimestamp int64) ([]*Match, error)
	ListRecentMatches(ctx context.Context, ladder string, limit, offset int) ([]*Match, error)

	// Players.
	GetPlayer(ctx context.Context, ladder, name string) (*Player, error)
	ListStandings(ctx context.Context, ladder string) ([]*Player, error)

	// Rating history, ascending by timestamp.
	PlayerHistory(ctx context.Context, ladder, player string, limit int) ([]*HistoryEntry, error)

	// CommitRecalculation persists every touched player, appends the
	// run's history rows and advances the watermark from prevWatermark
	// to newWatermark as a single atomic unit. It fails with
	// ErrConcurrentRecalculation when the stored watermark no longer
	// equals prevWatermark.
	CommitRecalculation(ctx context.Context, ladder string, players []*Player, history []*HistoryEntry, prevWatermark, newWatermark int64) error

	Close() error
}
