package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetLadderConfig(ctx context.Context, ladder string) (*LadderConfig, error) {
	cfg := &LadderConfig{}
	err := s.pool.QueryRow(ctx, `
		SELECT name, mu, sigma, beta, tau, draw_probability, last_ranked
		FROM ladders WHERE name = $1`, ladder,
	).Scan(&cfg.Name, &cfg.Mu, &cfg.Sigma, &cfg.Beta, &cfg.Tau, &cfg.DrawProbability, &cfg.LastRanked)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s *PostgresStore) UpsertLadderConfig(ctx context.Context, cfg *LadderConfig) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ladders (name, mu, sigma, beta, tau, draw_probability, last_ranked)
		VALUES ($1, $2, $3, $4, $5, $6, 0)
		ON CONFLICT (name) DO UPDATE SET
			mu = EXCLUDED.mu,
			sigma = EXCLUDED.sigma,
			beta = EXCLUDED.beta,
			tau = EXCLUDED.tau,
			draw_probability = EXCLUDED.draw_probability`,
		cfg.Name, cfg.Mu, cfg.Sigma, cfg.Beta, cfg.Tau, cfg.DrawProbability,
	)
	return err
}

func (s *PostgresStore) LadderExists(ctx context.Context, ladder string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM ladders WHERE name = $1)`, ladder,
	).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CreateMatch(ctx context.Context, m *Match) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var mu, sigma float64
	var lastRanked int64
	err = tx.QueryRow(ctx,
		`SELECT mu, sigma, last_ranked FROM ladders WHERE name = $1`, m.Ladder,
	).Scan(&mu, &sigma, &lastRanked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read ladder defaults: %w", err)
	}
	if m.Timestamp != 0 && m.Timestamp <= lastRanked {
		return ErrStaleTimestamp
	}

	if m.Timestamp == 0 {
		err = tx.QueryRow(ctx, `
			INSERT INTO matches (ladder, ts)
			VALUES ($1, EXTRACT(EPOCH FROM now())::bigint)
			RETURNING id, ts`, m.Ladder,
		).Scan(&m.ID, &m.Timestamp)
	} else {
		err = tx.QueryRow(ctx, `
			INSERT INTO matches (ladder, ts) VALUES ($1, $2)
			RETURNING id`, m.Ladder, m.Timestamp,
		).Scan(&m.ID)
	}
	if err != nil {
		return fmt.Errorf("insert match: %w", err)
	}

	batch := &pgx.Batch{}
	for teamIdx, team := range m.Teams {
		for seat, player := range team.Players {
			batch.Queue(`
				INSERT INTO players (ladder, name, mu, sigma)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (ladder, name) DO NOTHING`,
				m.Ladder, player, mu, sigma)
			batch.Queue(`
				INSERT INTO participants (match_id, player, team, rank, seat)
				VALUES ($1, $2, $3, $4, $5)`,
				m.ID, player, teamIdx, team.Rank, seat)
		}
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert participants: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) DeleteMatch(ctx context.Context, ladder string, id int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM matches WHERE id = $1 AND ladder = $2`, id, ladder)
	if err != nil {
		return fmt.Errorf("delete match: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// Ratings are not individually reversible: wipe the derived state
	// and rewind the watermark so the next run replays from scratch.
	if _, err := tx.Exec(ctx,
		`DELETE FROM history WHERE ladder = $1`, ladder); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE players SET
			mu = l.mu, sigma = l.sigma, games_count = 0, wins_count = 0
		FROM ladders l
		WHERE players.ladder = l.name AND players.ladder = $1`, ladder); err != nil {
		return fmt.Errorf("reset players: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE ladders SET last_ranked = 0 WHERE name = $1`, ladder); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) ListMatchesAfter(ctx context.Context, ladder string, afterTimestamp int64) ([]*Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.ts, p.player, p.team, p.rank
		FROM matches m
		JOIN participants p ON p.match_id = m.id
		WHERE m.ladder = $1 AND m.ts > $2
		ORDER BY m.ts ASC, m.id ASC, p.team ASC, p.seat ASC`,
		ladder, afterTimestamp)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows, ladder)
}

func (s *PostgresStore) ListRecentMatches(ctx context.Context, ladder string, limit, offset int) ([]*Match, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT m.id, m.ts, p.player, p.team, p.rank
		FROM (
			SELECT id, ts FROM matches
			WHERE ladder = $1
			ORDER BY ts DESC, id DESC
			LIMIT $2 OFFSET $3
		) m
		JOIN participants p ON p.match_id = m.id
		ORDER BY m.ts DESC, m.id DESC, p.team ASC, p.seat ASC`,
		ladder, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMatches(rows, ladder)
}

// participantRow is one row of the (match, participant) join, ordered
// by match then by (team, seat).
type participantRow struct {
	matchID int64
	ts      int64
	player  string
	team    int
	rank    int
}

func collectMatches(rows pgx.Rows, ladder string) ([]*Match, error) {
	var parts []participantRow
	for rows.Next() {
		var p participantRow
		if err := rows.Scan(&p.matchID, &p.ts, &p.player, &p.team, &p.rank); err != nil {
			return nil, err
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupMatches(ladder, parts), nil
}

// groupMatches folds ordered participant rows into Match values. Teams
// are identified by their stored team index, not by rank: drawn teams
// share a rank but must stay distinct.
func groupMatches(ladder string, parts []participantRow) []*Match {
	var out []*Match
	var cur *Match
	curTeam := -1
	for _, p := range parts {
		if cur == nil || cur.ID != p.matchID {
			cur = &Match{ID: p.matchID, Ladder: ladder, Timestamp: p.ts}
			out = append(out, cur)
			curTeam = -1
		}
		if len(cur.Teams) == 0 || curTeam != p.team {
			cur.Teams = append(cur.Teams, Team{Rank: p.rank})
			curTeam = p.team
		}
		last := &cur.Teams[len(cur.Teams)-1]
		last.Players = append(last.Players, p.player)
	}
	return out
}

func (s *PostgresStore) GetPlayer(ctx context.Context, ladder, name string) (*Player, error) {
	p := &Player{}
	err := s.pool.QueryRow(ctx, `
		SELECT ladder, name, mu, sigma, games_count, wins_count
		FROM players WHERE ladder = $1 AND name = $2`, ladder, name,
	).Scan(&p.Ladder, &p.Name, &p.Mu, &p.Sigma, &p.GamesCount, &p.WinsCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListStandings(ctx context.Context, ladder string) ([]*Player, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ladder, name, mu, sigma, games_count, wins_count
		FROM players WHERE ladder = $1
		ORDER BY mu DESC, name ASC`, ladder)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Player
	for rows.Next() {
		p := &Player{}
		if err := rows.Scan(&p.Ladder, &p.Name, &p.Mu, &p.Sigma, &p.GamesCount, &p.WinsCount); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PlayerHistory(ctx context.Context, ladder, player string, limit int) ([]*HistoryEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ladder, player, ts, mu
		FROM history WHERE ladder = $1 AND player = $2
		ORDER BY ts ASC
		LIMIT $3`, ladder, player, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*HistoryEntry
	for rows.Next() {
		h := &HistoryEntry{}
		if err := rows.Scan(&h.Ladder, &h.Player, &h.Timestamp, &h.Mu); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CommitRecalculation(ctx context.Context, ladder string, players []*Player, history []*HistoryEntry, prevWatermark, newWatermark int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// The watermark only advances when nobody else moved it since this
	// run read it; a stale watermark means a concurrent run won.
	tag, err := tx.Exec(ctx, `
		UPDATE ladders SET last_ranked = $1
		WHERE name = $2 AND last_ranked = $3`,
		newWatermark, ladder, prevWatermark)
	if err != nil {
		return fmt.Errorf("advance watermark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConcurrentRecalculation
	}

	batch := &pgx.Batch{}
	for _, p := range players {
		batch.Queue(`
			INSERT INTO players (ladder, name, mu, sigma, games_count, wins_count)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (ladder, name) DO UPDATE SET
				mu = EXCLUDED.mu,
				sigma = EXCLUDED.sigma,
				games_count = EXCLUDED.games_count,
				wins_count = EXCLUDED.wins_count`,
			ladder, p.Name, p.Mu, p.Sigma, p.GamesCount, p.WinsCount)
	}
	for _, h := range history {
		batch.Queue(`
			INSERT INTO history (ladder, player, ts, mu)
			VALUES ($1, $2, $3, $4)`,
			h.Ladder, h.Player, h.Timestamp, h.Mu)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("persist ratings: %w", err)
		}
	}

	return tx.Commit(ctx)
}
