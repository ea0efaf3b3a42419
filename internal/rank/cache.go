package rank

import (
	"context"
	"errors"
	"sort"

	"github.com/ladderhq/ladderd/internal/store"
	"github.com/ladderhq/ladderd/internal/trueskill"
)

// playerState is one player's in-flight state during a recalculation run.
type playerState struct {
	rating trueskill.Rating
	games  uint64
	wins   uint64
}

// ratingCache is the run-scoped player cache: the first reference to a
// player fetches their stored row (or synthesizes ladder defaults for a
// first-ever appearance); later references within the same run read and
// write the in-memory copy only. Whatever is in the cache at the end of
// the run is the authoritative state to persist, so a player touched by
// many matches costs a single store write.
type ratingCache struct {
	store  store.Store
	ladder string
	cfg    *store.LadderConfig
	states map[string]*playerState
}

func newRatingCache(s store.Store, cfg *store.LadderConfig) *ratingCache {
	return &ratingCache{
		store:  s,
		ladder: cfg.Name,
		cfg:    cfg,
		states: make(map[string]*playerState),
	}
}

func (c *ratingCache) get(ctx context.Context, name string) (*playerState, error) {
	if st, ok := c.states[name]; ok {
		return st, nil
	}
	p, err := c.store.GetPlayer(ctx, c.ladder, name)
	if errors.Is(err, store.ErrNotFound) {
		st := &playerState{rating: trueskill.Rating{Mu: c.cfg.Mu, Sigma: c.cfg.Sigma}}
		c.states[name] = st
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st := &playerState{
		rating: trueskill.Rating{Mu: p.Mu, Sigma: p.Sigma},
		games:  p.GamesCount,
		wins:   p.WinsCount,
	}
	c.states[name] = st
	return st, nil
}

// players returns every touched player as store rows, sorted by name so
// the commit writes in a stable order.
func (c *ratingCache) players() []*store.Player {
	names := make([]string, 0, len(c.states))
	for name := range c.states {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*store.Player, 0, len(names))
	for _, name := range names {
		st := c.states[name]
		out = append(out, &store.Player{
			Ladder:     c.ladder,
			Name:       name,
			Mu:         st.rating.Mu,
			Sigma:      st.rating.Sigma,
			GamesCount: st.games,
			WinsCount:  st.wins,
		})
	}
	return out
}
