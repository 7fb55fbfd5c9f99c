package store

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/knockout/go/internal/trivia"
)

// CachedStore fronts another Store with an LRU of ended games. Ended snapshots no longer
// change, so history lookups for them skip the backing store.
type CachedStore struct {
	Store
	ended *lru.Cache
}

// NewCachedStore wraps next with a cache of up to size ended games.
func NewCachedStore(next Store, size int) (*CachedStore, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}
	return &CachedStore{Store: next, ended: cache}, nil
}

func (c *CachedStore) Save(ctx context.Context, s *trivia.Session) error {
	if err := c.Store.Save(ctx, s); err != nil {
		c.ended.Remove(s.Code)
		return err
	}
	if s.Status != trivia.StatusEnded {
		c.ended.Remove(s.Code)
		return nil
	}
	rec, err := NewRecord(s)
	if err != nil {
		return err
	}
	c.ended.Add(s.Code, &rec)
	return nil
}

func (c *CachedStore) Get(ctx context.Context, code string) (*Record, error) {
	if v, ok := c.ended.Get(code); ok {
		rec := *v.(*Record)
		return &rec, nil
	}

	rec, err := c.Store.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	if rec.Status == trivia.StatusEnded {
		c.ended.Add(code, rec)
		log.Debug().Str("code", code).Msg("cached ended game")
	}
	cp := *rec
	return &cp, nil
}

// Len is the number of cached games.
func (c *CachedStore) Len() int {
	return c.ended.Len()
}
