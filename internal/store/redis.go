package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/papertrade/engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache of whole account records. Writes go to the primary store and
// invalidate the cache; reads check Redis first then fall back.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write paths (write to primary, refresh or invalidate cache) ---

func (s *CachedStore) CreateAccount(ctx context.Context, acct *model.Account) error {
	if err := s.primary.CreateAccount(ctx, acct); err != nil {
		return err
	}
	s.cacheAccount(ctx, acct)
	return nil
}

func (s *CachedStore) SaveAccount(ctx context.Context, acct *model.Account) error {
	if err := s.primary.SaveAccount(ctx, acct); err != nil {
		return err
	}
	// Invalidate rather than re-cache: the next read re-populates from
	// the source of truth.
	s.rdb.Del(ctx, accountKey(acct.ID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	data, err := s.rdb.Get(ctx, accountKey(id)).Bytes()
	if err == nil {
		var acct model.Account
		if json.Unmarshal(data, &acct) == nil {
			return &acct, nil
		}
	}

	acct, err := s.primary.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheAccount(ctx, acct)
	return acct, nil
}

func (s *CachedStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	// Try cache via email→id mapping.
	id, err := s.rdb.Get(ctx, emailKey(email)).Result()
	if err == nil {
		return s.GetAccount(ctx, id)
	}

	acct, err := s.primary.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	// Cache both the record and the email→id mapping.
	s.cacheAccount(ctx, acct)
	s.rdb.Set(ctx, emailKey(email), acct.ID, s.ttl)
	return acct, nil
}

// --- Passthrough (not cached) ---

// ListAccounts always hits the primary: the leaderboard must see every
// account, and a partially populated cache cannot answer that.
func (s *CachedStore) ListAccounts(ctx context.Context) ([]model.Account, error) {
	return s.primary.ListAccounts(ctx)
}

// --- Cache helpers ---

func (s *CachedStore) cacheAccount(ctx context.Context, acct *model.Account) {
	if data, err := json.Marshal(acct); err == nil {
		s.rdb.Set(ctx, accountKey(acct.ID), data, s.ttl)
	}
}

func accountKey(id string) string  { return fmt.Sprintf("account:%s", id) }
func emailKey(email string) string { return fmt.Sprintf("account:email:%s", email) }
