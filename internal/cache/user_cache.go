package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/account-service/internal/domain"
)

const userKeyPrefix = "account:user:"

// UserCache stores public user views keyed by id. Misses and failures are never fatal.
type UserCache interface {
	Get(ctx context.Context, id int64) (*domain.User, bool)
	// Set stores user unless the key holds an entry with a later UpdatedAt.
	Set(ctx context.Context, user *domain.User)
	// Invalidate replaces the entry with a tombstone carrying user.UpdatedAt,
	// so reads that loaded an older row cannot repopulate it.
	Invalidate(ctx context.Context, user *domain.User)
}

// userView is the cached projection; it never carries the password hash.
type userView struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	Username    string    `json:"username"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	IsSuperuser bool      `json:"is_superuser"`
	Roles       []string  `json:"roles"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// entry is what a key holds: either a view or a tombstone.
type entry struct {
	Tombstone bool      `json:"tombstone,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	User      *userView `json:"user,omitempty"`
}

type redisUserCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisUserCache returns a JSON view cache on client. A nil client yields a no-op cache.
func NewRedisUserCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) UserCache {
	if client == nil {
		return Nop()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisUserCache{client: client, ttl: ttl, logger: logger}
}

func key(id int64) string {
	return userKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *redisUserCache) Get(ctx context.Context, id int64) (*domain.User, bool) {
	data, err := c.client.Get(ctx, key(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("user cache read failed", zap.Int64("user_id", id), zap.Error(err))
		}
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.logger.Warn("user cache decode failed", zap.Int64("user_id", id), zap.Error(err))
		return nil, false
	}
	if e.Tombstone || e.User == nil {
		return nil, false
	}
	v := e.User
	return &domain.User{
		ID:          v.ID,
		Email:       v.Email,
		Username:    v.Username,
		FirstName:   v.FirstName,
		LastName:    v.LastName,
		IsSuperuser: v.IsSuperuser,
		Roles:       v.Roles,
		CreatedAt:   v.CreatedAt,
		UpdatedAt:   v.UpdatedAt,
	}, true
}

func (c *redisUserCache) Set(ctx context.Context, user *domain.User) {
	data, err := json.Marshal(entry{UpdatedAt: user.UpdatedAt, User: toView(user)})
	if err != nil {
		c.logger.Warn("user cache encode failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}

	k := key(user.ID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.Get(ctx, k).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if !acceptWrite(existing, user.UpdatedAt) {
			c.logger.Debug("user cache skipped stale view", zap.Int64("user_id", user.ID))
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, data, c.ttl)
			return nil
		})
		return err
	}, k)
	switch {
	case err == nil:
	case errors.Is(err, redis.TxFailedErr):
		// the key changed under us; the concurrent writer wins
		c.logger.Debug("user cache write raced", zap.Int64("user_id", user.ID))
	default:
		c.logger.Warn("user cache write failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

func (c *redisUserCache) Invalidate(ctx context.Context, user *domain.User) {
	data, err := json.Marshal(entry{Tombstone: true, UpdatedAt: user.UpdatedAt})
	if err != nil {
		c.logger.Warn("user cache encode failed", zap.Int64("user_id", user.ID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key(user.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("user cache invalidate failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}
}

// acceptWrite reports whether a view at updatedAt may replace existing.
// Undecodable or empty values are always replaced.
func acceptWrite(existing []byte, updatedAt time.Time) bool {
	if len(existing) == 0 {
		return true
	}
	var e entry
	if err := json.Unmarshal(existing, &e); err != nil {
		return true
	}
	return !updatedAt.Before(e.UpdatedAt)
}

func toView(user *domain.User) *userView {
	return &userView{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		IsSuperuser: user.IsSuperuser,
		Roles:       user.Roles,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

type nopCache struct{}

// Nop returns a cache that stores nothing.
func Nop() UserCache { return nopCache{} }

func (nopCache) Get(context.Context, int64) (*domain.User, bool) { return nil, false }
func (nopCache) Set(context.Context, *domain.User)               {}
func (nopCache) Invalidate(context.Context, *domain.User)        {}
