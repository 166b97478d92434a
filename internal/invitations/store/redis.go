// internal/invitations/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "ideamarket/internal/common/errors"
	"ideamarket/internal/common/logger"
	"ideamarket/internal/models"

	"github.com/redis/go-redis/v9"
)

const maxWatchRetries = 5

// RedisStore keeps each invitation as a JSON string and per-project and
// per-seller id lists. Updates use WATCH/MULTI on the invitation key and
// retry on contention.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	logger logger.Logger
}

// NewRedisStore builds a store on client. prefix namespaces every key.
func NewRedisStore(client redis.UniversalClient, prefix string, log logger.Logger) *RedisStore {
	if prefix == "" {
		prefix = "ideamarket"
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger.Component(log, "redis-store"),
	}
}

func (s *RedisStore) inviteKey(id string) string {
	return fmt.Sprintf("%s:invite:%s", s.prefix, id)
}

func (s *RedisStore) projectKey(projectID string) string {
	return fmt.Sprintf("%s:project:%s:invites", s.prefix, projectID)
}

func (s *RedisStore) sellerKey(sellerID string) string {
	return fmt.Sprintf("%s:seller:%s:invites", s.prefix, sellerID)
}

func (s *RedisStore) Prepend(ctx context.Context, inv *models.Invitation) error {
	data, err := json.Marshal(inv)
	if err != nil {
		return apperrors.NewStoreError("prepend", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.inviteKey(inv.ID), data, 0)
		pipe.LPush(ctx, s.projectKey(inv.ProjectID), inv.ID)
		pipe.LPush(ctx, s.sellerKey(inv.SellerID), inv.ID)
		return nil
	})
	if err != nil {
		return apperrors.NewStoreError("prepend", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	return s.load(ctx, s.client, id)
}

func (s *RedisStore) load(ctx context.Context, c redis.Cmdable, id string) (*models.Invitation, error) {
	data, err := c.Get(ctx, s.inviteKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, apperrors.NewStoreError("get", err)
	}

	var inv models.Invitation
	if err := json.Unmarshal(data, &inv); err != nil {
		return nil, apperrors.NewStoreError("decode", err)
	}
	return &inv, nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(*models.Invitation) error) (*models.Invitation, error) {
	key := s.inviteKey(id)
	var (
		updated *models.Invitation
		fnErr   error
	)

	txf := func(tx *redis.Tx) error {
		inv, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		if fnErr = fn(inv); fnErr != nil {
			return fnErr
		}
		data, err := json.Marshal(inv)
		if err != nil {
			return apperrors.NewStoreError("encode", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = inv
		return nil
	}

	for attempt := 1; attempt <= maxWatchRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if fnErr != nil {
			return nil, fnErr
		}
		if !errors.Is(err, redis.TxFailedErr) {
			if _, ok := apperrors.As(err); ok {
				return nil, err
			}
			return nil, apperrors.NewStoreError("update", err)
		}
		s.logger.Debug("Invite changed during update, retrying", map[string]interface{}{
			"inviteId": id,
			"attempt":  attempt,
		})
	}
	return nil, apperrors.NewStoreError("update", fmt.Errorf("invite %s: too much contention", id))
}

func (s *RedisStore) ListByProject(ctx context.Context, projectID string) ([]*models.Invitation, error) {
	return s.list(ctx, s.projectKey(projectID))
}

func (s *RedisStore) ListBySeller(ctx context.Context, sellerID string) ([]*models.Invitation, error) {
	return s.list(ctx, s.sellerKey(sellerID))
}

func (s *RedisStore) list(ctx context.Context, listKey string) ([]*models.Invitation, error) {
	ids, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, apperrors.NewStoreError("list", err)
	}
	out := make([]*models.Invitation, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.inviteKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, apperrors.NewStoreError("list", err)
	}

	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			s.logger.Warn("Dangling invite id in list", map[string]interface{}{"list": listKey, "inviteId": ids[i]})
			continue
		}
		var inv models.Invitation
		if err := json.Unmarshal([]byte(raw), &inv); err != nil {
			return nil, apperrors.NewStoreError("decode", err)
		}
		out = append(out, &inv)
	}
	return out, nil
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisStore) Close() error { return nil }
