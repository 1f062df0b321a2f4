package sessionstore

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/redis/go-redis/v9"

	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
)

// Redis shares sessions between server replicas. Every Save refreshes the TTL.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

func NewRedis(client *redis.Client, prefix string, ttl time.Duration, log logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Redis{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		logger: logger.Component(log, "sessionstore.redis"),
	}
}

func (r *Redis) key(id string) string { return r.prefix + id }

func (r *Redis) Get(ctx context.Context, id string) (*models.Session, error) {
	data, err := r.client.Get(ctx, r.key(id)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, notFound(id)
	}
	if err != nil {
		r.logger.Error("session get failed", map[string]interface{}{"sessionId": id, "error": err.Error()})
		return nil, errors.NewSessionStoreFailedError("get", err)
	}
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, s *models.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(s.ID), data, r.ttl).Err(); err != nil {
		r.logger.Error("session save failed", map[string]interface{}{"sessionId": s.ID, "error": err.Error()})
		return errors.NewSessionStoreFailedError("save", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return errors.NewSessionStoreFailedError("delete", err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
