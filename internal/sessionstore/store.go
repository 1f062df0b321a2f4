// Package sessionstore persists conversation sessions keyed by an opaque id.
// Sessions are stored encoded, so a caller never shares a live *Session with
// another caller.
package sessionstore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"loan-assistant/internal/common/config"
	"loan-assistant/internal/common/database"
	"loan-assistant/internal/common/errors"
	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"
)

var ErrNotFound = stderrors.New("session not found")

type Store interface {
	Get(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Delete(ctx context.Context, id string) error
}

func notFound(id string) error {
	return errors.NewSessionNotFoundError(id).WithCause(ErrNotFound)
}

func encode(s *models.Session) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.NewSessionStoreFailedError("encode", err)
	}
	return data, nil
}

func decode(data []byte) (*models.Session, error) {
	var s models.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.NewSessionStoreFailedError("decode", err)
	}
	return &s, nil
}

// New builds the store selected by cfg.Session.Store.
func New(cfg *config.Config, log logger.Logger) (Store, error) {
	ttl := time.Duration(cfg.Session.TTL) * time.Second
	switch cfg.Session.Store {
	case "", "memory":
		return NewMemory(ttl), nil
	case "redis":
		rdb := database.NewRedis(cfg.Database.Redis)
		return NewRedis(rdb.Client, cfg.Database.Redis.KeyPrefix, ttl, log), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Session.Store)
	}
}
