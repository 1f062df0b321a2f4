package sessionstore

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"loan-assistant/internal/models"
)

// Memory keeps sessions in process with a sliding TTL.
type Memory struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Memory{
		cache: cache.New(ttl, ttl/2),
		ttl:   ttl,
	}
}

func (m *Memory) Get(_ context.Context, id string) (*models.Session, error) {
	v, ok := m.cache.Get(id)
	if !ok {
		return nil, notFound(id)
	}
	return decode(v.([]byte))
}

func (m *Memory) Save(_ context.Context, s *models.Session) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	m.cache.Set(s.ID, data, m.ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

// Len counts stored sessions, including expired ones not yet evicted.
func (m *Memory) Len() int {
	return m.cache.ItemCount()
}
