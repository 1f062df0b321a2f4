package conversation

import (
	"context"
	"sync"

	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/common/metrics"
	"loan-assistant/internal/models"
	"loan-assistant/internal/sessionstore"
)

// keyedMutex serializes work per key. Entries are dropped once no caller
// holds or waits on them.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[string]*lockEntry)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Manager addresses sessions by id on top of a Store. Turns of one session
// run strictly one after another; different sessions never contend.
type Manager struct {
	controller *Controller
	store      sessionstore.Store
	locks      *keyedMutex
	logger     logger.Logger
}

func NewManager(controller *Controller, store sessionstore.Store, log logger.Logger) *Manager {
	return &Manager{
		controller: controller,
		store:      store,
		locks:      newKeyedMutex(),
		logger:     logger.Component(log, "session-manager"),
	}
}

func (m *Manager) Controller() *Controller { return m.controller }

// Start creates and persists a new greeted session.
func (m *Manager) Start(ctx context.Context) (models.Snapshot, error) {
	s := m.controller.Start(ctx)
	if err := m.store.Save(ctx, s); err != nil {
		return models.Snapshot{}, err
	}
	m.updateGauge()
	return m.controller.Snapshot(s), nil
}

// Send runs one turn for id under that session's lock.
func (m *Manager) Send(ctx context.Context, id, text string) (*TurnResult, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	res, err := m.controller.HandleTurn(ctx, s, text)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, s); err != nil {
		return nil, err
	}
	return res, nil
}

func (m *Manager) Reset(ctx context.Context, id string) (models.Snapshot, error) {
	unlock := m.locks.Lock(id)
	defer unlock()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	m.controller.Reset(s)
	if err := m.store.Save(ctx, s); err != nil {
		return models.Snapshot{}, err
	}
	return m.controller.Snapshot(s), nil
}

func (m *Manager) Get(ctx context.Context, id string) (models.Snapshot, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return models.Snapshot{}, err
	}
	return m.controller.Snapshot(s), nil
}

func (m *Manager) Metrics(ctx context.Context, id string) (models.SessionMetrics, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return models.SessionMetrics{}, err
	}
	return m.controller.Metrics(s), nil
}

// End discards the session.
func (m *Manager) End(ctx context.Context, id string) error {
	unlock := m.locks.Lock(id)
	defer unlock()

	if err := m.store.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Info("session ended", map[string]interface{}{"sessionId": id})
	m.updateGauge()
	return nil
}

// updateGauge tracks stores that can count their sessions.
func (m *Manager) updateGauge() {
	if c, ok := m.store.(interface{ Len() int }); ok {
		metrics.ActiveSessions.Set(float64(c.Len()))
	}
}
