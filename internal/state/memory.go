package state

import (
	"context"
	"sync"
	"time"
)

// lastTargetTTL keeps "send again" usable for a day after the last relay.
const lastTargetTTL = 24 * time.Hour

type entry struct {
	target    int64
	expiresAt time.Time
}

// Memory is the default Store: a mutex-guarded map with a TTL janitor.
// Suitable for a single-process deployment; use Redis when running more
// than one replica behind a webhook.
type Memory struct {
	mu      sync.Mutex
	pending map[int64]entry
	last    map[int64]entry
	ttl     time.Duration
	stop    chan struct{}
}

func NewMemory(pendingTTL time.Duration) *Memory {
	m := &Memory{
		pending: make(map[int64]entry),
		last:    make(map[int64]entry),
		ttl:     pendingTTL,
		stop:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

func (m *Memory) SetPending(_ context.Context, chatID, target int64) error {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[chatID] = entry{target: target, expiresAt: now.Add(m.ttl)}
	m.last[chatID] = entry{target: target, expiresAt: now.Add(lastTargetTTL)}
	return nil
}

func (m *Memory) Pending(_ context.Context, chatID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.pending[chatID]
	if !ok || time.Now().After(e.expiresAt) {
		return 0, false, nil
	}
	return e.target, true, nil
}

func (m *Memory) Clear(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, chatID)
	return nil
}

func (m *Memory) LastTarget(_ context.Context, chatID int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.last[chatID]
	if !ok || time.Now().After(e.expiresAt) {
		return 0, false, nil
	}
	return e.target, true, nil
}

// Close stops the janitor goroutine.
func (m *Memory) Close() error {
	close(m.stop)
	return nil
}

func (m *Memory) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.mu.Lock()
			for k, e := range m.pending {
				if now.After(e.expiresAt) {
					delete(m.pending, k)
				}
			}
			for k, e := range m.last {
				if now.After(e.expiresAt) {
					delete(m.last, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
