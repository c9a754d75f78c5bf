// Package subscription owns the realtime watch on a task record. A Manager
// holds at most one live subscription; opening a new one tears the previous
// one down first, so a superseding submit can never leak a listener or
// deliver events for a stale task.
package subscription

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/aligoek/gpdf2/store"
)

// NotifyFunc receives every snapshot delivered for the watched record.
type NotifyFunc func(snap store.Snapshot)

type Manager struct {
	store  store.Store
	logger *zap.Logger

	mu     sync.Mutex
	taskID string
	cancel store.CancelFunc
	gen    int
}

func NewManager(st store.Store, logger *zap.Logger) *Manager {
	return &Manager{store: st, logger: logger}
}

// Subscribe opens a watch on (ownerID, taskID) and forwards snapshots to fn.
// Any previous subscription is cancelled first. Delivery stops permanently
// once Cancel is called or a newer subscription supersedes this one.
func (m *Manager) Subscribe(ctx context.Context, ownerID, taskID string, fn NotifyFunc) error {
	m.mu.Lock()
	if m.cancel != nil {
		m.logger.Info("Superseding active subscription",
			zap.String("task_id", m.taskID),
			zap.String("new_task_id", taskID),
		)
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	snaps, cancel, err := m.store.Watch(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	// A competing Subscribe or Cancel won the race while the watch was
	// being opened.
	if m.gen != gen {
		m.mu.Unlock()
		cancel()
		return nil
	}
	m.taskID = taskID
	m.cancel = cancel
	m.mu.Unlock()

	go func() {
		for snap := range snaps {
			m.mu.Lock()
			live := m.gen == gen
			m.mu.Unlock()
			if !live {
				return
			}
			fn(snap)
		}
	}()

	return nil
}

// Cancel tears down the active subscription, if any. Safe to call repeatedly.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.logger.Info("Subscription cancelled", zap.String("task_id", m.taskID))
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.taskID = ""
}

// Active reports whether a subscription is currently open.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// TaskID returns the identifier of the currently watched task, if any.
func (m *Manager) TaskID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskID
}
