package store

import (
	"context"
	"sync"

	"github.com/aligoek/gpdf2/models"
)

// MemoryStore is an in-process Store for development and tests. Apply and
// Remove stand in for the remote processing service's writes.
type MemoryStore struct {
	mu       sync.Mutex
	records  map[string]*models.TaskRecord
	watchers map[string]map[int]chan Snapshot
	nextID   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*models.TaskRecord),
		watchers: make(map[string]map[int]chan Snapshot),
	}
}

func (s *MemoryStore) key(ownerID, taskID string) string {
	return ownerID + "/" + taskID
}

func clone(rec *models.TaskRecord) *models.TaskRecord {
	c := *rec
	c.ResultSegments = append([]string(nil), rec.ResultSegments...)
	return &c
}

func (s *MemoryStore) Create(ctx context.Context, rec *models.TaskRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(rec.OwnerID, rec.TaskID)
	if _, ok := s.records[key]; ok {
		return ErrRecordExists
	}
	s.records[key] = clone(rec)
	s.broadcastLocked(key, Snapshot{Record: clone(rec)})
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, ownerID, taskID string) (*models.TaskRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[s.key(ownerID, taskID)]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return clone(rec), nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, ownerID, taskID, errorMessage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(ownerID, taskID)
	rec, ok := s.records[key]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Status = models.StatusFailed
	rec.ErrorMessage = errorMessage
	s.broadcastLocked(key, Snapshot{Record: clone(rec)})
	return nil
}

// Apply overwrites a record the way the remote service would and notifies
// watchers.
func (s *MemoryStore) Apply(rec *models.TaskRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(rec.OwnerID, rec.TaskID)
	s.records[key] = clone(rec)
	s.broadcastLocked(key, Snapshot{Record: clone(rec)})
}

// Remove deletes a record and notifies watchers with an absent snapshot.
func (s *MemoryStore) Remove(ownerID, taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.key(ownerID, taskID)
	delete(s.records, key)
	s.broadcastLocked(key, Snapshot{Absent: true})
}

// Fail injects a subscription-level error into all watchers of a record.
func (s *MemoryStore) Fail(ownerID, taskID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcastLocked(s.key(ownerID, taskID), Snapshot{Err: err})
}

func (s *MemoryStore) broadcastLocked(key string, snap Snapshot) {
	for _, ch := range s.watchers[key] {
		select {
		case ch <- snap:
		default:
		}
	}
}

func (s *MemoryStore) Watch(ctx context.Context, ownerID, taskID string) (<-chan Snapshot, CancelFunc, error) {
	s.mu.Lock()

	key := s.key(ownerID, taskID)
	ch := make(chan Snapshot, 16)
	id := s.nextID
	s.nextID++
	if s.watchers[key] == nil {
		s.watchers[key] = make(map[int]chan Snapshot)
	}
	s.watchers[key][id] = ch

	if rec, ok := s.records[key]; ok {
		ch <- Snapshot{Record: clone(rec)}
	} else {
		ch <- Snapshot{Absent: true}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers[key], id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel, nil
}

// WatcherCount reports how many watches are open on a record.
func (s *MemoryStore) WatcherCount(ownerID, taskID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[s.key(ownerID, taskID)])
}

func (s *MemoryStore) Close() error {
	return nil
}
