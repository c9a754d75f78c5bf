package store

import (
	"context"
	"errors"

	"github.com/aligoek/gpdf2/models"
)

var (
	ErrRecordNotFound = errors.New("task record not found")
	ErrRecordExists   = errors.New("task record already exists")
	ErrStoreWrite     = errors.New("store write failed")
)

// Snapshot is a point-in-time view of a task record delivered by a watch.
// Exactly one of Record, Absent or Err is meaningful: a present document, an
// explicit "document absent" event, or a subscription-level failure.
type Snapshot struct {
	Record *models.TaskRecord
	Absent bool
	Err    error
}

type CancelFunc func()

// Store is the shared document store capability. Records are addressed by
// the composite key (namespace, ownerID, taskID); the namespace is fixed per
// Store instance. The client is the sole writer of creation-time fields; the
// remote processing service owns status, progress and the result fields.
type Store interface {
	// Create writes a new record. It fails with ErrRecordExists if the key
	// is already taken.
	Create(ctx context.Context, rec *models.TaskRecord) error

	// Get reads one record, returning ErrRecordNotFound when absent.
	Get(ctx context.Context, ownerID, taskID string) (*models.TaskRecord, error)

	// MarkFailed is the best-effort cleanup write used when triggering the
	// remote service fails after the record was created.
	MarkFailed(ctx context.Context, ownerID, taskID, errorMessage string) error

	// Watch delivers push snapshots for one record, starting with its
	// current state. The channel is closed after cancel is invoked.
	Watch(ctx context.Context, ownerID, taskID string) (<-chan Snapshot, CancelFunc, error)

	Close() error
}
