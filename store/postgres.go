package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aligoek/gpdf2/models"
)

const notifyChannel = "translation_task_events"

// PostgresStore keeps one row per task record and pushes change
// notifications over LISTEN/NOTIFY. The remote processing service is
// expected to NOTIFY the same channel after its own writes.
type PostgresStore struct {
	pool      *pgxpool.Pool
	namespace string
}

func ConnectPostgres(ctx context.Context, databaseURL, namespace string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool, namespace: namespace}, nil
}

func (s *PostgresStore) notifyPayload(ownerID, taskID string) string {
	return fmt.Sprintf("%s/%s/%s", s.namespace, ownerID, taskID)
}

func (s *PostgresStore) Create(ctx context.Context, rec *models.TaskRecord) error {
	segments, err := json.Marshal(rec.ResultSegments)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	query := `
		INSERT INTO translation_tasks
			(namespace, owner_id, task_id, file_name, target_language, status, progress, result_segments, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (namespace, owner_id, task_id) DO NOTHING
	`

	result, err := s.pool.Exec(ctx, query,
		s.namespace,
		rec.OwnerID,
		rec.TaskID,
		rec.FileName,
		rec.TargetLanguage,
		rec.Status,
		rec.Progress,
		segments,
		rec.ErrorMessage,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordExists
	}

	return s.notify(ctx, rec.OwnerID, rec.TaskID)
}

func (s *PostgresStore) Get(ctx context.Context, ownerID, taskID string) (*models.TaskRecord, error) {
	query := `
		SELECT task_id, owner_id, file_name, target_language, status, progress, result_segments, error_message, created_at
		FROM translation_tasks
		WHERE namespace = $1 AND owner_id = $2 AND task_id = $3
	`

	row := s.pool.QueryRow(ctx, query, s.namespace, ownerID, taskID)

	var rec models.TaskRecord
	var segments []byte
	err := row.Scan(
		&rec.TaskID,
		&rec.OwnerID,
		&rec.FileName,
		&rec.TargetLanguage,
		&rec.Status,
		&rec.Progress,
		&segments,
		&rec.ErrorMessage,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	if len(segments) > 0 {
		if err := json.Unmarshal(segments, &rec.ResultSegments); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, ownerID, taskID, errorMessage string) error {
	query := `
		UPDATE translation_tasks
		SET status = $1, error_message = $2
		WHERE namespace = $3 AND owner_id = $4 AND task_id = $5
	`

	result, err := s.pool.Exec(ctx, query, models.StatusFailed, errorMessage, s.namespace, ownerID, taskID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return s.notify(ctx, ownerID, taskID)
}

func (s *PostgresStore) notify(ctx context.Context, ownerID, taskID string) error {
	if _, err := s.pool.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, s.notifyPayload(ownerID, taskID)); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func (s *PostgresStore) Watch(ctx context.Context, ownerID, taskID string) (<-chan Snapshot, CancelFunc, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, nil, err
	}

	watchCtx, stop := context.WithCancel(ctx)
	out := make(chan Snapshot, 8)

	go func() {
		defer close(out)
		defer conn.Release()

		emit := func(snap Snapshot) bool {
			select {
			case out <- snap:
				return true
			case <-watchCtx.Done():
				return false
			}
		}

		read := func() bool {
			rec, err := s.Get(watchCtx, ownerID, taskID)
			switch {
			case err == ErrRecordNotFound:
				return emit(Snapshot{Absent: true})
			case err != nil:
				emit(Snapshot{Err: err})
				return false
			default:
				return emit(Snapshot{Record: rec})
			}
		}

		if !read() {
			return
		}

		want := s.notifyPayload(ownerID, taskID)
		for {
			notification, err := conn.Conn().WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					emit(Snapshot{Err: err})
				}
				return
			}
			if notification.Payload != want {
				continue
			}
			if !read() {
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(stop)
	}
	return out, cancel, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
