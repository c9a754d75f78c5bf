package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aligoek/gpdf2/models"
)

// absentPayload is published on a record channel when the document is
// removed, so watchers see an explicit "document absent" event instead of
// silence.
const absentPayload = "__absent__"

type RedisStore struct {
	client    *redis.Client
	namespace string
}

func ConnectRedis(addr, namespace string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client, namespace: namespace}, nil
}

// NewRedisStore wraps an existing client; used by tests.
func NewRedisStore(client *redis.Client, namespace string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace}
}

func (s *RedisStore) key(ownerID, taskID string) string {
	return fmt.Sprintf("%s:users:%s:translations:%s", s.namespace, ownerID, taskID)
}

func (s *RedisStore) channel(ownerID, taskID string) string {
	return s.key(ownerID, taskID) + ":events"
}

func (s *RedisStore) Create(ctx context.Context, rec *models.TaskRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.OwnerID, rec.TaskID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if !ok {
		return ErrRecordExists
	}

	return s.publish(ctx, rec.OwnerID, rec.TaskID, data)
}

func (s *RedisStore) Get(ctx context.Context, ownerID, taskID string) (*models.TaskRecord, error) {
	data, err := s.client.Get(ctx, s.key(ownerID, taskID)).Result()
	if err == redis.Nil {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec models.TaskRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) MarkFailed(ctx context.Context, ownerID, taskID, errorMessage string) error {
	rec, err := s.Get(ctx, ownerID, taskID)
	if err != nil {
		return err
	}

	rec.Status = models.StatusFailed
	rec.ErrorMessage = errorMessage

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	if err := s.client.Set(ctx, s.key(ownerID, taskID), data, 0).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}

	return s.publish(ctx, ownerID, taskID, data)
}

func (s *RedisStore) publish(ctx context.Context, ownerID, taskID string, data []byte) error {
	if err := s.client.Publish(ctx, s.channel(ownerID, taskID), data).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreWrite, err)
	}
	return nil
}

func (s *RedisStore) Watch(ctx context.Context, ownerID, taskID string) (<-chan Snapshot, CancelFunc, error) {
	pubsub := s.client.Subscribe(ctx, s.channel(ownerID, taskID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Snapshot, 8)
	done := make(chan struct{})

	go func() {
		defer close(out)

		emit := func(snap Snapshot) bool {
			select {
			case out <- snap:
				return true
			case <-done:
				return false
			case <-ctx.Done():
				return false
			}
		}

		rec, err := s.Get(ctx, ownerID, taskID)
		switch {
		case err == ErrRecordNotFound:
			if !emit(Snapshot{Absent: true}) {
				return
			}
		case err != nil:
			emit(Snapshot{Err: err})
			return
		default:
			if !emit(Snapshot{Record: rec}) {
				return
			}
		}

		for msg := range pubsub.Channel() {
			if msg.Payload == absentPayload {
				if !emit(Snapshot{Absent: true}) {
					return
				}
				continue
			}

			var rec models.TaskRecord
			if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
				emit(Snapshot{Err: err})
				return
			}
			if !emit(Snapshot{Record: &rec}) {
				return
			}
		}

		// Pubsub channel closed underneath us: the connection to the store
		// was lost or the subscription was torn down.
		select {
		case <-done:
		case <-ctx.Done():
		default:
			emit(Snapshot{Err: fmt.Errorf("subscription closed unexpectedly")})
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}
	return out, cancel, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
