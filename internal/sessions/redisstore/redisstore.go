// redisstore — кэш-реализация хранилища refresh-сессий поверх Redis.
//
// Ключи вида "session:{user_id}:{token_key}", значения — JSON. Истечение
// обеспечивается TTL ключа, отдельной очистки не требуется. Перечисление
// сессий пользователя и массовое удаление реализованы через SCAN по
// префиксу "session:{user_id}:" — полноценно, но линейно по размеру
// keyspace; при большом числе ключей предпочтительнее postgres-бэкенд.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/sessions"
)

const defaultPrefix = "session:"

type entry struct {
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Store — Redis-бэкенд sessions.Store.
type Store struct {
	rdb    *redis.Client
	prefix string
}

var _ sessions.Store = (*Store)(nil)

// New создаёт клиент Redis из URL (например, redis://:pass@host:6379/0)
// c fail-fast проверкой соединения.
func New(ctx context.Context, redisURL string) (*Store, error) {
	const op = "sessions.redisstore.New"

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{rdb: rdb, prefix: defaultPrefix}, nil
}

// NewWithClient оборачивает готовый клиент (для тестов).
func NewWithClient(rdb *redis.Client) *Store {
	return &Store{rdb: rdb, prefix: defaultPrefix}
}

func (s *Store) key(userID uuid.UUID, tokenKey string) string {
	return s.prefix + userID.String() + ":" + tokenKey
}

func (s *Store) userPattern(userID uuid.UUID) string {
	return s.prefix + userID.String() + ":*"
}

// Put сохраняет сессию с TTL ключа, равным остатку жизни refresh-токена.
func (s *Store) Put(ctx context.Context, sess models.Session, ttl time.Duration) error {
	const op = "sessions.redisstore.Put"

	if ttl <= 0 {
		return fmt.Errorf("%s: non-positive ttl", op)
	}

	raw, err := json.Marshal(entry{
		UserAgent: sess.UserAgent,
		CreatedAt: sess.CreatedAt.UTC(),
		ExpiresAt: sess.ExpiresAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.rdb.Set(ctx, s.key(sess.UserID, sess.TokenKey), raw, ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Get возвращает сессию; отсутствующий или самоистёкший ключ — ErrNotFound.
func (s *Store) Get(ctx context.Context, userID uuid.UUID, tokenKey string) (*models.Session, error) {
	const op = "sessions.redisstore.Get"

	raw, err := s.rdb.Get(ctx, s.key(userID, tokenKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, sessions.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.Session{
		UserID:    userID,
		TokenKey:  tokenKey,
		UserAgent: e.UserAgent,
		CreatedAt: e.CreatedAt,
		ExpiresAt: e.ExpiresAt,
	}, nil
}

// Delete удаляет сессию. DEL атомарен, поэтому при конкурентной ротации
// одного токена true получает ровно один вызов.
func (s *Store) Delete(ctx context.Context, userID uuid.UUID, tokenKey string) (bool, error) {
	const op = "sessions.redisstore.Delete"

	n, err := s.rdb.Del(ctx, s.key(userID, tokenKey)).Result()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return n > 0, nil
}

// ListByUser перечисляет живые сессии пользователя по SCAN-префиксу.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	const op = "sessions.redisstore.ListByUser"

	keys, err := s.scanUserKeys(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.Session, 0, len(keys))
	for _, k := range keys {
		raw, err := s.rdb.Get(ctx, k).Bytes()
		if err != nil {
			// Ключ мог истечь между SCAN и GET.
			if errors.Is(err, redis.Nil) {
				continue
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}

		var e entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, models.Session{
			UserID:    userID,
			TokenKey:  k[len(s.prefix+userID.String()+":"):],
			UserAgent: e.UserAgent,
			CreatedAt: e.CreatedAt,
			ExpiresAt: e.ExpiresAt,
		})
	}

	return out, nil
}

// DeleteAllByUser удаляет все сессии пользователя и возвращает их число.
func (s *Store) DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "sessions.redisstore.DeleteAllByUser"

	keys, err := s.scanUserKeys(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if len(keys) == 0 {
		return 0, nil
	}

	n, err := s.rdb.Del(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// Close закрывает клиент Redis.
func (s *Store) Close() {
	_ = s.rdb.Close()
}

func (s *Store) scanUserKeys(ctx context.Context, userID uuid.UUID) ([]string, error) {
	var keys []string

	iter := s.rdb.Scan(ctx, 0, s.userPattern(userID), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}
