// postgres — персистентная реализация хранилища refresh-сессий.
//
// Истечение обеспечивается фильтром expires_at > now() на чтении и
// периодической очисткой DeleteExpired (janitor в cmd). Уникальность
// ключа {user_id, token_key} гарантирует БД.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/sessions"
)

// Store — postgres-бэкенд sessions.Store.
type Store struct {
	db *pgxpool.Pool
}

var _ sessions.Store = (*Store)(nil)

// New создаёт пул соединений с fail-fast проверкой.
func New(ctx context.Context, dbURL string) (*Store, error) {
	const op = "sessions.postgres.New"

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	db, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Store{db: db}, nil
}

// NewWithPool оборачивает готовый пул (для шаринга пула с репозиторием пользователей).
func NewWithPool(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Put сохраняет сессию (upsert по {user_id, token_key}).
// TTL здесь не хранится отдельно: момент истечения задаёт expires_at.
func (s *Store) Put(ctx context.Context, sess models.Session, ttl time.Duration) error {
	const op = "sessions.postgres.Put"

	if ttl <= 0 {
		return fmt.Errorf("%s: non-positive ttl", op)
	}

	query := `
		INSERT INTO sessions(user_id, token_key, user_agent, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, token_key) DO UPDATE
		SET user_agent = EXCLUDED.user_agent,
		    created_at = EXCLUDED.created_at,
		    expires_at = EXCLUDED.expires_at
	`

	_, err := s.db.Exec(ctx, query,
		sess.UserID,
		sess.TokenKey,
		sess.UserAgent,
		sess.CreatedAt,
		sess.ExpiresAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return fmt.Errorf("%s: unknown user: %w", op, err)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Get возвращает живую сессию по ключу.
func (s *Store) Get(ctx context.Context, userID uuid.UUID, tokenKey string) (*models.Session, error) {
	const op = "sessions.postgres.Get"

	query := `
		SELECT user_id, token_key, user_agent, created_at, expires_at
		FROM sessions
		WHERE user_id = $1 AND token_key = $2 AND expires_at > now()
	`

	var sess models.Session
	err := s.db.QueryRow(ctx, query, userID, tokenKey).Scan(
		&sess.UserID,
		&sess.TokenKey,
		&sess.UserAgent,
		&sess.CreatedAt,
		&sess.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, sessions.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sess, nil
}

// Delete удаляет сессию; DELETE атомарен на уровне строки, поэтому при
// конкурентной ротации одного токена true получает ровно один вызов.
func (s *Store) Delete(ctx context.Context, userID uuid.UUID, tokenKey string) (bool, error) {
	const op = "sessions.postgres.Delete"

	query := `
		DELETE FROM sessions
		WHERE user_id = $1 AND token_key = $2
	`

	tag, err := s.db.Exec(ctx, query, userID, tokenKey)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected() > 0, nil
}

// ListByUser возвращает живые сессии пользователя, свежие первыми.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	const op = "sessions.postgres.ListByUser"

	query := `
		SELECT user_id, token_key, user_agent, created_at, expires_at
		FROM sessions
		WHERE user_id = $1 AND expires_at > now()
		ORDER BY created_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(
			&sess.UserID,
			&sess.TokenKey,
			&sess.UserAgent,
			&sess.CreatedAt,
			&sess.ExpiresAt,
		); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// DeleteAllByUser удаляет все сессии пользователя и возвращает их число.
func (s *Store) DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "sessions.postgres.DeleteAllByUser"

	query := `
		DELETE FROM sessions
		WHERE user_id = $1
	`

	tag, err := s.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

// DeleteExpired удаляет просроченные сессии (вызывается janitor-задачей).
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) error {
	const op = "sessions.postgres.DeleteExpired"

	query := `
		DELETE FROM sessions
		WHERE expires_at <= $1
	`

	if _, err := s.db.Exec(ctx, query, now); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Close закрывает пул соединений.
func (s *Store) Close() {
	s.db.Close()
}
