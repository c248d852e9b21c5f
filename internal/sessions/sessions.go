// sessions задаёт контракт хранилища refresh-сессий.
//
// Хранилище — чистая keyed-абстракция с TTL-семантикой: жизненным циклом
// сессий (создание при выдаче токенов, удаление при logout/ротации)
// управляет сервисный слой. TTL записи всегда равен остатку жизни
// refresh-токена, поэтому осиротевших сессий, переживших свой токен,
// не бывает.
//
// Взаимозаменяемые реализации: postgres (персистентная, с janitor-очисткой)
// и redisstore (кэш с самоистечением ключей).
package sessions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
)

var (
	// ErrNotFound — сессия отсутствует или уже истекла.
	ErrNotFound = errors.New("session not found")
)

// Store — контракт хранилища refresh-сессий.
type Store interface {
	// Put сохраняет сессию по ключу {UserID, TokenKey} (upsert) с заданным TTL.
	Put(ctx context.Context, s models.Session, ttl time.Duration) error
	// Get возвращает сессию по ключу; ErrNotFound, если её нет или она истекла.
	Get(ctx context.Context, userID uuid.UUID, tokenKey string) (*models.Session, error)
	// Delete атомарно удаляет сессию; сообщает, существовала ли запись.
	// Ровно один из конкурентных Delete одного ключа получает true.
	Delete(ctx context.Context, userID uuid.UUID, tokenKey string) (bool, error)
	// ListByUser возвращает все живые сессии пользователя.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Session, error)
	// DeleteAllByUser удаляет все сессии пользователя и возвращает их число.
	DeleteAllByUser(ctx context.Context, userID uuid.UUID) (int64, error)
	// Close освобождает ресурсы бэкенда.
	Close()
}
