// storage задаёт контракт репозитория пользователей.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists — нарушение уникальности (email/external_id).
	ErrAlreadyExists = errors.New("already exists")
)

// Storage выполняет операции над пользователями.
type Storage interface {
	// SaveUser создаёт нового пользователя.
	SaveUser(ctx context.Context, user *models.User) error
	// UserByEmail находит пользователя по email.
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UserByExternalID находит пользователя по id во внешнем провайдере.
	UserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	// UpdateUser обновляет изменяемые атрибуты пользователя.
	UpdateUser(ctx context.Context, user *models.User) error
	// Close освобождает ресурсы хранилища.
	Close()
}
