package models

import (
	"time"

	"github.com/google/uuid"
)

// Role — роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User — модель пользователя.
//
// PasswordHash может быть пустым: пользователи, созданные через внешнего
// провайдера (OAuth), пароля не имеют и входят только по внешнему id.
// ExternalID — идентификатор во внешнем провайдере (например, GitHub id);
// пустая строка означает, что внешняя учётка не привязана.
type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	ExternalID   string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
