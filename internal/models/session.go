package models

import (
	"time"

	"github.com/google/uuid"
)

// Session — серверная запись о выданном refresh-токене.
//
// Именно наличие сессии делает refresh-токен действительным: отзыв
// моделируется удалением записи, а не инвалидацией подписи токена.
// TokenKey — ключ-индекс, производный от refresh-токена
// (base64url(sha256(token))), коллизионно-стойкий даже для токенов,
// выданных одному пользователю подряд.
type Session struct {
	UserID    uuid.UUID
	TokenKey  string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}
