// token реализует выпуск и проверку типизированных JWT (HS256).
//
// Токены двух типов: access (короткоживущий) и refresh (долгоживущий).
// Проверка stateless: подпись + срок действия + issuer/audience. Отзыв
// refresh-токенов здесь не проверяется — это обязанность сервисного слоя
// через хранилище сессий.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/config"
)

// Kind — тип токена, вшивается в claim "type".
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

var (
	// ErrInvalidToken — токен некорректен: битый формат, неверная подпись,
	// чужой issuer/audience или истёкший срок действия.
	ErrInvalidToken = errors.New("invalid token")
)

type claims struct {
	Kind string `json:"type"`
	jwt.RegisteredClaims
}

// Claims — проверенное содержимое токена.
type Claims struct {
	UserID    uuid.UUID
	Kind      Kind
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager выпускает и проверяет токены с параметрами из конфигурации.
// Экземпляр безопасен для конкурентного использования.
type Manager struct {
	cfg config.AuthConfig
}

// NewManager создаёт Manager.
func NewManager(cfg config.AuthConfig) *Manager {
	return &Manager{cfg: cfg}
}

// TTL возвращает срок жизни токена данного типа.
func (m *Manager) TTL(kind Kind) time.Duration {
	if kind == KindRefresh {
		return m.cfg.RefreshTokenTTL
	}

	return m.cfg.AccessTokenTTL
}

// Issue выпускает подписанный токен типа kind для пользователя userID.
// Срок действия считается от now по TTL, зависящему от типа.
func (m *Manager) Issue(userID uuid.UUID, kind Kind, now time.Time) (string, error) {
	const op = "token.Issue"

	c := claims{
		Kind: string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.TTL(kind))),
			Issuer:    m.cfg.Issuer,
			Audience:  jwt.ClaimStrings(m.cfg.Audience),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(m.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Decode проверяет подпись, срок действия, issuer и audience токена.
// Любой дефект (включая истечение срока) отображается в ErrInvalidToken:
// для вызывающего все эти случаи равнозначны — токеном пользоваться нельзя.
func (m *Manager) Decode(tokenStr string) (*Claims, error) {
	const op = "token.Decode"

	parsed, err := jwt.ParseWithClaims(tokenStr, &claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
			}

			return []byte(m.cfg.JWTSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(5*time.Second),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithAudience(m.cfg.Audience...),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	uid, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	kind := Kind(c.Kind)
	if kind != KindAccess && kind != KindRefresh {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	out := &Claims{
		UserID: uid,
		Kind:   kind,
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}

	return out, nil
}
