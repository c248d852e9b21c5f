// service содержит бизнес-логику auth-сервиса: регистрацию и аутентификацию
// пользователей, выпуск/обновление/отзыв пар токенов, привязку внешних
// учёток и управление refresh-сессиями через интерфейсы storage и sessions.
//
// Основные аспекты:
//   - Пакет не хранит состояние запроса внутри Service; экземпляр Service
//     безопасен для конкурентного использования из разных горутин при
//     условии, что переданные хранилища потокобезопасны.
//   - Все сессионные потоки (register/login/refresh/external) сходятся в
//     issueSession — единственной точке, создающей сессию и пару токенов.
//   - Ошибки возвращаются и далее маппятся транспортом на HTTP-статусы
//     (см. комментарии к переменным ошибок ниже). Ошибки хранилищ, не
//     являющиеся сентинелами, пробрасываются как есть: транспорт обязан
//     отличать «не залогинен» от «хранилище недоступно».
package service

import (
	"errors"

	"github.com/pribylovaa/go-auth-service/internal/config"
	"github.com/pribylovaa/go-auth-service/internal/password"
	"github.com/pribylovaa/go-auth-service/internal/sessions"
	"github.com/pribylovaa/go-auth-service/internal/storage"
	"github.com/pribylovaa/go-auth-service/internal/token"
)

var (
	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Случаи намеренно неразличимы (анти-enumeration). Транспорт: HTTP 401.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidToken — токен некорректен по формату/подписи/сроку или имеет
	// не тот тип (access вместо refresh и наоборот). Транспорт: HTTP 401.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenRevoked — refresh-токен формально валиден, но его сессия
	// отсутствует: отозвана logout'ом, заменена ротацией или истекла.
	// Транспорт: HTTP 401.
	ErrTokenRevoked = errors.New("token revoked")

	// ErrEmailTaken — e-mail уже занят другим пользователем. Транспорт: HTTP 409.
	ErrEmailTaken = errors.New("email already taken")

	// ErrInvalidEmail — e-mail имеет некорректный формат. Транспорт: HTTP 400.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrWeakPassword — пароль не удовлетворяет политикам сложности. Транспорт: HTTP 400.
	ErrWeakPassword = errors.New("password is too weak")

	// ErrEmptyPassword — пароль пустой. Транспорт: HTTP 400.
	ErrEmptyPassword = errors.New("password is empty")
)

// Service описывает бизнес-логику auth-сервиса.
type Service struct {
	users    storage.Storage
	sessions sessions.Store
	hasher   *password.Hasher
	tokens   *token.Manager
	cfg      config.AuthConfig

	// dummyHash — хэш заведомо неизвестного пароля; проверка против него
	// выравнивает время ответа LoginUser для отсутствующего пользователя.
	dummyHash string
}

// New создаёт новый экземпляр Service.
func New(users storage.Storage, sessionStore sessions.Store, hasher *password.Hasher, tokens *token.Manager, cfg config.AuthConfig) (*Service, error) {
	dummy, err := hasher.Hash("dummy-timing-equalizer")
	if err != nil {
		return nil, err
	}

	return &Service{
		users:     users,
		sessions:  sessionStore,
		hasher:    hasher,
		tokens:    tokens,
		cfg:       cfg,
		dummyHash: dummy,
	}, nil
}
