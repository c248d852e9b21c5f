package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/pkg/redact"
	"github.com/pribylovaa/go-auth-service/internal/sessions"
	"github.com/pribylovaa/go-auth-service/internal/storage"
	"github.com/pribylovaa/go-auth-service/internal/token"
)

// RegisterUser регистрирует нового пользователя и сразу выдаёт пару токенов.
func (s *Service) RegisterUser(ctx context.Context, name, email, pw, userAgent string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RegisterUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if err := validatePassword(pw); err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	_, err = s.users.UserByEmail(ctx, normEmail)
	if err == nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(pw)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Email:        normEmail,
		PasswordHash: hash,
		Role:         models.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("user_registered",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
		slog.String("email", redact.Email(user.Email)),
	)

	tp, err := s.issueSession(ctx, user, userAgent)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return tp, user.ID, nil
}

// LoginUser выполняет вход по email+пароль.
//
// Инвариант анти-enumeration: «нет такого пользователя» и «неверный пароль»
// возвращают один и тот же ErrInvalidCredentials; на пути отсутствующего
// пользователя выполняется проверка против dummy-хэша, чтобы по времени
// ответа нельзя было отличить эти случаи.
func (s *Service) LoginUser(ctx context.Context, email, pw, userAgent string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.LoginUser"

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if len(pw) == 0 {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := s.users.UserByEmail(ctx, normEmail)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.hasher.Verify(pw, s.dummyHash)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Пользователи из внешнего провайдера пароля не имеют; для них вход по
	// паролю эквивалентен неверным учётным данным.
	if user.PasswordHash == "" || !s.hasher.Verify(pw, user.PasswordHash) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	tp, err := s.issueSession(ctx, user, userAgent)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return tp, user.ID, nil
}

// RefreshToken обновляет пару токенов по refresh-токену (ротация).
//
// Старая сессия удаляется до выпуска новой; если удаление сообщило, что
// записи уже нет — ротацию выиграл конкурентный вызов с тем же токеном,
// текущий корректно завершится ErrTokenRevoked.
func (s *Service) RefreshToken(ctx context.Context, refreshToken, userAgent string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.auth.RefreshToken"

	lg := log.From(ctx)

	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Kind != token.KindRefresh {
		lg.Warn("refresh_wrong_token_kind",
			slog.String("op", op),
			slog.String("kind", string(claims.Kind)),
		)
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	key := tokenKey(refreshToken)

	if _, err := s.sessions.Get(ctx, claims.UserID, key); err != nil {
		if errors.Is(err, sessions.ErrNotFound) {
			lg.Warn("refresh_session_missing",
				slog.String("op", op),
				slog.String("user_id", claims.UserID.String()),
			)
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	deleted, err := s.sessions.Delete(ctx, claims.UserID, key)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}
	if !deleted {
		// Дубликат конкурентного refresh с тем же токеном проиграл гонку.
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrTokenRevoked)
	}

	tp, err := s.issueSession(ctx, user, userAgent)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	return tp, user.ID, nil
}

// Logout отзывает refresh-токен удалением его сессии.
//
// Семантика идемпотентная и best-effort: битый/просроченный токен и
// отсутствующая сессия не являются ошибками, сбои хранилища логируются
// и подавляются. Logout — единственная операция сервиса, которая
// намеренно глотает ошибки.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	const op = "service.auth.Logout"

	lg := log.From(ctx)

	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		lg.Debug("logout_decode_failed", slog.String("op", op))
		return
	}

	if claims.Kind != token.KindRefresh {
		lg.Debug("logout_wrong_token_kind", slog.String("op", op))
		return
	}

	if _, err := s.sessions.Delete(ctx, claims.UserID, tokenKey(refreshToken)); err != nil {
		lg.Warn("logout_delete_failed",
			slog.String("op", op),
			slog.String("user_id", claims.UserID.String()),
			slog.String("err", err.Error()),
		)
	}
}

// Authorize проверяет access-токен и возвращает пользователя.
//
// Пользователь всегда читается из репозитория заново: кэш разрешённого
// пользователя дешевле, но после смены роли отдаёт устаревшие права,
// поэтому здесь выбрана свежесть, а кэширование оставлено вызывающему
// на его ответственность.
func (s *Service) Authorize(ctx context.Context, accessToken string) (*models.User, error) {
	const op = "service.auth.Authorize"

	claims, err := s.tokens.Decode(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	if claims.Kind != token.KindAccess {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := s.users.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// issueSession — единая точка выпуска пары токенов и создания сессии.
// Все потоки (register/login/refresh/external) проходят через неё, что
// гарантирует единообразный учёт сессий.
func (s *Service) issueSession(ctx context.Context, user *models.User, userAgent string) (*models.TokenPair, error) {
	const op = "service.auth.issueSession"

	now := time.Now().UTC()

	access, err := s.tokens.Issue(user.ID, token.KindAccess, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refresh, err := s.tokens.Issue(user.ID, token.KindRefresh, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sess := models.Session{
		UserID:    user.ID,
		TokenKey:  tokenKey(refresh),
		UserAgent: userAgent,
		CreatedAt: now,
		ExpiresAt: now.Add(s.cfg.RefreshTokenTTL),
	}

	if err := s.sessions.Put(ctx, sess, s.cfg.RefreshTokenTTL); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.TokenPair{
		AccessToken:     access,
		RefreshToken:    refresh,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, nil
}

// tokenKey — ключ-индекс сессии: base64url(sha256(refresh-токен)).
// Хэш всего токена вместо префикса исключает коллизии между токенами,
// выданными одному пользователю подряд.
func tokenKey(refreshToken string) string {
	sum := sha256.Sum256([]byte(refreshToken))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// validateEmail проверяет базовый формат email и обрезает пробелы снаружи.
func validateEmail(raw string) (string, error) {
	const op = "service.auth.validateEmail"

	email := strings.TrimSpace(raw)
	if email == "" {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	return strings.ToLower(email), nil
}

// validatePassword проверяет минимальные требования к паролю.
// Политика по умолчанию: длина >= 8, хотя бы одна строчная, заглавная, цифра и спецсимвол.
func validatePassword(pw string) error {
	const op = "service.auth.validatePassword"

	if len(pw) == 0 {
		return fmt.Errorf("%s: %w", op, ErrEmptyPassword)
	}

	if len([]rune(pw)) < 8 {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSpecial = true
		}
	}

	if !(hasLower && hasUpper && hasDigit && hasSpecial) {
		return fmt.Errorf("%s: %w", op, ErrWeakPassword)
	}

	return nil
}
