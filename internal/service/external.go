package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/pkg/redact"
	"github.com/pribylovaa/go-auth-service/internal/storage"
)

// ExternalLogin выполняет вход через внешнего провайдера (OAuth-колбэк уже
// обменян транспортом на профиль: id, email, имя, аватар).
//
// Порядок поиска учётки:
//  1. по external_id — обычный повторный вход;
//  2. по email — существующий локальный пользователь, внешняя учётка
//     привязывается (backfill external_id; аватар — только если был пуст);
//  3. иначе создаётся новый пользователь без пароля.
//
// Затем, как и все потоки, проходит через issueSession.
func (s *Service) ExternalLogin(ctx context.Context, externalID, email, name, avatarURL, userAgent string) (*models.TokenPair, uuid.UUID, error) {
	const op = "service.external.ExternalLogin"

	if strings.TrimSpace(externalID) == "" {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	normEmail, err := validateEmail(email)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	user, err := s.users.UserByExternalID(ctx, externalID)
	if err == nil {
		tp, err := s.issueSession(ctx, user, userAgent)
		if err != nil {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}

		return tp, user.ID, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Привязка к существующей учётке по email.
	user, err = s.users.UserByEmail(ctx, normEmail)
	if err == nil {
		user.ExternalID = externalID
		if user.AvatarURL == "" {
			user.AvatarURL = avatarURL
		}
		user.UpdatedAt = time.Now().UTC()

		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
		}

		log.From(ctx).Info("external_identity_linked",
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
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	// Новый пользователь без пароля.
	now := time.Now().UTC()
	user = &models.User{
		ID:         uuid.New(),
		Name:       strings.TrimSpace(name),
		Email:      normEmail,
		Role:       models.RoleUser,
		ExternalID: externalID,
		AvatarURL:  avatarURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.users.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return nil, uuid.Nil, fmt.Errorf("%s: %w", op, ErrEmailTaken)
		}

		return nil, uuid.Nil, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("external_user_created",
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
