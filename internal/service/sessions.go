package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/pkg/log"
)

// Sessions возвращает живые refresh-сессии пользователя (для UI управления
// сессиями: «выйти на других устройствах» и т.п.).
func (s *Service) Sessions(ctx context.Context, userID uuid.UUID) ([]models.Session, error) {
	const op = "service.sessions.Sessions"

	out, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return out, nil
}

// LogoutAll отзывает все refresh-сессии пользователя и возвращает их число.
// Все ранее выданные refresh-токены становятся недействительными;
// уже выпущенные access-токены доживают свой короткий срок (stateless-проверка).
func (s *Service) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	const op = "service.sessions.LogoutAll"

	n, err := s.sessions.DeleteAllByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.From(ctx).Info("logout_all",
		slog.String("op", op),
		slog.String("user_id", userID.String()),
		slog.Int64("revoked", n),
	)

	return n, nil
}
