// handlers содержит HTTP-эндпоинты auth-сервиса.
// Здесь выполняется только маппинг данных и ошибок доменного слоя (service) в HTTP.
// Вся валидация и бизнес-логика находятся в пакете service.
//
// Принципы:
//   - Контекст запроса прокидывается в сервис без потерь;
//   - Ошибки сервиса явно транслируются в статусы:
//   - ErrInvalidEmail/ErrWeakPassword/ErrEmptyPassword -> 400;
//   - ErrEmailTaken -> 409;
//   - ErrInvalidCredentials/ErrInvalidToken/ErrTokenRevoked -> 401;
//   - таймаут/отмена контекста (недоступное хранилище) -> 503;
//   - иные ошибки -> 500 c единым безопасным сообщением.
//
// Безопасность:
//   - Сбой хранилища никогда не маппится в 401: «не залогинен» и
//     «хранилище недоступно» — разные ответы;
//   - Для 500/503 наружу не утекают детали внутренних ошибок; подробности
//     попадают в логи через мидлвары.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	logctx "github.com/pribylovaa/go-auth-service/internal/pkg/log"
	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/service"
)

// Handlers агрегирует зависимости эндпоинтов.
type Handlers struct {
	svc *service.Service
}

func New(svc *service.Service) *Handlers {
	return &Handlers{svc: svc}
}

type ctxUserKey struct{}

// CurrentUser достаёт авторизованного пользователя из контекста запроса.
// Присутствует только под мидлваром Authenticate.
func CurrentUser(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxUserKey{}).(*models.User)
	return u, ok
}

// Authenticate проверяет Bearer access-токен через service.Authorize и
// кладёт пользователя в контекст. Без валидного токена — 401.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, r, service.ErrInvalidToken)
			return
		}

		user, err := h.svc.Authorize(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), ctxUserKey{}, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken извлекает токен из Authorization: Bearer <token>.
func bearerToken(r *http.Request) string {
	const prefix = "Bearer "

	auth := r.Header.Get("Authorization")
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}

	return ""
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: запрещаем неизвестные поля.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(value)
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError транслирует ошибку доменного слоя в HTTP-статус и безопасное тело.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, errBadRequest):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid argument"})

	case errors.Is(err, service.ErrEmailTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "email already taken"})

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, service.ErrTokenRevoked):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})

	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		logctx.From(r.Context()).Warn("request_unavailable",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "service unavailable"})

	default:
		logctx.From(r.Context()).Error("request_failed",
			slog.String("path", r.URL.Path),
			slog.String("err", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

// errBadRequest — локальная ошибка парсинга входа (битый JSON и т.п.).
var errBadRequest = errors.New("bad request")
