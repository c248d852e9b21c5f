package handlers

import (
	"net/http"
	"time"

	"github.com/pribylovaa/go-auth-service/internal/models"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type externalLoginRequest struct {
	ExternalID string `json:"external_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	AvatarURL  string `json:"avatar_url"`
}

type tokenResponse struct {
	UserID          string `json:"user_id"`
	AccessToken     string `json:"access_token"`
	RefreshToken    string `json:"refresh_token"`
	TokenType       string `json:"token_type"`
	AccessExpiresAt int64  `json:"access_expires_at"`
}

func newTokenResponse(tp *models.TokenPair, userID string) tokenResponse {
	return tokenResponse{
		UserID:          userID,
		AccessToken:     tp.AccessToken,
		RefreshToken:    tp.RefreshToken,
		TokenType:       "bearer",
		AccessExpiresAt: tp.AccessExpiresAt.Unix(),
	}
}

type sessionResponse struct {
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Register регистрирует пользователя и возвращает пару токенов (201).
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, r, errBadRequest)
		return
	}

	tp, uid, err := h.svc.RegisterUser(r.Context(), in.Name, in.Email, in.Password, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, newTokenResponse(tp, uid.String()))
}

// Login аутентифицирует пользователя и возвращает новую пару токенов.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, r, errBadRequest)
		return
	}

	tp, uid, err := h.svc.LoginUser(r.Context(), in.Email, in.Password, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(tp, uid.String()))
}

// Refresh выпускает новую пару токенов по валидному refresh-токену (ротация).
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in refreshRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, r, errBadRequest)
		return
	}

	tp, uid, err := h.svc.RefreshToken(r.Context(), in.RefreshToken, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(tp, uid.String()))
}

// Logout отзывает refresh-токен. Всегда 204: операция идемпотентна и не
// сообщает, существовала ли сессия.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in logoutRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, r, errBadRequest)
		return
	}

	h.svc.Logout(r.Context(), in.RefreshToken)
	w.WriteHeader(http.StatusNoContent)
}

// ExternalLogin выполняет вход через внешнего провайдера (профиль уже
// обменян OAuth-колбэком вызывающей стороны).
func (h *Handlers) ExternalLogin(w http.ResponseWriter, r *http.Request) {
	var in externalLoginRequest
	if err := decodeStrict(r, &in); err != nil {
		writeError(w, r, errBadRequest)
		return
	}

	tp, uid, err := h.svc.ExternalLogin(r.Context(), in.ExternalID, in.Email, in.Name, in.AvatarURL, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenResponse(tp, uid.String()))
}

// Sessions возвращает живые refresh-сессии текущего пользователя.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, r, errBadRequest)
		return
	}

	list, err := h.svc.Sessions(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]sessionResponse, 0, len(list))
	for _, s := range list {
		out = append(out, sessionResponse{
			UserAgent: s.UserAgent,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, out)
}

// LogoutAll отзывает все refresh-сессии текущего пользователя.
func (h *Handlers) LogoutAll(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, r, errBadRequest)
		return
	}

	n, err := h.svc.LogoutAll(r.Context(), user.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"revoked": n})
}

// Me возвращает профиль текущего пользователя.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, r, errBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, userResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      string(user.Role),
		AvatarURL: user.AvatarURL,
		CreatedAt: user.CreatedAt,
	})
}
