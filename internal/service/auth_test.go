package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-auth-service/internal/config"
	"github.com/pribylovaa/go-auth-service/internal/models"
	"github.com/pribylovaa/go-auth-service/internal/password"
	"github.com/pribylovaa/go-auth-service/internal/sessions"
	"github.com/pribylovaa/go-auth-service/internal/storage"
	"github.com/pribylovaa/go-auth-service/internal/token"
	"github.com/pribylovaa/go-auth-service/mocks"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       "unit-secret",
		AccessTokenTTL:  30 * time.Second,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "auth-service",
		Audience:        []string{"api-gateway"},
	}
}

// Минимально допустимые стоимостные параметры, чтобы unit-тесты не
// упирались в Argon2.
func testHasher(t *testing.T) *password.Hasher {
	t.Helper()
	h, err := password.New(config.Argon2Config{
		TimeCost:    1,
		MemoryKiB:   8 * 1024,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   16,
	})
	require.NoError(t, err)
	return h
}

func newSvc(t *testing.T) (*Service, *mocks.MockStorage, *mocks.MockStore, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	ss := mocks.NewMockStore(ctrl)

	svc, err := New(st, ss, testHasher(t), token.NewManager(testAuthCfg()), testAuthCfg())
	require.NoError(t, err)

	return svc, st, ss, ctrl
}

func mustHashPW(t *testing.T, pw string) string {
	t.Helper()
	h, err := testHasher(t).Hash(pw)
	require.NoError(t, err)
	return h
}

// issueRefresh — валидный refresh-токен с теми же параметрами, что у сервиса.
func issueRefresh(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	tok, err := token.NewManager(testAuthCfg()).Issue(userID, token.KindRefresh, time.Now().UTC())
	require.NoError(t, err)
	return tok
}

func TestRegisterUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "User@Example.com"
	norm := "user@example.com"
	pw := "Abcdef1!"

	// Сначала UserByEmail -> ErrNotFound, потом SaveUser, потом issueSession -> Put.
	st.EXPECT().UserByEmail(gomock.Any(), norm).Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).Return(nil)
	ss.EXPECT().Put(gomock.Any(), gomock.Any(), svc.cfg.RefreshTokenTTL).Return(nil)

	tp, uid, err := svc.RegisterUser(ctx, "User", email, pw, "ua-test")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)

	require.WithinDuration(t, time.Now().Add(svc.cfg.AccessTokenTTL), tp.AccessExpiresAt, 2*time.Second)
}

func TestRegisterUser_InvalidEmail(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "U", "not-an-email", "Abcdef1!", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidEmail)
}

func TestRegisterUser_WeakOrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RegisterUser(context.Background(), "U", "u@e.com", "", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmptyPassword)

	_, _, err = svc.RegisterUser(context.Background(), "U", "u@e.com", "short", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWeakPassword)

	// Без спецсимвола.
	_, _, err = svc.RegisterUser(context.Background(), "U", "u@e.com", "Abcdefg1", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrWeakPassword)
}

func TestRegisterUser_EmailAlreadyExists_OnLookup(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Если UserByEmail вернул пользователя (err == nil) - считается занятым email.
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(&models.User{ID: uuid.New(), Email: "user@example.com"}, nil)

	_, _, err := svc.RegisterUser(context.Background(), "U", "user@example.com", "Abcdef1!", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_SaveUserAlreadyExists_MapsToEmailTaken(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)
	st.EXPECT().SaveUser(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists)

	_, _, err := svc.RegisterUser(context.Background(), "U", "user@example.com", "Abcdef1!", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterUser_StorageErrors_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, errors.New("db down"))

	_, _, err := svc.RegisterUser(context.Background(), "U", "user@example.com", "Abcdef1!", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrEmailTaken)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_OK(t *testing.T) {
	t.Parallel()

	svc, st, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	email := "user@example.com"
	pw := "Abcdef1!"
	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: mustHashPW(t, pw),
	}

	st.EXPECT().UserByEmail(gomock.Any(), email).Return(user, nil)
	ss.EXPECT().Put(gomock.Any(), gomock.Any(), svc.cfg.RefreshTokenTTL).Return(nil)

	tp, uid, err := svc.LoginUser(ctx, email, pw, "ua-test")
	require.NoError(t, err)
	require.Equal(t, user.ID, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
}

func TestLoginUser_InvalidEmail_OrEmptyPassword(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.LoginUser(context.Background(), "bad", "Abcdef1!", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = svc.LoginUser(context.Background(), "user@example.com", "", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_UserNotFound_OrWrongPassword(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, storage.ErrNotFound)

	_, _, err := svc.LoginUser(context.Background(), "user@example.com", "Abcdef1!", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// wrong password
	user := &models.User{ID: uuid.New(), Email: "user@example.com", PasswordHash: mustHashPW(t, "Abcdef1!")}
	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(user, nil)

	_, _, err = svc.LoginUser(context.Background(), "user@example.com", "WRONG1!a", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_PasswordlessExternalUser(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	// Пользователь создан внешним провайдером: password_hash пуст.
	user := &models.User{ID: uuid.New(), Email: "oauth@example.com", ExternalID: "ext-1"}
	st.EXPECT().UserByEmail(gomock.Any(), "oauth@example.com").Return(user, nil)

	_, _, err := svc.LoginUser(context.Background(), "oauth@example.com", "Abcdef1!", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginUser_StorageErrorOnLookup_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	st.EXPECT().UserByEmail(gomock.Any(), "user@example.com").
		Return(nil, errors.New("db problem"))

	_, _, err := svc.LoginUser(context.Background(), "user@example.com", "Abcdef1!", "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshToken_OK_WithRotation(t *testing.T) {
	t.Parallel()

	svc, st, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	user := &models.User{ID: userID, Email: "user@example.com", PasswordHash: "hash"}

	refresh := issueRefresh(t, userID)
	key := tokenKey(refresh)

	ss.EXPECT().Get(gomock.Any(), userID, key).Return(&models.Session{
		UserID:    userID,
		TokenKey:  key,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(user, nil)
	ss.EXPECT().Delete(gomock.Any(), userID, key).Return(true, nil)
	ss.EXPECT().Put(gomock.Any(), gomock.Any(), svc.cfg.RefreshTokenTTL).Return(nil)

	tp, uid, err := svc.RefreshToken(ctx, refresh, "ua-test")
	require.NoError(t, err)
	require.Equal(t, userID, uid)
	require.NotEmpty(t, tp.AccessToken)
	require.NotEmpty(t, tp.RefreshToken)
	// Ротация: новый refresh не равен старому.
	require.NotEqual(t, refresh, tp.RefreshToken)
}

func TestRefreshToken_GarbageOrWrongKind(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, _, err := svc.RefreshToken(context.Background(), "not-a-jwt", "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	// Access-токен вместо refresh.
	access, err := token.NewManager(testAuthCfg()).Issue(uuid.New(), token.KindAccess, time.Now().UTC())
	require.NoError(t, err)

	_, _, err = svc.RefreshToken(context.Background(), access, "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRefreshToken_SessionMissing_MapsToRevoked(t *testing.T) {
	t.Parallel()

	svc, _, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh := issueRefresh(t, userID)

	// Сессии нет: отозвана logout'ом или вытеснена ротацией.
	ss.EXPECT().Get(gomock.Any(), userID, tokenKey(refresh)).
		Return(nil, sessions.ErrNotFound)

	_, _, err := svc.RefreshToken(context.Background(), refresh, "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshToken_UserGone_MapsToInvalidCredentials(t *testing.T) {
	t.Parallel()

	svc, st, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh := issueRefresh(t, userID)
	key := tokenKey(refresh)

	ss.EXPECT().Get(gomock.Any(), userID, key).Return(&models.Session{UserID: userID, TokenKey: key}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, storage.ErrNotFound)

	_, _, err := svc.RefreshToken(context.Background(), refresh, "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRefreshToken_LostRace_MapsToRevoked(t *testing.T) {
	t.Parallel()

	svc, st, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh := issueRefresh(t, userID)
	key := tokenKey(refresh)

	ss.EXPECT().Get(gomock.Any(), userID, key).Return(&models.Session{UserID: userID, TokenKey: key}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(&models.User{ID: userID, Email: "u@e.com"}, nil)
	// Конкурентный refresh с тем же токеном уже удалил сессию.
	ss.EXPECT().Delete(gomock.Any(), userID, key).Return(false, nil)

	_, _, err := svc.RefreshToken(context.Background(), refresh, "")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshToken_StorageErrors_Propagated(t *testing.T) {
	t.Parallel()

	svc, st, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	refresh := issueRefresh(t, userID)
	key := tokenKey(refresh)

	// Ошибка на чтении сессии.
	ss.EXPECT().Get(gomock.Any(), userID, key).Return(nil, errors.New("store get fail"))
	_, _, err := svc.RefreshToken(context.Background(), refresh, "")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrTokenRevoked)

	// Сессия есть, но UserByID падает.
	ss.EXPECT().Get(gomock.Any(), userID, key).Return(&models.Session{UserID: userID, TokenKey: key}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, errors.New("db user fail"))
	_, _, err = svc.RefreshToken(context.Background(), refresh, "")
	require.Error(t, err)

	// Ошибка на удалении старой сессии.
	ss.EXPECT().Get(gomock.Any(), userID, key).Return(&models.Session{UserID: userID, TokenKey: key}, nil)
	st.EXPECT().UserByID(gomock.Any(), userID).Return(&models.User{ID: userID, Email: "u@e.com"}, nil)
	ss.EXPECT().Delete(gomock.Any(), userID, key).Return(false, errors.New("store del fail"))
	_, _, err = svc.RefreshToken(context.Background(), refresh, "")
	require.Error(t, err)
}

func TestLogout_Idempotent_SwallowsEverything(t *testing.T) {
	t.Parallel()

	svc, _, ss, ctrl := newSvc(t)
	defer ctrl.Finish()

	ctx := context.Background()

	// Битый токен: до хранилища не доходим.
	svc.Logout(ctx, "not-a-jwt")

	// Access вместо refresh: тоже no-op.
	access, err := token.NewManager(testAuthCfg()).Issue(uuid.New(), token.KindAccess, time.Now().UTC())
	require.NoError(t, err)
	svc.Logout(ctx, access)

	// Сессии уже нет: не ошибка.
	userID := uuid.New()
	refresh := issueRefresh(t, userID)
	ss.EXPECT().Delete(gomock.Any(), userID, tokenKey(refresh)).Return(false, nil)
	svc.Logout(ctx, refresh)

	// Сбой хранилища: логируется и подавляется.
	ss.EXPECT().Delete(gomock.Any(), userID, tokenKey(refresh)).Return(false, errors.New("store down"))
	svc.Logout(ctx, refresh)
}

func TestAuthorize_OK(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	user := &models.User{ID: userID, Email: "user@example.com", Role: models.RoleUser}

	access, err := token.NewManager(testAuthCfg()).Issue(userID, token.KindAccess, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), userID).Return(user, nil)

	got, err := svc.Authorize(context.Background(), access)
	require.NoError(t, err)
	require.Equal(t, userID, got.ID)
}

func TestAuthorize_GarbageOrWrongKind(t *testing.T) {
	t.Parallel()

	svc, _, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	_, err := svc.Authorize(context.Background(), "not-a-jwt")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)

	refresh := issueRefresh(t, uuid.New())
	_, err = svc.Authorize(context.Background(), refresh)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthorize_UserGone(t *testing.T) {
	t.Parallel()

	svc, st, _, ctrl := newSvc(t)
	defer ctrl.Finish()

	userID := uuid.New()
	access, err := token.NewManager(testAuthCfg()).Issue(userID, token.KindAccess, time.Now().UTC())
	require.NoError(t, err)

	st.EXPECT().UserByID(gomock.Any(), userID).Return(nil, storage.ErrNotFound)

	_, err = svc.Authorize(context.Background(), access)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidatePassword_Policy(t *testing.T) {
	t.Parallel()

	require.NoError(t, validatePassword("Abcdef1!"))
	require.ErrorIs(t, validatePassword(""), ErrEmptyPassword)
	require.ErrorIs(t, validatePassword("Ab1!"), ErrWeakPassword)
	require.ErrorIs(t, validatePassword("abcdef1!"), ErrWeakPassword)
	require.ErrorIs(t, validatePassword("ABCDEF1!"), ErrWeakPassword)
	require.ErrorIs(t, validatePassword("Abcdefg!"), ErrWeakPassword)
	require.ErrorIs(t, validatePassword("Abcdefg1"), ErrWeakPassword)
}

func TestValidateEmail_Normalization(t *testing.T) {
	t.Parallel()

	got, err := validateEmail("  User@Example.COM ")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", got)

	_, err = validateEmail("")
	require.ErrorIs(t, err, ErrInvalidEmail)

	_, err = validateEmail("no-at-sign")
	require.ErrorIs(t, err, ErrInvalidEmail)
}
