package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"backoffice/config"
	deliverycontext "backoffice/internal/delivery/context"
	"backoffice/internal/delivery/http/middleware"
	"backoffice/internal/delivery/http/validator"
	"backoffice/internal/domain/entity"
	domainerrors "backoffice/internal/domain/errors"
	"backoffice/internal/domain/service"
	"backoffice/internal/infra/auth"
	"backoffice/internal/usecase"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubAuthUsecase returns canned results; the orchestration itself is covered
// by the usecase tests.
type stubAuthUsecase struct {
	authOut    *usecase.AuthOutput
	refreshOut *usecase.RefreshOutput
	user       *entity.User
	err        error
}

func (s *stubAuthUsecase) Register(context.Context, usecase.RegisterInput) (*usecase.AuthOutput, error) {
	return s.authOut, s.err
}

func (s *stubAuthUsecase) Login(context.Context, usecase.LoginInput) (*usecase.AuthOutput, error) {
	return s.authOut, s.err
}

func (s *stubAuthUsecase) Refresh(context.Context, usecase.RefreshInput) (*usecase.RefreshOutput, error) {
	return s.refreshOut, s.err
}

func (s *stubAuthUsecase) Logout(context.Context, uuid.UUID) error {
	return s.err
}

func (s *stubAuthUsecase) CurrentUser(context.Context, uuid.UUID) (*entity.User, error) {
	return s.user, s.err
}

func (s *stubAuthUsecase) CleanupExpiredSessions(context.Context) (int64, error) {
	return 0, s.err
}

type stubResetUsecase struct {
	rawToken string
	user     *entity.User
	err      error
}

func (s *stubResetUsecase) ForgotPassword(context.Context, usecase.ForgotPasswordInput) (string, error) {
	return s.rawToken, s.err
}

func (s *stubResetUsecase) ResetPassword(context.Context, usecase.ResetPasswordInput) (*entity.User, error) {
	return s.user, s.err
}

func (s *stubResetUsecase) VerifyToken(context.Context, usecase.VerifyResetTokenInput) (*entity.User, error) {
	return s.user, s.err
}

func (s *stubResetUsecase) CleanupExpiredTokens(context.Context) (int64, error) {
	return 0, s.err
}

func newTestTokenService(t *testing.T) service.TokenService {
	t.Helper()

	cfg := &config.Config{
		Auth: &config.AuthConfig{
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: time.Hour,
		},
	}
	cfg.SecretKey.Access = "test-access-secret"
	cfg.SecretKey.Refresh = "test-refresh-secret"

	svc, err := auth.NewJWTService(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	return svc
}

func newTestServer(t *testing.T, authUC usecase.AuthUsecase, resetUC usecase.PasswordResetUsecase) *echo.Echo {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := echo.New()
	e.Validator = validator.New()
	e.HTTPErrorHandler = middleware.NewErrorMiddleware(logger).HandleHTTPError

	h := NewAuthHandler(authUC, resetUC, logger)
	authMW := middleware.NewAuthMiddleware(newTestTokenService(t))

	e.POST("/auth/register", h.Register)
	e.POST("/auth/login", h.Login)
	e.POST("/auth/refresh", h.Refresh)
	e.POST("/auth/forgot-password", h.ForgotPassword)
	e.POST("/auth/reset-password", h.ResetPassword)
	e.POST("/auth/verify-reset-token", h.VerifyResetToken)
	e.POST("/auth/logout", h.Logout, authMW.Authenticate)
	e.GET("/auth/me", h.Me, authMW.Authenticate)

	return e
}

func doJSON(e *echo.Echo, method, path, body, bearer string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	return rec
}

func activeUser() *entity.User {
	return &entity.User{
		ID:           uuid.New(),
		Email:        "a@x.com",
		Name:         "Alice",
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuv",
		Status:       entity.UserStatusActive,
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	user := activeUser()
	authUC := &stubAuthUsecase{authOut: &usecase.AuthOutput{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         user,
	}}
	e := newTestServer(t, authUC, &stubResetUsecase{})

	rec := doJSON(e, http.MethodPost, "/auth/register",
		`{"email":"a@x.com","name":"Alice","password":"secret123"}`, "")

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
			User         struct {
				ID     string `json:"id"`
				Email  string `json:"email"`
				Status string `json:"status"`
			} `json:"user"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "access-token", resp.Data.AccessToken)
	assert.Equal(t, "refresh-token", resp.Data.RefreshToken)
	assert.Equal(t, user.ID.String(), resp.Data.User.ID)
	assert.Equal(t, "ACTIVE", resp.Data.User.Status)

	// The stored hash must never appear in a response body.
	assert.NotContains(t, rec.Body.String(), user.PasswordHash)
}

func TestAuthHandler_Register_ValidationFailure(t *testing.T) {
	e := newTestServer(t, &stubAuthUsecase{}, &stubResetUsecase{})

	rec := doJSON(e, http.MethodPost, "/auth/register",
		`{"email":"not-an-email","name":"Alice","password":"secret123"}`, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), domainerrors.ErrValidationFailed.ErrorCode())
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	authUC := &stubAuthUsecase{err: domainerrors.ErrInvalidCredentials}
	e := newTestServer(t, authUC, &stubResetUsecase{})

	rec := doJSON(e, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"wrong-password"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), domainerrors.ErrInvalidCredentials.ErrorCode())
}

func TestAuthHandler_Refresh_Revoked(t *testing.T) {
	authUC := &stubAuthUsecase{err: domainerrors.ErrRefreshTokenRevoked}
	e := newTestServer(t, authUC, &stubResetUsecase{})

	rec := doJSON(e, http.MethodPost, "/auth/refresh", `{"refreshToken":"stale"}`, "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), domainerrors.ErrRefreshTokenRevoked.ErrorCode())
}

func TestAuthHandler_UnclassifiedErrorIsCollapsed(t *testing.T) {
	authUC := &stubAuthUsecase{err: errors.New("pq: connection reset by peer")}
	e := newTestServer(t, authUC, &stubResetUsecase{})

	rec := doJSON(e, http.MethodPost, "/auth/login",
		`{"email":"a@x.com","password":"secret123"}`, "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), domainerrors.ErrInternalError.ErrorCode())
	// Driver-level detail never reaches the caller.
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestAuthHandler_ForgotPassword_UniformResponse(t *testing.T) {
	// Known email: a token was issued internally.
	known := newTestServer(t, &stubAuthUsecase{}, &stubResetUsecase{rawToken: "issued-raw-token"})
	knownRec := doJSON(known, http.MethodPost, "/auth/forgot-password", `{"email":"a@x.com"}`, "")

	// Unknown email: no token issued.
	unknown := newTestServer(t, &stubAuthUsecase{}, &stubResetUsecase{rawToken: ""})
	unknownRec := doJSON(unknown, http.MethodPost, "/auth/forgot-password", `{"email":"nobody@x.com"}`, "")

	assert.Equal(t, http.StatusOK, knownRec.Code)
	assert.Equal(t, http.StatusOK, unknownRec.Code)
	// Byte-identical bodies: the endpoint leaks nothing about account existence.
	assert.Equal(t, knownRec.Body.String(), unknownRec.Body.String())
	// And the raw token never appears in the response.
	assert.NotContains(t, knownRec.Body.String(), "issued-raw-token")
}

func TestAuthHandler_ResetPassword_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"expired", domainerrors.ErrResetTokenExpired, domainerrors.ErrResetTokenExpired.ErrorCode()},
		{"used", domainerrors.ErrResetTokenUsed, domainerrors.ErrResetTokenUsed.ErrorCode()},
		{"invalid", domainerrors.ErrResetTokenInvalid, domainerrors.ErrResetTokenInvalid.ErrorCode()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestServer(t, &stubAuthUsecase{}, &stubResetUsecase{err: tt.err})

			rec := doJSON(e, http.MethodPost, "/auth/reset-password",
				`{"token":"some-token","password":"new-secret-1"}`, "")

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestAuthHandler_Logout_RequiresBearerToken(t *testing.T) {
	e := newTestServer(t, &stubAuthUsecase{}, &stubResetUsecase{})

	rec := doJSON(e, http.MethodPost, "/auth/logout", "", "")

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_Me_WithValidAccessToken(t *testing.T) {
	user := activeUser()
	e := newTestServer(t, &stubAuthUsecase{user: user}, &stubResetUsecase{})

	token, err := newTestTokenService(t).IssueAccess(user.ID, user.Email)
	require.NoError(t, err)

	rec := doJSON(e, http.MethodGet, "/auth/me", "", token)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), user.Email)
}

func TestAuthHandler_Me_RejectsRefreshTokenAsBearer(t *testing.T) {
	user := activeUser()
	e := newTestServer(t, &stubAuthUsecase{user: user}, &stubResetUsecase{})

	refresh, err := newTestTokenService(t).IssueRefresh(user.ID)
	require.NoError(t, err)

	rec := doJSON(e, http.MethodGet, "/auth/me", "", refresh)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// Guard against a handler accidentally storing the user id under a bare key.
func TestGetUserID_RoundTrip(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := deliverycontext.GetUserID(c)
	assert.False(t, ok)

	id := uuid.New()
	deliverycontext.SetUserID(c, id)
	got, ok := deliverycontext.GetUserID(c)
	assert.True(t, ok)
	assert.Equal(t, id, got)
}
