package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fabricdesk/fabricdesk/internal/shared"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	require.NoError(t, err)
	svc, err := NewService(Config{PasswordHash: string(hash), Secret: "test-secret", TokenTTL: time.Hour})
	require.NoError(t, err)
	return svc
}

func TestNewServiceRequiresSettings(t *testing.T) {
	_, err := NewService(Config{Secret: "x"})
	require.Error(t, err)
	_, err = NewService(Config{PasswordHash: "plain", Secret: "x"})
	require.Error(t, err)
}

func TestLoginAndVerify(t *testing.T) {
	svc := newTestService(t)

	_, _, err := svc.Login("wrong")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	token, expiresAt, err := svc.Login("open-sesame")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.True(t, expiresAt.After(time.Now()))

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "operator", claims.Subject)

	_, err = svc.Verify(token + "x")
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	svc := newTestService(t)
	token, _, err := svc.Login("open-sesame")
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = svc.Verify(token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
}

func TestLoginHandlerAndMiddleware(t *testing.T) {
	h := NewHandler(slog.Default(), newTestService(t))
	r := chi.NewRouter()
	r.Route("/auth", h.MountRoutes)
	r.With(h.Middleware).Get("/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"password":"open-sesame"}`)))
	require.Equal(t, http.StatusOK, rr.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+resp.Token)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
}
