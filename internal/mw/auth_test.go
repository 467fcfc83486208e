package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canteen/internal/model"
)

const secret = "test-secret"

type users map[int64]*model.User

func (u users) User(_ context.Context, id int64) (*model.User, error) {
	if user, ok := u[id]; ok {
		return user, nil
	}
	return nil, errors.NotFoundf("user %d", id)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFrom(r.Context())
	_, _ = w.Write([]byte(u.Role))
}

func TestAuthMiddleware(t *testing.T) {
	student := &model.User{ID: 1, Role: model.RoleStudent}
	known := users{1: student}
	valid, err := IssueToken(secret, student, time.Now(), time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, student, time.Now().Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken("other", student, time.Now(), time.Hour)
	require.NoError(t, err)
	ghost, err := IssueToken(secret, &model.User{ID: 9, Role: model.RoleStudent}, time.Now(), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{name: "cookie", setup: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "access_token", Value: valid}) }, status: http.StatusOK},
		{name: "bearer", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, status: http.StatusOK},
		{name: "missing", setup: func(*http.Request) {}, status: http.StatusUnauthorized},
		{name: "expired", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, status: http.StatusUnauthorized},
		{name: "wrong key", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+foreign) }, status: http.StatusUnauthorized},
		{name: "unknown user", setup: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+ghost) }, status: http.StatusUnauthorized},
	}
	h := AuthMiddleware(secret, "access_token", known)(http.HandlerFunc(okHandler))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	admin := &model.User{ID: 2, Role: model.RoleCampusAdmin}
	h := RequireRole(model.RoleStudent)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), UserCtxKey, admin)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.JSONEq(t, `{"detail":"Insufficient permissions"}`, rec.Body.String())

	student := &model.User{ID: 1, Role: model.RoleStudent}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(context.WithValue(req.Context(), UserCtxKey, student)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "STUDENT", rec.Body.String())
}

func TestParseTokenSubject(t *testing.T) {
	token, err := IssueToken(secret, &model.User{ID: 42, Role: model.RoleCanteenAdmin}, time.Now(), time.Minute)
	require.NoError(t, err)
	id, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}
