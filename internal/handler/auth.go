package handler

import (
	"net/http"
	"time"

	"github.com/juju/clock"

	"canteen/internal/model"
	"canteen/internal/mw"
	"canteen/internal/service"
)

// TokenConfig controls session token issuing.
type TokenConfig struct {
	Secret     string
	CookieName string
	TTL        time.Duration
	Clock      clock.Clock
}

func (tc TokenConfig) setSession(w http.ResponseWriter, u *model.User) (string, error) {
	token, err := mw.IssueToken(tc.Secret, u, tc.Clock.Now(), tc.TTL)
	if err != nil {
		return "", err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tc.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

func LoginHandler(authSvc *service.AuthService, tc TokenConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := authSvc.Authenticate(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		token, err := tc.setSession(w, user)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, model.AuthResponse{User: *user, AccessToken: token})
	}
}

type exchangeRequest struct {
	Token string `json:"token"`
}

// ExchangeTokenHandler turns a token obtained out of band into a cookie
// session.
func ExchangeTokenHandler(authSvc *service.AuthService, tc TokenConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req exchangeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		userID, err := mw.ParseToken(tc.Secret, req.Token)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		user, err := authSvc.User(r.Context(), userID)
		if err != nil {
			writeError(w, err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     tc.CookieName,
			Value:    req.Token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(tc.TTL.Seconds()),
		})
		writeJSON(w, http.StatusOK, model.AuthResponse{User: *user, AccessToken: req.Token})
	}
}

func LogoutHandler(cookieName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "", Path: "/", MaxAge: -1})
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

func MeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if u, ok := currentUser(w, r); ok {
			writeJSON(w, http.StatusOK, u)
		}
	}
}

func UpdateProfileHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		var upd model.ProfileUpdate
		if !decodeJSON(w, r, &upd) {
			return
		}
		updated, err := authSvc.UpdateProfile(r.Context(), u.ID, upd)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

func ChangePasswordHandler(authSvc *service.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req model.PasswordChange
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := authSvc.ChangePassword(r.Context(), u.ID, req); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: "Password changed successfully"})
	}
}
