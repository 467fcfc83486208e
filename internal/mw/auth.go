package mw

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"canteen/internal/model"
)

type contextKey string

const UserCtxKey contextKey = "user"

// UserSource loads the user a token was issued to.
type UserSource interface {
	User(ctx context.Context, id int64) (*model.User, error)
}

// IssueToken signs a session token carrying the user id as subject and
// the role.
func IssueToken(secret string, u *model.User, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatInt(u.ID, 10),
		"role": string(u.Role),
		"exp":  jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString([]byte(secret))
}

// ParseToken verifies tokenString and returns its user id.
func ParseToken(secret, tokenString string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return 0, errors.New("invalid or expired token")
	}
	sub, err := token.Claims.GetSubject()
	if err != nil {
		return 0, errors.New("subject not found in token")
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, errors.New("subject not found in token")
	}
	return id, nil
}

// tokenFrom reads the session cookie, falling back to a bearer header.
func tokenFrom(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func AuthMiddleware(jwtSecret, cookieName string, users UserSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := tokenFrom(r, cookieName)
			if tokenString == "" {
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}

			userID, err := ParseToken(jwtSecret, tokenString)
			if err != nil {
				writeDetail(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			user, err := users.User(r.Context(), userID)
			if err != nil {
				writeDetail(w, http.StatusUnauthorized, "User not found")
				return
			}

			ctx := context.WithValue(r.Context(), UserCtxKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets through only users with one of roles. It must run
// after AuthMiddleware.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFrom(r.Context())
			if !ok {
				writeDetail(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if !slices.Contains(roles, user.Role) {
				writeDetail(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func UserFrom(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(UserCtxKey).(*model.User)
	return u, ok
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
