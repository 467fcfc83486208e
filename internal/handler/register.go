package handler

import (
	"net/http"

	"canteen/internal/model"
	"canteen/internal/service"
)

// SetupKey derives the campus admin setup key from the signing secret.
func SetupKey(secret string) string {
	if len(secret) > 16 {
		return secret[:16]
	}
	return secret
}

// RegisterCampusAdminHandler creates the first campus admin and logs it in.
func RegisterCampusAdminHandler(authSvc *service.AuthService, tc TokenConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.CampusAdminRegistration
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := authSvc.RegisterCampusAdmin(r.Context(), req, SetupKey(tc.Secret))
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
