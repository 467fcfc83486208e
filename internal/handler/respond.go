package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/juju/errors"

	"canteen/internal/model"
	"canteen/internal/mw"
)

type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type orderResponse struct {
	Order *model.Order `json:"order"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeError maps a service error to its status code. Unexpected errors
// are logged and hidden from the client.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errors.BadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, errors.NotValid):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, errors.Unauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, errors.Forbidden):
		status = http.StatusForbidden
	case errors.Is(err, errors.NotFound):
		status = http.StatusNotFound
	case errors.Is(err, errors.AlreadyExists):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		writeDetail(w, status, "internal error")
		return
	}
	writeDetail(w, status, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.NewNotValid(nil, "invalid json")
	}
	return nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeBody(r, v); err != nil {
		writeError(w, err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid "+name)
		return 0, false
	}
	return id, true
}

func currentUser(w http.ResponseWriter, r *http.Request) (*model.User, bool) {
	u, ok := mw.UserFrom(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Not authenticated")
	}
	return u, ok
}

// adminCanteen returns the canteen run by the calling canteen admin.
func adminCanteen(w http.ResponseWriter, r *http.Request) (*model.User, int64, bool) {
	u, ok := currentUser(w, r)
	if !ok {
		return nil, 0, false
	}
	if u.CanteenID == nil {
		writeDetail(w, http.StatusBadRequest, "Canteen admin missing canteen_id")
		return nil, 0, false
	}
	return u, *u.CanteenID, true
}
