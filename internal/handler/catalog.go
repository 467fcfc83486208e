package handler

import (
	"net/http"
	"strconv"

	"canteen/internal/service"
)

func ListCanteensHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		canteens, err := catalogSvc.ListCanteens(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, canteens)
	}
}

func CanteenStatusHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		status, err := catalogSvc.Status(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

func MenuHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		items, err := catalogSvc.Menu(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func HostelsHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostels, err := catalogSvc.Hostels(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hostels)
	}
}

func MessMenuHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostel := r.URL.Query().Get("hostel_name")
		day, err := strconv.Atoi(r.URL.Query().Get("day_of_week"))
		if hostel == "" || err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, "hostel_name and day_of_week are required")
			return
		}
		menu, err := catalogSvc.MessMenu(r.Context(), hostel, day)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, menu)
	}
}

func TodayMessMenuHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hostel := r.URL.Query().Get("hostel_name")
		if hostel == "" {
			writeDetail(w, http.StatusUnprocessableEntity, "hostel_name is required")
			return
		}
		menu, err := catalogSvc.TodayMessMenu(r.Context(), hostel)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, menu)
	}
}
