package handler

import (
	"fmt"
	"net/http"

	"canteen/internal/model"
	"canteen/internal/service"
)

type hostelRequest struct {
	Name string `json:"name"`
}

func StatsHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := orderSvc.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func CreateCanteenHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.CanteenInput
		if !decodeJSON(w, r, &in) {
			return
		}
		canteen, err := campusSvc.CreateCanteen(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, canteen)
	}
}

func UpdateCanteenHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var in model.CanteenInput
		if !decodeJSON(w, r, &in) {
			return
		}
		canteen, err := catalogSvc.UpdateCanteen(r.Context(), id, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, canteen)
	}
}

func AssignCanteenAdminHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req model.AdminEmailUpdate
		if !decodeJSON(w, r, &req) {
			return
		}
		assigned, err := campusSvc.AssignCanteenAdmin(r.Context(), id, req.NewEmail)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, assigned)
	}
}

func DeleteCanteenHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := campusSvc.DeleteCanteen(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Message: fmt.Sprintf("Canteen %d has been deactivated", id)})
	}
}

func CreateMenuItemHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		canteenID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var in model.MenuItemInput
		if !decodeJSON(w, r, &in) {
			return
		}
		item, err := campusSvc.CreateMenuItem(r.Context(), canteenID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func UpdateMenuItemHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		canteenID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		itemID, ok := pathID(w, r, "item")
		if !ok {
			return
		}
		var in model.MenuItemInput
		if !decodeJSON(w, r, &in) {
			return
		}
		item, err := campusSvc.UpdateMenuItem(r.Context(), canteenID, itemID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}

func DeleteMenuItemHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		canteenID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		itemID, ok := pathID(w, r, "item")
		if !ok {
			return
		}
		if err := campusSvc.DeleteMenuItem(r.Context(), canteenID, itemID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
	}
}

func CreateHostelHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req hostelRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		hostel, err := campusSvc.CreateHostel(r.Context(), req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, hostel)
	}
}

func RenameHostelHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var req hostelRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		hostel, err := campusSvc.RenameHostel(r.Context(), id, req.Name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, hostel)
	}
}

func DeleteHostelHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := campusSvc.DeleteHostel(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func MessMenusHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		menus, err := campusSvc.MessMenus(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, menus)
	}
}

func CreateMessMenuHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in model.MessMenuInput
		if !decodeJSON(w, r, &in) {
			return
		}
		menu, err := campusSvc.CreateMessMenu(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, menu)
	}
}

func UpdateMessMenuHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		var in model.MessMenuInput
		if !decodeJSON(w, r, &in) {
			return
		}
		menu, err := campusSvc.UpdateMessMenu(r.Context(), id, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, menu)
	}
}

func DeleteMessMenuHandler(campusSvc *service.CampusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		if err := campusSvc.DeleteMessMenu(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
