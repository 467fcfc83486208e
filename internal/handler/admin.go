package handler

import (
	"net/http"

	"canteen/internal/model"
	"canteen/internal/service"
)

func AdminOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		orders, err := orderSvc.AdminList(r.Context(), canteenID, r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, err)
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func DailyOrdersHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		orders, err := orderSvc.Daily(r.Context(), canteenID, r.URL.Query().Get("date"))
		if err != nil {
			writeError(w, err)
			return
		}
		if orders == nil {
			orders = []model.Order{}
		}
		writeJSON(w, http.StatusOK, orders)
	}
}

func ActiveOrdersCountHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		count, err := orderSvc.ActiveCount(r.Context(), canteenID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, count)
	}
}

// orderAction adapts an admin order mutation to a handler answering with
// the {"order": ...} envelope.
func orderAction(do func(r *http.Request, admin *model.User, id int64) (*model.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, _, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		id, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		order, err := do(r, admin, id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, orderResponse{Order: order})
	}
}

func AcceptOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return orderAction(func(r *http.Request, admin *model.User, id int64) (*model.Order, error) {
		return orderSvc.Accept(r.Context(), admin, id)
	})
}

func DeclineOrderHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return orderAction(func(r *http.Request, admin *model.User, id int64) (*model.Order, error) {
		var req model.DeclineRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return orderSvc.Decline(r.Context(), admin, id, req.Reason)
	})
}

func UpdateStatusHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return orderAction(func(r *http.Request, admin *model.User, id int64) (*model.Order, error) {
		var req model.StatusUpdateRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return orderSvc.UpdateStatus(r.Context(), admin, id, req)
	})
}

func PaymentStatusHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return orderAction(func(r *http.Request, admin *model.User, id int64) (*model.Order, error) {
		var req model.PaymentStatusRequest
		if err := decodeBody(r, &req); err != nil {
			return nil, err
		}
		return orderSvc.SetPaymentStatus(r.Context(), admin, id, req.Status)
	})
}

func CancelFailedPaymentHandler(orderSvc *service.OrderService) http.HandlerFunc {
	return orderAction(func(r *http.Request, admin *model.User, id int64) (*model.Order, error) {
		return orderSvc.CancelFailedPayment(r.Context(), admin, id)
	})
}

func AdminProfileHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		canteen, err := catalogSvc.Canteen(r.Context(), canteenID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, canteen)
	}
}

func UpdateAdminProfileHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		var in model.CanteenInput
		if !decodeJSON(w, r, &in) {
			return
		}
		canteen, err := catalogSvc.UpdateCanteen(r.Context(), canteenID, in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, canteen)
	}
}

func ToggleOrdersHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		canteen, err := catalogSvc.ToggleAcceptingOrders(r.Context(), canteenID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, canteen)
	}
}

func AdminMenuHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		items, err := catalogSvc.Menu(r.Context(), canteenID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

func ToggleMenuItemHandler(catalogSvc *service.CatalogService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, canteenID, ok := adminCanteen(w, r)
		if !ok {
			return
		}
		itemID, ok := pathID(w, r, "id")
		if !ok {
			return
		}
		item, err := catalogSvc.ToggleMenuItem(r.Context(), canteenID, itemID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}
