package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rl1809/ticket-sale/internal/core/domain"
)

// Status codes carried in the envelope next to the HTTP status.
const (
	StatusOK                  = "OK"
	StatusCreated             = "CREATED"
	StatusBadRequest          = "BAD_REQUEST"
	StatusUnprocessableEntity = "UNPROCESSABLE_ENTITY"
	StatusNotFound            = "NOT_FOUND"
	StatusSalesClosed         = "SALES_CLOSED"
	StatusQuotaExceeded       = "QUOTA_EXCEEDED"
	StatusInsufficientStock   = "INSUFFICIENT_STOCK"
	StatusDuplicateRequest    = "DUPLICATE_REQUEST"
	StatusUsernameTaken       = "USERNAME_TAKEN"
	StatusConflict            = "CONFLICT"
	StatusUnauthenticated     = "UNAUTHENTICATED"
	StatusForbidden           = "FORBIDDEN"
	StatusInternalServerError = "INTERNAL_SERVER_ERROR"
)

// RESTEnvelope wraps every HTTP response body.
type RESTEnvelope struct {
	Status  string      `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type apiError struct {
	httpStatus int
	status     string
	message    string
}

// destruct maps an error onto its transport representation. Messages of
// business errors are shown as-is; anything unclassified becomes a
// generic internal error.
func destruct(err error) (apiError, bool) {
	kinds := []struct {
		target     error
		httpStatus int
		status     string
	}{
		{domain.ErrValidation, http.StatusBadRequest, StatusBadRequest},
		{domain.ErrNotFound, http.StatusNotFound, StatusNotFound},
		{domain.ErrSalesClosed, http.StatusUnprocessableEntity, StatusSalesClosed},
		{domain.ErrQuotaExceeded, http.StatusUnprocessableEntity, StatusQuotaExceeded},
		{domain.ErrInsufficientStock, http.StatusConflict, StatusInsufficientStock},
		{domain.ErrDuplicateRequest, http.StatusConflict, StatusDuplicateRequest},
		{domain.ErrUsernameTaken, http.StatusConflict, StatusUsernameTaken},
		{domain.ErrConflict, http.StatusConflict, StatusConflict},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized, StatusUnauthenticated},
		{domain.ErrUnauthenticated, http.StatusUnauthorized, StatusUnauthenticated},
		{domain.ErrForbidden, http.StatusForbidden, StatusForbidden},
	}

	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return apiError{httpStatus: k.httpStatus, status: k.status, message: err.Error()}, true
		}
	}

	return apiError{
		httpStatus: http.StatusInternalServerError,
		status:     StatusInternalServerError,
		message:    "internal error",
	}, false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type OrderResponse struct {
	ID         string          `json:"id"`
	BuyerID    string          `json:"buyerId"`
	ConcertID  string          `json:"concertId"`
	Quantity   int             `json:"quantity"`
	TotalPrice int64           `json:"totalPrice"`
	Addons     []AddonResponse `json:"addons,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type AddonResponse struct {
	ID       string `json:"id"`
	OrderID  string `json:"orderId"`
	ItemName string `json:"itemName"`
}

type ConcertResponse struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Artist string    `json:"artist"`
	Price  int64     `json:"price"`
	Stock  int       `json:"stock"`
	Venue  string    `json:"venue"`
	Date   time.Time `json:"date"`
}

type ConcertSnapshotResponse struct {
	ID     string    `json:"id"`
	Name   string    `json:"name"`
	Artist string    `json:"artist"`
	Venue  string    `json:"venue"`
	Date   time.Time `json:"date"`
	Price  int64     `json:"price"`
}

type OrderHistoryResponse struct {
	Order   OrderResponse           `json:"order"`
	Concert ConcertSnapshotResponse `json:"concert"`
	Addons  []AddonResponse         `json:"addons"`
}

// newOrderResponse includes the add-on list only when withAddons is set;
// history entries carry add-ons one level up.
func newOrderResponse(o domain.Order, withAddons bool) OrderResponse {
	r := OrderResponse{
		ID:         o.ID,
		BuyerID:    o.BuyerID,
		ConcertID:  o.ConcertID,
		Quantity:   o.Quantity,
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
	if withAddons {
		r.Addons = newAddonResponses(o.Addons)
	}
	return r
}

func newAddonResponses(addons []domain.Addon) []AddonResponse {
	out := make([]AddonResponse, len(addons))
	for i, a := range addons {
		out[i] = AddonResponse{ID: a.ID, OrderID: a.OrderID, ItemName: a.ItemName}
	}
	return out
}

func newConcertResponses(concerts []domain.Concert) []ConcertResponse {
	out := make([]ConcertResponse, len(concerts))
	for i, c := range concerts {
		out[i] = ConcertResponse{
			ID:     c.ID,
			Name:   c.Name,
			Artist: c.Artist,
			Price:  c.Price,
			Stock:  c.Stock,
			Venue:  c.Venue,
			Date:   c.Date,
		}
	}
	return out
}

func newOrderHistoryResponses(entries []domain.OrderHistoryEntry) []OrderHistoryResponse {
	out := make([]OrderHistoryResponse, len(entries))
	for i, e := range entries {
		out[i] = OrderHistoryResponse{
			Order: newOrderResponse(e.Order, false),
			Concert: ConcertSnapshotResponse{
				ID:     e.Concert.ID,
				Name:   e.Concert.Name,
				Artist: e.Concert.Artist,
				Venue:  e.Concert.Venue,
				Date:   e.Concert.Date,
				Price:  e.Concert.Price,
			},
			Addons: newAddonResponses(e.Addons),
		}
	}
	return out
}
