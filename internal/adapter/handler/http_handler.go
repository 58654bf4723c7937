package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/core/service"
)

type HTTPHandler struct {
	orderService   *service.OrderService
	authService    *service.AuthService
	catalogService *service.CatalogService
	validate       *validator.Validate
	logger         *logrus.Logger
}

type RegisterHTTPRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginHTTPRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type PurchaseHTTPRequest struct {
	InventoryID string   `json:"inventoryId" validate:"required"`
	Quantity    int      `json:"quantity" validate:"gt=0"`
	AddonNames  []string `json:"addonNames" validate:"omitempty,max=20,dive,required,max=255"`

	// Addons is the comma-delimited form accepted by older clients.
	Addons string `json:"addons"`
}

func NewHTTPHandler(orderService *service.OrderService, authService *service.AuthService,
	catalogService *service.CatalogService, logger *logrus.Logger) *HTTPHandler {
	return &HTTPHandler{
		orderService:   orderService,
		authService:    authService,
		catalogService: catalogService,
		validate:       validator.New(),
		logger:         logger,
	}
}

// Register mounts the routes on router. Purchase and history require a
// verified bearer token.
func (h *HTTPHandler) Register(router *mux.Router, authn *Authenticator) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/auth/register", h.RegisterBuyer).Methods(http.MethodPost)
	router.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/concerts", h.ListConcerts).Methods(http.MethodGet)
	router.HandleFunc("/buy", authn.Verify(h.Purchase)).Methods(http.MethodPost)
	router.HandleFunc("/my-orders", authn.Verify(h.ListOrders)).Methods(http.MethodGet)
}

func (h *HTTPHandler) RegisterBuyer(w http.ResponseWriter, r *http.Request) {
	var req RegisterHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	buyerID, err := h.authService.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RESTEnvelope{
		Status:  StatusCreated,
		Message: "buyer registered",
		Data:    map[string]string{"buyerId": buyerID},
	})
}

func (h *HTTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	token, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RESTEnvelope{
		Status:  StatusOK,
		Message: "logged in",
		Data:    map[string]string{"token": token},
	})
}

func (h *HTTPHandler) ListConcerts(w http.ResponseWriter, r *http.Request) {
	concerts, err := h.catalogService.ListConcerts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, RESTEnvelope{
		Status:  StatusOK,
		Message: "list of concerts",
		Data:    newConcertResponses(concerts),
	})
}

func (h *HTTPHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := BuyerIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, RESTEnvelope{
			Status:  StatusUnauthenticated,
			Message: "please log in first",
		})
		return
	}

	var req PurchaseHTTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	order, err := h.orderService.Purchase(r.Context(), service.PurchaseRequest{
		BuyerID:        buyerID,
		ConcertID:      req.InventoryID,
		Quantity:       req.Quantity,
		AddonNames:     append(req.AddonNames, splitAddons(req.Addons)...),
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, RESTEnvelope{
		Status:  StatusCreated,
		Message: "purchase successful",
		Data:    newOrderResponse(order, true),
	})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	buyerID, ok := BuyerIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, RESTEnvelope{
			Status:  StatusUnauthenticated,
			Message: "please log in first",
		})
		return
	}

	entries, err := h.orderService.ListOrders(r.Context(), buyerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	message := "list of orders"
	if len(entries) == 0 {
		message = "you have no order history yet"
	}

	writeJSON(w, http.StatusOK, RESTEnvelope{
		Status:  StatusOK,
		Message: message,
		Data:    newOrderHistoryResponses(entries),
	})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads and validates a JSON body, writing the rejection itself
// when it returns false.
func (h *HTTPHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, RESTEnvelope{
			Status:  StatusUnprocessableEntity,
			Message: "invalid request body",
		})
		return false
	}

	if err := h.validateStruct(r.Context(), dst); err != nil {
		writeJSON(w, http.StatusBadRequest, RESTEnvelope{
			Status:  StatusBadRequest,
			Message: err.Error(),
		})
		return false
	}

	return true
}

func (h *HTTPHandler) validateStruct(ctx context.Context, payload interface{}) error {
	err := h.validate.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = fmt.Sprintf("invalid '%s' with value '%v'", fe.Field(), fe.Value())
	}
	return errors.New(strings.Join(msgs, ", "))
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ae, known := destruct(err)
	if !known {
		h.logger.WithContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("unhandled error")
	}
	if errors.Is(err, domain.ErrConflict) {
		w.Header().Set("Retry-After", "1")
	}

	writeJSON(w, ae.httpStatus, RESTEnvelope{
		Status:  ae.status,
		Message: ae.message,
	})
}

// splitAddons turns "Latte, Mocha" into ["Latte", "Mocha"]. Empty pieces
// are kept so they are rejected like blank entries of the list form.
func splitAddons(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	parts := strings.Split(s, ",")
	for i, part := range parts {
		parts[i] = strings.TrimSpace(part)
	}
	return parts
}
