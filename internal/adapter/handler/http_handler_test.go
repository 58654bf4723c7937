package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/ticket-sale/internal/applog"
	"github.com/rl1809/ticket-sale/internal/core/domain"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestHealthCheck(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListConcerts(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/concerts", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	newGolden(t).Assert(t, "concerts", rec.Body.Bytes())
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", RegisterHTTPRequest{Username: "okayu", Password: "nyannyan"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var data struct {
		BuyerID string `json:"buyerId"`
	}
	envelope := decodeEnvelope(t, rec, &data)
	assert.Equal(t, StatusCreated, envelope.Status)
	assert.NotEmpty(t, data.BuyerID)

	rec = env.do(t, http.MethodPost, "/auth/register", RegisterHTTPRequest{Username: "okayu", Password: "another1"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, StatusUsernameTaken, decodeEnvelope(t, rec, nil).Status)
}

func TestRegister_InvalidPayload(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", `{"username":`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodPost, "/auth/register", RegisterHTTPRequest{Username: "ok", Password: "123"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec, nil)
	assert.Contains(t, envelope.Message, "invalid 'Username'")
	assert.Contains(t, envelope.Message, "invalid 'Password'")
}

func TestLogin_WrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "okayu")

	rec := env.do(t, http.MethodPost, "/auth/login", LoginHTTPRequest{Username: "okayu", Password: "wrong"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, StatusUnauthenticated, decodeEnvelope(t, rec, nil).Status)
}

func TestPurchase_RequiresToken(t *testing.T) {
	env := newTestEnv(t)
	body := PurchaseHTTPRequest{InventoryID: "concert-poisonya", Quantity: 1}

	rec := env.do(t, http.MethodPost, "/buy", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	newGolden(t).Assert(t, "unauthenticated", rec.Body.Bytes())

	rec = env.do(t, http.MethodPost, "/buy", body, map[string]string{"Authorization": "Bearer not-a-token"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	newGolden(t).Assert(t, "forbidden", rec.Body.Bytes())
}

func TestPurchase_Success(t *testing.T) {
	env := newTestEnv(t)
	headers := env.login(t, "okayu")

	rec := env.do(t, http.MethodPost, "/buy", map[string]interface{}{
		"inventoryId": "concert-poisonya",
		"quantity":    2,
		"addonNames":  []string{"Light Stick"},
		"addons":      "Latte, ,Mocha",
	}, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order OrderResponse
	envelope := decodeEnvelope(t, rec, &order)
	assert.Equal(t, StatusCreated, envelope.Status)
	assert.Equal(t, "concert-poisonya", order.ConcertID)
	assert.Equal(t, 2, order.Quantity)
	assert.EqualValues(t, 100, order.TotalPrice)

	names := make([]string, len(order.Addons))
	for i, a := range order.Addons {
		names[i] = a.ItemName
		assert.Equal(t, order.ID, a.OrderID)
	}
	assert.Equal(t, []string{"Light Stick", "Latte", "Mocha"}, names)

	rec = env.do(t, http.MethodGet, "/concerts", nil, nil)
	var concerts []ConcertResponse
	decodeEnvelope(t, rec, &concerts)
	for _, c := range concerts {
		if c.ID == "concert-poisonya" {
			assert.Equal(t, 2998, c.Stock)
		}
	}
}

func TestPurchase_BusinessErrors(t *testing.T) {
	env := newTestEnv(t)
	headers := env.login(t, "okayu")

	rec := env.do(t, http.MethodPost, "/buy", PurchaseHTTPRequest{InventoryID: "concert-poisonya", Quantity: 1}, headers)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		body       interface{}
		httpStatus int
		status     string
	}{
		{"quota exceeded", PurchaseHTTPRequest{InventoryID: "concert-poisonya", Quantity: 2}, http.StatusUnprocessableEntity, StatusQuotaExceeded},
		{"sales closed", PurchaseHTTPRequest{InventoryID: "concert-ahoy", Quantity: 1}, http.StatusUnprocessableEntity, StatusSalesClosed},
		{"unknown concert", PurchaseHTTPRequest{InventoryID: "missing", Quantity: 1}, http.StatusNotFound, StatusNotFound},
		{"zero quantity", PurchaseHTTPRequest{InventoryID: "concert-poisonya"}, http.StatusBadRequest, StatusBadRequest},
		{"missing concert", PurchaseHTTPRequest{Quantity: 1}, http.StatusBadRequest, StatusBadRequest},
		{"blank addon", PurchaseHTTPRequest{InventoryID: "concert-poisonya", Quantity: 1, AddonNames: []string{""}}, http.StatusBadRequest, StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/buy", tt.body, headers)
			assert.Equal(t, tt.httpStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.status, decodeEnvelope(t, rec, nil).Status)
		})
	}

	rec = env.do(t, http.MethodGet, "/my-orders", nil, headers)
	var history []OrderHistoryResponse
	decodeEnvelope(t, rec, &history)
	assert.Len(t, history, 1)
}

func TestListOrders_Empty(t *testing.T) {
	env := newTestEnv(t)
	headers := env.login(t, "okayu")

	rec := env.do(t, http.MethodGet, "/my-orders", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	newGolden(t).Assert(t, "empty_history", rec.Body.Bytes())
}

func TestListOrders_ResponseShape(t *testing.T) {
	env := newTestEnv(t)
	headers := env.login(t, "okayu")

	rec := env.do(t, http.MethodPost, "/buy", PurchaseHTTPRequest{
		InventoryID: "concert-poisonya",
		Quantity:    2,
		AddonNames:  []string{"Light Stick", "Towel"},
	}, headers)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var order OrderResponse
	decodeEnvelope(t, rec, &order)
	require.Len(t, order.Addons, 2)

	rec = env.do(t, http.MethodGet, "/my-orders", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	body := strings.NewReplacer(
		order.ID, "ORDER_ID",
		order.BuyerID, "BUYER_ID",
		order.Addons[0].ID, "ADDON_0",
		order.Addons[1].ID, "ADDON_1",
	).Replace(rec.Body.String())

	newGolden(t).Assert(t, "order_history", []byte(body))
}

func TestListOrders_OnlyOwnOrders(t *testing.T) {
	env := newTestEnv(t)
	headers := env.login(t, "okayu")
	other := env.login(t, "marine")

	for _, body := range []PurchaseHTTPRequest{
		{InventoryID: "concert-poisonya", Quantity: 1, AddonNames: []string{"Towel"}},
		{InventoryID: "concert-poisonya", Quantity: 1},
	} {
		rec := env.do(t, http.MethodPost, "/buy", body, headers)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := env.do(t, http.MethodPost, "/buy", PurchaseHTTPRequest{InventoryID: "concert-poisonya", Quantity: 1}, other)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/my-orders", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var history []OrderHistoryResponse
	envelope := decodeEnvelope(t, rec, &history)
	assert.Equal(t, "list of orders", envelope.Message)
	require.Len(t, history, 2)

	for _, h := range history {
		assert.Equal(t, "POISONYA SYNDROME", h.Concert.Name)
		assert.Equal(t, "Tachikawa Stage Garden", h.Concert.Venue)
		assert.NotNil(t, h.Addons)
	}

	var towels int
	for _, h := range history {
		for _, a := range h.Addons {
			if a.ItemName == "Towel" {
				towels++
			}
		}
	}
	assert.Equal(t, 1, towels)
}

func TestWriteError(t *testing.T) {
	h := &HTTPHandler{logger: applog.Discard()}

	tests := []struct {
		err        error
		httpStatus int
		status     string
		message    string
	}{
		{fmt.Errorf("%w: retry later", domain.ErrConflict), http.StatusConflict, StatusConflict, "conflict, please retry: retry later"},
		{domain.ErrInsufficientStock, http.StatusConflict, StatusInsufficientStock, domain.ErrInsufficientStock.Error()},
		{domain.ErrDuplicateRequest, http.StatusConflict, StatusDuplicateRequest, domain.ErrDuplicateRequest.Error()},
		{domain.ErrForbidden, http.StatusForbidden, StatusForbidden, domain.ErrForbidden.Error()},
		{errors.New("dial tcp: connection refused"), http.StatusInternalServerError, StatusInternalServerError, "internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeError(rec, httptest.NewRequest(http.MethodPost, "/buy", nil), tt.err)

			assert.Equal(t, tt.httpStatus, rec.Code)
			envelope := decodeEnvelope(t, rec, nil)
			assert.Equal(t, tt.status, envelope.Status)
			assert.Equal(t, tt.message, envelope.Message)

			if errors.Is(tt.err, domain.ErrConflict) {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			} else {
				assert.Empty(t, rec.Header().Get("Retry-After"))
			}
		})
	}
}

func TestSplitAddons(t *testing.T) {
	assert.Nil(t, splitAddons(""))
	assert.Nil(t, splitAddons("   "))
	assert.Equal(t, []string{"Latte"}, splitAddons("Latte"))
	assert.Equal(t, []string{"Latte", "Mocha"}, splitAddons(" Latte , Mocha "))
	assert.Equal(t, []string{"Latte", "", "Mocha"}, splitAddons("Latte,,Mocha"))
}

func TestPurchase_BlankAddonRejectedInBothForms(t *testing.T) {
	env := newTestEnv(t)
	headers := env.login(t, "okayu")

	for name, req := range map[string]PurchaseHTTPRequest{
		"comma string": {InventoryID: "concert-poisonya", Quantity: 1, Addons: "Latte,,Mocha"},
		"list":         {InventoryID: "concert-poisonya", Quantity: 1, AddonNames: []string{"Latte", " ", "Mocha"}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/buy", req, headers)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	rec := env.do(t, http.MethodGet, "/my-orders", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "you have no order history yet")
}
