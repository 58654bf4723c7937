package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/ticket-sale/internal/adapter/storage"
	"github.com/rl1809/ticket-sale/internal/applog"
	"github.com/rl1809/ticket-sale/internal/auth"
	"github.com/rl1809/ticket-sale/internal/core/domain"
	"github.com/rl1809/ticket-sale/internal/core/service"
)

// fixedNow sits after the Ahoy show and well before the POISONYA sale
// deadline.
var fixedNow = time.Date(2026, time.October, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	adapter *storage.SQLAdapter
	tokens  *auth.TokenManager
	orders  *service.OrderService
	authn   *service.AuthService
	catalog *service.CatalogService
	router  http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "handler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adapter := storage.NewSQLiteAdapter(db)
	ctx := context.Background()
	require.NoError(t, adapter.Migrate(ctx))

	for _, c := range []domain.Concert{
		{
			ID: "concert-poisonya", Name: "POISONYA SYNDROME", Artist: "Nekomata Okayu",
			Price: 50, Stock: 3000, Venue: "Tachikawa Stage Garden",
			Date: time.Date(2026, time.November, 15, 11, 0, 0, 0, time.UTC),
		},
		{
			ID: "concert-ahoy", Name: "Ahoy!! You're All Pirates", Artist: "Houshou Marine",
			Price: 70, Stock: 20000, Venue: "K-Arena",
			Date: time.Date(2026, time.February, 10, 10, 0, 0, 0, time.UTC),
		},
	} {
		c.CreatedAt, c.UpdatedAt = fixedNow, fixedNow
		require.NoError(t, adapter.CreateConcert(ctx, c))
	}

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	require.NoError(t, err)

	logger := applog.Discard()
	env := &testEnv{adapter: adapter, tokens: tokens}
	env.orders = service.NewOrderService(service.OrderServiceProperty{
		UnitOfWork: adapter,
		History:    adapter,
		Cache:      storage.NopCache{},
		Logger:     logger,
		Clock:      func() time.Time { return fixedNow },
	})
	env.authn = service.NewAuthService(service.AuthServiceProperty{
		Buyers:     adapter,
		Tokens:     tokens,
		Logger:     logger,
		BcryptCost: bcrypt.MinCost,
	})
	env.catalog = service.NewCatalogService(adapter, storage.NopCache{}, logger)

	router := mux.NewRouter()
	NewHTTPHandler(env.orders, env.authn, env.catalog, logger).Register(router, NewAuthenticator(tokens))
	router.Use(RequestLogger(logger))
	env.router = router

	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// login registers username and returns a bearer header for it.
func (e *testEnv) login(t *testing.T, username string) map[string]string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/auth/register", RegisterHTTPRequest{Username: username, Password: "nyannyan"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/auth/login", LoginHTTPRequest{Username: username, Password: "nyannyan"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.Token)

	return map[string]string{"Authorization": "Bearer " + resp.Data.Token}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) RESTEnvelope {
	t.Helper()

	var env struct {
		Status  string          `json:"status"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return RESTEnvelope{Status: env.Status, Message: env.Message}
}
