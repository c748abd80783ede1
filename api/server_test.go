package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Aidin1998/trailex/internal/bookkeeper"
	"github.com/Aidin1998/trailex/internal/engine"
	"github.com/Aidin1998/trailex/internal/engine/model"
	"github.com/Aidin1998/trailex/internal/engine/repository"
	"github.com/Aidin1998/trailex/internal/events"
	"github.com/Aidin1998/trailex/internal/venue"
)

type apiFixture struct {
	server *Server
	assets *bookkeeper.InMemoryService
	venue  *venue.Simulated
	owner  uuid.UUID
}

func newFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	assets := bookkeeper.NewInMemoryService(logger)
	tokens := bookkeeper.NewInMemoryTokenLedger()
	v := venue.NewSimulated("WETH-USDC", "WETH", "USDC",
		decimal.NewFromInt(1_000_000), decimal.NewFromInt(1_000_000), logger)

	eng := engine.New(logger, repository.NewInMemoryRepository(),
		assets, tokens, events.NewRecorder(), engine.Config{})
	eng.RegisterVenue(v)
	require.NoError(t, eng.SetTrustedVenue(v.Key(), true))
	v.SetPriceListener(eng)

	owner := uuid.New()
	assets.Deposit(ctx, owner, "WETH", decimal.NewFromInt(1000))
	assets.Deposit(ctx, v.Account(), "WETH", decimal.NewFromInt(1_000_000))
	assets.Deposit(ctx, v.Account(), "USDC", decimal.NewFromInt(1_000_000))

	return &apiFixture{
		server: NewServer(logger, eng),
		assets: assets,
		venue:  v,
		owner:  owner,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, account uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if account != uuid.Nil {
		req.Header.Set(accountHeader, account.String())
	}
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func createStopBody() map[string]any {
	return map[string]any{
		"venue_key":        "WETH-USDC",
		"direction":        model.DirectionSellBase,
		"threshold_margin": 500,
		"amount":           "10",
		"min_output":       "0",
	}
}

func TestCreateAndGetStop(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPost, "/api/v1/stops", createStopBody(), f.owner)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(t, http.MethodGet, "/api/v1/stops/"+created.OrderID.String(), nil, uuid.Nil)
	require.Equal(t, http.StatusOK, w.Code)

	var details model.OrderDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &details))
	assert.False(t, details.Executed)
	assert.False(t, details.Triggered)
	assert.Equal(t, int64(0), details.TrailingWatermark)
}

func TestCreateStopRequiresAccountHeader(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/stops", createStopBody(), uuid.Nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateStopValidationMapsTo400(t *testing.T) {
	f := newFixture(t)
	body := createStopBody()
	body["threshold_margin"] = model.MaxThresholdTicks + 1
	w := f.do(t, http.MethodPost, "/api/v1/stops", body, f.owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCancelStopByStrangerIsForbidden(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/stops", createStopBody(), f.owner)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(t, http.MethodDelete, "/api/v1/stops/"+created.OrderID.String(), nil, uuid.New())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodDelete, "/api/v1/stops/"+created.OrderID.String(), nil, f.owner)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestManualExecuteBeforeTriggerIsConflict(t *testing.T) {
	f := newFixture(t)
	w := f.do(t, http.MethodPost, "/api/v1/stops", createStopBody(), f.owner)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		OrderID uuid.UUID `json:"order_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/stops/%s/execute", created.OrderID), nil, f.owner)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSetVenueTrust(t *testing.T) {
	f := newFixture(t)

	w := f.do(t, http.MethodPut, "/api/v1/admin/venues/WETH-USDC/trust",
		map[string]any{"trusted": false}, uuid.Nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Creation against an untrusted venue is rejected.
	w = f.do(t, http.MethodPost, "/api/v1/stops", createStopBody(), f.owner)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/v1/admin/venues/NOPE/trust",
		map[string]any{"trusted": true}, uuid.Nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
