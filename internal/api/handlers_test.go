package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fund-ledger/internal/decoder"
	apperrors "github.com/fund-ledger/internal/errors"
	"github.com/fund-ledger/internal/models"
	"github.com/fund-ledger/internal/types"
)

const validHash = "0xdddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddddd"

// mockDecodeService serves a canned decode result.
type mockDecodeService struct {
	dt    *models.DecodedTransaction
	err   error
	stats decoder.Stats
}

func (m *mockDecodeService) DecodeTransaction(_ context.Context, txHash string) (*models.DecodedTransaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dt, nil
}

func (m *mockDecodeService) GetStats() decoder.Stats {
	return m.stats
}

// mockPositionService serves canned positions and disposals.
type mockPositionService struct {
	positions []*models.Position
	disposals []*models.DisposalEvent
}

func (m *mockPositionService) GetPosition(fundID, walletID, asset string) *models.Position {
	for _, p := range m.positions {
		if p.FundID == fundID && p.WalletID == walletID && p.Asset == asset {
			return p
		}
	}
	return &models.Position{FundID: fundID, WalletID: walletID, Asset: asset, Amount: decimal.Zero}
}

func (m *mockPositionService) GetAllPositions() []*models.Position {
	return m.positions
}

func (m *mockPositionService) Disposals() []*models.DisposalEvent {
	return m.disposals
}

func testServer(decodeSvc DecodeServiceInterface, positionSvc PositionServiceInterface) *Server {
	return NewServer(&ServerConfig{
		Host:         "127.0.0.1",
		Port:         "0",
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		IdleTimeout:  time.Second,
	}, decodeSvc, positionSvc, nil)
}

func TestHandleHealth(t *testing.T) {
	server := testServer(&mockDecodeService{}, &mockPositionService{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestHandleDecodeTransaction(t *testing.T) {
	dt := &models.DecodedTransaction{
		TxHash:   validHash,
		Platform: types.PlatformGeneric,
		Category: types.CategoryETHTransfer,
		Status:   types.StatusSuccess,
	}
	server := testServer(&mockDecodeService{dt: dt}, &mockPositionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/decode/"+validHash, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.DecodedTransaction
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, validHash, body.TxHash)
	assert.Equal(t, types.CategoryETHTransfer, body.Category)
}

func TestHandleDecodeTransactionRejectsBadHash(t *testing.T) {
	server := testServer(&mockDecodeService{}, &mockPositionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/decode/nothash", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeInvalidInput, body.Error.Code)
}

func TestHandleDecodeTransactionMapsServiceErrors(t *testing.T) {
	svc := &mockDecodeService{err: apperrors.NewInvalidTxHashError(validHash)}
	server := testServer(svc, &mockPositionService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/decode/"+validHash, nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetStats(t *testing.T) {
	svc := &mockDecodeService{stats: decoder.Stats{
		TotalDecoded: 5,
		SuccessCount: 4,
		ErrorCount:   1,
		PerPlatform:  map[types.Platform]int64{types.PlatformGeneric: 5},
	}}
	server := testServer(svc, &mockPositionService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body decoder.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, int64(5), body.TotalDecoded)
	assert.Equal(t, int64(1), body.ErrorCount)
}

func TestHandleGetPosition(t *testing.T) {
	positions := []*models.Position{{
		FundID:    "fund-test",
		WalletID:  "0xabc",
		Asset:     "ETH",
		Amount:    decimal.NewFromInt(3),
		CostBasis: decimal.NewFromInt(6000),
	}}
	server := testServer(&mockDecodeService{}, &mockPositionService{positions: positions})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/positions/fund-test/0xabc/ETH", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body models.Position
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ETH", body.Asset)
	assert.True(t, body.Amount.Equal(decimal.NewFromInt(3)))
}

func TestHandleGetAllPositions(t *testing.T) {
	positions := []*models.Position{
		{FundID: "fund-test", WalletID: "0xabc", Asset: "ETH", Amount: decimal.NewFromInt(1)},
		{FundID: "fund-test", WalletID: "0xabc", Asset: "USDC", Amount: decimal.NewFromInt(500)},
	}
	server := testServer(&mockDecodeService{}, &mockPositionService{positions: positions})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/positions", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Positions []*models.Position `json:"positions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Positions, 2)
}

func TestHandleGetDisposals(t *testing.T) {
	disposals := []*models.DisposalEvent{{
		DisposalID: "d1",
		Asset:      "ETH",
		Amount:     decimal.NewFromInt(1),
		GainLoss:   decimal.NewFromInt(500),
		Treatment:  types.TreatmentShortTerm,
	}}
	server := testServer(&mockDecodeService{}, &mockPositionService{disposals: disposals})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/disposals", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Disposals []*models.DisposalEvent `json:"disposals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Disposals, 1)
	assert.Equal(t, "d1", body.Disposals[0].DisposalID)
}

func TestJournalEndpointsWithoutStoreReturn503(t *testing.T) {
	server := testServer(&mockDecodeService{}, &mockPositionService{})

	for _, target := range []string{
		"/api/v1/entries",
		"/api/v1/transactions/" + validHash + "/entries",
	} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		server.Router().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "GET %s", target)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries/e1/post", nil)
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
