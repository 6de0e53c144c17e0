package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/holdings/internal/config"
	"github.com/aristath/holdings/internal/di"
	"github.com/aristath/holdings/internal/modules/portfolio"
	testingpkg "github.com/aristath/holdings/internal/testing"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{
		DataDir:         t.TempDir(),
		Port:            8001,
		DevMode:         true,
		DefaultAccount:  "main",
		DefaultCurrency: "BRL",
		PriceProvider:   config.PriceProviderNone,
		Schedules: config.Schedules{
			PriceSync:   "0 */15 * * * *",
			Snapshot:    "0 0 22 * * *",
			Reconcile:   "0 30 3 * * *",
			Backup:      "0 0 4 * * *",
			Maintenance: "0 0 5 * * *",
			Cleanup:     "@weekly",
		},
		Backup: config.BackupConfig{RetentionDays: 30},
	}

	container, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	return New(Config{
		Log:       zerolog.Nop(),
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		Container: container,
	})
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "holdings", body["service"])
}

func TestServer_TradeFlow(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/accounts/main/deposit", map[string]string{
		"amount":      "1000",
		"description": "initial",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/trades/buy", map[string]string{
		"identifier": "itsa4",
		"quantity":   "10",
		"unit_price": "10",
		"fees":       "0",
		"asset_type": "stock",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/portfolio/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summary portfolio.Summary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summary))
	assert.True(t, testingpkg.Dec("100").Equal(summary.TotalInvested))
	assert.True(t, testingpkg.Dec("900").Equal(summary.CashBalance))
	assert.Equal(t, 1, summary.OpenPositions)

	w = do(t, s, http.MethodPost, "/api/snapshots", nil)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestServer_RoutesRegistered(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{
		"/api/portfolio/positions",
		"/api/accounts",
		"/api/trades",
		"/api/snapshots",
		"/api/jobs",
	} {
		w := do(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
