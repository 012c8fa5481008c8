package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/internal/domain/rules"
)

type noopTelemetry struct{}

func (noopTelemetry) TracerProvider() trace.TracerProvider { return tracenoop.NewTracerProvider() }
func (noopTelemetry) MeterProvider() metric.MeterProvider  { return metricnoop.NewMeterProvider() }

func repoPath(parts ...string) string {
	return filepath.Join(append([]string{"..", ".."}, parts...)...)
}

func testConfig() *Config {
	return &Config{
		Addr:         "127.0.0.1:0",
		Storage:      StorageMemory,
		RulesFile:    repoPath("config", "rules.yaml"),
		ProductsFile: repoPath("db", "seed", "products.json"),
		APIKeyPepper: "pepper",
		SeedAPIKey:   "seed-key",
		RateLimit:    RateLimitConfig{Max: 1000, Window: time.Minute, PerAPIKey: true},
		CORS: CORSConfig{
			Origins:       []string{"*"},
			AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
			ExposeHeaders: []string{"X-Request-ID", "X-RateLimit-Remaining"},
			MaxAge:        time.Hour,
		},
		Health:       HealthConfig{Interval: time.Second, MaxGoroutines: 100000, MaxGCPause: time.Minute},
	}
}

func TestConfig_Validate(t *testing.T) {
	for _, tt := range []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "Memory", modify: func(*Config) {}},
		{
			name:    "PostgresWithoutURL",
			modify:  func(c *Config) { c.Storage = StoragePostgres },
			wantErr: "database URL is required",
		},
		{
			name: "PostgresWithURL",
			modify: func(c *Config) {
				c.Storage = StoragePostgres
				c.DatabaseURL = "postgres://localhost/kart"
			},
		},
		{
			name:    "UnknownStorage",
			modify:  func(c *Config) { c.Storage = "redis" },
			wantErr: `unknown storage "redis"`,
		},
		{
			name:    "NoRules",
			modify:  func(c *Config) { c.RulesFile = "" },
			wantErr: "rules file is required",
		},
		{
			name:    "CredentialsWithWildcard",
			modify:  func(c *Config) { c.CORS.AllowCredentials = true },
			wantErr: "CORS credentials require explicit origins",
		},
		{
			name: "CredentialsWithOrigins",
			modify: func(c *Config) {
				c.CORS.AllowCredentials = true
				c.CORS.Origins = []string{"https://shop.example.com"}
			},
		},
		{
			name:    "ZeroRateLimit",
			modify:  func(c *Config) { c.RateLimit.Max = 0 },
			wantErr: "rate limit",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfig_PlatformDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://platform/kart")
	t.Setenv("KART_STORAGE", "")
	t.Setenv("PORT", "9999")

	cfg := &Config{Addr: "0.0.0.0:8080", Storage: StorageMemory}
	cfg.applyPlatformDefaults()

	assert.Equal(t, "postgres://platform/kart", cfg.DatabaseURL)
	assert.Equal(t, StoragePostgres, cfg.Storage)
	assert.Equal(t, "0.0.0.0:9999", cfg.Addr)
}

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := testConfig()
	table, codes, err := rules.Load(cfg.RulesFile)
	require.NoError(t, err)

	st, err := openStores(ctx, zap.NewNop(), cfg, codes)
	require.NoError(t, err)
	t.Cleanup(st.close)
	assert.Nil(t, st.db)

	healthSvc := newHealth(cfg, st)
	healthSvc.SetReady(true)

	api, err := newAPI(ctx, cfg, noopTelemetry{}, table, st, healthSvc)
	require.NoError(t, err)
	return &testServer{handler: api}
}

func (s *testServer) do(t *testing.T, method, path, body, key string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("api_key", key)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &out)
	}
	return w, out
}

func TestAPI_Wiring(t *testing.T) {
	srv := newTestServer(t)

	t.Run("Health", func(t *testing.T) {
		w, body := srv.do(t, http.MethodGet, "/livez", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", body["status"])

		w, _ = srv.do(t, http.MethodGet, "/readyz", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Calculate", func(t *testing.T) {
		w, body := srv.do(t, http.MethodPost, "/api/discounts/calculate",
			`{"customerType":"VIP","amount":1000,"orderDate":"2025-11-28"}`, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, float64(700), body["discountedAmount"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("SeededCatalog", func(t *testing.T) {
		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/products", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var products []map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &products))
		assert.NotEmpty(t, products)
	})

	t.Run("SeededPromoCodes", func(t *testing.T) {
		w, body := srv.do(t, http.MethodPost, "/api/promo-codes/validate",
			`{"code":"welcome10","customerType":"VIP","amount":100}`, "")
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, true, body["isValid"])
	})

	t.Run("OrdersRequireSeededKey", func(t *testing.T) {
		w, _ := srv.do(t, http.MethodPost, "/api/orders",
			`{"customerType":"REGULAR","amount":50,"orderDate":"2025-06-10"}`, "wrong-key")
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		w, body := srv.do(t, http.MethodPost, "/api/orders",
			`{"customerType":"REGULAR","amount":50,"orderDate":"2025-06-10"}`, "seed-key")
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Equal(t, float64(50), body["finalAmount"])
	})

	t.Run("Preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "api_key")
		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "api_key")
		assert.Equal(t, "GET, POST, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "3600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("ExposeHeadersFromConfig", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("Origin", "https://shop.example.com")
		w := httptest.NewRecorder()
		srv.handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "X-Request-ID, X-RateLimit-Remaining", w.Header().Get("Access-Control-Expose-Headers"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
	})

	t.Run("HugeAmountRejected", func(t *testing.T) {
		w, body := srv.do(t, http.MethodPost, "/api/discounts/calculate",
			`{"customerType":"VIP","amount":1e100000000}`, "")
		require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		assert.Equal(t, "amount is out of range", body["message"])
	})
}

func TestOpenStores_MissingProducts(t *testing.T) {
	cfg := testConfig()
	cfg.ProductsFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := openStores(context.Background(), zap.NewNop(), cfg, nil)
	require.ErrorContains(t, err, "load products")
}
