package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/config"
	"ethioshop.com/app/internal/logging"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		AppEnv:               "test",
		AppURL:               "https://shop.et",
		DBDriver:             "sqlite",
		DBDSN:                filepath.Join(t.TempDir(), "app.db"),
		DBAutoMigrate:        true,
		JWTSecret:            "secret",
		ChapaSecretKey:       "CHASECK_TEST-x",
		ChapaWebhookSecret:   "whsec",
		WebhookArchiveDriver: "local",
		LocalArchiveDir:      t.TempDir(),
		OrderPendingTTL:      time.Hour,
		OrderSweepInterval:   time.Minute,
		RateLimitRPS:         5,
		RateLimitBurst:       5,
	}
}

func TestNewWiresServices(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	_, ok := a.Gateways.Get("chapa")
	assert.True(t, ok)
	_, ok = a.Gateways.Get("stripe")
	assert.False(t, ok)
	assert.NotNil(t, a.Archive)
	assert.NotNil(t, a.Limiter)
	assert.Nil(t, a.Mail)

	for _, m := range Models() {
		assert.True(t, a.DB.Migrator().HasTable(m), "%T", m)
	}

	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewWithoutRateLimit(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimitRPS = 0
	cfg.WebhookArchiveDriver = "none"
	cfg.SMTPHost, cfg.SMTPPort = "localhost", "1025"

	a, err := New(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	assert.Nil(t, a.Limiter)
	assert.Nil(t, a.Archive)
	assert.NotNil(t, a.Mail)

	ctx, cancel := context.WithCancel(context.Background())
	a.RunBackground(ctx)
	cancel()
}
