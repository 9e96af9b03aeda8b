package main

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ethioshop.com/app/internal/config"
)

func TestRunExitsNonZeroWhenPortTaken(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	cfg := config.Config{
		AppEnv:               "test",
		HTTPAddr:             ln.Addr().String(),
		AppURL:               "http://localhost",
		DBDriver:             "sqlite",
		DBDSN:                filepath.Join(t.TempDir(), "web.db"),
		DBAutoMigrate:        true,
		LogLevel:             "error",
		JWTSecret:            "secret",
		WebhookArchiveDriver: "none",
		OrderPendingTTL:      time.Hour,
		OrderSweepInterval:   time.Minute,
	}

	done := make(chan int, 1)
	go func() { done <- run(cfg) }()

	select {
	case code := <-done:
		assert.Equal(t, 1, code)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after listen failure")
	}
}

func TestRunExitsNonZeroOnStartupFailure(t *testing.T) {
	cfg := config.Config{
		AppEnv:             "test",
		HTTPAddr:           "127.0.0.1:0",
		DBDriver:           "oracle",
		LogLevel:           "error",
		JWTSecret:          "secret",
		OrderPendingTTL:    time.Hour,
		OrderSweepInterval: time.Minute,
	}
	assert.Equal(t, 1, run(cfg))
}
