package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis-signal/pkg/config"
)

func testConfig(t *testing.T) config.DatabaseConfig {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}
	return config.DatabaseConfig{URL: url, MaxConns: 4, MinConns: 1, MaxConnLifetime: time.Hour}
}

func TestNew_HealthCheck(t *testing.T) {
	db, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status, err := db.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.Stats.MaxConns, int32(0))

	// Double close should not panic
	db.Close()
	db.Close()
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), config.DatabaseConfig{URL: "invalid://url"})
	assert.Error(t, err)
}
