// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/clicktrail/clicktrail/internal/model"
)

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

// StartRedis returns a client for a throwaway Redis.
// REDIS_URL wins when set; otherwise a container is started. The test is
// skipped under -short or when no container runtime is available.
func StartRedis(t *testing.T) *redis.Client {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}

	ctx := context.Background()

	if url := os.Getenv("REDIS_URL"); url != "" {
		opt, err := redis.ParseURL(url)
		if err != nil {
			t.Fatalf("parse REDIS_URL: %v", err)
		}
		client := redis.NewClient(opt)
		t.Cleanup(func() { client.Close() })
		if err := client.FlushDB(ctx).Err(); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		return client
	}

	testcontainers.SkipIfProviderIsNotHealthy(t)

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Skipf("start redis container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	conn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redis connection string: %v", err)
	}

	opt, err := redis.ParseURL(conn)
	if err != nil {
		t.Fatalf("parse redis connection string: %v", err)
	}
	opt.DialTimeout = 5 * time.Second

	client := redis.NewClient(opt)
	t.Cleanup(func() { client.Close() })

	return client
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestClickEvent creates a click event with sensible defaults.
func NewTestClickEvent(t testing.TB, url string, at time.Time) model.ClickEvent {
	t.Helper()
	return model.ClickEvent{
		ID:               UniqueID("evt"),
		Timestamp:        model.FormatTimestamp(at, time.UTC),
		IP:               "203.0.113.10",
		URL:              url,
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64)",
		Referer:          "https://t.me/somechannel",
		UniqueImpression: true,
		QualityScore:     100,
	}
}

// EncodeLogLine serializes an event the way the click log stores it.
func EncodeLogLine(t testing.TB, event model.ClickEvent) string {
	t.Helper()
	data, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return string(data) + "\n"
}

// WriteLogFile writes raw lines into path and returns path.
func WriteLogFile(t testing.TB, path string, lines ...string) string {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "")), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}
	return path
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
