package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "")
	t.Setenv("WORKER_CONCURRENCY", "")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("HISTORY_WINDOW", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("WORKER_HTTP_ADDR", "")

	cfg := Load()

	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 2, cfg.IntentLockRequests)
	assert.Equal(t, 60*time.Second, cfg.TaskStatusTTL)
	assert.Equal(t, 300*time.Second, cfg.AuthTTL)
	assert.Equal(t, time.Hour, cfg.AuthPromptCooldown)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.NotEmpty(t, cfg.DBDSN)
	assert.Equal(t, "task_queue", cfg.RabbitQueue)
	assert.Equal(t, 0, cfg.HistoryWindow)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":8081", cfg.WorkerHTTPAddr)
	assert.NotEqual(t, cfg.HTTPAddr, cfg.WorkerHTTPAddr, "bot and worker share a host by default")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "10")
	t.Setenv("RATE_LIMIT_WINDOW", "30")
	t.Setenv("AUTH_TTL", "2m")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("DB_DRIVER", "MySQL")
	t.Setenv("DB_DSN", "")

	cfg := Load()

	assert.Equal(t, 10, cfg.RateLimitMax)
	assert.Equal(t, 30*time.Second, cfg.RateLimitWindow)
	assert.Equal(t, 2*time.Minute, cfg.AuthTTL)
	assert.Equal(t, 50, cfg.WorkerConcurrency)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Contains(t, cfg.DBDSN, "tcp(")
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("RATE_LIMIT_MAX", "many")
	t.Setenv("TASK_STATUS_TTL", "-5s")
	t.Setenv("WORKER_CONCURRENCY", "0")

	cfg := Load()

	assert.Equal(t, 5, cfg.RateLimitMax)
	assert.Equal(t, 60*time.Second, cfg.TaskStatusTTL)
	assert.Equal(t, 2, cfg.WorkerConcurrency)
}
