package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "9090")
	t.Setenv("WORKFLOW_STEP_MAX_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, 4, cfg.Workflow.StepMaxAttempts)
	assert.Equal(t, time.Second, cfg.Workflow.StepDelay)
	assert.Equal(t, "@every 5m", cfg.Workflow.RedriveSchedule)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORKFLOW_STEP_MAX_ATTEMPTS", "2")
	t.Setenv("WORKFLOW_STEP_DELAY", "250ms")
	t.Setenv("EVENTS_DRIVER", "memory")
	t.Setenv("SMTP_HOST", "smtp.mailtrap.io")
	t.Setenv("SMTP_PORT", "2525")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Workflow.StepMaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.Workflow.StepDelay)
	assert.Equal(t, "memory", cfg.Events.Driver)
	assert.Equal(t, "smtp.mailtrap.io:2525", cfg.Notification.SMTPAddr())
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("WORKFLOW_STEP_DELAY", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "WORKFLOW_STEP_DELAY")
}

func TestIntFallbackOnGarbage(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	assert.Equal(t, 8, getEnvAsInt("WORKER_CONCURRENCY", 8))
	assert.Empty(t, NotificationConfig{}.SMTPAddr())
}
