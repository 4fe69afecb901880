package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tavily-register/internal/config"
)

func TestDefaults(t *testing.T) {
	s := config.Default()

	assert.Equal(t, "2925.com", s.EmailDomain)
	assert.Equal(t, 30*time.Second, s.MailPollInterval)
	assert.Equal(t, 5*time.Minute, s.MailDeadline)
	assert.Equal(t, 7*24*time.Hour, s.CookieTTL)
	assert.Equal(t, 3, s.PhaseAttempts)
	assert.Equal(t, 3, s.FillAttempts)
	assert.Equal(t, "api_keys.md", s.KeysFile)
	assert.False(t, s.UseSimpleInteractor)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("EMAIL_PREFIX", "someone")
	t.Setenv("EMAIL_CHECK_INTERVAL", "10")
	t.Setenv("MAX_EMAIL_WAIT_TIME", "60")
	t.Setenv("HEADLESS", "true")
	t.Setenv("PHASE_ATTEMPTS", "5")
	t.Setenv("USE_SIMPLE_INTERACTOR", "1")

	s := config.FromEnv()

	assert.Equal(t, "someone", s.EmailPrefix)
	assert.Equal(t, 10*time.Second, s.MailPollInterval)
	assert.Equal(t, time.Minute, s.MailDeadline)
	assert.True(t, s.Headless)
	assert.Equal(t, 5, s.PhaseAttempts)
	assert.True(t, s.UseSimpleInteractor)
}

func TestFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("EMAIL_CHECK_INTERVAL", "soon")
	t.Setenv("HEADLESS", "maybe")
	t.Setenv("PHASE_ATTEMPTS", "")

	s := config.FromEnv()
	d := config.Default()

	assert.Equal(t, d.MailPollInterval, s.MailPollInterval)
	assert.Equal(t, d.Headless, s.Headless)
	assert.Equal(t, d.PhaseAttempts, s.PhaseAttempts)
}
