package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/event-calendar-api/pkg/errors"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, "Europe/Berlin", cfg.Calendar.Location.String())
	assert.Equal(t, 26352*time.Hour, cfg.Calendar.MaxWindow)
	assert.Equal(t, 30*24*time.Hour, cfg.Calendar.FeedLookback)
	assert.Equal(t, 5000, cfg.Calendar.MaxOccurrences)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CALENDAR_TIMEZONE", "America/New_York")
	v.Set("CALENDAR_MAX_OCCURRENCES", 0)
	v.Set("OCCURRENCE_CACHE_TTL", "not-a-duration")
	v.Set("ENABLE_OCCURRENCE_CACHE", true)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", cfg.Calendar.Timezone)
	assert.Equal(t, 5000, cfg.Calendar.MaxOccurrences)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestFromViperRejectsUnknownTimezone(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("CALENDAR_TIMEZONE", "Mars/Olympus")

	_, err := fromViper(v)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrConfiguration)
}
