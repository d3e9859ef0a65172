package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "key1", cfg.Identity.UniqueKeyID)
	assert.Equal(t, "BPP", cfg.Identity.Type)
	assert.Equal(t, time.Hour, cfg.Registry.CacheTTL)
	assert.Equal(t, "staging", cfg.Registry.Environment)
	assert.Equal(t, "https://staging.registry.ondc.org", cfg.Registry.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Protocol.SearchTTL)
	assert.Equal(t, 30*time.Minute, cfg.Protocol.OrderTTL)
	assert.Equal(t, 5*time.Second, cfg.Protocol.ClockSkewLeeway)
	assert.Equal(t, 16, cfg.Gateway.FanoutLimit)
	assert.False(t, cfg.Protocol.StrictTimestamps)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("BECKNET_ADDR", ":9090")
	t.Setenv("BECKNET_PARTICIPANT_TYPE", "BG")
	t.Setenv("BECKNET_SEARCH_TTL", "45s")
	t.Setenv("BECKNET_FANOUT_LIMIT", "32")
	t.Setenv("BECKNET_STRICT_TIMESTAMPS", "true")
	t.Setenv("BECKNET_ALLOWED_DOMAINS", "ONDC:RET10, ONDC:RET11")
	t.Setenv("BECKNET_ENV", "prod")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "BG", cfg.Identity.Type)
	assert.Equal(t, 45*time.Second, cfg.Protocol.SearchTTL)
	assert.Equal(t, 32, cfg.Gateway.FanoutLimit)
	assert.True(t, cfg.Protocol.StrictTimestamps)
	assert.Equal(t, []string{"ONDC:RET10", "ONDC:RET11"}, cfg.Protocol.AllowedDomains)
	assert.Equal(t, "https://prod.registry.ondc.org", cfg.Registry.BaseURL)
}

func TestFromEnv_IgnoresUnparseableValues(t *testing.T) {
	t.Setenv("BECKNET_FANOUT_LIMIT", "many")
	t.Setenv("BECKNET_SEARCH_TTL", "soon")

	cfg := FromEnv()
	assert.Equal(t, 16, cfg.Gateway.FanoutLimit)
	assert.Equal(t, 30*time.Second, cfg.Protocol.SearchTTL)
}
