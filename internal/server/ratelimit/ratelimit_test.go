package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBucket_BurstThenDeny(t *testing.T) {
	tb := newTokenBucket(3, 0.001) // effectively no refill within the test

	for i := 0; i < 3; i++ {
		assert.True(t, tb.allow(), "burst request %d should pass", i)
	}
	assert.False(t, tb.allow(), "bucket exhausted")
}

func TestLimiter_Disabled(t *testing.T) {
	l := NewLimiter(&Config{Enabled: false})
	defer l.Stop()

	for i := 0; i < 100; i++ {
		allowed, _ := l.Allow("1.2.3.4", "/jobs", "POST")
		require.True(t, allowed)
	}
}

func TestLimiter_EndpointLimit(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1000,
		DefaultWindow: time.Minute,
		Whitelist:     map[string]bool{},
		Blacklist:     map[string]bool{},
		EndpointConfigs: []EndpointConfig{
			{Path: "/jobs", Method: "POST", Limit: 2, Window: time.Hour, Burst: 2},
		},
	})
	defer l.Stop()

	allowed, info := l.Allow("1.2.3.4", "/jobs", "POST")
	assert.True(t, allowed)
	assert.Equal(t, 2, info.Limit)

	allowed, _ = l.Allow("1.2.3.4", "/jobs", "POST")
	assert.True(t, allowed)

	allowed, info = l.Allow("1.2.3.4", "/jobs", "POST")
	assert.False(t, allowed)
	assert.Greater(t, info.RetryAfter, time.Duration(0))

	// A different client gets its own bucket.
	allowed, _ = l.Allow("5.6.7.8", "/jobs", "POST")
	assert.True(t, allowed)
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l := NewLimiter(&Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Hour,
		Whitelist:     map[string]bool{"10.0.0.1": true},
		Blacklist:     map[string]bool{"10.0.0.2": true},
	})
	defer l.Stop()

	for i := 0; i < 10; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/jobs", "POST")
		require.True(t, allowed, "whitelisted client is never limited")
	}

	allowed, _ := l.Allow("10.0.0.2", "/jobs", "POST")
	assert.False(t, allowed, "blacklisted client is always denied")
}

func TestMatchEndpoint(t *testing.T) {
	configs := []EndpointConfig{
		{Path: "/jobs", Method: "POST", Limit: 20},
		{Path: "/jobs/", Method: "POST", Limit: 100},
	}

	exact := MatchEndpoint("/jobs", "POST", configs)
	require.NotNil(t, exact)
	assert.Equal(t, 20, exact.Limit)

	prefix := MatchEndpoint("/jobs/abc/cancel", "POST", configs)
	require.NotNil(t, prefix)
	assert.Equal(t, 100, prefix.Limit)

	assert.Nil(t, MatchEndpoint("/jobs/abc/progress", "GET", configs))

	health := MatchEndpoint("/health", "GET", configs)
	require.NotNil(t, health)
	assert.Equal(t, 0, health.Limit)
}
