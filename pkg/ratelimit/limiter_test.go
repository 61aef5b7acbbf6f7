package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/canadianpizza/orderbot-core/pkg/config"
	"github.com/canadianpizza/orderbot-core/pkg/models"
)

func TestLimiter_PerUserMinuteBoundary(t *testing.T) {
	l := New(config.DefaultRateLimitConfig())

	for i := 0; i < 10; i++ {
		d := l.Check("user-1", "1.2.3.4")
		assert.True(t, d.Admitted, "request %d should be admitted", i+1)
	}

	d := l.Check("user-1", "1.2.3.4")
	assert.False(t, d.Admitted)
	assert.Equal(t, models.DimensionPerUserMinute, d.DenyReason)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}

func TestLimiter_TokenBucketBurst(t *testing.T) {
	cfg := config.DefaultRateLimitConfig()
	cfg.PerUserPerMinute = 1000 // isolate the burst dimension
	l := New(cfg)

	for i := 0; i < 20; i++ {
		d := l.Check("user-2", "1.2.3.4")
		assert.True(t, d.Admitted, "burst request %d should be admitted", i+1)
	}

	d := l.Check("user-2", "1.2.3.4")
	assert.False(t, d.Admitted)
	assert.Equal(t, models.DimensionPerUserBurst, d.DenyReason)
}

func TestLimiter_PerIPIndependentOfUser(t *testing.T) {
	cfg := config.DefaultRateLimitConfig()
	cfg.PerIPPerMinute = 2
	l := New(cfg)

	assert.True(t, l.Check("user-a", "9.9.9.9").Admitted)
	assert.True(t, l.Check("user-b", "9.9.9.9").Admitted)
	d := l.Check("user-c", "9.9.9.9")
	assert.False(t, d.Admitted)
	assert.Equal(t, models.DimensionPerIP, d.DenyReason)
}

func TestLimiter_DifferentSubjectsDoNotInterfere(t *testing.T) {
	cfg := config.DefaultRateLimitConfig()
	cfg.PerUserPerMinute = 1
	l := New(cfg)

	assert.True(t, l.Check("alice", "1.1.1.1").Admitted)
	assert.True(t, l.Check("bob", "2.2.2.2").Admitted)
	assert.False(t, l.Check("alice", "1.1.1.1").Admitted)
}
