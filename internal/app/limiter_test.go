package app

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageQuotaBlocks(t *testing.T) {
	clk := clock.NewMock()
	b := NewRateLimiterBank(clk, DefaultQuotas())

	for i := 0; i < 10; i++ {
		require.True(t, b.Consume(CategoryMessage, "u1").Allowed, "attempt %d", i+1)
		clk.Add(50 * time.Millisecond)
	}
	d := b.Consume(CategoryMessage, "u1")
	require.False(t, d.Allowed)
	assert.Equal(t, 60, d.RetryAfterSeconds())

	assert.True(t, b.Consume(CategoryMessage, "u2").Allowed, "keys are independent")
	assert.True(t, b.Consume(CategoryTyping, "u1").Allowed, "categories are independent")

	clk.Add(59 * time.Second)
	d = b.Consume(CategoryMessage, "u1")
	assert.False(t, d.Allowed)
	assert.LessOrEqual(t, d.RetryAfterSeconds(), 1)

	clk.Add(time.Second)
	assert.True(t, b.Consume(CategoryMessage, "u1").Allowed)
}

func TestQuotaWithoutBlockWaitsForWindow(t *testing.T) {
	clk := clock.NewMock()
	b := NewRateLimiterBank(clk, DefaultQuotas())

	for i := 0; i < 5; i++ {
		require.True(t, b.Consume(CategoryTyping, "u1").Allowed)
	}
	clk.Add(400 * time.Millisecond)
	d := b.Consume(CategoryTyping, "u1")
	require.False(t, d.Allowed)
	assert.Equal(t, 600*time.Millisecond, d.RetryAfter)
	assert.Equal(t, 1, d.RetryAfterSeconds())

	clk.Add(600 * time.Millisecond)
	for i := 0; i < 5; i++ {
		require.True(t, b.Consume(CategoryTyping, "u1").Allowed, "new window attempt %d", i+1)
	}
	assert.False(t, b.Consume(CategoryTyping, "u1").Allowed)
}

func TestUnknownCategoryIsUnlimited(t *testing.T) {
	b := NewRateLimiterBank(clock.NewMock(), map[Category]Quota{})
	for i := 0; i < 100; i++ {
		require.True(t, b.Consume(CategoryReceipt, "u1").Allowed)
	}
}
