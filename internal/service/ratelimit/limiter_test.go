package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// ready reports whether a token for key is available within 10ms.
func ready(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) == nil
}

func TestBucketsPerKey(t *testing.T) {
	l := New(0.001, 2)
	assert.True(t, ready(l, "FRED"))
	assert.True(t, ready(l, "FRED"))
	assert.False(t, ready(l, "FRED"))
	assert.True(t, ready(l, "MARKET"), "keys have independent buckets")
}

func TestWaitHonorsContext(t *testing.T) {
	l := New(0.001, 1)
	assert.NoError(t, l.Wait(context.Background(), "FRED"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "FRED"))
}

func TestSetLimitBeforeFirstUse(t *testing.T) {
	l := New(0.001, 1).SetLimit("FRED", 0.001, 3)
	for i := 0; i < 3; i++ {
		assert.True(t, ready(l, "FRED"), "burst token %d", i)
	}
	assert.False(t, ready(l, "FRED"))

	assert.True(t, ready(l, "MARKET"))
	assert.False(t, ready(l, "MARKET"), "default burst is 1")
}

func TestSetLimitAdjustsLiveBucket(t *testing.T) {
	l := New(0.001, 1)
	assert.True(t, ready(l, "FRED"))
	assert.False(t, ready(l, "FRED"))

	l.SetLimit("FRED", 1000, 1)
	time.Sleep(5 * time.Millisecond)
	assert.True(t, ready(l, "FRED"))
}
