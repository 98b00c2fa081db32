package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redlance/redlance/pkg/llmprovider"
)

func TestCacheGetMiss(t *testing.T) {
	c := NewCache(4, time.Minute)
	_, ok := c.Get("fp1", "fast")
	assert.False(t, ok)
}

func TestCachePutThenGet(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Put("fp1", "fast", llmprovider.ProviderResponse{Kind: llmprovider.ResponseTextOnly, Text: "hi"})

	v, ok := c.Get("fp1", "fast")
	require.True(t, ok)
	assert.Equal(t, "hi", v.Text)
}

func TestCacheDistinguishesByMode(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Put("fp1", "fast", llmprovider.ProviderResponse{Text: "fast-answer"})
	c.Put("fp1", "deep", llmprovider.ProviderResponse{Text: "deep-answer"})

	v, ok := c.Get("fp1", "deep")
	require.True(t, ok)
	assert.Equal(t, "deep-answer", v.Text)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewCache(2, time.Minute)
	c.Put("a", "fast", llmprovider.ProviderResponse{Text: "a"})
	c.Put("b", "fast", llmprovider.ProviderResponse{Text: "b"})
	c.Get("a", "fast") // promote a
	c.Put("c", "fast", llmprovider.ProviderResponse{Text: "c"})

	_, ok := c.Get("b", "fast")
	assert.False(t, ok, "b should have been evicted as least recently used")

	_, ok = c.Get("a", "fast")
	assert.True(t, ok)
}

func TestCacheExpiresAfterTTL(t *testing.T) {
	c := NewCache(4, 10*time.Millisecond)
	c.Put("fp1", "fast", llmprovider.ProviderResponse{Text: "stale soon"})

	time.Sleep(20 * time.Millisecond)
	_, ok := c.Get("fp1", "fast")
	assert.False(t, ok)
}
