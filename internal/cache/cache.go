package cache

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/gin-gonic/gin"
	"github.com/semiprime/survival-matrix/internal/monitoring"
)

// Cache is a bounded TTL response cache. Scoring is a pure function of the
// request body, so identical bodies can safely share a response until the
// entry expires or is evicted.
type Cache struct {
	lru *lru.LRU[string, []byte]
	ttl time.Duration
}

// NewCache creates a cache holding at most maxEntries responses for ttl.
func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		lru: lru.NewLRU[string, []byte](maxEntries, nil, ttl),
		ttl: ttl,
	}
}

// generateKey creates a consistent key from the request body
func (c *Cache) generateKey(input string) string {
	hash := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// Get retrieves a cached response body
func (c *Cache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

// Set stores a response body
func (c *Cache) Set(key string, data []byte) {
	c.lru.Add(key, data)
}

// Clear removes all items from the cache
func (c *Cache) Clear() {
	c.lru.Purge()
}

// Size returns the number of items in the cache
func (c *Cache) Size() int {
	return c.lru.Len()
}

// Stats returns cache statistics
func (c *Cache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"items":       c.lru.Len(),
		"ttl_seconds": c.ttl.Seconds(),
	}
}

// Middleware creates a Gin middleware caching POST /predict responses keyed
// by a hash of the request body.
func (c *Cache) Middleware(metrics *monitoring.Metrics, logger *monitoring.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.Method != http.MethodPost || ctx.Request.URL.Path != "/predict" {
			ctx.Next()
			return
		}

		body, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Next()
			return
		}

		// Restore body for the handler
		ctx.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		cacheKey := c.generateKey(string(body))

		if cachedData, found := c.Get(cacheKey); found {
			logger.CacheLogger("get", cacheKey, true, c.Size())
			metrics.IncrementCacheHit()
			ctx.Set("cache_hit", true)
			ctx.Data(http.StatusOK, "application/json", cachedData)
			ctx.Abort()
			return
		}

		metrics.IncrementCacheMiss()

		wrapper := &responseWriter{ResponseWriter: ctx.Writer, body: &bytes.Buffer{}}

		ctx.Writer = wrapper
		ctx.Next()

		// only successful scorings are worth keeping
		if ctx.Writer.Status() == http.StatusOK {
			c.Set(cacheKey, wrapper.body.Bytes())
			logger.CacheLogger("set", cacheKey, false, c.Size())
		}
	}
}

// responseWriter wraps gin.ResponseWriter to capture response body
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *responseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
