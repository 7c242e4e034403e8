package cache

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/semiprime/survival-matrix/internal/monitoring"
)

func TestCacheGetSet(t *testing.T) {
	c := NewCache(16, time.Minute)

	key := c.generateKey(`{"Pclass": 3}`)
	_, found := c.Get(key)
	assert.False(t, found)

	c.Set(key, []byte(`{"n": 1}`))
	data, found := c.Get(key)
	assert.True(t, found)
	assert.Equal(t, `{"n": 1}`, string(data))

	assert.Equal(t, 1, c.Size())
	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestCacheKeyStable(t *testing.T) {
	c := NewCache(16, time.Minute)

	assert.Equal(t, c.generateKey("same body"), c.generateKey("same body"))
	assert.NotEqual(t, c.generateKey("body a"), c.generateKey("body b"))
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(16, 50*time.Millisecond)

	c.Set("k", []byte("v"))
	_, found := c.Get("k")
	assert.True(t, found)

	time.Sleep(120 * time.Millisecond)
	_, found = c.Get("k")
	assert.False(t, found)
}

func TestCacheEviction(t *testing.T) {
	c := NewCache(2, time.Minute)

	c.Set("a", []byte("1"))
	c.Set("b", []byte("2"))
	c.Set("c", []byte("3"))

	assert.Equal(t, 2, c.Size())
}

func TestCacheStats(t *testing.T) {
	c := NewCache(16, time.Minute)
	c.Set("k", []byte("v"))

	stats := c.Stats()
	assert.Equal(t, 1, stats["items"])
	assert.Equal(t, 60.0, stats["ttl_seconds"])
}

func predictRouter(c *Cache, metrics *monitoring.Metrics, hits *int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(c.Middleware(metrics, monitoring.NewLogger()))
	r.POST("/predict", func(ctx *gin.Context) {
		*hits++
		ctx.JSON(http.StatusOK, gin.H{"n": 1})
	})
	r.POST("/other", func(ctx *gin.Context) {
		*hits++
		ctx.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return r
}

func TestMiddlewareCachesIdenticalBodies(t *testing.T) {
	c := NewCache(16, time.Minute)
	metrics := monitoring.NewMetrics()
	handlerHits := 0
	r := predictRouter(c, metrics, &handlerHits)

	body := `{"Pclass": 3, "Sex": "male"}`

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"n": 1}`, w.Body.String())
	}

	assert.Equal(t, 1, handlerHits, "handler should run once for identical bodies")
}

func TestMiddlewareDistinctBodies(t *testing.T) {
	c := NewCache(16, time.Minute)
	metrics := monitoring.NewMetrics()
	handlerHits := 0
	r := predictRouter(c, metrics, &handlerHits)

	for _, body := range []string{`{"Pclass": 1}`, `{"Pclass": 2}`} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
		r.ServeHTTP(w, req)
	}

	assert.Equal(t, 2, handlerHits)
}

func TestMiddlewareSkipsOtherRoutes(t *testing.T) {
	c := NewCache(16, time.Minute)
	metrics := monitoring.NewMetrics()
	handlerHits := 0
	r := predictRouter(c, metrics, &handlerHits)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodPost, "/other", bytes.NewBufferString(`{}`))
		r.ServeHTTP(w, req)
	}

	assert.Equal(t, 2, handlerHits)
	assert.Equal(t, 0, c.Size())
}

func TestMiddlewareDoesNotCacheErrors(t *testing.T) {
	c := NewCache(16, time.Minute)
	metrics := monitoring.NewMetrics()

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(c.Middleware(metrics, monitoring.NewLogger()))
	r.POST("/predict", func(ctx *gin.Context) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(`{"Pclass": 9}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, c.Size())
}
