package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/sentinel-advisor/pkg/infra/middleware/common"
	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	"github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
	"github.com/kart-io/sentinel-advisor/pkg/utils/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(handlers...)
	return r
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRecovery(t *testing.T) {
	var called bool
	r := newEngine(Recovery(mwopts.RecoveryOptions{}, func(*gin.Context, interface{}, []byte) { called = true }))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.True(t, called)
	resp := decode(t, w)
	assert.Equal(t, errors.ErrPanic.Code, resp.Code)
	assert.Equal(t, errors.ErrPanic.MessageEN, resp.Message)
	assert.NotContains(t, resp.Message, "boom")
}

func TestRecoveryExposePanic(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	r := newEngine(Recovery(mwopts.RecoveryOptions{ExposePanic: true, EnableStackTrace: true}, nil))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	resp := decode(t, serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil)))
	assert.True(t, strings.HasPrefix(resp.Message, "panic: boom\n"))
	assert.Contains(t, resp.Message, "goroutine")
}

func TestRecoveryHidesStackInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	r := newEngine(Recovery(mwopts.RecoveryOptions{ExposePanic: true, EnableStackTrace: true}, nil))
	r.GET("/panic", func(*gin.Context) { panic("boom") })

	resp := decode(t, serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil)))
	assert.Equal(t, "panic: boom", resp.Message)
}

func TestRequestID(t *testing.T) {
	r := newEngine(RequestID(*mwopts.NewRequestIDOptions()))
	var seen string
	r.GET("/", func(c *gin.Context) {
		seen = common.GetRequestID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 32)
	assert.Equal(t, seen, w.Header().Get(common.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(common.HeaderXRequestID, "upstream-id")
	w = serve(r, req)
	assert.Equal(t, "upstream-id", seen)
	assert.Equal(t, "upstream-id", w.Header().Get(common.HeaderXRequestID))
}

func TestRequestIDULID(t *testing.T) {
	r := newEngine(RequestID(mwopts.RequestIDOptions{GeneratorType: "ulid"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, w.Header().Get(common.HeaderXRequestID), 26)
}

func TestCORS(t *testing.T) {
	h, err := CORS(*mwopts.NewCORSOptions())
	require.NoError(t, err)
	r := newEngine(h)
	r.POST("/recommend", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/recommend", nil)
	req.Header.Set("Origin", "http://example.com")
	w := serve(r, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "POST")

	req = httptest.NewRequest(http.MethodPost, "/recommend", nil)
	req.Header.Set("Origin", "http://example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "X-Request-ID", w.Header().Get("Access-Control-Expose-Headers"))
}

func TestCORSRestrictedOrigins(t *testing.T) {
	opts := mwopts.NewCORSOptions()
	opts.AllowOrigins = []string{"https://app.example.com"}
	h, err := CORS(*opts)
	require.NoError(t, err)
	r := newEngine(h)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := serve(r, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(r, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCORSInvalidOptions(t *testing.T) {
	tests := []mwopts.CORSOptions{
		{},
		{AllowOrigins: []string{"*"}, AllowCredentials: true},
		{AllowOrigins: []string{"example.com"}},
		{AllowOrigins: []string{"https://example.com/path"}},
	}
	for _, opts := range tests {
		_, err := CORS(opts)
		assert.Error(t, err)
	}
}

func TestTimeout(t *testing.T) {
	r := newEngine(RequestID(*mwopts.NewRequestIDOptions()), Timeout(mwopts.TimeoutOptions{Timeout: 20 * time.Millisecond}))
	r.GET("/slow", func(c *gin.Context) {
		<-c.Request.Context().Done()
	})
	r.GET("/fast", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, httptest.NewRequest(http.MethodGet, "/slow", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	resp := decode(t, w)
	assert.Equal(t, errors.ErrRequestTimeout.Code, resp.Code)
	assert.NotEmpty(t, resp.RequestID)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/fast", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTimeoutSkipPath(t *testing.T) {
	r := newEngine(Timeout(mwopts.TimeoutOptions{Timeout: time.Millisecond, SkipPaths: []string{"/skip"}}))
	r.GET("/skip", func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.False(t, ok)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/skip", nil)).Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(RateLimit(mwopts.RateLimitOptions{RequestsPerSecond: 0.001, Burst: 2, SkipPaths: []string{"/health"}}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/", nil)).Code)
	}
	w := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, errors.ErrTooManyRequests.Code, decode(t, w).Code)

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestLoggerSlowRequest(t *testing.T) {
	r := newEngine(Logger(mwopts.LoggerOptions{SlowThreshold: time.Millisecond}))
	r.GET("/recommend", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/recommend", nil)).Code)
}

func TestIPLimiterSweepsIdleVisitors(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Unix(0, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.allow("a"))
	assert.False(t, l.allow("a"))

	now = now.Add(2 * visitorTTL)
	assert.True(t, l.allow("b"))
	_, ok := l.visitors["a"]
	assert.False(t, ok)
}

func TestTracingSetsSpanContext(t *testing.T) {
	r := newEngine(Tracing())
	var ctx context.Context
	r.GET("/", func(c *gin.Context) {
		ctx = c.Request.Context()
		c.Status(http.StatusOK)
	})
	serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, ctx)
}

func TestBuildChain(t *testing.T) {
	opts := mwopts.NewOptions()
	chain, err := Build(opts)
	require.NoError(t, err)
	assert.Len(t, chain, len(opts.Middleware))

	opts.Middleware = []string{"nope"}
	_, err = Build(opts)
	assert.Error(t, err)

	opts = mwopts.NewOptions()
	opts.CORS.AllowOrigins = nil
	_, err = Build(opts)
	assert.Error(t, err)
}

func TestLoggerPassesThrough(t *testing.T) {
	r := newEngine(Logger(*mwopts.NewLoggerOptions()))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusTeapot, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}
