package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mwopts "github.com/kart-io/sentinel-advisor/pkg/options/middleware"
	options "github.com/kart-io/sentinel-advisor/pkg/options/server/http"
	apierrors "github.com/kart-io/sentinel-advisor/pkg/utils/errors"
	"github.com/kart-io/sentinel-advisor/pkg/utils/json"
	"github.com/kart-io/sentinel-advisor/pkg/utils/response"
)

func TestNoRouteAndNoMethod(t *testing.T) {
	s, err := NewServer(options.NewOptions(), mwopts.NewOptions())
	require.NoError(t, err)
	s.Engine().POST("/recommend", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, apierrors.ErrRouteNotFound.Code, resp.Code)
	assert.NotEmpty(t, resp.RequestID)

	w = httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/recommend", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestStartStop(t *testing.T) {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"
	s, err := NewServer(opts, mwopts.NewOptions())
	require.NoError(t, err)
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, s.Start(context.Background()))
	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "pong", string(body))

	require.NoError(t, s.Stop(context.Background()))
	_, open := <-s.Err()
	assert.False(t, open)
}

func TestNewServerRejectsBadMiddleware(t *testing.T) {
	mw := mwopts.NewOptions()
	mw.CORS.AllowOrigins = []string{"not-an-origin"}
	_, err := NewServer(nil, mw)
	assert.Error(t, err)
}
