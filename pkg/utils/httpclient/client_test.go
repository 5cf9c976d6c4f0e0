package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"texts":["a"]}`, string(body))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"embeddings":[[0.1]]}`))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 1)
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := client.PostJSON(context.Background(), server.URL, map[string]string{"X-Test": "1"},
		map[string][]string{"texts": {"a"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, [][]float32{{0.1}}, out.Embeddings)
}

func TestDoJSON_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 3)
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	err = client.DoJSON(req, nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, "bad key", se.Body)
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<p>hello</p>"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 0)

	body, ctype, err := client.Get(context.Background(), server.URL+"/topic/1/")
	require.NoError(t, err)
	assert.Equal(t, "<p>hello</p>", string(body))
	assert.Contains(t, ctype, "text/html")

	_, _, err = client.Get(context.Background(), server.URL+"/missing")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}

func TestDoRequest_ContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	client := NewClient(5*time.Second, 5)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.DoRequest(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
