package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFetch_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Test", "yes")
		fmt.Fprint(w, "hello")
	}))
	defer ts.Close()

	client := NewClient("", zap.NewNop())
	resp, err := client.Fetch(context.Background(), ts.URL, Options{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", string(resp.Body))
	assert.Equal(t, "yes", resp.Header.Get("X-Test"))
	assert.False(t, resp.ViaProxy)
}

func TestFetch_HTTPErrorStatusIsNotAnError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, "gated")
	}))
	defer ts.Close()

	client := NewClient("", zap.NewNop())
	resp, err := client.Fetch(context.Background(), ts.URL, Options{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "gated", string(resp.Body))
}

func TestFetch_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	client := NewClient("", zap.NewNop())
	_, err := client.Fetch(context.Background(), ts.URL, Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
}

func TestFetch_NetworkError(t *testing.T) {
	client := NewClient("", zap.NewNop())
	_, err := client.Fetch(context.Background(), "http://127.0.0.1:1", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.False(t, IsTimeout(err))
}

func TestFetch_FallsBackToProxyOnNetworkError(t *testing.T) {
	var proxiedURL string
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxiedURL = r.URL.Query().Get("url")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "via proxy")
	}))
	defer proxy.Close()

	client := NewClient(proxy.URL, zap.NewNop())
	resp, err := client.Fetch(context.Background(), "http://127.0.0.1:1/page", Options{FollowRedirects: true})
	require.NoError(t, err)

	assert.True(t, resp.ViaProxy)
	assert.Equal(t, "via proxy", string(resp.Body))
	assert.Equal(t, "http://127.0.0.1:1/page", proxiedURL)
}

func TestFetch_NoProxyFallbackInManualRedirectMode(t *testing.T) {
	proxyCalled := false
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyCalled = true
		w.WriteHeader(http.StatusOK)
	}))
	defer proxy.Close()

	// The proxy follows redirects server-side, which would hide the 3xx
	// a manual-redirect caller is walking hop by hop.
	client := NewClient(proxy.URL, zap.NewNop())
	_, err := client.Fetch(context.Background(), "http://127.0.0.1:1/page", Options{FollowRedirects: false})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.False(t, proxyCalled)
}

func TestFetch_NoProxyFallbackOnTimeout(t *testing.T) {
	proxyCalled := false
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proxyCalled = true
	}))
	defer proxy.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer slow.Close()

	client := NewClient(proxy.URL, zap.NewNop())
	_, err := client.Fetch(context.Background(), slow.URL, Options{Timeout: 50 * time.Millisecond})
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.False(t, proxyCalled)
}

func TestFetch_ManualRedirectMode(t *testing.T) {
	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	defer ts.Close()
	mux.HandleFunc("/from", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/to", http.StatusMovedPermanently)
	})

	client := NewClient("", zap.NewNop())
	resp, err := client.Fetch(context.Background(), ts.URL+"/from", Options{FollowRedirects: false})
	require.NoError(t, err)
	assert.Equal(t, http.StatusMovedPermanently, resp.StatusCode)
	assert.Equal(t, "/to", resp.Header.Get("Location"))
}
