package probe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gboone/site-scanner-analyzer/internal/fetch"
)

func newTestWellKnown() *WellKnownProbe {
	return NewWellKnownProbe(fetch.NewClient("", zap.NewNop()), zap.NewNop())
}

func TestWellKnown_ValidDeclaration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, wellKnownPath, r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "Granicus\n")
	}))
	defer ts.Close()

	provider := newTestWellKnown().Probe(context.Background(), ts.URL)
	require.NotNil(t, provider)
	assert.Equal(t, "Granicus", *provider)
}

func TestWellKnown_RejectsHTMLBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>Not Found</body></html>")
	}))
	defer ts.Close()

	assert.Nil(t, newTestWellKnown().Probe(context.Background(), ts.URL))
}

func TestWellKnown_RejectsLongBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 200))
	}))
	defer ts.Close()

	assert.Nil(t, newTestWellKnown().Probe(context.Background(), ts.URL))
}

func TestWellKnown_Missing(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	assert.Nil(t, newTestWellKnown().Probe(context.Background(), ts.URL))
}
