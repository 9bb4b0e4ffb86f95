package edgar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/edgar-enrich/internal/resilience"
)

func TestTransportGet_SendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := NewTransport("Acme admin@acme.com", 5*time.Second)
	body, err := tr.Get(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(body))
	assert.Equal(t, "Acme admin@acme.com", gotUA)
}

func TestTransportGet_StatusClassification(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forbidden":
			w.WriteHeader(http.StatusForbidden)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/throttled":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	defer srv.Close()

	tr := NewTransport("Acme admin@acme.com", 5*time.Second)
	ctx := context.Background()

	_, err := tr.Get(ctx, srv.URL+"/forbidden")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
	assert.Equal(t, 403, resilience.StatusCode(err))

	_, err = tr.Get(ctx, srv.URL+"/throttled")
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimit(err))
	assert.Equal(t, 429, resilience.StatusCode(err))

	_, err = tr.Get(ctx, srv.URL+"/missing")
	require.Error(t, err)
	assert.True(t, resilience.IsNotFound(err))
	assert.False(t, resilience.IsRetryable(err))

	_, err = tr.Get(ctx, srv.URL+"/broken")
	require.Error(t, err)
	var se *resilience.ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 502, se.StatusCode)
	assert.True(t, resilience.IsRetryable(err))

	// Unexpected 4xx is an opaque, non-retryable error.
	_, err = tr.Get(ctx, srv.URL+"/other")
	require.Error(t, err)
	assert.False(t, resilience.IsRetryable(err))
}

func TestTransportGet_TimeoutMapsToServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	tr := NewTransport("Acme admin@acme.com", 20*time.Millisecond)
	_, err := tr.Get(context.Background(), srv.URL)
	require.Error(t, err)
	var se *resilience.ServerError
	assert.True(t, errors.As(err, &se))
}
