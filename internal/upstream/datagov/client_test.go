package datagov

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchRegionSendsQueryParameters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "secret", q.Get("api-key"))
		assert.Equal(t, "Tamil Nadu", q.Get("filters[state_name]"))
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "10000", q.Get("limit"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"records":[{"district_name":"Salem"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", 0, 0)
	body, err := c.FetchRegion(context.Background(), "Tamil Nadu")

	require.NoError(t, err)
	assert.JSONEq(t, `{"records":[{"district_name":"Salem"}]}`, string(body))
}

func TestFetchRegionNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad", 50, time.Second)
	_, err := c.FetchRegion(context.Background(), "Tamil Nadu")

	assert.ErrorIs(t, err, ErrUpstream)
	assert.Contains(t, err.Error(), "403")
}

func TestFetchRegionTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(url, "k", 0, time.Second)
	_, err := c.FetchRegion(context.Background(), "Tamil Nadu")

	assert.ErrorIs(t, err, ErrUpstream)
}

func TestFetchRegionRequiresURL(t *testing.T) {
	c := NewClient("", "k", 0, 0)
	_, err := c.FetchRegion(context.Background(), "Tamil Nadu")

	assert.ErrorIs(t, err, ErrUpstream)
}
