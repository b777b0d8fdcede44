package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mgnrega-tn/backend/internal/cache/memory"
)

type failingBackend struct{}

func (failingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (failingBackend) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

type recordingBackend struct {
	mu   sync.Mutex
	keys []string
	ttls []time.Duration
}

func (b *recordingBackend) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (b *recordingBackend) Set(_ context.Context, key string, _ []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	b.ttls = append(b.ttls, ttl)
	return nil
}

func TestKeyRendering(t *testing.T) {
	assert.Equal(t, "districts_list", DistrictsListKey().String())
	assert.Equal(t, "district_summary:17", DistrictSummaryKey(17).String())
	assert.NotEqual(t, DistrictsListKey(), DistrictSummaryKey(0))
}

func TestAbsentBackendAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	for _, c := range []*Cache{nil, New(nil, "")} {
		c.Set(ctx, DistrictsListKey(), []byte(`[]`), time.Minute)
		_, ok := c.Get(ctx, DistrictsListKey())
		assert.False(t, ok)
		assert.False(t, c.Enabled())
	}
}

func TestBackendErrorsAreSwallowed(t *testing.T) {
	ctx := context.Background()
	c := New(failingBackend{}, "")

	assert.NotPanics(t, func() {
		c.SetJSON(ctx, DistrictsListKey(), []int{1}, time.Minute)
	})
	var out []int
	assert.False(t, c.GetJSON(ctx, DistrictsListKey(), &out))
}

func TestPrefixAndDefaultTTL(t *testing.T) {
	b := &recordingBackend{}
	c := New(b, "mgnrega:")

	c.Set(context.Background(), DistrictSummaryKey(3), []byte(`[]`), 0)

	require.Len(t, b.keys, 1)
	assert.Equal(t, "mgnrega:district_summary:3", b.keys[0])
	assert.Equal(t, DefaultTTL, b.ttls[0])
}

func TestJSONRoundTripThroughMemoryBackend(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(time.Minute), "")

	type ref struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	c.SetJSON(ctx, DistrictsListKey(), []ref{{ID: 1, Name: "Chennai"}}, time.Minute)

	var got []ref
	require.True(t, c.GetJSON(ctx, DistrictsListKey(), &got))
	assert.Equal(t, []ref{{ID: 1, Name: "Chennai"}}, got)

	var wrongShape map[string]int
	assert.False(t, c.GetJSON(ctx, DistrictsListKey(), &wrongShape))
}

func TestMemoryBackendExpiry(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(time.Minute), "")

	c.Set(ctx, DistrictSummaryKey(1), []byte(`[1]`), 20*time.Millisecond)
	_, ok := c.Get(ctx, DistrictSummaryKey(1))
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = c.Get(ctx, DistrictSummaryKey(1))
	assert.False(t, ok)
}

func TestConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(time.Minute), "")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c.SetJSON(ctx, DistrictSummaryKey(id%4), []int64{id}, time.Minute)
			var out []int64
			c.GetJSON(ctx, DistrictSummaryKey(id%4), &out)
		}(int64(i))
	}
	wg.Wait()

	for id := int64(0); id < 4; id++ {
		var out []int64
		require.True(t, c.GetJSON(ctx, DistrictSummaryKey(id), &out))
		require.Len(t, out, 1)
		assert.Equal(t, id, out[0]%4)
	}
}
