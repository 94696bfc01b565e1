package cache

import (
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAndOrderIndependent(t *testing.T) {
	h1 := make(http.Header)
	h1.Set("Accept", "application/json")
	h1.Set("Accept-Language", "en")

	h2 := make(http.Header)
	h2.Set("Accept-Language", "en")
	h2.Set("Accept", "application/json")

	fp1 := Fingerprint("GET", "https://example.com/a", h1, []string{"Accept", "Accept-Language"})
	fp2 := Fingerprint("GET", "https://example.com/a", h2, []string{"Accept-Language", "Accept"})
	require.Equal(t, fp1, fp2)
}

func TestFingerprint_DiffersOnMethodURLOrVaryHeaders(t *testing.T) {
	base := Fingerprint("GET", "https://example.com/a", make(http.Header), nil)
	diffMethod := Fingerprint("POST", "https://example.com/a", make(http.Header), nil)
	diffURL := Fingerprint("GET", "https://example.com/b", make(http.Header), nil)
	require.NotEqual(t, base, diffMethod)
	require.NotEqual(t, base, diffURL)
}

func TestCache_GetOrBuildCachesResult(t *testing.T) {
	c := New(0)
	calls := int64(0)
	build := func() (*Entry, error) {
		atomic.AddInt64(&calls, 1)
		return &Entry{Body: []byte("payload"), StatusCode: 200}, nil
	}

	e1, err := c.GetOrBuild("fp1", time.Minute, build)
	require.NoError(t, err)
	e2, err := c.GetOrBuild("fp1", time.Minute, build)
	require.NoError(t, err)
	require.Equal(t, e1, e2)
	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestCache_ConcurrentBuildsShareSingleCall(t *testing.T) {
	c := New(0)
	calls := int64(0)
	var wg sync.WaitGroup
	build := func() (*Entry, error) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(5 * time.Millisecond)
		return &Entry{Body: []byte("x"), StatusCode: 200}, nil
	}

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrBuild("shared", time.Minute, build)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int64(1), atomic.LoadInt64(&calls))
}

func TestCache_ExpiredEntryRebuilds(t *testing.T) {
	c := New(0)
	calls := int64(0)
	build := func() (*Entry, error) {
		atomic.AddInt64(&calls, 1)
		return &Entry{Body: []byte("payload"), StatusCode: 200}, nil
	}

	_, err := c.GetOrBuild("fp", time.Millisecond, build)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = c.GetOrBuild("fp", time.Minute, build)
	require.NoError(t, err)
	require.Equal(t, int64(2), atomic.LoadInt64(&calls))
}

func TestCache_EvictsLowestHitCountWhenOverCapacity(t *testing.T) {
	c := New(2)
	build := func(body string) func() (*Entry, error) {
		return func() (*Entry, error) { return &Entry{Body: []byte(body), StatusCode: 200}, nil }
	}

	_, err := c.GetOrBuild("a", time.Minute, build("a"))
	require.NoError(t, err)
	_, err = c.GetOrBuild("a", time.Minute, build("a")) // extra hit on "a"
	require.NoError(t, err)
	_, err = c.GetOrBuild("b", time.Minute, build("b"))
	require.NoError(t, err)

	// Inserting "c" pushes the cache over capacity; one of the zero-hit
	// entries ("b" or the new "c") is evicted, never "a" with its extra hit.
	_, err = c.GetOrBuild("c", time.Minute, build("c"))
	require.NoError(t, err)

	require.LessOrEqual(t, c.Len(), 2)
	_, aStillPresent := c.Get("a")
	require.True(t, aStillPresent)
}
