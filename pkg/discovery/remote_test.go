package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	paths []string
	calls int
}

func (s *stubProvider) Discover(_ context.Context, _ string) ([]string, error) {
	s.calls++
	return s.paths, nil
}

func fastRemote(url string, fallback Provider) *RemoteProvider {
	return NewRemoteProvider(RemoteOptions{
		URL:         url,
		MaxAttempts: 3,
		MaxBackoff:  time.Millisecond,
		Timeout:     time.Second,
	}, fallback)
}

func TestRemoteProvider_Success(t *testing.T) {
	t.Parallel()

	var gotRoot, gotDepth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRoot = r.URL.Query().Get("root")
		gotDepth = r.URL.Query().Get("depth")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`["a/1-meta.txt","2-meta.txt","../x/3-meta.txt"]`))
	}))
	defer srv.Close()

	fallback := &stubProvider{}
	paths, err := fastRemote(srv.URL, fallback).Discover(context.Background(), "/library")
	require.NoError(t, err)

	assert.Equal(t, "/library", gotRoot)
	assert.Equal(t, "4", gotDepth)
	assert.Equal(t, []string{filepath.Join("/library", "a", "1-meta.txt"), filepath.Join("/library", "2-meta.txt")}, paths)
	assert.Equal(t, 0, fallback.calls)
}

func TestRemoteProvider_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`["1-meta.txt"]`))
	}))
	defer srv.Close()

	fallback := &stubProvider{}
	paths, err := fastRemote(srv.URL, fallback).Discover(context.Background(), "/library")
	require.NoError(t, err)
	assert.Len(t, paths, 1)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 0, fallback.calls)
}

func TestRemoteProvider_FallsBackAfterExhaustion(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	fallback := &stubProvider{paths: []string{"/library/7-meta.txt"}}
	paths, err := fastRemote(srv.URL, fallback).Discover(context.Background(), "/library")
	require.NoError(t, err)
	assert.Equal(t, []string{"/library/7-meta.txt"}, paths)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, 1, fallback.calls)
}

func TestRemoteProvider_PerCallTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	p := NewRemoteProvider(RemoteOptions{
		URL:         srv.URL,
		MaxAttempts: 1,
		Timeout:     50 * time.Millisecond,
	}, nil)

	start := time.Now()
	_, err := p.Discover(context.Background(), "/library")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote discovery failed")
	assert.Less(t, time.Since(start), time.Second)
}

func TestRemoteProvider_Backoff(t *testing.T) {
	t.Parallel()

	p := NewRemoteProvider(RemoteOptions{URL: "http://x", MaxBackoff: 2 * time.Second}, nil)
	assert.GreaterOrEqual(t, p.backoff(1), remoteBaseBackoff)
	assert.LessOrEqual(t, p.backoff(10), 2*time.Second)
	assert.Equal(t, 2*time.Second, p.backoff(60))
}
