// SPDX-License-Identifier: MIT

package cache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportCachesGET(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`<e2servicelist></e2servicelist>`))
	}))
	defer srv.Close()

	transport, err := Open(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)
	defer func() { require.NoError(t, transport.Close()) }()

	client := &http.Client{Transport: transport}

	for i := 0; i < 3; i++ {
		res, err := client.Get(srv.URL + "/web/getservices")
		require.NoError(t, err)
		body, err := io.ReadAll(res.Body)
		require.NoError(t, err)
		require.NoError(t, res.Body.Close())
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, `<e2servicelist></e2servicelist>`, string(body))
	}

	assert.Equal(t, int64(1), hits.Load(), "upstream should be hit exactly once")
}

func TestTransportKeysOnURL(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(r.URL.RawQuery))
	}))
	defer srv.Close()

	transport, err := Open(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	client := &http.Client{Transport: transport}

	res1, err := client.Get(srv.URL + "/web/epgservice?sRef=a")
	require.NoError(t, err)
	b1, _ := io.ReadAll(res1.Body)
	_ = res1.Body.Close()

	res2, err := client.Get(srv.URL + "/web/epgservice?sRef=b")
	require.NoError(t, err)
	b2, _ := io.ReadAll(res2.Body)
	_ = res2.Body.Close()

	assert.Equal(t, "sRef=a", string(b1))
	assert.Equal(t, "sRef=b", string(b2))
	assert.Equal(t, int64(2), hits.Load())
}

func TestTransportSkipsErrorResponses(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "try later", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	transport, err := Open(t.TempDir(), time.Hour, nil)
	require.NoError(t, err)
	defer func() { _ = transport.Close() }()

	client := &http.Client{Transport: transport}

	for i := 0; i < 2; i++ {
		res, err := client.Get(srv.URL)
		require.NoError(t, err)
		_ = res.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
	}

	assert.Equal(t, int64(2), hits.Load(), "error responses must not be cached")
}
