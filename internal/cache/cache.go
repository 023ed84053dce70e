// SPDX-License-Identifier: MIT

// Package cache provides an on-disk cache for upstream HTTP responses.
// It decorates an http.RoundTripper, so the OpenWebIf client and the
// generation pipeline work identically whether or not a cache is present.
package cache

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/4n4n4s/enigma2jellyfin/internal/log"
)

// Transport caches successful GET responses in a badger database, keyed by
// request URL, with a fixed TTL. Cache failures are logged and degrade to
// pass-through; they never fail the request itself.
type Transport struct {
	db   *badger.DB
	ttl  time.Duration
	next http.RoundTripper
}

// Open opens (or creates) the response cache in dir. next may be nil, in
// which case http.DefaultTransport is used for misses.
func Open(dir string, ttl time.Duration, next http.RoundTripper) (*Transport, error) {
	if next == nil {
		next = http.DefaultTransport
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Transport{db: db, ttl: ttl, next: next}, nil
}

// Close releases the underlying database.
func (t *Transport) Close() error {
	return t.db.Close()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return t.next.RoundTrip(req)
	}

	key := []byte(req.URL.String())
	if body, ok := t.get(key); ok {
		return cachedResponse(req, body), nil
	}

	res, err := t.next.RoundTrip(req)
	if err != nil || res.StatusCode != http.StatusOK {
		return res, err
	}

	body, err := io.ReadAll(res.Body)
	closeErr := res.Body.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		logger := log.WithComponent("cache")
		logger.Debug().Err(closeErr).Msg("close upstream body")
	}

	t.set(key, body)
	res.Body = io.NopCloser(bytes.NewReader(body))
	res.ContentLength = int64(len(body))
	return res, nil
}

func (t *Transport) get(key []byte) ([]byte, bool) {
	var body []byte
	err := t.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logger := log.WithComponent("cache")
			logger.Warn().Err(err).Msg("cache read failed")
		}
		return nil, false
	}
	return body, true
}

func (t *Transport) set(key, body []byte) {
	err := t.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, body).WithTTL(t.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logger := log.WithComponent("cache")
		logger.Warn().Err(err).Msg("cache write failed")
	}
}

func cachedResponse(req *http.Request, body []byte) *http.Response {
	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        make(http.Header),
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
