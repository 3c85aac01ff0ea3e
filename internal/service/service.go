// Package service is the key-value core: every operation runs as a unit of
// work on the worker pool against the shared store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"kvrpc/internal/kv"
	"kvrpc/internal/logging"
	"kvrpc/internal/metrics"
	"kvrpc/internal/pool"
)

var log = logging.For("service")

// ErrNotFound is returned by Get when the key is absent. Its text is the
// message callers see on the wire.
var ErrNotFound = errors.New("ERROR: Invalid key")

// WaitError reports a blocking operation whose result could not be awaited:
// the wait was interrupted or the unit of work failed.
type WaitError struct {
	Op  string
	Err error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("ERROR: Exception while processing %s request: %v", e.Op, e.Err)
}

func (e *WaitError) Unwrap() error { return e.Err }

// operation names, as logged and used for metric labels
const (
	opGet    = "GET"
	opPut    = "PUT"
	opDelete = "DELETE"
	opGetAll = "GETALL"
	opKeys   = "KEYS"
)

type Service struct {
	store   *kv.Store
	pool    *pool.Pool
	metrics *metrics.Metrics
}

// New wires the core. m may be nil.
func New(store *kv.Store, p *pool.Pool, m *metrics.Metrics) *Service {
	return &Service{store: store, pool: p, metrics: m}
}

// Get returns the value stored under key, blocking until the read has run.
// A missing key yields ErrNotFound.
func (s *Service) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	var (
		value string
		found bool
	)
	err := s.pool.Do(ctx, key, func() {
		log.Info("GET request for key: "+key, "key", key)
		value, found = s.store.Get(key)
		if !found {
			log.Error(ErrNotFound.Error(), "key", key)
			log.Error("ERROR: Exception while processing GET request", "key", key)
		}
	})
	s.metrics.ObserveDuration(opGet, time.Since(start))
	if err != nil {
		return "", s.fail(opGet, err)
	}
	if !found {
		s.metrics.Operation(opGet, metrics.ResultNotFound)
		return "", ErrNotFound
	}
	s.metrics.Operation(opGet, metrics.ResultOK)
	return value, nil
}

// Put queues the write and returns immediately. The error only reports a
// rejected submission; the outcome of the write is never reported.
func (s *Service) Put(key, value string) error {
	err := s.pool.Submit(key, func() {
		log.Info(fmt.Sprintf("PUT request for key: %s, value: %s", key, value), "key", key)
		s.store.Put(key, value)
		s.metrics.Operation(opPut, metrics.ResultOK)
	})
	if err != nil {
		return s.fail(opPut, err)
	}
	return nil
}

// Delete queues the removal and returns immediately. An absent key is logged
// on the server and never reported to the caller.
func (s *Service) Delete(key string) error {
	err := s.pool.Submit(key, func() {
		log.Info("DELETE request for key: "+key, "key", key)
		if !s.store.Delete(key) {
			log.Error(ErrNotFound.Error(), "key", key)
			s.metrics.Operation(opDelete, metrics.ResultNotFound)
			return
		}
		s.metrics.Operation(opDelete, metrics.ResultOK)
	})
	if err != nil {
		return s.fail(opDelete, err)
	}
	return nil
}

// GetAll returns a snapshot of the store taken after every operation
// submitted before the call has run.
func (s *Service) GetAll(ctx context.Context) (map[string]string, error) {
	start := time.Now()
	var snap map[string]string
	err := s.pool.Fence(ctx, func() {
		log.Info("GETALL request")
		snap = s.store.Snapshot()
	})
	s.metrics.ObserveDuration(opGetAll, time.Since(start))
	if err != nil {
		return nil, s.fail(opGetAll, err)
	}
	s.metrics.Operation(opGetAll, metrics.ResultOK)
	return snap, nil
}

// Keys lists the stored keys in sorted order. Like GetAll it runs after
// everything submitted before the call.
func (s *Service) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := s.pool.Fence(ctx, func() {
		log.Debug("KEYS request")
		keys = s.store.Keys()
	})
	if err != nil {
		return nil, s.fail(opKeys, err)
	}
	sort.Strings(keys)
	s.metrics.Operation(opKeys, metrics.ResultOK)
	return keys, nil
}

func (s *Service) fail(op string, err error) error {
	if errors.Is(err, pool.ErrPoolClosed) {
		s.metrics.Operation(op, metrics.ResultRejected)
		log.Error("ERROR: "+op+" request rejected", "err", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Operation(op, metrics.ResultError)
	werr := &WaitError{Op: op, Err: err}
	log.Error(werr.Error())
	return werr
}
