// Package lock provides the scoped lock manager that serializes all
// capacity-changing operations of one event. Callers acquire a lock
// over the event plus any extra shared resources, run their critical
// section, and release. Keys are always taken in ascending order so
// two operations touching overlapping key sets can never deadlock.
package lock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock could not be acquired within the
// configured wait. It is transient: callers should surface a
// "please retry" message rather than an internal error.
var ErrTimeout = errors.New("lock: acquisition timed out")

// A Scope represents a held set of locks. Release must be called
// exactly once, typically via defer, after the critical section ends.
type Scope interface {
	Release()
}

// Locker hands out lock scopes over sets of string keys. Keys are
// sorted before acquisition; passing the same key twice is allowed
// and collapsed to one acquisition.
type Locker interface {
	Acquire(ctx context.Context, keys ...string) (Scope, error)
}

// EventKey builds the canonical lock key for an event. The numeric id
// keeps ordering stable across processes.
func EventKey(eventID uint64) string { return fmt.Sprintf("event:%d", eventID) }

// SeatKey builds the lock key for a seat locked in addition to its
// event, e.g. during order creation.
func SeatKey(seatID uint64) string { return fmt.Sprintf("seat:%d", seatID) }

func sortedUnique(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SQLLocker implements Locker on MySQL named locks (GET_LOCK). Each
// scope pins one connection from the pool for its lifetime because
// named locks are connection-scoped. The wait is bounded by the
// configured timeout; on timeout all locks taken so far are released
// and ErrTimeout is returned.
type SQLLocker struct {
	db   *sql.DB
	wait time.Duration
}

// NewSQLLocker returns a locker backed by the given database. wait
// bounds how long a single key acquisition may block.
func NewSQLLocker(db *sql.DB, wait time.Duration) *SQLLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &SQLLocker{db: db, wait: wait}
}

type sqlScope struct {
	conn *sql.Conn
	keys []string
}

// Acquire takes the named locks in ascending key order on a pinned
// connection. MySQL returns 1 on success, 0 on timeout and NULL on
// error; anything but 1 aborts the acquisition.
func (l *SQLLocker) Acquire(ctx context.Context, keys ...string) (Scope, error) {
	ks := sortedUnique(keys)
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	held := make([]string, 0, len(ks))
	for _, k := range ks {
		var got sql.NullInt64
		err := conn.QueryRowContext(ctx, `SELECT GET_LOCK(?, ?)`, k, int64(l.wait/time.Second)).Scan(&got)
		if err == nil && (!got.Valid || got.Int64 != 1) {
			err = ErrTimeout
		}
		if err != nil {
			releaseSQL(conn, held)
			_ = conn.Close()
			return nil, err
		}
		held = append(held, k)
	}
	return &sqlScope{conn: conn, keys: held}, nil
}

func (s *sqlScope) Release() {
	releaseSQL(s.conn, s.keys)
	_ = s.conn.Close()
	s.keys = nil
}

func releaseSQL(conn *sql.Conn, keys []string) {
	// Reverse order; harmless if the connection already dropped the
	// locks (closing the pinned connection releases them anyway).
	for i := len(keys) - 1; i >= 0; i-- {
		var released sql.NullInt64
		_ = conn.QueryRowContext(context.Background(), `SELECT RELEASE_LOCK(?)`, keys[i]).Scan(&released)
	}
}

// MemoryLocker implements Locker with in-process keyed mutexes. It is
// the right choice for single-node deployments and for tests, where
// the serialization guarantee must not depend on a running MySQL.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*memLock
	wait  time.Duration
}

type memLock struct {
	ch   chan struct{} // capacity 1; holding the token means holding the lock
	refs int
}

// NewMemoryLocker returns an in-process locker with the given maximum
// wait per key.
func NewMemoryLocker(wait time.Duration) *MemoryLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &MemoryLocker{locks: make(map[string]*memLock), wait: wait}
}

func (l *MemoryLocker) get(key string) *memLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &memLock{ch: make(chan struct{}, 1)}
		m.ch <- struct{}{}
		l.locks[key] = m
	}
	m.refs++
	return m
}

func (l *MemoryLocker) put(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		return
	}
	m.refs--
	if m.refs == 0 {
		delete(l.locks, key)
	}
}

type memScope struct {
	locker *MemoryLocker
	keys   []string
}

// Acquire takes the keyed mutexes in ascending order, bounded by the
// locker's wait. On timeout everything taken so far is handed back.
func (l *MemoryLocker) Acquire(ctx context.Context, keys ...string) (Scope, error) {
	ks := sortedUnique(keys)
	timer := time.NewTimer(l.wait)
	defer timer.Stop()
	held := make([]string, 0, len(ks))
	for _, k := range ks {
		m := l.get(k)
		select {
		case <-m.ch:
			held = append(held, k)
		case <-timer.C:
			l.put(k)
			l.releaseKeys(held)
			return nil, ErrTimeout
		case <-ctx.Done():
			l.put(k)
			l.releaseKeys(held)
			return nil, ctx.Err()
		}
	}
	return &memScope{locker: l, keys: held}, nil
}

func (l *MemoryLocker) releaseKeys(keys []string) {
	for i := len(keys) - 1; i >= 0; i-- {
		l.mu.Lock()
		m := l.locks[keys[i]]
		l.mu.Unlock()
		if m != nil {
			m.ch <- struct{}{}
		}
		l.put(keys[i])
	}
}

func (s *memScope) Release() {
	s.locker.releaseKeys(s.keys)
	s.keys = nil
}

// NopLocker disables locking entirely. It exists for debugging and for
// tests that need to reproduce race conditions deterministically; it
// must never be configured in production.
type NopLocker struct{}

type nopScope struct{}

func (nopScope) Release() {}

// Acquire succeeds immediately without any mutual exclusion.
func (NopLocker) Acquire(ctx context.Context, keys ...string) (Scope, error) {
	return nopScope{}, nil
}
