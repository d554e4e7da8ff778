package unittest

import (
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/require"
)

// DefaultTimeout bounds the waits of tests that run complete protocol instances.
const DefaultTimeout = 5 * time.Second

// RequireReturnsBefore fails the test if f does not return within duration.
func RequireReturnsBefore(t testing.TB, f func(), duration time.Duration, message string) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		f()
	}()
	RequireCloseBefore(t, done, duration, message+": function did not return on time")
}

// RequireCloseBefore fails the test if c is not closed within duration.
func RequireCloseBefore(t testing.TB, c <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-c:
	case <-time.After(duration):
		require.Fail(t, "channel not closed on time: "+message)
	}
}

// RequireNeverClosedWithin fails the test if ch closes within duration.
func RequireNeverClosedWithin(t testing.TB, ch <-chan struct{}, duration time.Duration, message string) {
	select {
	case <-ch:
		require.Fail(t, "channel closed before timeout: "+message)
	case <-time.After(duration):
	}
}

func TempDir(t testing.TB) string {
	dir, err := os.MkdirTemp("", "oprf-node-test-")
	require.NoError(t, err)
	return dir
}

func RunWithTempDir(t testing.TB, f func(string)) {
	dir := TempDir(t)
	defer os.RemoveAll(dir)
	f(dir)
}

// BadgerDB opens a quiet badger database in dir. The caller closes it.
func BadgerDB(t testing.TB, dir string) *badger.DB {
	opts := badger.DefaultOptions(dir).
		WithKeepL0InMemory(true).
		WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	return db
}

func RunWithBadgerDB(t testing.TB, f func(*badger.DB)) {
	RunWithTempDir(t, func(dir string) {
		db := BadgerDB(t, dir)
		defer db.Close()
		f(db)
	})
}
