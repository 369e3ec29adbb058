package validation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	s := newSession(t, passingPDF(), passingData(), Options{StartPage: 17, EndPage: 18})
	r.Add(s)

	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{s.ID}, r.IDs())

	err := r.With(s.ID, func(sess *Session) error {
		_, err := sess.ValidateSinglePage(context.Background(), 17)
		return err
	})
	require.NoError(t, err)

	err = r.With("missing", func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.True(t, r.Remove(s.ID))
	assert.False(t, r.Remove(s.ID))
	assert.Zero(t, r.Len())
}

func TestRegistry_SerializesAccessPerSession(t *testing.T) {
	r := NewRegistry()
	s := newSession(t, passingPDF(), passingData(), Options{StartPage: 17, EndPage: 18})
	r.Add(s)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.With(s.ID, func(sess *Session) error {
				_, err := sess.ValidateSinglePage(context.Background(), 17)
				return err
			})
		}()
	}
	wg.Wait()

	entry, ok := s.Entry(17)
	require.True(t, ok)
	assert.Equal(t, StatusComplete, entry.ValidationStatus)
	assert.Equal(t, 100.0, entry.CoveragePercent)
}

func TestRegistry_EvictsIdleSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(WithIdleTimeout(30 * time.Minute))
	r.now = func() time.Time { return now }
	assert.Equal(t, 30*time.Minute, r.IdleTimeout())

	stale := newSession(t, passingPDF(), passingData(), Options{StartPage: 17, EndPage: 18})
	active := newSession(t, passingPDF(), passingData(), Options{StartPage: 17, EndPage: 18})
	r.Add(stale)
	r.Add(active)

	now = now.Add(20 * time.Minute)
	require.NoError(t, r.With(active.ID, func(*Session) error { return nil }))

	now = now.Add(15 * time.Minute)
	assert.Equal(t, []string{stale.ID}, r.Evict())
	assert.Equal(t, []string{active.ID}, r.IDs())

	err := r.With(stale.ID, func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)

	now = now.Add(31 * time.Minute)
	err = r.With(active.ID, func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, r.Len())
}

func TestRegistry_KeepsSessionsInUse(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry(WithIdleTimeout(time.Minute))
	r.now = func() time.Time { return now }

	s := newSession(t, passingPDF(), passingData(), Options{StartPage: 17, EndPage: 18})
	r.Add(s)

	err := r.With(s.ID, func(*Session) error {
		now = now.Add(time.Hour)
		assert.Empty(t, r.Evict())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_NoTimeoutKeepsSessions(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	r := NewRegistry()
	r.now = func() time.Time { return now }

	s := newSession(t, passingPDF(), passingData(), Options{StartPage: 17, EndPage: 18})
	r.Add(s)
	now = now.Add(24 * 365 * time.Hour)

	assert.Nil(t, r.Evict())
	assert.Equal(t, []string{s.ID}, r.IDs())
}
