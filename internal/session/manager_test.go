package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hyperengineering/liftlog/internal/store"
	"github.com/hyperengineering/liftlog/internal/types"
	"github.com/hyperengineering/liftlog/internal/validation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingScheduler struct {
	mu    sync.Mutex
	calls int
}

func (s *countingScheduler) Schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
}

func (s *countingScheduler) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

const day = "2025-03-14"

func newTestManager(t *testing.T, opts ...Option) (*Manager, *store.SQLiteStore, *fakeClock, *countingScheduler) {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := &fakeClock{now: time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)}
	sched := &countingScheduler{}
	base := []Option{WithClock(clock.Now), WithLocation(time.UTC), WithScheduler(sched)}
	return NewManager(s, append(base, opts...)...), s, clock, sched
}

func TestSessionName(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "Night Workout"},
		{4, "Night Workout"},
		{5, "Morning Workout"},
		{11, "Morning Workout"},
		{12, "Afternoon Workout"},
		{16, "Afternoon Workout"},
		{17, "Evening Workout"},
		{20, "Evening Workout"},
		{21, "Night Workout"},
		{23, "Night Workout"},
	}
	for _, tt := range tests {
		got := SessionName(time.Date(2025, 1, 1, tt.hour, 30, 0, 0, time.UTC))
		assert.Equal(t, tt.want, got, "hour %d", tt.hour)
	}
}

func TestCreateSession(t *testing.T) {
	m, s, clock, sched := newTestManager(t, WithOwner(func() string { return "user-1" }))
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, day)
	require.NoError(t, err)

	assert.Equal(t, "Morning Workout", sess.Name)
	assert.Nil(t, sess.EndedAt)
	assert.True(t, sess.StartedAt.Equal(clock.Now()))
	assert.Equal(t, "user-1", sess.UserID)
	assert.Equal(t, 1, sched.Calls())

	stored, err := s.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, stored.Synced)
}

func TestCreateSession_InvalidDate(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	_, err := m.CreateSession(context.Background(), "14/03/2025")
	assert.ErrorIs(t, err, ErrInvalidDate)
}

func TestGetOrCreateActiveSession_ReusesActive(t *testing.T) {
	m, _, clock, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateActiveSession_RotatesStaleSession(t *testing.T) {
	m, s, clock, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)

	clock.Advance(2*time.Hour + time.Second)
	second, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	old, err := s.GetSession(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, old.EndedAt)
	assert.True(t, old.EndedAt.Equal(clock.Now()))
	assert.Nil(t, second.EndedAt)
}

func TestGetOrCreateActiveSession_RecentEntryKeepsSessionAlive(t *testing.T) {
	m, s, clock, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)

	// Activity 90 minutes in, then checked 3 hours after start.
	clock.Advance(90 * time.Minute)
	require.NoError(t, s.InsertEntry(ctx, types.Entry{
		ID: "e1", ExerciseID: "x", SessionID: sess.ID,
		CreatedAt: clock.Now(), UpdatedAt: clock.Now(),
	}))
	clock.Advance(90 * time.Minute)

	got, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
}

func TestGetOrCreateActiveSession_ExactlyAtWindowIsNotStale(t *testing.T) {
	m, _, clock, _ := newTestManager(t)
	ctx := context.Background()

	first, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)

	clock.Advance(DefaultStaleAfter)
	second, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestGetOrCreateActiveSession_CustomWindow(t *testing.T) {
	m, _, clock, _ := newTestManager(t, WithStaleAfter(10*time.Minute))
	ctx := context.Background()

	first, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	clock.Advance(11 * time.Minute)
	second, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestGetOrCreateActiveSession_Concurrent(t *testing.T) {
	m, s, _, _ := newTestManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.GetOrCreateActiveSession(ctx, day)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	list, err := s.ListSessions(ctx, day)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestEndSession(t *testing.T) {
	m, _, clock, sched := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, day)
	require.NoError(t, err)
	clock.Advance(time.Hour)

	ended, err := m.EndSession(ctx, sess.ID)
	require.NoError(t, err)
	require.NotNil(t, ended.EndedAt)
	assert.True(t, ended.EndedAt.Equal(clock.Now()))
	assert.False(t, ended.Synced)
	assert.Equal(t, 2, sched.Calls())

	next, err := m.GetOrCreateActiveSession(ctx, day)
	require.NoError(t, err)
	assert.NotEqual(t, sess.ID, next.ID)
}

func TestEndSession_NotFound(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	_, err := m.EndSession(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateSession(t *testing.T) {
	m, _, _, _ := newTestManager(t)
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, day)
	require.NoError(t, err)

	name := "Leg Day"
	got, err := m.UpdateSession(ctx, sess.ID, types.SessionPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Leg Day", got.Name)
	assert.True(t, got.UpdatedAt.After(sess.UpdatedAt))

	bad := "tomorrow"
	_, err = m.UpdateSession(ctx, sess.ID, types.SessionPatch{Date: &bad})
	assert.ErrorIs(t, err, ErrInvalidDate)

	blank := "   "
	_, err = m.UpdateSession(ctx, sess.ID, types.SessionPatch{Name: &blank})
	var verrs validation.Errors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "name", verrs[0].Field)

	unchanged, err := m.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Leg Day", unchanged.Name)
}

func TestDeleteSession_Cascades(t *testing.T) {
	m, s, clock, sched := newTestManager(t, WithOwner(func() string { return "user-1" }))
	ctx := context.Background()

	sess, err := m.CreateSession(ctx, day)
	require.NoError(t, err)
	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, s.InsertEntry(ctx, types.Entry{
			ID: id, ExerciseID: "x", SessionID: sess.ID,
			CreatedAt: clock.Now(), UpdatedAt: clock.Now(), UserID: "user-1",
		}))
	}
	before := sched.Calls()

	removed, err := m.DeleteSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	_, err = m.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	entries, err := s.ListEntriesBySession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// The remote copies are removed by the scheduled push.
	assert.Equal(t, before+1, sched.Calls())
	pending, err := s.ListPendingDeletes(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, types.CollectionSessions, pending[2].Collection)
	assert.Equal(t, sess.ID, pending[2].RecordID)
}

func TestToday_UsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	m, _, _, _ := newTestManager(t, WithLocation(loc))
	// 09:00 UTC is 04:00 the same day in UTC-5.
	assert.Equal(t, day, m.Today())

	m.clock = func() time.Time { return time.Date(2025, 3, 15, 2, 0, 0, 0, time.UTC) }
	assert.Equal(t, day, m.Today())
}
