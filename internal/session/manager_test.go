package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paketku/paketku/internal/models"
	"github.com/paketku/paketku/internal/store"
)

// fakeRefresher counts refresh calls and hands out sequentially numbered
// token sets so tests can tell refreshes apart.
type fakeRefresher struct {
	mu      sync.Mutex
	calls   int32
	rotate  bool
	failErr error
	delay   time.Duration
}

func (f *fakeRefresher) RefreshToken(ctx context.Context, refreshToken, subscriberID string) (models.TokenSet, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	n := atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	failErr := f.failErr
	rotate := f.rotate
	f.mu.Unlock()
	if failErr != nil {
		return models.TokenSet{}, failErr
	}
	tokens := models.TokenSet{
		AccessToken: fmt.Sprintf("at-%d", n),
		IDToken:     fmt.Sprintf("it-%d", n),
	}
	if rotate {
		tokens.RefreshToken = fmt.Sprintf("rt-%d", n)
	}
	return tokens, nil
}

func (f *fakeRefresher) callCount() int32 {
	return atomic.LoadInt32(&f.calls)
}

// testClock is a movable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestManager(t *testing.T, refresher Refresher) (*Manager, *store.MemoryStore, *testClock) {
	t.Helper()
	s := store.NewMemoryStore()
	clock := &testClock{now: time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)}
	m := NewManager(s, refresher, "key-1", 300*time.Second, WithClock(clock.Now))
	return m, s, clock
}

func TestGetSessionNoActiveAccount(t *testing.T) {
	refresher := &fakeRefresher{}
	m, _, _ := newTestManager(t, refresher)

	sess, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, sess)
	assert.Equal(t, int32(0), refresher.callCount())
}

func TestGetSessionRefreshesAndCaches(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, clock := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	// First call refreshes.
	sess, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, "at-1", sess.Tokens.AccessToken)
	assert.Equal(t, "key-1", sess.APIKey)
	assert.Equal(t, "6281234567890", sess.PhoneNumber)
	assert.Equal(t, int32(1), refresher.callCount())

	// Inside the window the cached session is reused without remote calls.
	clock.Advance(299 * time.Second)
	sess2, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "at-1", sess2.Tokens.AccessToken)
	assert.Equal(t, int32(1), refresher.callCount())

	// At the window boundary the session is stale and refreshed.
	clock.Advance(1 * time.Second)
	sess3, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "at-2", sess3.Tokens.AccessToken)
	assert.Equal(t, int32(2), refresher.callCount())
}

func TestGetSessionPersistsTokens(t *testing.T) {
	refresher := &fakeRefresher{rotate: true}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	_, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)

	account, err := s.GetActiveAccount(1)
	require.NoError(t, err)
	assert.Equal(t, "at-1", account.AccessToken)
	assert.Equal(t, "it-1", account.IDToken)
	// The rotated refresh token replaced the stored one.
	assert.Equal(t, "rt-1", account.RefreshToken)
}

func TestGetSessionKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	_, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)

	account, err := s.GetActiveAccount(1)
	require.NoError(t, err)
	assert.Equal(t, "rt-0", account.RefreshToken)
}

func TestGetSessionRefreshFailure(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, clock := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	// Seed a session, then expire it and make the refresher fail.
	_, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)

	refresher.mu.Lock()
	refresher.failErr = fmt.Errorf("auth API unavailable")
	refresher.mu.Unlock()
	clock.Advance(301 * time.Second)

	_, err = m.GetSession(context.Background(), 1)
	require.Error(t, err)

	// The stale session must not resurface once the refresher recovers
	// within the same window.
	refresher.mu.Lock()
	refresher.failErr = nil
	refresher.mu.Unlock()

	sess, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "at-3", sess.Tokens.AccessToken)
}

func TestInvalidateDropsCache(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	_, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), refresher.callCount())

	m.Invalidate(1)

	// Next call rebuilds even though the window has not elapsed.
	sess, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "at-2", sess.Tokens.AccessToken)
	assert.Equal(t, int32(2), refresher.callCount())
}

func TestInvalidateOnSwitchPicksNewAccount(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281111111111", "rt-a", "sub-a", models.SubscriptionPrepaid))

	sess, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "6281111111111", sess.PhoneNumber)

	// Linking a second account makes it active; the cache must be
	// invalidated by the caller, after which the new line is served.
	require.NoError(t, s.UpsertAccount(1, "6282222222222", "rt-b", "sub-b", models.SubscriptionPrepaid))
	m.Invalidate(1)

	sess, err = m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "6282222222222", sess.PhoneNumber)
}

func TestForceRefresh(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	_, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)

	sess, err := m.ForceRefresh(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "at-2", sess.Tokens.AccessToken)
	assert.Equal(t, int32(2), refresher.callCount())
}

func TestConcurrentGetSessionSingleRefresh(t *testing.T) {
	refresher := &fakeRefresher{delay: 10 * time.Millisecond}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	const goroutines = 8
	var wg sync.WaitGroup
	results := make([]*models.Session, goroutines)
	errs := make([]error, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.GetSession(context.Background(), 1)
		}(i)
	}
	wg.Wait()

	// Per-user serialization means the first caller refreshes and the rest
	// hit the cache.
	assert.Equal(t, int32(1), refresher.callCount())
	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		// Whole-record consistency: the token pair always matches.
		assert.Equal(t, "at-1", results[i].Tokens.AccessToken)
		assert.Equal(t, "it-1", results[i].Tokens.IDToken)
	}
}

func TestReturnedSessionIsACopy(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281234567890", "rt-0", "sub-1", models.SubscriptionPrepaid))

	sess, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	sess.Tokens.AccessToken = "tampered"

	sess2, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "at-1", sess2.Tokens.AccessToken)
}

func TestUsersAreIndependent(t *testing.T) {
	refresher := &fakeRefresher{}
	m, s, _ := newTestManager(t, refresher)
	require.NoError(t, s.UpsertAccount(1, "6281111111111", "rt-a", "sub-a", models.SubscriptionPrepaid))
	require.NoError(t, s.UpsertAccount(2, "6282222222222", "rt-b", "sub-b", models.SubscriptionPostpaid))

	s1, err := m.GetSession(context.Background(), 1)
	require.NoError(t, err)
	s2, err := m.GetSession(context.Background(), 2)
	require.NoError(t, err)

	assert.Equal(t, "6281111111111", s1.PhoneNumber)
	assert.Equal(t, "6282222222222", s2.PhoneNumber)
	assert.Equal(t, int32(2), refresher.callCount())

	m.Invalidate(1)
	_, err = m.GetSession(context.Background(), 2)
	require.NoError(t, err)
	// User 2's cache survived user 1's invalidation.
	assert.Equal(t, int32(2), refresher.callCount())
}
