package session

import (
	"context"
	"sync"
	"time"

	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/metrics"
	"github.com/paketku/paketku/internal/models"
	"github.com/paketku/paketku/internal/store"
)

// Refresher trades a refresh token for a fresh credential set. Implemented by
// client.CiamClient in production and stubbed in tests.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken, subscriberID string) (models.TokenSet, error)
}

// Manager is the in-memory session cache. It hides token lifecycle from the
// handlers: a caller asks for a session and receives one that is fresh within
// the configured window, refreshed through the auth API when needed.
//
// Sessions are replaced as whole records under the cache lock, so a reader
// can never observe a half-updated credential pair. Refreshes for the same
// chat user are serialized through a per-user lock; two concurrent callers
// with a stale session produce one refresh, not two.
type Manager struct {
	accounts  store.AccountStore
	refresher Refresher
	apiKey    string
	window    time.Duration
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu        sync.Mutex
	sessions  map[int64]*models.Session
	userLocks map[int64]*sync.Mutex
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithClock injects the time source. Tests use this to move through the
// freshness window without sleeping.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *logging.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics sink for lookup and refresh outcomes.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) {
		mgr.metrics = m
	}
}

// NewManager creates a session cache over the given account store and
// refresher. window is the freshness window; a cached session older than the
// window is refreshed before being handed out.
func NewManager(accounts store.AccountStore, refresher Refresher, apiKey string, window time.Duration, opts ...ManagerOption) *Manager {
	m := &Manager{
		accounts:  accounts,
		refresher: refresher,
		apiKey:    apiKey,
		window:    window,
		logger:    logging.NewLogger(),
		now:       time.Now,
		sessions:  make(map[int64]*models.Session),
		userLocks: make(map[int64]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GetSession returns a fresh session for the chat user's active account.
// It returns (nil, nil) when the user has no active account. The returned
// session is a private copy; mutating it does not affect the cache.
func (m *Manager) GetSession(ctx context.Context, chatUserID int64) (*models.Session, error) {
	lock := m.userLock(chatUserID)
	lock.Lock()
	defer lock.Unlock()

	now := m.now()
	if cached := m.snapshot(chatUserID); cached != nil && cached.FreshAt(now, m.window) {
		m.recordLookup("hit")
		return cached, nil
	}
	m.recordLookup("miss")
	return m.refreshLocked(ctx, chatUserID)
}

// ForceRefresh discards any cached session and builds a new one regardless of
// freshness. Used after operations that are known to invalidate tokens.
func (m *Manager) ForceRefresh(ctx context.Context, chatUserID int64) (*models.Session, error) {
	lock := m.userLock(chatUserID)
	lock.Lock()
	defer lock.Unlock()

	m.drop(chatUserID)
	return m.refreshLocked(ctx, chatUserID)
}

// Invalidate drops the cached session for the user, if any. Called on logout
// and on account switch so the next request rebuilds against the new active
// account.
func (m *Manager) Invalidate(chatUserID int64) {
	m.drop(chatUserID)
}

// refreshLocked rebuilds the session from the active account. Caller holds
// the per-user lock.
func (m *Manager) refreshLocked(ctx context.Context, chatUserID int64) (*models.Session, error) {
	account, err := m.accounts.GetActiveAccount(chatUserID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		m.drop(chatUserID)
		return nil, nil
	}

	tokens, err := m.refresher.RefreshToken(ctx, account.RefreshToken, account.SubscriberID)
	if err != nil {
		// A failed refresh leaves no cached entry; the stale one must not
		// be handed out on the next call.
		m.drop(chatUserID)
		m.recordRefresh("failure")
		m.logger.WarnWithContext(ctx, "session refresh failed",
			"chat_user_id", chatUserID,
			"error", err.Error())
		logging.NewAuditEvent(logging.SessionRefresh, "refresh session", logging.StatusFailure).
			WithChatUserID(chatUserID).
			WithResource(account.PhoneNumber).
			WithSeverity(logging.SeverityWarning).
			WithError(err).
			Emit(m.logger)
		return nil, err
	}

	update := store.CredentialUpdate{
		AccessToken: &tokens.AccessToken,
		IDToken:     &tokens.IDToken,
	}
	if tokens.RefreshToken != "" {
		// The auth API rotated the refresh token; losing it would strand
		// the account at the next refresh.
		update.RefreshToken = &tokens.RefreshToken
	}
	if err := m.accounts.UpdateCredentials(chatUserID, account.PhoneNumber, update); err != nil {
		m.drop(chatUserID)
		return nil, err
	}

	sess := &models.Session{
		APIKey:           m.apiKey,
		Tokens:           tokens,
		PhoneNumber:      account.PhoneNumber,
		SubscriberID:     account.SubscriberID,
		SubscriptionType: account.SubscriptionType,
		CachedAt:         m.now(),
	}

	m.mu.Lock()
	m.sessions[chatUserID] = sess
	m.mu.Unlock()

	m.recordRefresh("success")
	m.logger.DebugWithContext(ctx, "session refreshed",
		"chat_user_id", chatUserID,
		"phone_number", account.PhoneNumber)

	copied := *sess
	return &copied, nil
}

// snapshot returns a copy of the cached session, or nil.
func (m *Manager) snapshot(chatUserID int64) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[chatUserID]
	if !ok {
		return nil
	}
	copied := *sess
	return &copied
}

func (m *Manager) drop(chatUserID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatUserID)
}

func (m *Manager) recordLookup(result string) {
	if m.metrics != nil {
		m.metrics.RecordSessionLookup(result)
	}
}

func (m *Manager) recordRefresh(outcome string) {
	if m.metrics != nil {
		m.metrics.RecordSessionRefresh(outcome)
	}
}

// userLock returns the per-user serialization lock, creating it on first use.
// Locks are never removed; the map grows with the number of distinct users,
// which is bounded by the bot's audience.
func (m *Manager) userLock(chatUserID int64) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.userLocks[chatUserID]
	if !ok {
		lock = &sync.Mutex{}
		m.userLocks[chatUserID] = lock
	}
	return lock
}
