package telegram

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paketku/paketku/internal/config"
	apperrors "github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/models"
	"github.com/paketku/paketku/internal/store"
)

type sentMessage struct {
	chatID    int64
	text      string
	parseMode string
	keyboard  *InlineKeyboard
}

type mockBotAPI struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (m *mockBotAPI) SendMessage(chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (m *mockBotAPI) SendMessageWithParseMode(chatID int64, text, parseMode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, parseMode: parseMode})
	return nil
}

func (m *mockBotAPI) SendMessageWithInlineKeyboard(chatID int64, text, parseMode string, keyboard InlineKeyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, parseMode: parseMode, keyboard: &keyboard})
	return nil
}

func (m *mockBotAPI) GetUpdates() ([]Update, error) { return nil, nil }

func (m *mockBotAPI) last(t *testing.T) sentMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.sent, "expected at least one outbound message")
	return m.sent[len(m.sent)-1]
}

func (m *mockBotAPI) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeSessions struct {
	mu          sync.Mutex
	session     *models.Session
	err         error
	invalidated []int64
}

func (f *fakeSessions) GetSession(ctx context.Context, chatUserID int64) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.session == nil {
		return nil, nil
	}
	copied := *f.session
	return &copied, nil
}

func (f *fakeSessions) ForceRefresh(ctx context.Context, chatUserID int64) (*models.Session, error) {
	return f.GetSession(ctx, chatUserID)
}

func (f *fakeSessions) Invalidate(chatUserID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, chatUserID)
}

type fakeAuth struct {
	mu          sync.Mutex
	otpRequests []string
	requestErr  error
	acceptCode  string
	tokens      models.TokenSet
}

func (f *fakeAuth) RequestOTP(ctx context.Context, phoneNumber string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestErr != nil {
		return "", f.requestErr
	}
	f.otpRequests = append(f.otpRequests, phoneNumber)
	return "sub-1", nil
}

func (f *fakeAuth) ExchangeOTP(ctx context.Context, phoneNumber, code string) (models.TokenSet, error) {
	if code != f.acceptCode {
		return models.TokenSet{}, &apperrors.ErrOTPRejected{PhoneNumber: phoneNumber}
	}
	return f.tokens, nil
}

type fakeSubscriber struct {
	detail   *models.PackageDetail
	family   *models.PackageFamily
	segments []models.StoreSegment
}

func (f *fakeSubscriber) FetchProfile(ctx context.Context, sess *models.Session) (*models.Profile, error) {
	return &models.Profile{
		PhoneNumber:      sess.PhoneNumber,
		SubscriberID:     "sub-1",
		SubscriptionType: models.SubscriptionPrepaid,
	}, nil
}

func (f *fakeSubscriber) GetBalance(ctx context.Context, sess *models.Session) (*models.Balance, error) {
	return &models.Balance{Remaining: 25000, ExpiredAt: time.Now().Add(24 * time.Hour).Unix()}, nil
}

func (f *fakeSubscriber) GetQuotas(ctx context.Context, sess *models.Session) ([]models.ActivePackage, error) {
	return nil, nil
}

func (f *fakeSubscriber) GetFamilyPackages(ctx context.Context, sess *models.Session, familyCode string, isEnterprise bool) (*models.PackageFamily, error) {
	return f.family, nil
}

func (f *fakeSubscriber) GetPackageDetail(ctx context.Context, sess *models.Session, optionCode string) (*models.PackageDetail, error) {
	return f.detail, nil
}

func (f *fakeSubscriber) GetStoreSegments(ctx context.Context, sess *models.Session, isEnterprise bool) ([]models.StoreSegment, error) {
	return f.segments, nil
}

func (f *fakeSubscriber) GetTransactionHistory(ctx context.Context, sess *models.Session) ([]models.Transaction, error) {
	return nil, nil
}

func (f *fakeSubscriber) GetFamilyPlan(ctx context.Context, sess *models.Session) (*models.SharedPlan, error) {
	return nil, nil
}

func (f *fakeSubscriber) GetCircle(ctx context.Context, sess *models.Session) (*models.SharedPlan, error) {
	return nil, nil
}

type walletCall struct {
	rail   models.PaymentRail
	number string
}

type fakePurchase struct {
	mu           sync.Mutex
	balanceCalls int
	qrisCalls    int
	walletCalls  []walletCall
	result       *models.SettlementResult
}

func (f *fakePurchase) SettleWithBalance(ctx context.Context, sess *models.Session, item models.PaymentItem) (*models.SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balanceCalls++
	return f.result, nil
}

func (f *fakePurchase) SettleWithWallet(ctx context.Context, sess *models.Session, item models.PaymentItem, rail models.PaymentRail, walletNumber string) (*models.SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.walletCalls = append(f.walletCalls, walletCall{rail: rail, number: walletNumber})
	return f.result, nil
}

func (f *fakePurchase) SettleWithQRIS(ctx context.Context, sess *models.Session, item models.PaymentItem) (*models.SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrisCalls++
	return f.result, nil
}

type fixture struct {
	bot      *Bot
	api      *mockBotAPI
	auth     *fakeAuth
	sub      *fakeSubscriber
	purchase *fakePurchase
	sessions *fakeSessions
	store    *store.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	api := &mockBotAPI{}
	auth := &fakeAuth{
		acceptCode: "222222",
		tokens: models.TokenSet{
			AccessToken:  "at-1",
			IDToken:      "it-1",
			RefreshToken: "rt-1",
		},
	}
	sub := &fakeSubscriber{
		detail: &models.PackageDetail{
			Family: models.PackageFamily{Code: "F1", Name: "Family One", PaymentFor: "BUY_PACKAGE"},
			Option: models.PackageOption{Name: "10GB", Code: "OPT1", Price: 55000, Order: 1},

			TokenConfirmation: "tok-1",
		},
		family: &models.PackageFamily{
			Code: "F1",
			Name: "Family One",
			Variants: []models.PackageVariant{
				{Name: "Monthly", Options: []models.PackageOption{{Name: "10GB", Code: "OPT1", Price: 55000, Order: 1}}},
			},
		},
	}
	purchase := &fakePurchase{result: &models.SettlementResult{Status: "SUCCESS", TransactionID: "trx-1"}}
	sessions := &fakeSessions{
		session: &models.Session{
			Tokens:       models.TokenSet{AccessToken: "at-1", IDToken: "it-1"},
			PhoneNumber:  "628111111111",
			SubscriberID: "sub-1",
			CachedAt:     time.Now(),
		},
	}
	st := store.NewMemoryStore()
	t.Cleanup(func() { _ = st.Close() })

	cfg := config.TelegramConfig{Enabled: true, AdminIDs: []int64{99}}
	dialogCfg := config.DialogConfig{MaxAttempts: 5, PruneAfter: time.Hour}
	bot := NewBot(cfg, dialogCfg, Deps{
		Store:      st,
		Sessions:   sessions,
		Auth:       auth,
		Subscriber: sub,
		Purchase:   purchase,
	}, &BotOptions{
		BotAPI:      api,
		RateLimiter: NewRateLimiter(100000),
	})

	return &fixture{bot: bot, api: api, auth: auth, sub: sub, purchase: purchase, sessions: sessions, store: st}
}

func msg(userID int64, text string) Update {
	return Update{ChatID: userID, UserID: userID, Text: text, Timestamp: time.Now()}
}

func cb(userID int64, data string) Update {
	return Update{ChatID: userID, UserID: userID, Callback: data, Timestamp: time.Now()}
}

func TestLoginFlowLinksAccount(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/login"))
	assert.Contains(t, f.api.last(t).text, "phone number")

	f.bot.handleUpdate(msg(1, "628123456789"))
	require.Equal(t, []string{"628123456789"}, f.auth.otpRequests)
	assert.Contains(t, f.api.last(t).text, "6-digit")

	// Wrong code re-prompts the code field without restarting.
	f.bot.handleUpdate(msg(1, "111111"))
	assert.Contains(t, f.api.last(t).text, "not accepted")
	assert.True(t, f.bot.dialogs.Active(1))

	f.bot.handleUpdate(msg(1, "222222"))
	assert.Contains(t, f.api.last(t).text, "Logged in")
	assert.False(t, f.bot.dialogs.Active(1))

	account, err := f.store.GetActiveAccount(1)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "628123456789", account.PhoneNumber)
	assert.Equal(t, "rt-1", account.RefreshToken)
	assert.Equal(t, "at-1", account.AccessToken)
	assert.Equal(t, models.SubscriptionPrepaid, account.SubscriptionType)
	assert.Contains(t, f.sessions.invalidated, int64(1))
}

func TestLoginInvalidPhoneAbortsOnFifthFailure(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/login"))
	for i := 0; i < 4; i++ {
		f.bot.handleUpdate(msg(1, "not-a-number"))
		assert.True(t, f.bot.dialogs.Active(1), "dialog must survive failure %d", i+1)
	}

	f.bot.handleUpdate(msg(1, "not-a-number"))
	assert.Contains(t, f.api.last(t).text, "Too many invalid attempts")
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestLoginOTPSendFailureKeepsPhoneField(t *testing.T) {
	f := newFixture(t)
	f.auth.requestErr = assert.AnError

	f.bot.handleUpdate(msg(1, "/login"))
	for i := 0; i < 3; i++ {
		f.bot.handleUpdate(msg(1, "628123456789"))
		assert.True(t, f.bot.dialogs.Active(1), "dialog died on send failure %d", i+1)
		assert.Contains(t, f.api.last(t).text, "could not send a code")
	}

	f.auth.requestErr = nil
	f.bot.handleUpdate(msg(1, "628123456789"))
	assert.Contains(t, f.api.last(t).text, "6-digit")
}

func TestLoginOTPSendFailuresEventuallyAbort(t *testing.T) {
	f := newFixture(t)
	f.auth.requestErr = assert.AnError

	f.bot.handleUpdate(msg(1, "/login"))
	for i := 0; i < 4; i++ {
		f.bot.handleUpdate(msg(1, "628123456789"))
		assert.True(t, f.bot.dialogs.Active(1), "dialog died on send failure %d", i+1)
	}

	// The fifth consecutive send failure exhausts the attempt budget.
	f.bot.handleUpdate(msg(1, "628123456789"))
	assert.Contains(t, f.api.last(t).text, "Too many invalid attempts")
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestPaymentWithBalance(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(cb(1, "option:OPT1"))
	require.NotNil(t, f.api.last(t).keyboard)

	f.bot.handleUpdate(cb(1, "buy"))
	last := f.api.last(t)
	assert.Contains(t, last.text, "How do you want to pay")
	require.NotNil(t, last.keyboard)

	f.bot.handleUpdate(cb(1, "pay:BALANCE"))
	assert.Equal(t, 1, f.purchase.balanceCalls)
	assert.Contains(t, f.api.last(t).text, "Payment successful")
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestPaymentWalletAsksForNumber(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(cb(1, "option:OPT1"))
	f.bot.handleUpdate(cb(1, "buy"))
	f.bot.handleUpdate(cb(1, "pay:DANA"))
	assert.Contains(t, f.api.last(t).text, "wallet")

	f.bot.handleUpdate(msg(1, "08123456780"))
	require.Len(t, f.purchase.walletCalls, 1)
	assert.Equal(t, models.RailDana, f.purchase.walletCalls[0].rail)
	assert.Equal(t, "628123456780", f.purchase.walletCalls[0].number)
	assert.Contains(t, f.api.last(t).text, "Payment successful")
}

func TestPaymentQRISSkipsWalletNumber(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(cb(1, "option:OPT1"))
	f.bot.handleUpdate(cb(1, "buy"))
	f.bot.handleUpdate(cb(1, "pay:QRIS"))

	assert.Equal(t, 1, f.purchase.qrisCalls)
	assert.Empty(t, f.purchase.walletCalls)
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestBuyWithoutSelection(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(cb(1, "buy"))
	assert.Contains(t, f.api.last(t).text, "Open a package first")
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestCancelCommand(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/cancel"))
	assert.Contains(t, f.api.last(t).text, "Nothing to cancel")

	f.bot.handleUpdate(msg(1, "/login"))
	f.bot.handleUpdate(msg(1, "/cancel"))
	assert.Contains(t, f.api.last(t).text, "Login cancelled")
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestSegmentsOpenBannerTarget(t *testing.T) {
	f := newFixture(t)
	f.sub.segments = []models.StoreSegment{
		{Title: "Weekend Deals", Banners: []models.SegmentBanner{
			{Title: "10GB Promo", DiscountedPrice: 45000, ActionType: models.BannerActionDetail, ActionParam: "OPT1"},
			{Title: "Family Promo", DiscountedPrice: 90000, ActionType: models.BannerActionFamily, ActionParam: "F1"},
		}},
	}

	f.bot.handleUpdate(msg(1, "/segments"))
	last := f.api.last(t)
	assert.Contains(t, last.text, "Weekend Deals")
	assert.Contains(t, last.text, "10GB Promo")
	require.NotNil(t, last.keyboard)

	// First banner jumps straight to the option detail.
	f.bot.handleUpdate(cb(1, "seg:0"))
	assert.Contains(t, f.api.last(t).text, "Family One")
	require.NotNil(t, f.api.last(t).keyboard)

	// Second banner opens the family browser.
	f.bot.handleUpdate(msg(1, "/segments"))
	f.bot.handleUpdate(cb(1, "seg:1"))
	assert.Contains(t, f.api.last(t).text, "Pick an option")

	// Out-of-range picks are rejected without a crash.
	f.bot.handleUpdate(cb(1, "seg:9"))
	assert.Contains(t, f.api.last(t).text, "no longer listed")
}

func TestRefreshCommand(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/refresh"))
	assert.Contains(t, f.api.last(t).text, "Session refreshed")
	assert.Contains(t, f.api.last(t).text, f.sessions.session.PhoneNumber)

	f.sessions.session = nil
	f.bot.handleUpdate(msg(1, "/refresh"))
	assert.Contains(t, f.api.last(t).text, "not logged in")
}

func TestSettingsToggles(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/settings"))
	assert.Contains(t, f.api.last(t).text, "Notifications:</b> on")

	f.bot.handleUpdate(cb(1, "notify"))
	assert.Contains(t, f.api.last(t).text, "Notifications:</b> off")

	f.bot.handleUpdate(cb(1, "lang:id"))
	assert.Contains(t, f.api.last(t).text, "Language:</b> id")

	pref, err := f.store.GetPreference(1)
	require.NoError(t, err)
	assert.Equal(t, "id", pref.Language)
	assert.False(t, pref.NotificationsEnabled)
}

func TestSwitchAccountInvalidatesSession(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpsertAccount(1, "628111111111", "rt-a", "sub-a", models.SubscriptionPrepaid))
	require.NoError(t, f.store.UpsertAccount(1, "628222222222", "rt-b", "sub-b", models.SubscriptionPrepaid))

	f.bot.handleUpdate(cb(1, "switch:628111111111"))

	account, err := f.store.GetActiveAccount(1)
	require.NoError(t, err)
	require.NotNil(t, account)
	assert.Equal(t, "628111111111", account.PhoneNumber)
	assert.Contains(t, f.sessions.invalidated, int64(1))
}

func TestLogoutUnlinksActiveNumber(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.UpsertAccount(1, "628111111111", "rt-a", "sub-a", models.SubscriptionPrepaid))

	f.bot.handleUpdate(msg(1, "/logout"))
	assert.Contains(t, f.api.last(t).text, "Unlinked")

	account, err := f.store.GetActiveAccount(1)
	require.NoError(t, err)
	assert.Nil(t, account)
}

func TestUsersDoNotShareDialogs(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/login"))
	f.bot.handleUpdate(msg(2, "628999999999"))

	assert.True(t, f.bot.dialogs.Active(1))
	assert.False(t, f.bot.dialogs.Active(2))
	assert.Empty(t, f.auth.otpRequests)
	assert.Contains(t, f.api.last(t).text, "did not understand")
}

func TestAdminCommandsAreGated(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/delhot"))
	assert.Contains(t, f.api.last(t).text, "administrators")
	assert.False(t, f.bot.dialogs.Active(1))
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	f.bot.handleUpdate(msg(1, "/bogus"))
	assert.Contains(t, f.api.last(t).text, "Unknown command")
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.bot.Start())
	f.bot.updateChan <- msg(1, "/help")

	require.Eventually(t, func() bool {
		return f.api.count() > 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, f.bot.Stop())
}
