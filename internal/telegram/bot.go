package telegram

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paketku/paketku/internal/catalog"
	"github.com/paketku/paketku/internal/config"
	"github.com/paketku/paketku/internal/dialog"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/metrics"
	"github.com/paketku/paketku/internal/models"
	"github.com/paketku/paketku/internal/store"
)

// Update is one inbound chat event, either a text message or an inline
// button press. The transport adapter decodes raw updates into this shape
// once; handlers never see transport types.
type Update struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	Text      string
	Callback  string // non-empty for button presses; Text is empty then
	Timestamp time.Time
}

// BotAPI interface for Telegram bot operations (allows mocking in tests)
type BotAPI interface {
	SendMessage(chatID int64, text string) error
	GetUpdates() ([]Update, error)
}

// ParseModeSender allows sending messages with parse mode (HTML/MarkdownV2).
type ParseModeSender interface {
	SendMessageWithParseMode(chatID int64, text string, parseMode string) error
}

// AuthAPI is the identity surface the bot needs for login flows.
type AuthAPI interface {
	RequestOTP(ctx context.Context, phoneNumber string) (string, error)
	ExchangeOTP(ctx context.Context, phoneNumber, code string) (models.TokenSet, error)
}

// SubscriberAPI is the read surface for subscriber data.
type SubscriberAPI interface {
	FetchProfile(ctx context.Context, sess *models.Session) (*models.Profile, error)
	GetBalance(ctx context.Context, sess *models.Session) (*models.Balance, error)
	GetQuotas(ctx context.Context, sess *models.Session) ([]models.ActivePackage, error)
	GetFamilyPackages(ctx context.Context, sess *models.Session, familyCode string, isEnterprise bool) (*models.PackageFamily, error)
	GetPackageDetail(ctx context.Context, sess *models.Session, optionCode string) (*models.PackageDetail, error)
	GetStoreSegments(ctx context.Context, sess *models.Session, isEnterprise bool) ([]models.StoreSegment, error)
	GetTransactionHistory(ctx context.Context, sess *models.Session) ([]models.Transaction, error)
	GetFamilyPlan(ctx context.Context, sess *models.Session) (*models.SharedPlan, error)
	GetCircle(ctx context.Context, sess *models.Session) (*models.SharedPlan, error)
}

// PurchaseAPI settles purchases.
type PurchaseAPI interface {
	SettleWithBalance(ctx context.Context, sess *models.Session, item models.PaymentItem) (*models.SettlementResult, error)
	SettleWithWallet(ctx context.Context, sess *models.Session, item models.PaymentItem, rail models.PaymentRail, walletNumber string) (*models.SettlementResult, error)
	SettleWithQRIS(ctx context.Context, sess *models.Session, item models.PaymentItem) (*models.SettlementResult, error)
}

// SessionProvider is the session cache surface the handlers use.
type SessionProvider interface {
	GetSession(ctx context.Context, chatUserID int64) (*models.Session, error)
	ForceRefresh(ctx context.Context, chatUserID int64) (*models.Session, error)
	Invalidate(chatUserID int64)
}

// RateLimiter implements token bucket algorithm for rate limiting
type RateLimiter struct {
	rate       int // messages per minute
	bucketSize int
	tokens     float64
	lastUpdate time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(messagesPerMinute int) *RateLimiter {
	return &RateLimiter{
		rate:       messagesPerMinute,
		bucketSize: messagesPerMinute,
		tokens:     float64(messagesPerMinute),
		lastUpdate: time.Now(),
	}
}

// Allow checks if a message can be sent
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastUpdate).Minutes()
	rl.lastUpdate = now

	rl.tokens += float64(rl.rate) * elapsed
	if rl.tokens > float64(rl.bucketSize) {
		rl.tokens = float64(rl.bucketSize)
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

// expectation marks what the next free-text message from a user means when
// no dialog is active (menu scratch state).
type expectation int

const (
	expectNothing expectation = iota
	expectFamilyCode
)

// scratch is per-user transient menu state: the pending package selection a
// payment acts on, the banner targets of the last segments view, and what
// free text is currently expected.
type scratch struct {
	expect    expectation
	selection *models.PackageDetail
	banners   []models.SegmentBanner
	updatedAt time.Time
}

// BotOptions contains optional configuration for the bot
type BotOptions struct {
	RateLimiter *RateLimiter
	BotAPI      BotAPI
	Logger      *logging.Logger
	Metrics     *metrics.Metrics
}

// Bot is the chat front end: it polls updates, routes them to command,
// callback, and dialog handlers, and talks to the remote API through the
// session cache.
type Bot struct {
	cfg         config.TelegramConfig
	store       store.Store
	sessions    SessionProvider
	dialogs     *dialog.Engine
	auth        AuthAPI
	subscriber  SubscriberAPI
	purchase    PurchaseAPI
	hot         *catalog.Catalog
	hot2        *catalog.Catalog
	dialogCfg   config.DialogConfig
	rateLimiter *RateLimiter
	api         BotAPI
	logger      *logging.Logger
	metrics     *metrics.Metrics

	scratchMu sync.Mutex
	scratches map[int64]*scratch

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	updateChan chan Update
}

// Deps bundles the collaborators a Bot needs.
type Deps struct {
	Store      store.Store
	Sessions   SessionProvider
	Auth       AuthAPI
	Subscriber SubscriberAPI
	Purchase   PurchaseAPI
	Hot        *catalog.Catalog
	Hot2       *catalog.Catalog
}

// NewBot creates a new bot. opts may be nil.
func NewBot(cfg config.TelegramConfig, dialogCfg config.DialogConfig, deps Deps, opts *BotOptions) *Bot {
	ctx, cancel := context.WithCancel(context.Background())

	b := &Bot{
		cfg:        cfg,
		store:      deps.Store,
		sessions:   deps.Sessions,
		dialogs:    dialog.NewEngine(),
		auth:       deps.Auth,
		subscriber: deps.Subscriber,
		purchase:   deps.Purchase,
		hot:        deps.Hot,
		hot2:       deps.Hot2,
		dialogCfg:  dialogCfg,
		scratches:  make(map[int64]*scratch),
		ctx:        ctx,
		cancel:     cancel,
		updateChan: make(chan Update, 100),
	}

	if opts != nil {
		if opts.RateLimiter != nil {
			b.rateLimiter = opts.RateLimiter
		}
		if opts.BotAPI != nil {
			b.api = opts.BotAPI
		}
		if opts.Logger != nil {
			b.logger = opts.Logger
		}
		if opts.Metrics != nil {
			b.metrics = opts.Metrics
		}
	}
	if b.rateLimiter == nil {
		perMinute := cfg.MessagesPerMinute
		if perMinute <= 0 {
			perMinute = 30
		}
		b.rateLimiter = NewRateLimiter(perMinute)
	}
	if b.logger == nil {
		b.logger = logging.NewLogger()
	}

	return b
}

// Start starts the bot loops.
func (b *Bot) Start() error {
	if !b.cfg.Enabled {
		return nil
	}
	if b.cfg.BotToken == "" && b.api == nil {
		return fmt.Errorf("bot token is required")
	}

	b.wg.Add(1)
	go b.processUpdates()

	if b.api != nil {
		b.wg.Add(1)
		go b.pollUpdates()
	}

	if b.dialogCfg.PruneAfter > 0 {
		b.wg.Add(1)
		go b.pruneDialogs()
	}

	return nil
}

// Stop gracefully stops the bot
func (b *Bot) Stop() error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("timeout waiting for bot to stop")
	}
}

func (b *Bot) processUpdates() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case u, ok := <-b.updateChan:
			if !ok {
				return
			}
			b.handleUpdate(u)
		}
	}
}

// pollUpdates polls the chat API for updates and forwards them to the
// update channel.
func (b *Bot) pollUpdates() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		default:
		}

		updates, err := b.api.GetUpdates()
		if err != nil {
			time.Sleep(2 * time.Second)
			continue
		}
		if len(updates) == 0 {
			time.Sleep(250 * time.Millisecond)
			continue
		}

		for _, u := range updates {
			select {
			case <-b.ctx.Done():
				return
			case b.updateChan <- u:
			default:
				// Drop if buffer is full to avoid blocking
			}
		}
	}
}

// pruneDialogs periodically drops abandoned dialog contexts and stale
// scratch state.
func (b *Bot) pruneDialogs() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.dialogCfg.PruneAfter)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.dialogs.PruneOlderThan(b.dialogCfg.PruneAfter)
			b.pruneScratches(b.dialogCfg.PruneAfter)
			if b.metrics != nil {
				b.metrics.SetDialogsActive(b.dialogs.Count())
			}
		}
	}
}

func (b *Bot) pruneScratches(maxAge time.Duration) {
	cutoff := time.Now().Add(-maxAge)
	b.scratchMu.Lock()
	defer b.scratchMu.Unlock()
	for id, s := range b.scratches {
		if s.updatedAt.Before(cutoff) {
			delete(b.scratches, id)
		}
	}
}

func (b *Bot) getScratch(userID int64) *scratch {
	b.scratchMu.Lock()
	defer b.scratchMu.Unlock()
	s, ok := b.scratches[userID]
	if !ok {
		s = &scratch{}
		b.scratches[userID] = s
	}
	s.updatedAt = time.Now()
	return s
}

func (b *Bot) clearScratch(userID int64) {
	b.scratchMu.Lock()
	defer b.scratchMu.Unlock()
	delete(b.scratches, userID)
}

// send delivers plain text through the rate limiter.
func (b *Bot) send(chatID int64, text string) {
	if text == "" {
		return
	}
	if !b.rateLimiter.Allow() {
		b.logger.Warn("outbound message dropped by rate limiter", "chat_id", chatID)
		return
	}
	if b.api == nil {
		return
	}
	if err := b.api.SendMessage(chatID, text); err != nil {
		b.logger.Error("send failed", "chat_id", chatID, "error", err.Error())
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	if text == "" {
		return
	}
	if !b.rateLimiter.Allow() {
		b.logger.Warn("outbound message dropped by rate limiter", "chat_id", chatID)
		return
	}
	if b.api == nil {
		return
	}
	if sender, ok := b.api.(ParseModeSender); ok {
		if err := sender.SendMessageWithParseMode(chatID, text, "HTML"); err != nil {
			b.logger.Error("send failed", "chat_id", chatID, "error", err.Error())
		}
		return
	}
	_ = b.api.SendMessage(chatID, text)
}

func (b *Bot) sendKeyboard(chatID int64, text string, keyboard InlineKeyboard) {
	if !b.rateLimiter.Allow() {
		b.logger.Warn("outbound message dropped by rate limiter", "chat_id", chatID)
		return
	}
	if b.api == nil {
		return
	}
	if sender, ok := b.api.(InlineKeyboardSender); ok {
		if err := sender.SendMessageWithInlineKeyboard(chatID, text, "HTML", keyboard); err != nil {
			b.logger.Error("send failed", "chat_id", chatID, "error", err.Error())
		}
		return
	}
	if sender, ok := b.api.(ParseModeSender); ok {
		_ = sender.SendMessageWithParseMode(chatID, text, "HTML")
		return
	}
	_ = b.api.SendMessage(chatID, text)
}

func (b *Bot) recordCommand(name string) {
	if b.metrics != nil {
		b.metrics.RecordCommand(name)
	}
}

func (b *Bot) recordUpdate(kind string) {
	if b.metrics != nil {
		b.metrics.RecordUpdate(kind)
	}
}

func (b *Bot) recordDialogOutcome(name, outcome string) {
	if b.metrics != nil {
		b.metrics.RecordDialogOutcome(name, outcome)
	}
}
