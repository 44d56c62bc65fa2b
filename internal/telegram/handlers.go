package telegram

import (
	"context"
	"strconv"
	"strings"

	"github.com/paketku/paketku/internal/logging"
)

// handleUpdate is the single entry point for inbound chat events.
func (b *Bot) handleUpdate(u Update) {
	ctx := logging.EnsureCorrelationID(b.ctx)
	if u.UserID != 0 {
		ctx = logging.WithChatUser(ctx, u.UserID)
	}

	if b.store != nil && u.UserID != 0 {
		_ = b.store.UpsertUser(u.UserID, u.Username, u.FirstName, u.LastName)
	}

	if u.Callback != "" {
		b.recordUpdate("callback")
		b.handleCallback(ctx, u)
		return
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		return
	}
	b.recordUpdate("message")

	if strings.HasPrefix(text, "/") {
		b.handleCommand(ctx, u, text)
		return
	}
	b.handleFreeText(ctx, u, text)
}

// handleCommand routes slash commands.
func (b *Bot) handleCommand(ctx context.Context, u Update, text string) {
	parts := strings.Fields(text)
	command := strings.ToLower(parts[0])
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}
	args := parts[1:]
	b.recordCommand(command)

	switch command {
	case "/start":
		b.showMenu(ctx, u)
	case "/help":
		b.sendHTML(u.ChatID, helpText)
	case "/cancel":
		b.handleCancel(u)
	case "/login":
		b.startLogin(ctx, u)
	case "/logout":
		b.handleLogout(ctx, u)
	case "/accounts":
		b.showAccounts(ctx, u)
	case "/profile":
		b.showProfile(ctx, u)
	case "/packages":
		b.showQuotas(ctx, u)
	case "/hot":
		b.showOffers(u, b.hot, "hot", "🔥 Hot Offers", 0)
	case "/hot2":
		b.showOffers(u, b.hot2, "hot2", "🔥 Hot Offers 2", 0)
	case "/segments":
		b.showSegments(ctx, u)
	case "/bookmarks":
		b.showBookmarks(ctx, u)
	case "/history":
		b.showHistory(ctx, u)
	case "/family":
		b.showSharedPlan(ctx, u, "family")
	case "/circle":
		b.showSharedPlan(ctx, u, "circle")
	case "/settings":
		b.showSettings(ctx, u)
	case "/refresh":
		b.handleRefresh(ctx, u)
	case "/addhot":
		b.startAddOffer(ctx, u, b.hot, "hot")
	case "/addhot2":
		b.startAddOffer(ctx, u, b.hot2, "hot2")
	case "/delhot":
		b.handleDeleteOffer(u, b.hot, args)
	case "/delhot2":
		b.handleDeleteOffer(u, b.hot2, args)
	default:
		b.send(u.ChatID, "Unknown command. Type /help for available commands.")
	}
}

// handleCallback routes inline button presses. Callback data is a small
// closed vocabulary decoded here once: "name" or "name:arg" or
// "name:arg:arg".
func (b *Bot) handleCallback(ctx context.Context, u Update) {
	name, args := parseCallback(u.Callback)

	switch name {
	case "menu":
		b.showMenu(ctx, u)
	case "help":
		b.sendHTML(u.ChatID, helpText)
	case "cancel":
		b.handleCancel(u)
	case "login":
		b.startLogin(ctx, u)
	case "logout":
		b.handleLogout(ctx, u)
	case "accounts":
		b.showAccounts(ctx, u)
	case "switch":
		b.handleSwitch(ctx, u, firstArg(args))
	case "unlink":
		b.handleUnlink(ctx, u, firstArg(args))
	case "profile":
		b.showProfile(ctx, u)
	case "quotas":
		b.showQuotas(ctx, u)
	case "hot":
		b.showOffers(u, b.hot, "hot", "🔥 Hot Offers", atoiOr(firstArg(args), 0))
	case "hot2":
		b.showOffers(u, b.hot2, "hot2", "🔥 Hot Offers 2", atoiOr(firstArg(args), 0))
	case "offer":
		b.handleOffer(ctx, u, args)
	case "segments":
		b.showSegments(ctx, u)
	case "seg":
		b.handleSegmentPick(ctx, u, firstArg(args))
	case "search":
		b.startFamilySearch(u)
	case "family":
		b.showFamily(ctx, u, firstArg(args))
	case "option":
		b.showPackageDetail(ctx, u, firstArg(args))
	case "buy":
		b.startPayment(ctx, u)
	case "pay":
		// Rail buttons feed the live payment dialog as if typed.
		b.handleFreeText(ctx, u, firstArg(args))
	case "bookmark":
		b.handleBookmark(u)
	case "bookmarks":
		b.showBookmarks(ctx, u)
	case "unbookmark":
		b.handleUnbookmark(ctx, u, firstArg(args))
	case "history":
		b.showHistory(ctx, u)
	case "familyplan":
		b.showSharedPlan(ctx, u, "family")
	case "circle":
		b.showSharedPlan(ctx, u, "circle")
	case "settings":
		b.showSettings(ctx, u)
	case "notify":
		b.handleToggleNotifications(ctx, u)
	case "lang":
		b.handleSetLanguage(ctx, u, firstArg(args))
	default:
		b.logger.Warn("unknown callback", "data", u.Callback, "chat_user_id", u.UserID)
	}
}

// handleFreeText feeds text into the active dialog first, then into menu
// scratch expectations.
func (b *Bot) handleFreeText(ctx context.Context, u Update, text string) {
	reply, handled, err := b.dialogs.HandleText(ctx, u.UserID, text)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "dialog step failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Something went wrong. Please try again later.")
		return
	}
	if handled {
		b.sendHTML(u.ChatID, reply)
		return
	}

	s := b.getScratch(u.UserID)
	if s.expect == expectFamilyCode {
		s.expect = expectNothing
		b.showFamily(ctx, u, text)
		return
	}

	b.send(u.ChatID, "I did not understand that. Type /start for the menu.")
}

func (b *Bot) handleCancel(u Update) {
	s := b.getScratch(u.UserID)
	s.expect = expectNothing

	reply, cancelled := b.dialogs.Cancel(u.UserID)
	if !cancelled {
		b.send(u.ChatID, "Nothing to cancel.")
		return
	}
	if reply == "" {
		reply = "Cancelled."
	}
	b.send(u.ChatID, reply)
}

func parseCallback(data string) (string, []string) {
	parts := strings.Split(data, ":")
	return parts[0], parts[1:]
}

func firstArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func atoiOr(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
