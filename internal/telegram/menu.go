package telegram

import (
	"context"
	"fmt"
	"strconv"

	"github.com/paketku/paketku/internal/catalog"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/models"
)

// requireSession resolves the caller's live session, prompting for login when
// no account is linked or the refresh failed.
func (b *Bot) requireSession(ctx context.Context, u Update) (*models.Session, bool) {
	sess, err := b.sessions.GetSession(ctx, u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "session refresh failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not refresh your session. Please try again, or /login to relink your number.")
		return nil, false
	}
	if sess == nil {
		b.sendKeyboard(u.ChatID, "You are not logged in yet.", mainMenuKeyboard(false))
		return nil, false
	}
	return sess, true
}

func (b *Bot) showMenu(ctx context.Context, u Update) {
	sess, err := b.sessions.GetSession(ctx, u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "session refresh failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
	}
	loggedIn := sess != nil
	text := welcomeText
	if loggedIn {
		text = fmt.Sprintf("<b>👋 Welcome back!</b>\n\nActive number: <b>%s</b>", sess.PhoneNumber)
	}
	b.sendKeyboard(u.ChatID, text, mainMenuKeyboard(loggedIn))
}

func (b *Bot) showProfile(ctx context.Context, u Update) {
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	profile, err := b.subscriber.FetchProfile(ctx, sess)
	if err != nil {
		b.replyAPIError(ctx, u, "profile", err)
		return
	}
	balance, err := b.subscriber.GetBalance(ctx, sess)
	if err != nil {
		b.logger.WarnWithContext(ctx, "balance fetch failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		balance = nil
	}
	b.sendHTML(u.ChatID, formatProfile(profile, balance))
}

func (b *Bot) showQuotas(ctx context.Context, u Update) {
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	packages, err := b.subscriber.GetQuotas(ctx, sess)
	if err != nil {
		b.replyAPIError(ctx, u, "quotas", err)
		return
	}
	b.sendHTML(u.ChatID, formatQuotas(packages))
}

func (b *Bot) showOffers(u Update, cat *catalog.Catalog, prefix, title string, page int) {
	if cat == nil {
		b.send(u.ChatID, "This catalog is not configured.")
		return
	}
	offers := cat.Offers()
	text := formatOffersPage(title, offers, page, offersPerPage)
	b.sendKeyboard(u.ChatID, text, offersKeyboard(prefix, offers, page, offersPerPage))
}

// handleOffer resolves an "offer:<prefix>:<idx>" press against the catalog it
// was rendered from. Entries with an option code go straight to the package
// detail; family-only entries open the family browser.
func (b *Bot) handleOffer(ctx context.Context, u Update, args []string) {
	if len(args) < 2 {
		return
	}
	cat := b.hot
	if args[0] == "hot2" {
		cat = b.hot2
	}
	if cat == nil {
		return
	}
	idx, err := strconv.Atoi(args[1])
	if err != nil {
		return
	}
	offers := cat.Offers()
	if idx < 0 || idx >= len(offers) {
		b.send(u.ChatID, "That offer is no longer listed. Reopen the catalog.")
		return
	}
	offer := offers[idx]
	if offer.OptionCode != "" {
		b.showPackageDetail(ctx, u, offer.OptionCode)
		return
	}
	b.showFamilyOption(ctx, u, offer.FamilyCode, offer.IsEnterprise, offer.OptionOrder)
}

// showSegments lists the vendor's promo shelves and pins the flattened banner
// targets so a pick resolves without refetching.
func (b *Bot) showSegments(ctx context.Context, u Update) {
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	segments, err := b.subscriber.GetStoreSegments(ctx, sess, false)
	if err != nil {
		b.replyAPIError(ctx, u, "segments", err)
		return
	}
	if len(segments) == 0 {
		b.send(u.ChatID, "No promos right now.")
		return
	}
	s := b.getScratch(u.UserID)
	s.banners = flattenBanners(segments)
	b.sendKeyboard(u.ChatID, formatSegments(segments), segmentsKeyboard(s.banners))
}

// handleSegmentPick resolves a "seg:<idx>" press against the banners pinned by
// the last segments view.
func (b *Bot) handleSegmentPick(ctx context.Context, u Update, idxArg string) {
	idx, err := strconv.Atoi(idxArg)
	if err != nil {
		return
	}
	s := b.getScratch(u.UserID)
	if idx < 0 || idx >= len(s.banners) {
		b.send(u.ChatID, "That promo is no longer listed. Reopen the promos.")
		return
	}
	banner := s.banners[idx]
	switch banner.ActionType {
	case models.BannerActionDetail:
		b.showPackageDetail(ctx, u, banner.ActionParam)
	case models.BannerActionFamily:
		b.showFamilyOption(ctx, u, banner.ActionParam, false, 0)
	default:
		b.send(u.ChatID, "That promo cannot be opened here.")
	}
}

func (b *Bot) startFamilySearch(u Update) {
	s := b.getScratch(u.UserID)
	s.expect = expectFamilyCode
	b.send(u.ChatID, "Send me the family code to look up.")
}

func (b *Bot) showFamily(ctx context.Context, u Update, familyCode string) {
	b.showFamilyOption(ctx, u, familyCode, false, 0)
}

// showFamilyOption fetches a package family and either lists its options or,
// when optionOrder targets one, jumps straight to that option's detail.
func (b *Bot) showFamilyOption(ctx context.Context, u Update, familyCode string, isEnterprise bool, optionOrder int) {
	if familyCode == "" {
		b.send(u.ChatID, "Family code is empty.")
		return
	}
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	family, err := b.subscriber.GetFamilyPackages(ctx, sess, familyCode, isEnterprise)
	if err != nil && !isEnterprise {
		// Some families are only listed on the enterprise shelf.
		family, err = b.subscriber.GetFamilyPackages(ctx, sess, familyCode, true)
	}
	if err != nil {
		b.replyAPIError(ctx, u, "family", err)
		return
	}

	if optionOrder > 0 {
		for _, variant := range family.Variants {
			for _, opt := range variant.Options {
				if opt.Order == optionOrder {
					b.showPackageDetail(ctx, u, opt.Code)
					return
				}
			}
		}
	}

	text := fmt.Sprintf("<b>%s</b>\nPick an option:", family.Name)
	b.sendKeyboard(u.ChatID, text, familyKeyboard(family))
}

// showPackageDetail fetches one option's detail and pins it as the user's
// pending selection so buy and bookmark know what they act on.
func (b *Bot) showPackageDetail(ctx context.Context, u Update, optionCode string) {
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	detail, err := b.subscriber.GetPackageDetail(ctx, sess, optionCode)
	if err != nil {
		b.replyAPIError(ctx, u, "package detail", err)
		return
	}
	s := b.getScratch(u.UserID)
	s.selection = detail
	b.sendKeyboard(u.ChatID, formatPackageDetail(detail), packageDetailKeyboard())
}

func (b *Bot) handleBookmark(u Update) {
	s := b.getScratch(u.UserID)
	if s.selection == nil {
		b.send(u.ChatID, "Open a package first, then bookmark it.")
		return
	}
	bm := models.Bookmark{
		ChatUserID:  u.UserID,
		FamilyCode:  s.selection.Family.Code,
		FamilyName:  s.selection.Family.Name,
		OptionName:  s.selection.Option.Name,
		OptionOrder: s.selection.Option.Order,
	}
	if err := b.store.AddBookmark(bm); err != nil {
		b.logger.Error("bookmark save failed", "chat_user_id", u.UserID, "error", err.Error())
		b.send(u.ChatID, "Could not save the bookmark.")
		return
	}
	b.send(u.ChatID, "⭐ Bookmarked.")
}

func (b *Bot) showBookmarks(ctx context.Context, u Update) {
	bookmarks, err := b.store.GetBookmarks(u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "bookmark list failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not load your bookmarks.")
		return
	}
	if len(bookmarks) == 0 {
		b.send(u.ChatID, "No bookmarks yet. Open a package and press ⭐ Bookmark.")
		return
	}
	b.sendKeyboard(u.ChatID, "<b>⭐ Bookmarks</b>", bookmarksKeyboard(bookmarks))
}

func (b *Bot) handleUnbookmark(ctx context.Context, u Update, idArg string) {
	id, err := strconv.ParseInt(idArg, 10, 64)
	if err != nil {
		return
	}
	if err := b.store.DeleteBookmark(u.UserID, id); err != nil {
		b.logger.ErrorWithContext(ctx, "bookmark delete failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not remove the bookmark.")
		return
	}
	b.showBookmarks(ctx, u)
}

func (b *Bot) showHistory(ctx context.Context, u Update) {
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	transactions, err := b.subscriber.GetTransactionHistory(ctx, sess)
	if err != nil {
		b.replyAPIError(ctx, u, "history", err)
		return
	}
	b.sendHTML(u.ChatID, formatTransactions(transactions))
}

func (b *Bot) showSharedPlan(ctx context.Context, u Update, kind string) {
	sess, ok := b.requireSession(ctx, u)
	if !ok {
		return
	}
	var plan *models.SharedPlan
	var err error
	if kind == "circle" {
		plan, err = b.subscriber.GetCircle(ctx, sess)
	} else {
		plan, err = b.subscriber.GetFamilyPlan(ctx, sess)
	}
	if err != nil {
		b.replyAPIError(ctx, u, kind, err)
		return
	}
	if plan == nil || len(plan.Members) == 0 {
		b.send(u.ChatID, "You are not part of a shared plan.")
		return
	}
	b.sendHTML(u.ChatID, formatSharedPlan(plan))
}

func (b *Bot) showAccounts(ctx context.Context, u Update) {
	accounts, err := b.store.GetAccounts(u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "account list failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not load your accounts.")
		return
	}
	if len(accounts) == 0 {
		b.sendKeyboard(u.ChatID, "No linked numbers yet.", mainMenuKeyboard(false))
		return
	}
	b.sendKeyboard(u.ChatID, "<b>🔄 Linked numbers</b>\nTap one to make it active, or 🗑 to unlink.", accountsKeyboard(accounts))
}

// handleSwitch makes another linked number the active one. The session cache
// entry for the user is dropped so the next operation runs on the new account.
func (b *Bot) handleSwitch(ctx context.Context, u Update, phoneNumber string) {
	if phoneNumber == "" {
		return
	}
	if err := b.store.SetActiveAccount(u.UserID, phoneNumber); err != nil {
		b.logger.ErrorWithContext(ctx, "account switch failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not switch to that number.")
		return
	}
	b.sessions.Invalidate(u.UserID)
	b.clearScratch(u.UserID)
	logging.NewAuditEvent(logging.AccountSwitch, "switch account", logging.StatusSuccess).
		WithChatUserID(u.UserID).
		WithResource(phoneNumber).
		Emit(b.logger)
	b.sendHTML(u.ChatID, fmt.Sprintf("✅ Switched to <b>%s</b>.", phoneNumber))
}

func (b *Bot) handleUnlink(ctx context.Context, u Update, phoneNumber string) {
	if phoneNumber == "" {
		return
	}
	if err := b.store.DeleteAccount(u.UserID, phoneNumber); err != nil {
		b.logger.ErrorWithContext(ctx, "account unlink failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not unlink that number.")
		return
	}
	b.sessions.Invalidate(u.UserID)
	logging.NewAuditEvent(logging.AccountUnlink, "unlink account", logging.StatusSuccess).
		WithChatUserID(u.UserID).
		WithResource(phoneNumber).
		Emit(b.logger)
	b.showAccounts(ctx, u)
}

// handleLogout unlinks the active number.
func (b *Bot) handleLogout(ctx context.Context, u Update) {
	account, err := b.store.GetActiveAccount(u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "active account lookup failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not look up your active number.")
		return
	}
	if account == nil {
		b.send(u.ChatID, "You are not logged in.")
		return
	}
	if err := b.store.DeleteAccount(u.UserID, account.PhoneNumber); err != nil {
		b.logger.ErrorWithContext(ctx, "account unlink failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not log out.")
		return
	}
	b.sessions.Invalidate(u.UserID)
	b.clearScratch(u.UserID)
	logging.NewAuditEvent(logging.AccountUnlink, "logout", logging.StatusSuccess).
		WithChatUserID(u.UserID).
		WithResource(account.PhoneNumber).
		Emit(b.logger)
	b.sendHTML(u.ChatID, fmt.Sprintf("👋 Unlinked <b>%s</b>.", account.PhoneNumber))
}

// handleRefresh rebuilds the session immediately, bypassing the freshness
// window. Useful when the upstream invalidated tokens out of band.
func (b *Bot) handleRefresh(ctx context.Context, u Update) {
	sess, err := b.sessions.ForceRefresh(ctx, u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "forced refresh failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not refresh your session. Try again, or /login to relink your number.")
		return
	}
	if sess == nil {
		b.sendKeyboard(u.ChatID, "You are not logged in yet.", mainMenuKeyboard(false))
		return
	}
	b.sendHTML(u.ChatID, fmt.Sprintf("✅ Session refreshed for <b>%s</b>.", sess.PhoneNumber))
}

func (b *Bot) showSettings(ctx context.Context, u Update) {
	pref, err := b.store.GetPreference(u.UserID)
	if err != nil {
		b.logger.ErrorWithContext(ctx, "preference load failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not load your settings.")
		return
	}
	b.sendKeyboard(u.ChatID, formatSettings(pref), settingsKeyboard(pref))
}

func (b *Bot) handleToggleNotifications(ctx context.Context, u Update) {
	pref, err := b.store.GetPreference(u.UserID)
	if err == nil {
		pref.NotificationsEnabled = !pref.NotificationsEnabled
		err = b.store.SetPreference(pref)
	}
	if err != nil {
		b.logger.ErrorWithContext(ctx, "preference save failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not update your settings.")
		return
	}
	b.showSettings(ctx, u)
}

func (b *Bot) handleSetLanguage(ctx context.Context, u Update, lang string) {
	if lang != "en" && lang != "id" {
		return
	}
	pref, err := b.store.GetPreference(u.UserID)
	if err == nil {
		pref.Language = lang
		err = b.store.SetPreference(pref)
	}
	if err != nil {
		b.logger.ErrorWithContext(ctx, "preference save failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Could not update your settings.")
		return
	}
	b.showSettings(ctx, u)
}

func (b *Bot) replyAPIError(ctx context.Context, u Update, what string, err error) {
	b.logger.ErrorWithContext(ctx, "remote api call failed",
		"operation", what,
		"chat_user_id", u.UserID,
		"error", err.Error())
	b.send(u.ChatID, "The upstream service did not answer. Please try again in a moment.")
}
