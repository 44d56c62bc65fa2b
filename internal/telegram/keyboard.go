package telegram

import (
	"fmt"

	"github.com/paketku/paketku/internal/models"
)

// InlineButton represents a single inline keyboard button.
type InlineButton struct {
	Text         string
	CallbackData string
	URL          string
}

// InlineKeyboard represents an inline keyboard layout.
type InlineKeyboard struct {
	Rows [][]InlineButton
}

// InlineKeyboardSender allows sending messages with inline keyboards.
type InlineKeyboardSender interface {
	SendMessageWithInlineKeyboard(chatID int64, text, parseMode string, keyboard InlineKeyboard) error
}

// HasButtons indicates whether the keyboard has any buttons.
func (k InlineKeyboard) HasButtons() bool {
	return len(k.Rows) > 0
}

func mainMenuKeyboard(loggedIn bool) InlineKeyboard {
	if !loggedIn {
		return InlineKeyboard{Rows: [][]InlineButton{
			{{Text: "🔑 Login", CallbackData: "login"}},
			{{Text: "❓ Help", CallbackData: "help"}},
		}}
	}
	return InlineKeyboard{Rows: [][]InlineButton{
		{{Text: "👤 Profile", CallbackData: "profile"}, {Text: "📦 My Packages", CallbackData: "quotas"}},
		{{Text: "🔥 Hot Offers", CallbackData: "hot:0"}, {Text: "🔥 Hot Offers 2", CallbackData: "hot2:0"}},
		{{Text: "📊 Promos", CallbackData: "segments"}, {Text: "🔎 Search Family", CallbackData: "search"}},
		{{Text: "⭐ Bookmarks", CallbackData: "bookmarks"}},
		{{Text: "🧾 History", CallbackData: "history"}, {Text: "👨‍👩‍👧 Family Plan", CallbackData: "familyplan"}},
		{{Text: "🔄 Accounts", CallbackData: "accounts"}, {Text: "⚙️ Settings", CallbackData: "settings"}},
		{{Text: "❓ Help", CallbackData: "help"}},
	}}
}

// offersKeyboard renders one page of catalog offers plus pagination arrows.
func offersKeyboard(prefix string, offers []models.Offer, page, pageSize int) InlineKeyboard {
	start := page * pageSize
	if start >= len(offers) {
		start = 0
		page = 0
	}
	end := start + pageSize
	if end > len(offers) {
		end = len(offers)
	}

	var rows [][]InlineButton
	for i := start; i < end; i++ {
		rows = append(rows, []InlineButton{{
			Text:         offers[i].Label(),
			CallbackData: fmt.Sprintf("offer:%s:%d", prefix, i),
		}})
	}

	var nav []InlineButton
	if page > 0 {
		nav = append(nav, InlineButton{Text: "⬅️", CallbackData: fmt.Sprintf("%s:%d", prefix, page-1)})
	}
	if end < len(offers) {
		nav = append(nav, InlineButton{Text: "➡️", CallbackData: fmt.Sprintf("%s:%d", prefix, page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []InlineButton{{Text: "🏠 Menu", CallbackData: "menu"}})
	return InlineKeyboard{Rows: rows}
}

// railKeyboard offers the payment rails for a pending purchase.
func railKeyboard() InlineKeyboard {
	var rows [][]InlineButton
	row := []InlineButton{}
	for _, rail := range models.AllRails() {
		row = append(row, InlineButton{Text: string(rail), CallbackData: "pay:" + string(rail)})
		if len(row) == 2 {
			rows = append(rows, row)
			row = []InlineButton{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, []InlineButton{{Text: "✖️ Cancel", CallbackData: "cancel"}})
	return InlineKeyboard{Rows: rows}
}

// accountsKeyboard lists linked accounts with switch and unlink actions.
func accountsKeyboard(accounts models.AccountSlice) InlineKeyboard {
	var rows [][]InlineButton
	for _, a := range accounts {
		label := a.PhoneNumber
		if a.IsActive {
			label = "✅ " + label
		}
		rows = append(rows, []InlineButton{
			{Text: label, CallbackData: "switch:" + a.PhoneNumber},
			{Text: "🗑", CallbackData: "unlink:" + a.PhoneNumber},
		})
	}
	rows = append(rows, []InlineButton{
		{Text: "➕ Link another", CallbackData: "login"},
		{Text: "🏠 Menu", CallbackData: "menu"},
	})
	return InlineKeyboard{Rows: rows}
}

// bookmarksKeyboard lists saved bookmarks with open and delete actions.
func bookmarksKeyboard(bookmarks []models.Bookmark) InlineKeyboard {
	var rows [][]InlineButton
	for _, bm := range bookmarks {
		label := bm.FamilyName
		if bm.OptionName != "" {
			label = fmt.Sprintf("%s - %s", bm.FamilyName, bm.OptionName)
		}
		rows = append(rows, []InlineButton{
			{Text: label, CallbackData: fmt.Sprintf("family:%s", bm.FamilyCode)},
			{Text: "🗑", CallbackData: fmt.Sprintf("unbookmark:%d", bm.ID)},
		})
	}
	rows = append(rows, []InlineButton{{Text: "🏠 Menu", CallbackData: "menu"}})
	return InlineKeyboard{Rows: rows}
}

// packageDetailKeyboard offers buying and bookmarking one package option.
func packageDetailKeyboard() InlineKeyboard {
	return InlineKeyboard{Rows: [][]InlineButton{
		{{Text: "💳 Buy", CallbackData: "buy"}, {Text: "⭐ Bookmark", CallbackData: "bookmark"}},
		{{Text: "🏠 Menu", CallbackData: "menu"}},
	}}
}

// segmentsKeyboard lists the flattened promo banners by their displayed
// number.
func segmentsKeyboard(banners []models.SegmentBanner) InlineKeyboard {
	var rows [][]InlineButton
	for i, banner := range banners {
		rows = append(rows, []InlineButton{{
			Text:         fmt.Sprintf("%d. %s", i+1, banner.Title),
			CallbackData: fmt.Sprintf("seg:%d", i),
		}})
	}
	rows = append(rows, []InlineButton{{Text: "🏠 Menu", CallbackData: "menu"}})
	return InlineKeyboard{Rows: rows}
}

// settingsKeyboard offers the per-user preference toggles.
func settingsKeyboard(p models.Preference) InlineKeyboard {
	notif := "🔔 Notifications: on"
	if !p.NotificationsEnabled {
		notif = "🔕 Notifications: off"
	}
	lang := InlineButton{Text: "🌐 Bahasa Indonesia", CallbackData: "lang:id"}
	if p.Language == "id" {
		lang = InlineButton{Text: "🌐 English", CallbackData: "lang:en"}
	}
	return InlineKeyboard{Rows: [][]InlineButton{
		{{Text: notif, CallbackData: "notify"}},
		{lang},
		{{Text: "🏠 Menu", CallbackData: "menu"}},
	}}
}

// familyKeyboard lists the options of one package family.
func familyKeyboard(family *models.PackageFamily) InlineKeyboard {
	var rows [][]InlineButton
	for _, variant := range family.Variants {
		for _, opt := range variant.Options {
			label := fmt.Sprintf("%s · %s", variant.Name, opt.Name)
			rows = append(rows, []InlineButton{{
				Text:         label,
				CallbackData: "option:" + opt.Code,
			}})
		}
	}
	rows = append(rows, []InlineButton{{Text: "🏠 Menu", CallbackData: "menu"}})
	return InlineKeyboard{Rows: rows}
}
