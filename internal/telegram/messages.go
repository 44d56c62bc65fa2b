package telegram

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/paketku/paketku/internal/models"
)

const offersPerPage = 6

// formatCurrency renders an IDR amount with dot thousand separators,
// e.g. 55000 -> "Rp 55.000".
func formatCurrency(amount int64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := fmt.Sprintf("%d", amount)
	var sb strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			sb.WriteByte('.')
		}
		sb.WriteRune(d)
	}
	if negative {
		return "-Rp " + sb.String()
	}
	return "Rp " + sb.String()
}

// formatQuotaBytes renders a byte count with binary units, matching how the
// vendor app shows data buckets.
func formatQuotaBytes(n int64) string {
	const (
		kb = 1 << 10
		mb = 1 << 20
		gb = 1 << 30
	)
	switch {
	case n >= gb:
		return fmt.Sprintf("%.2f GB", float64(n)/float64(gb))
	case n >= mb:
		return fmt.Sprintf("%.2f MB", float64(n)/float64(mb))
	case n >= kb:
		return fmt.Sprintf("%.2f KB", float64(n)/float64(kb))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// formatExpiry renders a unix-seconds expiry, or a dash when absent.
func formatExpiry(unixSeconds int64) string {
	if unixSeconds <= 0 {
		return "-"
	}
	return time.Unix(unixSeconds, 0).Format("2006-01-02")
}

// truncate cuts s to max runes, appending an ellipsis when cut.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

func formatProfile(profile *models.Profile, balance *models.Balance) string {
	var sb strings.Builder
	sb.WriteString("<b>👤 Profile</b>\n\n")
	sb.WriteString(fmt.Sprintf("📱 <b>Number:</b> %s\n", html.EscapeString(profile.PhoneNumber)))
	sb.WriteString(fmt.Sprintf("📋 <b>Type:</b> %s\n", profile.SubscriptionType))
	if balance != nil {
		sb.WriteString(fmt.Sprintf("💰 <b>Balance:</b> %s\n", formatCurrency(balance.Remaining)))
		sb.WriteString(fmt.Sprintf("⏳ <b>Valid until:</b> %s\n", formatExpiry(balance.ExpiredAt)))
	}
	return sb.String()
}

func formatQuotas(packages []models.ActivePackage) string {
	if len(packages) == 0 {
		return "You have no active packages."
	}
	var sb strings.Builder
	sb.WriteString("<b>📦 My Packages</b>\n\n")
	for _, p := range packages {
		sb.WriteString(fmt.Sprintf("<b>%s</b> (until %s)\n", html.EscapeString(p.Name), formatExpiry(p.ExpiredAt)))
		for _, benefit := range p.Benefits {
			if benefit.DataType == "DATA" {
				sb.WriteString(fmt.Sprintf("  • %s: %s / %s\n",
					html.EscapeString(benefit.Name),
					formatQuotaBytes(benefit.Remaining),
					formatQuotaBytes(benefit.Total)))
			} else {
				sb.WriteString(fmt.Sprintf("  • %s: %d / %d\n",
					html.EscapeString(benefit.Name), benefit.Remaining, benefit.Total))
			}
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatOffersPage(title string, offers []models.Offer, page, pageSize int) string {
	if len(offers) == 0 {
		return fmt.Sprintf("<b>%s</b>\n\nNothing here yet.", html.EscapeString(title))
	}
	totalPages := (len(offers) + pageSize - 1) / pageSize
	if page >= totalPages {
		page = 0
	}
	start := page * pageSize
	end := start + pageSize
	if end > len(offers) {
		end = len(offers)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b> (page %d/%d)\n\n", html.EscapeString(title), page+1, totalPages))
	for i := start; i < end; i++ {
		o := offers[i]
		sb.WriteString(fmt.Sprintf("• %s — %s\n", html.EscapeString(o.Label()), formatCurrency(o.Price)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatPackageDetail(detail *models.PackageDetail) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(detail.Family.Name)))
	sb.WriteString(fmt.Sprintf("📦 <b>Option:</b> %s\n", html.EscapeString(detail.Option.Name)))
	sb.WriteString(fmt.Sprintf("💰 <b>Price:</b> %s\n", formatCurrency(detail.Option.Price)))
	return sb.String()
}

func formatTransactions(transactions []models.Transaction) string {
	if len(transactions) == 0 {
		return "No transactions yet."
	}
	var sb strings.Builder
	sb.WriteString("<b>🧾 Transaction History</b>\n\n")
	for i, trx := range transactions {
		if i >= 10 {
			sb.WriteString(fmt.Sprintf("… and %d more\n", len(transactions)-i))
			break
		}
		sb.WriteString(fmt.Sprintf("• %s — %s (%s, %s)\n",
			html.EscapeString(truncate(trx.Title, 40)),
			formatCurrency(trx.Price),
			html.EscapeString(trx.Status),
			trx.Timestamp.Format("2006-01-02")))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSharedPlan(plan *models.SharedPlan) string {
	var sb strings.Builder
	icon := "👨‍👩‍👧"
	if plan.PlanType == "CIRCLE" {
		icon = "🔵"
	}
	sb.WriteString(fmt.Sprintf("%s <b>%s</b> (until %s)\n\n", icon, html.EscapeString(plan.Name), formatExpiry(plan.ExpiredAt)))
	for _, m := range plan.Members {
		owner := ""
		if m.IsOwner {
			owner = " 👑"
		}
		sb.WriteString(fmt.Sprintf("• %s (%s)%s: %s / %s\n",
			html.EscapeString(m.Alias),
			html.EscapeString(m.PhoneNumber),
			owner,
			formatQuotaBytes(m.QuotaUsed),
			formatQuotaBytes(m.QuotaTotal)))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSettlement(rail models.PaymentRail, result *models.SettlementResult) string {
	var sb strings.Builder
	if result.Succeeded() {
		sb.WriteString("✅ <b>Payment successful!</b>\n")
	} else {
		sb.WriteString(fmt.Sprintf("⏳ <b>Payment %s</b>\n", html.EscapeString(result.Status)))
	}
	sb.WriteString(fmt.Sprintf("Method: %s\n", rail))
	if result.TransactionID != "" {
		sb.WriteString(fmt.Sprintf("Transaction: <code>%s</code>\n", html.EscapeString(result.TransactionID)))
	}
	if result.Deeplink != "" {
		sb.WriteString(fmt.Sprintf("Finish the payment here: %s\n", html.EscapeString(result.Deeplink)))
	}
	if result.QRISCode != "" {
		sb.WriteString(fmt.Sprintf("Scan this QRIS code:\n<code>%s</code>\n", html.EscapeString(result.QRISCode)))
	}
	if result.Message != "" {
		sb.WriteString(html.EscapeString(result.Message) + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// The segments view caps shelves and banners the way the vendor app does.
const (
	maxSegments          = 3
	maxBannersPerSegment = 3
)

// flattenBanners collapses the capped segment view into one indexable banner
// list matching the keyboard numbering.
func flattenBanners(segments []models.StoreSegment) []models.SegmentBanner {
	var banners []models.SegmentBanner
	for i, seg := range segments {
		if i >= maxSegments {
			break
		}
		for j, banner := range seg.Banners {
			if j >= maxBannersPerSegment {
				break
			}
			banners = append(banners, banner)
		}
	}
	return banners
}

func formatSegments(segments []models.StoreSegment) string {
	var sb strings.Builder
	sb.WriteString("<b>📊 Promos</b>\n\n")
	n := 0
	for i, seg := range segments {
		if i >= maxSegments {
			break
		}
		sb.WriteString(fmt.Sprintf("<b>%s</b>\n", html.EscapeString(seg.Title)))
		for j, banner := range seg.Banners {
			if j >= maxBannersPerSegment {
				break
			}
			n++
			sb.WriteString(fmt.Sprintf("%d. %s - %s\n", n,
				html.EscapeString(banner.Title), formatCurrency(banner.DiscountedPrice)))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatSettings(p models.Preference) string {
	notif := "off"
	if p.NotificationsEnabled {
		notif = "on"
	}
	var sb strings.Builder
	sb.WriteString("<b>⚙️ Settings</b>\n\n")
	sb.WriteString(fmt.Sprintf("🌐 <b>Language:</b> %s\n", html.EscapeString(p.Language)))
	sb.WriteString(fmt.Sprintf("🔔 <b>Notifications:</b> %s\n", notif))
	return sb.String()
}

const helpText = `<b>❓ Help</b>

/start — main menu
/login — link a number (phone → OTP)
/accounts — list and switch linked numbers
/logout — unlink the active number
/profile — balance and subscription
/packages — active packages and quotas
/hot — curated offers
/segments — store promos
/history — purchase history
/family — family plan
/circle — circle group
/settings — language and notifications
/refresh — force a session refresh
/cancel — cancel the current step`

const welcomeText = `<b>👋 Welcome!</b>

I manage your mobile subscription: check quota, browse packages, and buy with balance, QRIS, or e-wallets.

Link your number with /login to get started.`
