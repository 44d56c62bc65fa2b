package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/paketku/paketku/internal/catalog"
	"github.com/paketku/paketku/internal/dialog"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/models"
)

// startAddOffer opens the admin dialog that appends one curated offer to a
// catalog file.
func (b *Bot) startAddOffer(ctx context.Context, u Update, cat *catalog.Catalog, name string) {
	if !b.cfg.IsAdmin(u.UserID) {
		b.send(u.ChatID, "This command is for administrators.")
		return
	}
	if cat == nil {
		b.send(u.ChatID, "This catalog is not configured.")
		return
	}

	prompt, err := b.dialogs.Start(ctx, u.UserID, b.addOfferDefinition(cat, name))
	if err != nil {
		b.logger.ErrorWithContext(ctx, "add offer dialog failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Something went wrong.")
		return
	}
	b.sendHTML(u.ChatID, prompt)
}

func (b *Bot) addOfferDefinition(cat *catalog.Catalog, name string) dialog.Definition {
	optional := func(input string) (interface{}, error) {
		s := strings.TrimSpace(input)
		if s == "-" {
			s = ""
		}
		return s, nil
	}
	required := func(input string) (interface{}, error) {
		s := strings.TrimSpace(input)
		if s == "" {
			return nil, fmt.Errorf("this field cannot be empty")
		}
		return s, nil
	}

	return dialog.Definition{
		Name: "add_offer_" + name,
		Fields: []dialog.Field{
			{Name: "familyCode", Prompt: "Family code?", Validate: required},
			{Name: "familyName", Prompt: "Family name?", Validate: required},
			{Name: "variantName", Prompt: "Variant name? Send - to leave empty.", Validate: optional},
			{Name: "optionName", Prompt: "Option name? Send - to leave empty.", Validate: optional},
			{Name: "optionCode", Prompt: "Option code? Send - to resolve by order instead.", Validate: optional},
			{
				Name:   "optionOrder",
				Prompt: "Option order (a number)?",
				SkipWhen: func(v dialog.Values) bool {
					return v.String("optionCode") != ""
				},
				Validate: func(input string) (interface{}, error) {
					n, err := strconv.Atoi(strings.TrimSpace(input))
					if err != nil || n <= 0 {
						return nil, fmt.Errorf("send a positive number")
					}
					return n, nil
				},
			},
			{
				Name:   "price",
				Prompt: "Price in rupiah?",
				Validate: func(input string) (interface{}, error) {
					n, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
					if err != nil || n < 0 {
						return nil, fmt.Errorf("send the price as a plain number")
					}
					return n, nil
				},
			},
		},
		OnComplete: func(ctx context.Context, chatUserID int64, v dialog.Values) (string, *dialog.RetryField, error) {
			order, _ := v["optionOrder"].(int)
			price, _ := v["price"].(int64)
			offer := models.Offer{
				FamilyCode:  v.String("familyCode"),
				FamilyName:  v.String("familyName"),
				VariantName: v.String("variantName"),
				OptionName:  v.String("optionName"),
				OptionCode:  v.String("optionCode"),
				OptionOrder: order,
				Price:       price,
			}
			if err := cat.Add(offer); err != nil {
				return "", nil, err
			}
			b.recordDialogOutcome("add_offer", "completed")
			logging.NewAuditEvent(logging.AdminAction, "add offer", logging.StatusSuccess).
				WithChatUserID(chatUserID).
				WithResource(offer.FamilyCode).
				WithDetail("catalog", name).
				Emit(b.logger)
			return fmt.Sprintf("✅ Added <b>%s</b> to %s.", html.EscapeString(offer.Label()), name), nil, nil
		},
		OnCancel: func(int64) string {
			return "Offer discarded."
		},
	}
}

// handleDeleteOffer removes one catalog entry by its listed position. Without
// an argument it prints the numbered list.
func (b *Bot) handleDeleteOffer(u Update, cat *catalog.Catalog, args []string) {
	if !b.cfg.IsAdmin(u.UserID) {
		b.send(u.ChatID, "This command is for administrators.")
		return
	}
	if cat == nil {
		b.send(u.ChatID, "This catalog is not configured.")
		return
	}

	offers := cat.Offers()
	if len(args) == 0 {
		if len(offers) == 0 {
			b.send(u.ChatID, "The catalog is empty.")
			return
		}
		var sb strings.Builder
		sb.WriteString("Send the command again with the number to delete:\n")
		for i, o := range offers {
			sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, html.EscapeString(o.Label()), formatCurrency(o.Price)))
		}
		b.sendHTML(u.ChatID, strings.TrimRight(sb.String(), "\n"))
		return
	}

	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		b.send(u.ChatID, "Send the entry number as shown in the list.")
		return
	}
	removed, err := cat.Remove(n - 1)
	if err != nil {
		b.logger.Error("offer delete failed", "chat_user_id", u.UserID, "error", err.Error())
		b.send(u.ChatID, "Could not update the catalog.")
		return
	}
	if !removed {
		b.send(u.ChatID, "No entry with that number.")
		return
	}
	logging.NewAuditEvent(logging.AdminAction, "delete offer", logging.StatusSuccess).
		WithChatUserID(u.UserID).
		WithDetail("position", n).
		Emit(b.logger)
	b.send(u.ChatID, "🗑 Removed.")
}
