package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/paketku/paketku/internal/dialog"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/models"
)

const (
	fieldWalletChoice = "walletChoice"
	fieldWalletPhone  = "walletPhoneNumber"
)

func validateRail(input string) (interface{}, error) {
	rail, err := models.ParseRail(strings.ToUpper(strings.TrimSpace(input)))
	if err != nil {
		return nil, fmt.Errorf("pick one of the listed payment methods")
	}
	return rail, nil
}

func validateWalletNumber(input string) (interface{}, error) {
	phone := strings.TrimSpace(input)
	phone = strings.TrimPrefix(phone, "+")
	if strings.HasPrefix(phone, "0") {
		phone = "62" + phone[1:]
	}
	if !strings.HasPrefix(phone, "62") || len(phone) < 10 || len(phone) > 15 {
		return nil, fmt.Errorf("send the wallet's phone number, e.g. 62812xxxxxxx")
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("digits only, please")
		}
	}
	return phone, nil
}

func selectedRail(v dialog.Values) (models.PaymentRail, bool) {
	rail, ok := v[fieldWalletChoice].(models.PaymentRail)
	return rail, ok
}

// paymentDefinition builds the settlement dialog for one pending selection.
// The wallet number step only appears for rails that route through a wallet
// account the API cannot infer.
func (b *Bot) paymentDefinition(detail *models.PackageDetail) dialog.Definition {
	item := models.PaymentItem{
		ItemCode:          detail.Option.Code,
		ProductType:       detail.Family.PaymentFor,
		ItemPrice:         detail.Option.Price,
		ItemName:          fmt.Sprintf("%s %s", detail.Family.Name, detail.Option.Name),
		TokenConfirmation: detail.TokenConfirmation,
	}

	return dialog.Definition{
		Name:        "payment",
		MaxAttempts: b.dialogCfg.MaxAttempts,
		Fields: []dialog.Field{
			{
				Name:     fieldWalletChoice,
				Prompt:   "How do you want to pay? Tap a method or type its name.",
				Validate: validateRail,
			},
			{
				Name:     fieldWalletPhone,
				Prompt:   "Send the phone number registered with that wallet.",
				Validate: validateWalletNumber,
				SkipWhen: func(v dialog.Values) bool {
					rail, ok := selectedRail(v)
					return !ok || !rail.RequiresWalletNumber()
				},
			},
		},
		OnComplete: func(ctx context.Context, chatUserID int64, v dialog.Values) (string, *dialog.RetryField, error) {
			return b.completePayment(ctx, chatUserID, item, v)
		},
		OnCancel: func(int64) string {
			return "Purchase cancelled. Nothing was charged."
		},
		OnAbort: func(int64) string {
			return "Too many invalid attempts. Open the package again to retry."
		},
	}
}

func (b *Bot) completePayment(ctx context.Context, chatUserID int64, item models.PaymentItem, v dialog.Values) (string, *dialog.RetryField, error) {
	rail, ok := selectedRail(v)
	if !ok {
		return "", nil, fmt.Errorf("payment dialog finished without a rail")
	}

	sess, err := b.sessions.GetSession(ctx, chatUserID)
	if err != nil {
		return "", nil, err
	}
	if sess == nil {
		b.recordDialogOutcome("payment", "no_session")
		return "Your session expired. /login and try the purchase again.", nil, nil
	}

	var result *models.SettlementResult
	switch {
	case rail == models.RailBalance:
		result, err = b.purchase.SettleWithBalance(ctx, sess, item)
	case rail == models.RailQRIS:
		result, err = b.purchase.SettleWithQRIS(ctx, sess, item)
	case rail.IsWallet():
		result, err = b.purchase.SettleWithWallet(ctx, sess, item, rail, v.String(fieldWalletPhone))
	default:
		return "", nil, fmt.Errorf("no settlement path for rail %s", rail)
	}
	if err != nil {
		b.logger.ErrorWithContext(ctx, "settlement failed",
			"chat_user_id", chatUserID,
			"rail", string(rail),
			"item_code", item.ItemCode,
			"error", err.Error())
		b.recordSettlement(rail, "error")
		logging.NewAuditEvent(logging.PurchaseSettle, "settle purchase", logging.StatusFailure).
			WithChatUserID(chatUserID).
			WithResource(item.ItemCode).
			WithDetail("rail", string(rail)).
			WithError(err).
			Emit(b.logger)
		return "The payment could not be processed. Nothing was charged, try again later.", nil, nil
	}

	b.recordSettlement(rail, result.Status)
	logging.NewAuditEvent(logging.PurchaseSettle, "settle purchase", logging.StatusSuccess).
		WithChatUserID(chatUserID).
		WithResource(item.ItemCode).
		WithDetail("rail", string(rail)).
		WithDetail("status", result.Status).
		Emit(b.logger)
	b.recordDialogOutcome("payment", "completed")
	b.clearScratch(chatUserID)
	return formatSettlement(rail, result), nil, nil
}

// startPayment opens the settlement dialog for the user's pending selection.
func (b *Bot) startPayment(ctx context.Context, u Update) {
	s := b.getScratch(u.UserID)
	if s.selection == nil {
		b.send(u.ChatID, "Open a package first, then press Buy.")
		return
	}
	detail := s.selection

	if _, ok := b.requireSession(ctx, u); !ok {
		return
	}

	prompt, err := b.dialogs.Start(ctx, u.UserID, b.paymentDefinition(detail))
	if err != nil {
		b.logger.ErrorWithContext(ctx, "payment dialog failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Something went wrong. Please try again.")
		return
	}

	header := fmt.Sprintf("%s\n\n%s", formatPackageDetail(detail), prompt)
	b.sendKeyboard(u.ChatID, header, railKeyboard())
}

func (b *Bot) recordSettlement(rail models.PaymentRail, status string) {
	if b.metrics != nil {
		b.metrics.RecordSettlement(string(rail), status)
	}
}
