package telegram

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/paketku/paketku/internal/dialog"
	apperrors "github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/models"
	"github.com/paketku/paketku/internal/store"
)

const (
	fieldPhoneNumber  = "phoneNumber"
	fieldOTPCode      = "otpCode"
	valueSubscriberID = "subscriberID"
)

// validatePhoneNumber accepts Indonesian MSISDNs in international format
// without the plus sign, e.g. 6281234567890.
func validatePhoneNumber(input string) (interface{}, error) {
	phone := strings.TrimSpace(input)
	phone = strings.TrimPrefix(phone, "+")
	if !strings.HasPrefix(phone, "62") {
		return nil, fmt.Errorf("the number must start with 62")
	}
	if len(phone) < 11 || len(phone) > 14 {
		return nil, fmt.Errorf("that does not look like a full number")
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("digits only, please")
		}
	}
	return phone, nil
}

func validateOTPCode(input string) (interface{}, error) {
	code := strings.TrimSpace(input)
	if len(code) != 6 {
		return nil, fmt.Errorf("the code has 6 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return nil, fmt.Errorf("the code has 6 digits")
		}
	}
	return code, nil
}

// loginDefinition builds the two-step login dialog: collect the phone number,
// send an OTP to it, collect the code, then exchange and link the account.
func (b *Bot) loginDefinition() dialog.Definition {
	return dialog.Definition{
		Name:        "login",
		MaxAttempts: b.dialogCfg.MaxAttempts,
		Fields: []dialog.Field{
			{
				Name:     fieldPhoneNumber,
				Prompt:   "Send your phone number in 62xxxxxxxxxx format.",
				Validate: validatePhoneNumber,
				AfterValid: func(ctx context.Context, v dialog.Values) error {
					phone := v.String(fieldPhoneNumber)
					subscriberID, err := b.auth.RequestOTP(ctx, phone)
					if err != nil {
						b.logger.ErrorWithContext(ctx, "otp request failed",
							"phone_number", phone,
							"error", err.Error())
						return fmt.Errorf("could not send a code to %s, check the number", phone)
					}
					v[valueSubscriberID] = subscriberID
					return nil
				},
			},
			{
				Name:     fieldOTPCode,
				Prompt:   "Enter the 6-digit code we sent via SMS.",
				Validate: validateOTPCode,
			},
		},
		OnComplete: b.completeLogin,
		OnCancel: func(int64) string {
			return "Login cancelled."
		},
		OnAbort: func(int64) string {
			return "Too many invalid attempts. Start again with /login."
		},
	}
}

// completeLogin exchanges the OTP for tokens and links the account. A wrong
// code re-enters the otpCode field so the user can retype it without
// restarting the whole dialog.
func (b *Bot) completeLogin(ctx context.Context, chatUserID int64, v dialog.Values) (string, *dialog.RetryField, error) {
	phone := v.String(fieldPhoneNumber)
	code := v.String(fieldOTPCode)

	tokens, err := b.auth.ExchangeOTP(ctx, phone, code)
	if err != nil {
		var rejected *apperrors.ErrOTPRejected
		if stderrors.As(err, &rejected) {
			logging.NewAuditEvent(logging.LoginFailure, "otp exchange", logging.StatusFailure).
				WithChatUserID(chatUserID).
				WithResource(phone).
				WithSeverity(logging.SeverityWarning).
				Emit(b.logger)
			return "That code was not accepted.", &dialog.RetryField{Field: fieldOTPCode}, nil
		}
		b.logger.ErrorWithContext(ctx, "otp exchange failed",
			"chat_user_id", chatUserID,
			"error", err.Error())
		return "", nil, err
	}
	if tokens.RefreshToken == "" {
		return "", nil, fmt.Errorf("login for %s returned no refresh token", phone)
	}

	subscriberID := v.String(valueSubscriberID)
	subscriptionType := models.SubscriptionUnknown

	// Best effort profile fetch on the fresh tokens; the login still links
	// when it fails.
	sess := &models.Session{
		Tokens:       tokens,
		PhoneNumber:  phone,
		SubscriberID: subscriberID,
		CachedAt:     time.Now(),
	}
	if profile, perr := b.subscriber.FetchProfile(ctx, sess); perr == nil {
		subscriptionType = profile.SubscriptionType
		if profile.SubscriberID != "" {
			subscriberID = profile.SubscriberID
		}
	} else {
		b.logger.WarnWithContext(ctx, "profile fetch after login failed",
			"chat_user_id", chatUserID,
			"error", perr.Error())
	}

	if err := b.store.UpsertAccount(chatUserID, phone, tokens.RefreshToken, subscriberID, subscriptionType); err != nil {
		return "", nil, err
	}
	update := credentialUpdate(tokens)
	if err := b.store.UpdateCredentials(chatUserID, phone, update); err != nil {
		b.logger.WarnWithContext(ctx, "credential persist after login failed",
			"chat_user_id", chatUserID,
			"error", err.Error())
	}
	b.sessions.Invalidate(chatUserID)
	b.recordDialogOutcome("login", "completed")
	logging.NewAuditEvent(logging.AccountLink, "login", logging.StatusSuccess).
		WithChatUserID(chatUserID).
		WithResource(phone).
		WithDetail("subscription_type", string(subscriptionType)).
		Emit(b.logger)

	return fmt.Sprintf("✅ Logged in as <b>%s</b>. Type /start for the menu.", phone), nil, nil
}

func credentialUpdate(tokens models.TokenSet) store.CredentialUpdate {
	update := store.CredentialUpdate{
		AccessToken: &tokens.AccessToken,
		IDToken:     &tokens.IDToken,
	}
	if tokens.RefreshToken != "" {
		update.RefreshToken = &tokens.RefreshToken
	}
	return update
}

func (b *Bot) startLogin(ctx context.Context, u Update) {
	b.clearScratch(u.UserID)
	prompt, err := b.dialogs.Start(ctx, u.UserID, b.loginDefinition())
	if err != nil {
		b.logger.ErrorWithContext(ctx, "login dialog failed",
			"chat_user_id", u.UserID,
			"error", err.Error())
		b.send(u.ChatID, "Something went wrong. Please try /login again.")
		return
	}
	b.sendHTML(u.ChatID, prompt)
}
