package models

import (
	"fmt"
	"time"
)

// SubscriptionType represents the billing class of a subscriber line.
type SubscriptionType string

const (
	SubscriptionPrepaid  SubscriptionType = "PREPAID"
	SubscriptionPostpaid SubscriptionType = "POSTPAID"
	SubscriptionUnknown  SubscriptionType = ""
)

// LinkedAccount represents one subscriber credential set owned by one chat user.
// At most one account per chat user is active at any committed point in time;
// the store enforces that invariant.
type LinkedAccount struct {
	ID               int64            `json:"id"`
	ChatUserID       int64            `json:"chat_user_id"`
	PhoneNumber      string           `json:"phone_number"`
	SubscriberID     string           `json:"subscriber_id"`
	SubscriptionType SubscriptionType `json:"subscription_type"`
	RefreshToken     string           `json:"-"`
	AccessToken      string           `json:"-"`
	IDToken          string           `json:"-"`
	TokenExpiresAt   *time.Time       `json:"token_expires_at,omitempty"`
	IsActive         bool             `json:"is_active"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// Validate checks if the linked account is valid.
func (a *LinkedAccount) Validate() error {
	if a.ChatUserID == 0 {
		return fmt.Errorf("chat user ID is required")
	}
	if a.PhoneNumber == "" {
		return fmt.Errorf("phone number is required")
	}
	if a.RefreshToken == "" {
		return fmt.Errorf("refresh token is required")
	}
	return nil
}

// AccountSlice is a slice of linked accounts with helper methods.
type AccountSlice []LinkedAccount

// FindByPhone returns an account by phone number.
func (as AccountSlice) FindByPhone(phone string) (*LinkedAccount, bool) {
	for i := range as {
		if as[i].PhoneNumber == phone {
			return &as[i], true
		}
	}
	return nil, false
}

// Active returns the active account, if any.
func (as AccountSlice) Active() (*LinkedAccount, bool) {
	for i := range as {
		if as[i].IsActive {
			return &as[i], true
		}
	}
	return nil, false
}

// CountActive returns the number of active accounts in the slice.
func (as AccountSlice) CountActive() int {
	n := 0
	for i := range as {
		if as[i].IsActive {
			n++
		}
	}
	return n
}

// TokenSet is the credential triple returned by the auth API.
// RefreshToken may be empty when the API does not rotate it.
type TokenSet struct {
	AccessToken  string `json:"access_token"`
	IDToken      string `json:"id_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Valid reports whether the token set carries a usable credential pair.
func (t TokenSet) Valid() bool {
	return t.AccessToken != "" && t.IDToken != ""
}
