package models

import "fmt"

// Offer is one curated package entry from a hot catalog file.
type Offer struct {
	FamilyCode   string `json:"family_code"`
	FamilyName   string `json:"family_name"`
	IsEnterprise bool   `json:"is_enterprise"`
	VariantName  string `json:"variant_name"`
	OptionName   string `json:"option_name"`
	OptionCode   string `json:"option_code"`
	OptionOrder  int    `json:"option_order"`
	Price        int64  `json:"price"`
}

// Validate checks if the offer is well-formed.
func (o *Offer) Validate() error {
	if o.FamilyCode == "" {
		return fmt.Errorf("family code is required")
	}
	if o.OptionCode == "" && o.OptionOrder <= 0 {
		return fmt.Errorf("offer needs an option code or order")
	}
	return nil
}

// Label returns a short human-readable label for keyboards and lists.
func (o *Offer) Label() string {
	if o.OptionName != "" {
		return fmt.Sprintf("%s - %s", o.FamilyName, o.OptionName)
	}
	return o.FamilyName
}

// Bookmark is a user-saved pointer to a package family option.
type Bookmark struct {
	ID           int64  `json:"id"`
	ChatUserID   int64  `json:"chat_user_id"`
	FamilyCode   string `json:"family_code"`
	FamilyName   string `json:"family_name"`
	IsEnterprise bool   `json:"is_enterprise"`
	VariantName  string `json:"variant_name"`
	OptionName   string `json:"option_name"`
	OptionOrder  int    `json:"option_order"`
}

// Preference holds per-user settings.
type Preference struct {
	ChatUserID           int64  `json:"chat_user_id"`
	Language             string `json:"language"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// DefaultPreference returns the preference applied to users with no stored row.
func DefaultPreference(chatUserID int64) Preference {
	return Preference{
		ChatUserID:           chatUserID,
		Language:             "en",
		NotificationsEnabled: true,
	}
}
