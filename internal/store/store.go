package store

import "github.com/paketku/paketku/internal/models"

// CredentialUpdate carries the optional token fields for UpdateCredentials.
// Nil fields are left untouched.
type CredentialUpdate struct {
	AccessToken  *string
	IDToken      *string
	RefreshToken *string
}

// AccountStore is the persistent record of linked accounts per chat user.
// Implementations must uphold the at-most-one-active invariant: after any
// mutating call returns, at most one account per chat user has IsActive set,
// and readers never observe an intermediate state with zero or two active
// accounts for a user that has one.
type AccountStore interface {
	// UpsertAccount creates or updates an account and makes it the sole
	// active account for the chat user, deactivating siblings in the same
	// logical operation.
	UpsertAccount(chatUserID int64, phoneNumber, refreshToken, subscriberID string, subscriptionType models.SubscriptionType) error

	// UpdateCredentials updates the stored tokens for one account.
	UpdateCredentials(chatUserID int64, phoneNumber string, update CredentialUpdate) error

	// GetActiveAccount returns the active account for the user, or
	// (nil, nil) when none exists. It returns ErrActiveAccountConflict
	// if the persistence layer holds more than one active row.
	GetActiveAccount(chatUserID int64) (*models.LinkedAccount, error)

	// GetAccounts returns all accounts for the user, active first.
	GetAccounts(chatUserID int64) (models.AccountSlice, error)

	// SetActiveAccount atomically deactivates all accounts for the user and
	// activates the named one.
	SetActiveAccount(chatUserID int64, phoneNumber string) error

	// DeleteAccount removes one account. Deleting the active account leaves
	// the user with no active account.
	DeleteAccount(chatUserID int64, phoneNumber string) error
}

// UserStore records basic chat-user identity for bookkeeping.
type UserStore interface {
	UpsertUser(chatUserID int64, username, firstName, lastName string) error
}

// BookmarkStore persists user-saved package pointers.
type BookmarkStore interface {
	AddBookmark(b models.Bookmark) error
	GetBookmarks(chatUserID int64) ([]models.Bookmark, error)
	DeleteBookmark(chatUserID, bookmarkID int64) error
}

// PreferenceStore persists per-user settings.
type PreferenceStore interface {
	GetPreference(chatUserID int64) (models.Preference, error)
	SetPreference(p models.Preference) error
}

// Store is the full persistence surface of the bot.
type Store interface {
	AccountStore
	UserStore
	BookmarkStore
	PreferenceStore
	Close() error
}
