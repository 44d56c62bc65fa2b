package store

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/models"
)

// MemoryStore provides an in-memory implementation of Store. It is
// thread-safe and is used by tests and by the CLI dry-run paths.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[int64][]models.LinkedAccount // key: chatUserID
	users       map[int64]struct{}
	bookmarks   map[int64][]models.Bookmark
	preferences map[int64]models.Preference
	nextID      int64
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[int64][]models.LinkedAccount),
		users:       make(map[int64]struct{}),
		bookmarks:   make(map[int64][]models.Bookmark),
		preferences: make(map[int64]models.Preference),
		nextID:      1,
	}
}

// Close is a no-op for the memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// UpsertUser records a chat user.
func (s *MemoryStore) UpsertUser(chatUserID int64, username, firstName, lastName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[chatUserID] = struct{}{}
	return nil
}

// UpsertAccount creates or updates an account and makes it the sole active
// account for the chat user.
func (s *MemoryStore) UpsertAccount(chatUserID int64, phoneNumber, refreshToken, subscriberID string, subscriptionType models.SubscriptionType) error {
	account := models.LinkedAccount{
		ChatUserID:   chatUserID,
		PhoneNumber:  phoneNumber,
		RefreshToken: refreshToken,
	}
	if err := account.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	list := s.accounts[chatUserID]
	found := false
	for i := range list {
		list[i].IsActive = false
		if list[i].PhoneNumber == phoneNumber {
			list[i].RefreshToken = refreshToken
			list[i].SubscriberID = subscriberID
			list[i].SubscriptionType = subscriptionType
			list[i].IsActive = true
			list[i].UpdatedAt = now
			found = true
		}
	}
	if !found {
		list = append(list, models.LinkedAccount{
			ID:               s.nextID,
			ChatUserID:       chatUserID,
			PhoneNumber:      phoneNumber,
			SubscriberID:     subscriberID,
			SubscriptionType: subscriptionType,
			RefreshToken:     refreshToken,
			IsActive:         true,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
		s.nextID++
	}
	s.accounts[chatUserID] = list
	return nil
}

// UpdateCredentials updates the stored tokens for one account.
func (s *MemoryStore) UpdateCredentials(chatUserID int64, phoneNumber string, update CredentialUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.accounts[chatUserID]
	for i := range list {
		if list[i].PhoneNumber != phoneNumber {
			continue
		}
		if update.AccessToken != nil {
			list[i].AccessToken = *update.AccessToken
		}
		if update.IDToken != nil {
			list[i].IDToken = *update.IDToken
		}
		if update.RefreshToken != nil {
			list[i].RefreshToken = *update.RefreshToken
		}
		list[i].UpdatedAt = time.Now()
		return nil
	}
	return fmt.Errorf("account %s not found for user %d", phoneNumber, chatUserID)
}

// GetActiveAccount returns the active account for the user, or (nil, nil)
// when none exists.
func (s *MemoryStore) GetActiveAccount(chatUserID int64) (*models.LinkedAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []models.LinkedAccount
	for _, a := range s.accounts[chatUserID] {
		if a.IsActive {
			active = append(active, a)
		}
	}
	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		result := active[0]
		return &result, nil
	default:
		return nil, &errors.ErrActiveAccountConflict{ChatUserID: chatUserID, Count: len(active)}
	}
}

// GetAccounts returns all accounts for the user, active first, newest next.
func (s *MemoryStore) GetAccounts(chatUserID int64) (models.AccountSlice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.accounts[chatUserID]
	result := make(models.AccountSlice, len(list))
	copy(result, list)

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].IsActive != result[j].IsActive {
			return result[i].IsActive
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// SetActiveAccount deactivates all accounts for the user and activates the
// named one.
func (s *MemoryStore) SetActiveAccount(chatUserID int64, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.accounts[chatUserID]
	found := false
	for i := range list {
		if list[i].PhoneNumber == phoneNumber {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("account %s not found for user %d", phoneNumber, chatUserID)
	}

	for i := range list {
		list[i].IsActive = list[i].PhoneNumber == phoneNumber
	}
	return nil
}

// DeleteAccount removes one account.
func (s *MemoryStore) DeleteAccount(chatUserID int64, phoneNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.accounts[chatUserID]
	for i := range list {
		if list[i].PhoneNumber == phoneNumber {
			s.accounts[chatUserID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// CountAccounts returns the total number of linked accounts across all users.
func (s *MemoryStore) CountAccounts() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, list := range s.accounts {
		n += len(list)
	}
	return n, nil
}

// AddBookmark stores a bookmark.
func (s *MemoryStore) AddBookmark(b models.Bookmark) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b.ID = s.nextID
	s.nextID++
	s.bookmarks[b.ChatUserID] = append([]models.Bookmark{b}, s.bookmarks[b.ChatUserID]...)
	return nil
}

// GetBookmarks returns all bookmarks for the user, newest first.
func (s *MemoryStore) GetBookmarks(chatUserID int64) ([]models.Bookmark, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.bookmarks[chatUserID]
	result := make([]models.Bookmark, len(list))
	copy(result, list)
	return result, nil
}

// DeleteBookmark removes one bookmark owned by the user.
func (s *MemoryStore) DeleteBookmark(chatUserID, bookmarkID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.bookmarks[chatUserID]
	for i := range list {
		if list[i].ID == bookmarkID {
			s.bookmarks[chatUserID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

// GetPreference returns the stored preference or the default when absent.
func (s *MemoryStore) GetPreference(chatUserID int64) (models.Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.preferences[chatUserID]; ok {
		return p, nil
	}
	return models.DefaultPreference(chatUserID), nil
}

// SetPreference stores per-user settings.
func (s *MemoryStore) SetPreference(p models.Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.preferences[p.ChatUserID] = p
	return nil
}

// corruptActive is a test hook that forces two active rows for a user to
// exercise invariant-violation reporting.
func (s *MemoryStore) corruptActive(chatUserID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.accounts[chatUserID]
	for i := range list {
		list[i].IsActive = true
	}
}

var _ Store = (*MemoryStore)(nil)
