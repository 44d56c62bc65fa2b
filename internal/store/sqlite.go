package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/logging"
	"github.com/paketku/paketku/internal/models"
	_ "modernc.org/sqlite"
)

// SQLiteStore provides SQLite-backed storage for linked accounts, bookmarks
// and preferences with WAL mode. It is thread-safe and supports concurrent
// access; account activation changes run inside a single transaction so
// readers never observe a user with two active accounts.
type SQLiteStore struct {
	db     *sql.DB
	logger *logging.Logger
}

// NewSQLiteStore creates a new SQLite store with WAL mode enabled
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=cache_size(2000)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.NewLogger(),
	}, nil
}

// runMigrations runs database migrations
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS users (
					chat_user_id INTEGER PRIMARY KEY,
					username TEXT,
					first_name TEXT,
					last_name TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS accounts (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					chat_user_id INTEGER NOT NULL,
					phone_number TEXT NOT NULL,
					subscriber_id TEXT DEFAULT '',
					subscription_type TEXT DEFAULT '',
					refresh_token TEXT NOT NULL,
					access_token TEXT DEFAULT '',
					id_token TEXT DEFAULT '',
					token_expires_at DATETIME,
					is_active INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(chat_user_id, phone_number)
				);

				CREATE INDEX IF NOT EXISTS idx_accounts_chat_user ON accounts(chat_user_id);
				CREATE INDEX IF NOT EXISTS idx_accounts_active ON accounts(chat_user_id, is_active);
			`,
		},
		{
			version: 2,
			up: `
				CREATE TABLE IF NOT EXISTS bookmarks (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					chat_user_id INTEGER NOT NULL,
					family_code TEXT NOT NULL,
					family_name TEXT DEFAULT '',
					is_enterprise INTEGER NOT NULL DEFAULT 0,
					variant_name TEXT DEFAULT '',
					option_name TEXT DEFAULT '',
					option_order INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_bookmarks_chat_user ON bookmarks(chat_user_id);
			`,
		},
		{
			version: 3,
			up: `
				CREATE TABLE IF NOT EXISTS user_preferences (
					chat_user_id INTEGER PRIMARY KEY,
					language TEXT NOT NULL DEFAULT 'en',
					notifications_enabled INTEGER NOT NULL DEFAULT 1
				);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := tx.Exec(m.up); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
			return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertUser creates or updates a chat user row.
func (s *SQLiteStore) UpsertUser(chatUserID int64, username, firstName, lastName string) error {
	_, err := s.db.Exec(`
		INSERT INTO users (chat_user_id, username, first_name, last_name)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(chat_user_id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			updated_at = CURRENT_TIMESTAMP
	`, chatUserID, username, firstName, lastName)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert user", Err: err}
	}
	return nil
}

// UpsertAccount creates or updates an account and makes it the sole active
// account for the chat user. The sibling deactivation and the upsert run in
// one transaction.
func (s *SQLiteStore) UpsertAccount(chatUserID int64, phoneNumber, refreshToken, subscriberID string, subscriptionType models.SubscriptionType) error {
	account := models.LinkedAccount{
		ChatUserID:   chatUserID,
		PhoneNumber:  phoneNumber,
		RefreshToken: refreshToken,
	}
	if err := account.Validate(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert account", Err: err}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin upsert account", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`UPDATE accounts SET is_active = 0 WHERE chat_user_id = ?`, chatUserID); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "deactivate sibling accounts", Err: err}
	}

	_, err = tx.Exec(`
		INSERT INTO accounts
			(chat_user_id, phone_number, refresh_token, subscriber_id, subscription_type, is_active)
		VALUES (?, ?, ?, ?, ?, 1)
		ON CONFLICT(chat_user_id, phone_number) DO UPDATE SET
			refresh_token = excluded.refresh_token,
			subscriber_id = excluded.subscriber_id,
			subscription_type = excluded.subscription_type,
			is_active = 1,
			updated_at = CURRENT_TIMESTAMP
	`, chatUserID, phoneNumber, refreshToken, subscriberID, string(subscriptionType))
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "upsert account", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit upsert account", Err: err}
	}
	return nil
}

// UpdateCredentials updates the stored tokens for one account. Nil fields in
// the update are left untouched.
func (s *SQLiteStore) UpdateCredentials(chatUserID int64, phoneNumber string, update CredentialUpdate) error {
	sets := "updated_at = CURRENT_TIMESTAMP"
	args := []interface{}{}

	if update.AccessToken != nil {
		sets += ", access_token = ?"
		args = append(args, *update.AccessToken)
	}
	if update.IDToken != nil {
		sets += ", id_token = ?"
		args = append(args, *update.IDToken)
	}
	if update.RefreshToken != nil {
		sets += ", refresh_token = ?"
		args = append(args, *update.RefreshToken)
	}

	args = append(args, chatUserID, phoneNumber)
	_, err := s.db.Exec("UPDATE accounts SET "+sets+" WHERE chat_user_id = ? AND phone_number = ?", args...)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "update credentials", Err: err}
	}
	return nil
}

// GetActiveAccount returns the active account for the user, or (nil, nil)
// when none exists. Two active rows for one user surface as
// ErrActiveAccountConflict rather than an arbitrary pick.
func (s *SQLiteStore) GetActiveAccount(chatUserID int64) (*models.LinkedAccount, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_user_id, phone_number, subscriber_id, subscription_type,
		       refresh_token, access_token, id_token, token_expires_at,
		       is_active, created_at, updated_at
		FROM accounts
		WHERE chat_user_id = ? AND is_active = 1
	`, chatUserID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get active account", Err: err}
	}
	defer rows.Close()

	var active []models.LinkedAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan active account", Err: err}
		}
		active = append(active, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "iterate active accounts", Err: err}
	}

	switch len(active) {
	case 0:
		return nil, nil
	case 1:
		return &active[0], nil
	default:
		return nil, &errors.ErrActiveAccountConflict{ChatUserID: chatUserID, Count: len(active)}
	}
}

// GetAccounts returns all accounts for the user, active first, newest next.
func (s *SQLiteStore) GetAccounts(chatUserID int64) (models.AccountSlice, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_user_id, phone_number, subscriber_id, subscription_type,
		       refresh_token, access_token, id_token, token_expires_at,
		       is_active, created_at, updated_at
		FROM accounts
		WHERE chat_user_id = ?
		ORDER BY is_active DESC, created_at DESC, id DESC
	`, chatUserID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get accounts", Err: err}
	}
	defer rows.Close()

	var accounts models.AccountSlice
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan account", Err: err}
		}
		accounts = append(accounts, *account)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "iterate accounts", Err: err}
	}
	return accounts, nil
}

// SetActiveAccount atomically deactivates all accounts for the user and
// activates the named one.
func (s *SQLiteStore) SetActiveAccount(chatUserID int64, phoneNumber string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin set active account", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.Exec(`UPDATE accounts SET is_active = 0 WHERE chat_user_id = ?`, chatUserID); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "deactivate accounts", Err: err}
	}

	res, err := tx.Exec(`
		UPDATE accounts SET is_active = 1, updated_at = CURRENT_TIMESTAMP
		WHERE chat_user_id = ? AND phone_number = ?
	`, chatUserID, phoneNumber)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "activate account", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "activate account", Err: err}
	}
	if affected == 0 {
		return &errors.ErrDatabaseQuery{Operation: "activate account", Err: sql.ErrNoRows}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit set active account", Err: err}
	}
	return nil
}

// DeleteAccount removes one account.
func (s *SQLiteStore) DeleteAccount(chatUserID int64, phoneNumber string) error {
	_, err := s.db.Exec(`DELETE FROM accounts WHERE chat_user_id = ? AND phone_number = ?`, chatUserID, phoneNumber)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "delete account", Err: err}
	}
	return nil
}

// CountAccounts returns the total number of linked accounts across all users.
func (s *SQLiteStore) CountAccounts() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n); err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "count accounts", Err: err}
	}
	return n, nil
}

// AddBookmark stores a bookmark.
func (s *SQLiteStore) AddBookmark(b models.Bookmark) error {
	_, err := s.db.Exec(`
		INSERT INTO bookmarks
			(chat_user_id, family_code, family_name, is_enterprise, variant_name, option_name, option_order)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ChatUserID, b.FamilyCode, b.FamilyName, boolToInt(b.IsEnterprise), b.VariantName, b.OptionName, b.OptionOrder)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "add bookmark", Err: err}
	}
	return nil
}

// GetBookmarks returns all bookmarks for the user, newest first.
func (s *SQLiteStore) GetBookmarks(chatUserID int64) ([]models.Bookmark, error) {
	rows, err := s.db.Query(`
		SELECT id, chat_user_id, family_code, family_name, is_enterprise, variant_name, option_name, option_order
		FROM bookmarks
		WHERE chat_user_id = ?
		ORDER BY created_at DESC, id DESC
	`, chatUserID)
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get bookmarks", Err: err}
	}
	defer rows.Close()

	var bookmarks []models.Bookmark
	for rows.Next() {
		var b models.Bookmark
		var enterprise int
		if err := rows.Scan(&b.ID, &b.ChatUserID, &b.FamilyCode, &b.FamilyName, &enterprise, &b.VariantName, &b.OptionName, &b.OptionOrder); err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan bookmark", Err: err}
		}
		b.IsEnterprise = enterprise != 0
		bookmarks = append(bookmarks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "iterate bookmarks", Err: err}
	}
	return bookmarks, nil
}

// DeleteBookmark removes one bookmark owned by the user.
func (s *SQLiteStore) DeleteBookmark(chatUserID, bookmarkID int64) error {
	_, err := s.db.Exec(`DELETE FROM bookmarks WHERE chat_user_id = ? AND id = ?`, chatUserID, bookmarkID)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "delete bookmark", Err: err}
	}
	return nil
}

// GetPreference returns the stored preference or the default when absent.
func (s *SQLiteStore) GetPreference(chatUserID int64) (models.Preference, error) {
	var p models.Preference
	var notif int
	err := s.db.QueryRow(`
		SELECT chat_user_id, language, notifications_enabled
		FROM user_preferences WHERE chat_user_id = ?
	`, chatUserID).Scan(&p.ChatUserID, &p.Language, &notif)
	if err == sql.ErrNoRows {
		return models.DefaultPreference(chatUserID), nil
	}
	if err != nil {
		return models.Preference{}, &errors.ErrDatabaseQuery{Operation: "get preference", Err: err}
	}
	p.NotificationsEnabled = notif != 0
	return p, nil
}

// SetPreference stores per-user settings.
func (s *SQLiteStore) SetPreference(p models.Preference) error {
	_, err := s.db.Exec(`
		INSERT INTO user_preferences (chat_user_id, language, notifications_enabled)
		VALUES (?, ?, ?)
		ON CONFLICT(chat_user_id) DO UPDATE SET
			language = excluded.language,
			notifications_enabled = excluded.notifications_enabled
	`, p.ChatUserID, p.Language, boolToInt(p.NotificationsEnabled))
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "set preference", Err: err}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row rowScanner) (*models.LinkedAccount, error) {
	var a models.LinkedAccount
	var active int
	var expires sql.NullTime
	var created, updated time.Time

	err := row.Scan(&a.ID, &a.ChatUserID, &a.PhoneNumber, &a.SubscriberID,
		(*string)(&a.SubscriptionType), &a.RefreshToken, &a.AccessToken, &a.IDToken,
		&expires, &active, &created, &updated)
	if err != nil {
		return nil, err
	}
	if expires.Valid {
		t := expires.Time
		a.TokenExpiresAt = &t
	}
	a.IsActive = active != 0
	a.CreatedAt = created
	a.UpdatedAt = updated
	return &a, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ Store = (*SQLiteStore)(nil)
