package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paketku/paketku/internal/store"
)

// accountsCmd inspects and edits linked accounts in the local database.
var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List linked accounts for one chat user",
	Long: `List the accounts linked by one chat user, marking the active one.

Example:
  paketku accounts --user 123456789`,
	RunE: runAccountsList,
}

var accountsSwitchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Make one linked number the active account",
	Long: `Make one linked number the active account for a chat user.

Example:
  paketku accounts switch --user 123456789 --phone 628123456789`,
	RunE: runAccountsSwitch,
}

var accountsDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Unlink one number from a chat user",
	Long: `Remove one linked number from a chat user.

Example:
  paketku accounts delete --user 123456789 --phone 628123456789`,
	RunE: runAccountsDelete,
}

var accountsFlags struct {
	ChatUserID int64
	Phone      string
}

func init() {
	accountsCmd.PersistentFlags().Int64Var(&accountsFlags.ChatUserID, "user", 0, "Chat user ID (required)")
	_ = accountsCmd.MarkPersistentFlagRequired("user")

	for _, c := range []*cobra.Command{accountsSwitchCmd, accountsDeleteCmd} {
		c.Flags().StringVar(&accountsFlags.Phone, "phone", "", "Phone number (required)")
		_ = c.MarkFlagRequired("phone")
		accountsCmd.AddCommand(c)
	}

	RootCmd.AddCommand(accountsCmd)
}

func openAccountStore() (*store.SQLiteStore, error) {
	s, err := store.NewSQLiteStore(globalFlags.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return s, nil
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	sqliteStore, err := openAccountStore()
	if err != nil {
		return err
	}
	defer sqliteStore.Close()

	accounts, err := sqliteStore.GetAccounts(accountsFlags.ChatUserID)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		fmt.Printf("No accounts linked for chat user %d\n", accountsFlags.ChatUserID)
		return nil
	}

	fmt.Printf("Accounts for chat user %d:\n", accountsFlags.ChatUserID)
	for _, a := range accounts {
		marker := " "
		if a.IsActive {
			marker = "*"
		}
		fmt.Printf("%s %-15s %-10s subscriber=%s linked=%s\n",
			marker, a.PhoneNumber, a.SubscriptionType, a.SubscriberID,
			a.CreatedAt.Format("2006-01-02"))
	}
	return nil
}

func runAccountsSwitch(cmd *cobra.Command, args []string) error {
	sqliteStore, err := openAccountStore()
	if err != nil {
		return err
	}
	defer sqliteStore.Close()

	if err := sqliteStore.SetActiveAccount(accountsFlags.ChatUserID, accountsFlags.Phone); err != nil {
		return fmt.Errorf("failed to switch account: %w", err)
	}
	fmt.Printf("Active account for chat user %d is now %s\n", accountsFlags.ChatUserID, accountsFlags.Phone)
	return nil
}

func runAccountsDelete(cmd *cobra.Command, args []string) error {
	sqliteStore, err := openAccountStore()
	if err != nil {
		return err
	}
	defer sqliteStore.Close()

	if err := sqliteStore.DeleteAccount(accountsFlags.ChatUserID, accountsFlags.Phone); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	fmt.Printf("Unlinked %s from chat user %d\n", accountsFlags.Phone, accountsFlags.ChatUserID)
	return nil
}
