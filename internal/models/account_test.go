package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLinkedAccountValidate(t *testing.T) {
	tests := []struct {
		name    string
		account LinkedAccount
		wantErr bool
	}{
		{
			name: "valid account",
			account: LinkedAccount{
				ChatUserID:   42,
				PhoneNumber:  "6281234567890",
				RefreshToken: "rt-1",
			},
			wantErr: false,
		},
		{
			name: "missing chat user",
			account: LinkedAccount{
				PhoneNumber:  "6281234567890",
				RefreshToken: "rt-1",
			},
			wantErr: true,
		},
		{
			name: "missing phone",
			account: LinkedAccount{
				ChatUserID:   42,
				RefreshToken: "rt-1",
			},
			wantErr: true,
		},
		{
			name: "missing refresh token",
			account: LinkedAccount{
				ChatUserID:  42,
				PhoneNumber: "6281234567890",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.account.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestAccountSliceHelpers(t *testing.T) {
	accounts := AccountSlice{
		{PhoneNumber: "6281111111111", IsActive: false},
		{PhoneNumber: "6282222222222", IsActive: true},
		{PhoneNumber: "6283333333333", IsActive: false},
	}

	found, ok := accounts.FindByPhone("6282222222222")
	assert.True(t, ok)
	assert.True(t, found.IsActive)

	_, ok = accounts.FindByPhone("6280000000000")
	assert.False(t, ok)

	active, ok := accounts.Active()
	assert.True(t, ok)
	assert.Equal(t, "6282222222222", active.PhoneNumber)

	assert.Equal(t, 1, accounts.CountActive())
}

func TestTokenSetValid(t *testing.T) {
	assert.True(t, TokenSet{AccessToken: "a", IDToken: "i"}.Valid())
	assert.False(t, TokenSet{AccessToken: "a"}.Valid())
	assert.False(t, TokenSet{}.Valid())
}

func TestSessionFreshAt(t *testing.T) {
	now := time.Now()
	s := &Session{CachedAt: now}

	assert.True(t, s.FreshAt(now.Add(299*time.Second), 300*time.Second))
	assert.False(t, s.FreshAt(now.Add(300*time.Second), 300*time.Second))
	assert.False(t, s.FreshAt(now.Add(time.Hour), 300*time.Second))
}

func TestPaymentRail(t *testing.T) {
	rail, err := ParseRail("DANA")
	assert.NoError(t, err)
	assert.Equal(t, RailDana, rail)
	assert.True(t, rail.RequiresWalletNumber())
	assert.True(t, rail.IsWallet())

	rail, err = ParseRail("GOPAY")
	assert.NoError(t, err)
	assert.False(t, rail.RequiresWalletNumber())
	assert.True(t, rail.IsWallet())

	rail, err = ParseRail("BALANCE")
	assert.NoError(t, err)
	assert.False(t, rail.RequiresWalletNumber())
	assert.False(t, rail.IsWallet())

	_, err = ParseRail("CASH")
	assert.Error(t, err)
}

func TestSettlementResult(t *testing.T) {
	assert.True(t, (&SettlementResult{Status: "SUCCESS"}).Succeeded())
	assert.False(t, (&SettlementResult{Status: "FAILED"}).Succeeded())
	var nilResult *SettlementResult
	assert.False(t, nilResult.Succeeded())
}
