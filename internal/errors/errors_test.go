package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessages(t *testing.T) {
	inner := fmt.Errorf("boom")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "config not found",
			err:  &ErrConfigNotFound{Path: "/etc/paketku.yaml"},
			want: "config file not found: /etc/paketku.yaml",
		},
		{
			name: "database open",
			err:  &ErrDatabaseOpen{Path: "data/bot.db", Err: inner},
			want: "failed to open database data/bot.db: boom",
		},
		{
			name: "database query",
			err:  &ErrDatabaseQuery{Operation: "get active account", Err: inner},
			want: "database query failed for operation get active account: boom",
		},
		{
			name: "active account conflict",
			err:  &ErrActiveAccountConflict{ChatUserID: 42, Count: 2},
			want: "user 42 has 2 active accounts, expected at most one",
		},
		{
			name: "remote API with status",
			err:  &ErrRemoteAPI{Endpoint: "auth/otp", Status: 503, Err: inner},
			want: "remote API call to auth/otp failed with status 503: boom",
		},
		{
			name: "remote API without status",
			err:  &ErrRemoteAPI{Endpoint: "auth/otp", Err: inner},
			want: "remote API call to auth/otp failed: boom",
		},
		{
			name: "otp rejected",
			err:  &ErrOTPRejected{PhoneNumber: "6281234567890"},
			want: "OTP code rejected for 6281234567890",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestUnwrap(t *testing.T) {
	inner := fmt.Errorf("inner")

	wrapped := []error{
		&ErrConfigParse{Err: inner},
		&ErrConfigValidation{Err: inner},
		&ErrDatabaseOpen{Err: inner},
		&ErrDatabaseMigration{Version: 2, Err: inner},
		&ErrDatabaseQuery{Operation: "op", Err: inner},
		&ErrRemoteAPI{Endpoint: "e", Err: inner},
		&ErrCatalogLoad{Path: "hot.json", Err: inner},
		&ErrFileRead{Path: "f", Err: inner},
		&ErrServerStart{Addr: ":0", Err: inner},
		&ErrServerShutdown{Err: inner},
	}

	for _, err := range wrapped {
		assert.True(t, stderrors.Is(err, inner), "expected %T to unwrap to inner", err)
	}
}
