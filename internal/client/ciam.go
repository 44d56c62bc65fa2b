package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/models"
)

// CiamClient talks to the identity endpoints of the vendor API: OTP request,
// OTP exchange, and token refresh. These are the only calls that run without
// an established session.
type CiamClient struct {
	*baseClient
}

// NewCiamClient creates the identity client.
func NewCiamClient(opts Options) *CiamClient {
	return &CiamClient{baseClient: newBaseClient(opts)}
}

// codeOTPInvalid is the envelope code the auth API returns for a wrong or
// expired OTP. It maps to the domain-level ErrOTPRejected so the login flow
// can burn a retry instead of aborting.
const codeOTPInvalid = "OTP_INVALID"

// RequestOTP asks the auth API to deliver a one-time password to the given
// MSISDN and returns the subscriber ID the number resolves to.
func (c *CiamClient) RequestOTP(ctx context.Context, phoneNumber string) (string, error) {
	data, err := c.postJSON(ctx, c.authBaseURL, "/otp/request", nil, map[string]string{
		"msisdn":  phoneNumber,
		"channel": c.otpChannel,
	})
	if err != nil {
		return "", err
	}

	var result struct {
		SubscriberID string `json:"subscriber_id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", &errors.ErrRemoteAPI{Endpoint: "/otp/request", Err: err}
	}
	c.logger.InfoWithContext(ctx, "OTP requested", "phone_number", phoneNumber)
	return result.SubscriberID, nil
}

// ExchangeOTP trades a delivered OTP code for a credential set. A wrong code
// returns ErrOTPRejected; every other failure is ErrRemoteAPI.
func (c *CiamClient) ExchangeOTP(ctx context.Context, phoneNumber, code string) (models.TokenSet, error) {
	env, status, err := c.postEnvelope(ctx, c.authBaseURL, "/otp/exchange", nil, map[string]string{
		"msisdn": phoneNumber,
		"code":   code,
	})
	if err != nil {
		return models.TokenSet{}, err
	}
	if env.Status != statusSuccess {
		if env.Code == codeOTPInvalid {
			return models.TokenSet{}, &errors.ErrOTPRejected{PhoneNumber: phoneNumber}
		}
		return models.TokenSet{}, &errors.ErrRemoteAPI{
			Endpoint: "/otp/exchange",
			Status:   status,
			Err:      fmt.Errorf("API status %s: %s", env.Status, env.Message),
		}
	}

	var tokens models.TokenSet
	if err := json.Unmarshal(env.Data, &tokens); err != nil {
		return models.TokenSet{}, &errors.ErrRemoteAPI{Endpoint: "/otp/exchange", Err: err}
	}
	if !tokens.Valid() {
		return models.TokenSet{}, &errors.ErrRemoteAPI{
			Endpoint: "/otp/exchange",
			Err:      fmt.Errorf("incomplete token set in response"),
		}
	}
	c.logger.InfoWithContext(ctx, "OTP exchanged", "phone_number", phoneNumber)
	return tokens, nil
}

// RefreshToken trades a long-lived refresh token for a fresh credential set.
// The API may rotate the refresh token; callers must persist a non-empty
// RefreshToken in the result.
func (c *CiamClient) RefreshToken(ctx context.Context, refreshToken, subscriberID string) (models.TokenSet, error) {
	data, err := c.postJSON(ctx, c.authBaseURL, "/token/refresh", nil, map[string]string{
		"refresh_token": refreshToken,
		"subscriber_id": subscriberID,
	})
	if err != nil {
		return models.TokenSet{}, err
	}

	var tokens models.TokenSet
	if err := json.Unmarshal(data, &tokens); err != nil {
		return models.TokenSet{}, &errors.ErrRemoteAPI{Endpoint: "/token/refresh", Err: err}
	}
	if !tokens.Valid() {
		return models.TokenSet{}, &errors.ErrRemoteAPI{
			Endpoint: "/token/refresh",
			Err:      fmt.Errorf("incomplete token set in response"),
		}
	}
	return tokens, nil
}
