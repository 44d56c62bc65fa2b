package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/paketku/paketku/internal/errors"
	"github.com/paketku/paketku/internal/models"
)

func testSession() *models.Session {
	return &models.Session{
		APIKey:       "key-1",
		Tokens:       models.TokenSet{AccessToken: "at-1", IDToken: "it-1"},
		PhoneNumber:  "6281234567890",
		SubscriberID: "sub-1",
	}
}

func respond(w http.ResponseWriter, env interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(env)
}

func TestCiamClientRequestOTP(t *testing.T) {
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/otp/request", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("X-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data":   map[string]string{"subscriber_id": "sub-1"},
		})
	}))
	defer server.Close()

	c := NewCiamClient(Options{
		AuthBaseURL: server.URL,
		APIKey:      "key-1",
		OTPChannel:  "SMS",
		HTTPClient:  server.Client(),
	})

	subscriberID, err := c.RequestOTP(context.Background(), "6281234567890")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", subscriberID)
	assert.Equal(t, "6281234567890", gotBody["msisdn"])
	assert.Equal(t, "SMS", gotBody["channel"])
}

func TestCiamClientExchangeOTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["code"] != "123456" {
			respond(w, map[string]interface{}{
				"status":  "FAILED",
				"code":    "OTP_INVALID",
				"message": "wrong or expired code",
			})
			return
		}
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]string{
				"access_token":  "at-1",
				"id_token":      "it-1",
				"refresh_token": "rt-1",
			},
		})
	}))
	defer server.Close()

	c := NewCiamClient(Options{AuthBaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	tokens, err := c.ExchangeOTP(context.Background(), "6281234567890", "123456")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tokens.AccessToken)
	assert.Equal(t, "rt-1", tokens.RefreshToken)

	_, err = c.ExchangeOTP(context.Background(), "6281234567890", "000000")
	var rejected *apperrors.ErrOTPRejected
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "6281234567890", rejected.PhoneNumber)
}

func TestCiamClientRefreshToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/refresh", r.URL.Path)
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]string{
				"access_token": "at-2",
				"id_token":     "it-2",
			},
		})
	}))
	defer server.Close()

	c := NewCiamClient(Options{AuthBaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	tokens, err := c.RefreshToken(context.Background(), "rt-1", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "at-2", tokens.AccessToken)
	// The API chose not to rotate the refresh token.
	assert.Empty(t, tokens.RefreshToken)
}

func TestCiamClientRefreshTokenFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		respond(w, map[string]interface{}{"status": "FAILED", "message": "refresh token revoked"})
	}))
	defer server.Close()

	c := NewCiamClient(Options{AuthBaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	_, err := c.RefreshToken(context.Background(), "rt-1", "sub-1")
	var remote *apperrors.ErrRemoteAPI
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnauthorized, remote.Status)
}

func TestSubscriberClientAuthHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		assert.Equal(t, "it-1", r.Header.Get("X-Id-Token"))
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]string{
				"phone_number":      "6281234567890",
				"subscriber_id":     "sub-1",
				"subscription_type": "PREPAID",
			},
		})
	}))
	defer server.Close()

	c := NewSubscriberClient(Options{BaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	profile, err := c.FetchProfile(context.Background(), testSession())
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPrepaid, profile.SubscriptionType)
}

func TestSubscriberClientQuotas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]interface{}{
				"packages": []map[string]interface{}{
					{
						"name":       "Xtra Combo 10GB",
						"expired_at": 1767225600,
						"benefits": []map[string]interface{}{
							{"name": "Main Data", "data_type": "DATA", "total": 10737418240, "remaining": 5368709120},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	c := NewSubscriberClient(Options{BaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	packages, err := c.GetQuotas(context.Background(), testSession())
	require.NoError(t, err)
	require.Len(t, packages, 1)
	assert.Equal(t, "Xtra Combo 10GB", packages[0].Name)
	require.Len(t, packages[0].Benefits, 1)
	assert.Equal(t, int64(5368709120), packages[0].Benefits[0].Remaining)
}

func TestSubscriberClientPackageDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/packages/detail", r.URL.Path)
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]interface{}{
				"package_family": map[string]interface{}{"code": "fam-1", "name": "Xtra Combo"},
				"package_option": map[string]interface{}{"name": "10GB / 30d", "code": "opt-1", "price": 55000},
				"token_confirmation": "tok-1",
			},
		})
	}))
	defer server.Close()

	c := NewSubscriberClient(Options{BaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	detail, err := c.GetPackageDetail(context.Background(), testSession(), "opt-1")
	require.NoError(t, err)
	assert.Equal(t, "fam-1", detail.Family.Code)
	assert.Equal(t, int64(55000), detail.Option.Price)
	assert.Equal(t, "tok-1", detail.TokenConfirmation)
}

func TestSubscriberClientStoreSegments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/packages/segments", r.URL.Path)
		respond(w, map[string]interface{}{
			"status": "SUCCESS",
			"data": map[string]interface{}{
				"store_segments": []map[string]interface{}{
					{
						"title": "Weekend Deals",
						"banners": []map[string]interface{}{
							{"title": "10GB Promo", "discounted_price": 45000, "action_type": "PDP", "action_param": "opt-1"},
						},
					},
				},
			},
		})
	}))
	defer server.Close()

	c := NewSubscriberClient(Options{BaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})

	segments, err := c.GetStoreSegments(context.Background(), testSession(), false)
	require.NoError(t, err)
	require.Len(t, segments, 1)
	require.Len(t, segments[0].Banners, 1)
	assert.Equal(t, models.BannerActionDetail, segments[0].Banners[0].ActionType)
	assert.Equal(t, int64(45000), segments[0].Banners[0].DiscountedPrice)
}

func TestPurchaseClientWalletValidation(t *testing.T) {
	c := NewPurchaseClient(Options{BaseURL: "http://unused", APIKey: "key-1"})
	item := models.PaymentItem{ItemCode: "opt-1", ItemPrice: 55000, TokenConfirmation: "tok-1"}

	// DANA without a wallet number must be rejected before any network I/O.
	_, err := c.SettleWithWallet(context.Background(), testSession(), item, models.RailDana, "")
	assert.Error(t, err)

	// Balance is not a wallet rail.
	_, err = c.SettleWithWallet(context.Background(), testSession(), item, models.RailBalance, "")
	assert.Error(t, err)
}

func TestPurchaseClientSettlement(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/purchase/balance":
			respond(w, map[string]interface{}{
				"status": "SUCCESS",
				"data":   map[string]string{"status": "SUCCESS", "transaction_id": "trx-1"},
			})
		case "/purchase/wallet":
			var body map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&body)
			assert.Equal(t, "DANA", body["rail"])
			assert.Equal(t, "6289999999999", body["wallet_number"])
			respond(w, map[string]interface{}{
				"status": "SUCCESS",
				"data":   map[string]string{"status": "PENDING", "deeplink": "https://pay.example/trx-2"},
			})
		case "/purchase/qris":
			respond(w, map[string]interface{}{
				"status": "SUCCESS",
				"data":   map[string]string{"status": "PENDING", "transaction_id": "trx-3", "qris_code": "00020101021226..."},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	c := NewPurchaseClient(Options{BaseURL: server.URL, APIKey: "key-1", HTTPClient: server.Client()})
	item := models.PaymentItem{ItemCode: "opt-1", ItemPrice: 55000, TokenConfirmation: "tok-1"}

	result, err := c.SettleWithBalance(context.Background(), testSession(), item)
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, "trx-1", result.TransactionID)

	result, err = c.SettleWithWallet(context.Background(), testSession(), item, models.RailDana, "6289999999999")
	require.NoError(t, err)
	assert.False(t, result.Succeeded())
	assert.NotEmpty(t, result.Deeplink)

	result, err = c.SettleWithQRIS(context.Background(), testSession(), item)
	require.NoError(t, err)
	assert.NotEmpty(t, result.QRISCode)
	assert.Equal(t, "trx-3", result.TransactionID)
}

func TestRotatingClientHeaders(t *testing.T) {
	rc := NewRotatingClient(false, 0)

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	require.NoError(t, err)
	rc.applyHeaders(req)

	assert.NotEmpty(t, req.Header.Get("User-Agent"))
	assert.NotEmpty(t, req.Header.Get("Accept-Language"))
	assert.NotEmpty(t, req.Header.Get("Accept"))

	// Explicit headers are preserved.
	req2, _ := http.NewRequest(http.MethodGet, "http://example.invalid/", nil)
	req2.Header.Set("User-Agent", "custom-agent")
	rc.applyHeaders(req2)
	assert.Equal(t, "custom-agent", req2.Header.Get("User-Agent"))
}
