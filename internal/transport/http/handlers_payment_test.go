package httptransport

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"nameclaim/internal/registrar"
	"nameclaim/pkg/testutil"
)

func TestCreatePaymentIntentRoute(t *testing.T) {
	t.Run("missing amount is a 400", func(t *testing.T) {
		s := newStack(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/create-payment-intent", map[string]any{
			"domainNames": []string{"alice.her"},
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("elapsed checkout window is a 400 expired", func(t *testing.T) {
		s := newStack(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/create-payment-intent", map[string]any{
			"amount":            2500,
			"domainNames":       []string{"alice.her"},
			"checkoutStartTime": time.Now().Add(-3 * time.Minute).UnixMilli(),
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "expired")
	})

	t.Run("fresh checkout returns a client secret", func(t *testing.T) {
		s := newStack(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/create-payment-intent", map[string]any{
			"amount":            2500,
			"domainNames":       []string{"alice.her"},
			"walletAddress":     testWallet,
			"checkoutStartTime": time.Now().UnixMilli(),
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[map[string]string](t, rr)
		assert.NotEmpty(t, (*resp)["clientSecret"])
	})
}

func TestVerifyPaymentRoute(t *testing.T) {
	createIntent := func(t *testing.T, s *stack) (id, secret string) {
		t.Helper()
		req := testutil.NewJSONRequest(t, http.MethodPost, "/create-payment-intent", map[string]any{
			"amount":            2500,
			"domainNames":       []string{"alice.her"},
			"walletAddress":     testWallet,
			"checkoutStartTime": time.Now().UnixMilli(),
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
		resp := testutil.UnmarshalResponse[map[string]string](t, rr)

		for intentID, intent := range s.processor.intents {
			if intent.ClientSecret == (*resp)["clientSecret"] {
				return intentID, intent.ClientSecret
			}
		}
		t.Fatal("created intent not found in processor")
		return "", ""
	}

	t.Run("secret mismatch is a 400", func(t *testing.T) {
		s := newStack(t)
		id, _ := createIntent(t, s)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-payment", map[string]any{
			"paymentIntentId": id,
			"clientSecret":    "wrong",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("succeeded payment verifies and chains the transfer", func(t *testing.T) {
		s := newStack(t)
		seedReservation(t, s, "alice.her")
		id, secret := createIntent(t, s)
		s.processor.succeed(id)

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil)
		s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
			Return(&registrar.OperationRef{ID: "op2"}, nil)

		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-payment", map[string]any{
			"paymentIntentId": id,
			"clientSecret":    secret,
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		type response struct {
			Success bool     `json:"success"`
			Domains []string `json:"domains"`
		}
		resp := testutil.UnmarshalResponse[response](t, rr)
		assert.True(t, resp.Success)
		require.Equal(t, []string{"alice.her"}, resp.Domains)
	})

	t.Run("unknown intent is a 404", func(t *testing.T) {
		s := newStack(t)
		req := testutil.NewJSONRequest(t, http.MethodPost, "/verify-payment", map[string]any{
			"paymentIntentId": "pi_missing",
			"clientSecret":    "secret",
		})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}
