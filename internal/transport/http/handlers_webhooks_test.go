package httptransport

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"nameclaim/internal/operation"
	"nameclaim/internal/payment"
	"nameclaim/internal/registrar"
	"nameclaim/pkg/testutil"
)

func TestRegistrarWebhookRoute(t *testing.T) {
	body := `{"id":"evt_1","type":"OPERATION_FINISHED","data":{"operationId":"op1","status":"COMPLETED"}}`

	t.Run("missing signature is a 401", func(t *testing.T) {
		s := newStack(t)
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/unstoppable", body)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
		testutil.AssertErrorCode(t, rr, "signature_invalid")
	})

	t.Run("mutated body invalidates the signature", func(t *testing.T) {
		s := newStack(t)
		sig := registrar.Sign([]byte(body), testRegistrarSecret)
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/unstoppable", body+" ")
		req.Header.Set("x-ud-signature", sig)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("completion event chains the transfer once", func(t *testing.T) {
		s := newStack(t)

		// Track the pending reservation the webhook will complete.
		_, err := s.store.Upsert(context.Background(), operation.Update{
			DomainName:    "alice.her",
			OperationID:   "op1",
			Status:        operation.StatusPending,
			Kind:          operation.KindReservation,
			WalletAddress: testWallet,
			NeedsTransfer: operation.Bool(true),
		})
		require.NoError(t, err)

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil)
		s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
			Return(&registrar.OperationRef{ID: "op2"}, nil).
			Times(1)

		send := func() {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/unstoppable", body)
			req.Header.Set("x-ud-signature", registrar.Sign([]byte(body), testRegistrarSecret))
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatus(t, rr, http.StatusOK)
		}

		send()
		// Redelivery is deduplicated; TransferOwnership stays at one call.
		send()

		rec, err := s.store.FindByDomain(context.Background(), "alice.her")
		require.NoError(t, err)
		assert.Equal(t, "op2", rec.OperationID)
		assert.Equal(t, operation.KindTransfer, rec.Kind)
	})

	t.Run("transient failure leaves the event open for redelivery", func(t *testing.T) {
		s := newStack(t)
		retryBody := `{"id":"evt_retry","type":"OPERATION_FINISHED","data":{"operationId":"op1","status":"COMPLETED"}}`

		_, err := s.store.Upsert(context.Background(), operation.Update{
			DomainName:    "alice.her",
			OperationID:   "op1",
			Status:        operation.StatusPending,
			Kind:          operation.KindReservation,
			WalletAddress: testWallet,
			NeedsTransfer: operation.Bool(true),
		})
		require.NoError(t, err)

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil).
			Times(2)
		gomock.InOrder(
			s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
				Return(nil, &registrar.Error{StatusCode: 502, Message: "registry flapping"}),
			s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
				Return(&registrar.OperationRef{ID: "op2"}, nil),
		)

		// First delivery fails mid-chain and must not be marked processed.
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/unstoppable", retryBody)
		req.Header.Set("x-ud-signature", registrar.Sign([]byte(retryBody), testRegistrarSecret))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusInternalServerError)

		// The redelivery gets through and completes the chain.
		req = testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/unstoppable", retryBody)
		req.Header.Set("x-ud-signature", registrar.Sign([]byte(retryBody), testRegistrarSecret))
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rec, err := s.store.FindByDomain(context.Background(), "alice.her")
		require.NoError(t, err)
		assert.Equal(t, "op2", rec.OperationID)
		assert.Equal(t, operation.KindTransfer, rec.Kind)
	})

	t.Run("unknown operation is acknowledged", func(t *testing.T) {
		s := newStack(t)
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/unstoppable", body)
		req.Header.Set("x-ud-signature", registrar.Sign([]byte(body), testRegistrarSecret))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}

func TestPaymentWebhookRoute(t *testing.T) {
	eventBody := func(eventID, eventType, intentID string) string {
		return fmt.Sprintf(
			`{"id":%q,"type":%q,"data":{"object":{"id":%q,"metadata":{"domains":"alice.her","wallet":%q}}}}`,
			eventID, eventType, intentID, testWallet)
	}
	sign := func(body string) string {
		return payment.SignWebhook([]byte(body), time.Now().Unix(), testWebhookSecret)
	}

	t.Run("missing signature is a 400", func(t *testing.T) {
		s := newStack(t)
		body := eventBody("evt_1", "payment_intent.succeeded", "pi_1")
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		testutil.AssertErrorCode(t, rr, "signature_invalid")
	})

	t.Run("success event chains the transfer", func(t *testing.T) {
		s := newStack(t)
		seedReservation(t, s, "alice.her")

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil)
		s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
			Return(&registrar.OperationRef{ID: "op2"}, nil)

		body := eventBody("evt_1", "payment_intent.succeeded", "pi_unknown")
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
		req.Header.Set("stripe-signature", sign(body))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		resp := testutil.UnmarshalResponse[map[string]bool](t, rr)
		assert.True(t, (*resp)["received"])
	})

	t.Run("replayed success event cannot double-transfer", func(t *testing.T) {
		s := newStack(t)
		seedReservation(t, s, "alice.her")

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil)
		s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
			Return(&registrar.OperationRef{ID: "op2"}, nil).
			Times(1)

		body := eventBody("evt_dup", "payment_intent.succeeded", "pi_unknown")
		for i := 0; i < 2; i++ {
			req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
			req.Header.Set("stripe-signature", sign(body))
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatus(t, rr, http.StatusOK)
		}
	})

	t.Run("failed transfer chain keeps the event open for redelivery", func(t *testing.T) {
		s := newStack(t)
		seedReservation(t, s, "alice.her")

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil).
			Times(2)
		gomock.InOrder(
			s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
				Return(nil, &registrar.Error{StatusCode: 502, Message: "registry flapping"}),
			s.registrar.EXPECT().TransferOwnership(gomock.Any(), "alice.her", testWallet).
				Return(&registrar.OperationRef{ID: "op2"}, nil),
		)

		body := eventBody("evt_retry", "payment_intent.succeeded", "pi_unknown")
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
		req.Header.Set("stripe-signature", sign(body))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusInternalServerError)

		req = testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
		req.Header.Set("stripe-signature", sign(body))
		rr = testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rec, err := s.store.FindByDomain(context.Background(), "alice.her")
		require.NoError(t, err)
		assert.Equal(t, "op2", rec.OperationID)
	})

	t.Run("failure event releases reserved domains", func(t *testing.T) {
		s := newStack(t)
		_, err := s.store.Upsert(context.Background(), operation.Update{
			DomainName:    "alice.her",
			OperationID:   "op1",
			Status:        operation.StatusCompleted,
			Kind:          operation.KindReservation,
			WalletAddress: testWallet,
			NeedsTransfer: operation.Bool(true),
		})
		require.NoError(t, err)

		s.registrar.EXPECT().CheckOwnership(gomock.Any(), "alice.her").
			Return(&registrar.Ownership{Domain: "alice.her", Exists: true, OwnedByUs: true}, nil)
		s.registrar.EXPECT().ReturnDomain(gomock.Any(), "alice.her").
			Return(&registrar.OperationRef{ID: "op-ret"}, nil)

		body := eventBody("evt_2", "payment_intent.payment_failed", "pi_unknown")
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
		req.Header.Set("stripe-signature", sign(body))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rec, err := s.store.FindByDomain(context.Background(), "alice.her")
		require.NoError(t, err)
		assert.Equal(t, operation.KindReturn, rec.Kind)
	})

	t.Run("unrelated event types are acknowledged", func(t *testing.T) {
		s := newStack(t)
		body := eventBody("evt_3", "charge.refunded", "pi_1")
		req := testutil.NewRequestWithBody(t, http.MethodPost, "/webhooks/stripe", body)
		req.Header.Set("stripe-signature", sign(body))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(t, rr, http.StatusOK)
	})
}
