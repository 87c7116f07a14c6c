package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nameclaim/internal/payment"
	dErrors "nameclaim/pkg/domain-errors"
	"nameclaim/pkg/platform/httputil"
	"nameclaim/pkg/requestcontext"
)

// PaymentService is the payment surface the transport depends on.
type PaymentService interface {
	CreateIntent(ctx context.Context, req payment.CreateIntentRequest) (*payment.Intent, error)
	VerifyIntent(ctx context.Context, intentID, clientSecret string) (*payment.VerifyResult, error)
	MarkVerified(ctx context.Context, intentID string) (*payment.Intent, error)
	MarkFailed(ctx context.Context, intentID string) (*payment.Intent, error)
	VerifyWebhookSignature(rawBody []byte, header string) error
}

func (h *Handler) handleCreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createPaymentIntentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var start time.Time
	if req.CheckoutStartTime > 0 {
		start = time.UnixMilli(req.CheckoutStartTime)
	}
	intent, err := h.payments.CreateIntent(ctx, payment.CreateIntentRequest{
		AmountCents:   req.Amount,
		DomainNames:   req.DomainNames,
		WalletAddress: req.WalletAddress,
		CheckoutStart: start,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "payment intent creation refused",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"clientSecret": intent.ClientSecret})
}

func (h *Handler) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.payments.VerifyIntent(ctx, req.PaymentIntentID, req.ClientSecret)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	// A verified payment immediately chains transfers for reservations the
	// registrar has already completed.
	if err := h.orders.PaymentVerified(ctx, res.DomainNames, res.Wallet); err != nil {
		h.logger.ErrorContext(ctx, "post-verification transfer chain failed",
			"request_id", requestcontext.RequestID(ctx),
			"intent_id", req.PaymentIntentID,
			"error", err.Error(),
		)
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success": res.Succeeded,
		"paymentIntent": map[string]any{
			"id":     req.PaymentIntentID,
			"amount": res.AmountCents,
			"status": "succeeded",
		},
		"domains": res.DomainNames,
	})
}
