package httptransport

import (
	"encoding/json"
	"io"
	"net/http"

	"nameclaim/internal/operation"
	"nameclaim/internal/registrar"
	dErrors "nameclaim/pkg/domain-errors"
	"nameclaim/pkg/platform/httputil"
	"nameclaim/pkg/requestcontext"
)

// Webhook bodies are read raw before any decoding: both providers sign the
// exact bytes on the wire, so the signature must be checked against them.
const maxWebhookBody = 1 << 20

// registrarWebhookEvent is the registrar's operation notification.
type registrarWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		OperationID string `json:"operationId"`
		Status      string `json:"status"`
	} `json:"data"`
}

const registrarEventOperationFinished = "OPERATION_FINISHED"

func (h *Handler) handleRegistrarWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read body"))
		return
	}

	if !registrar.VerifySignature(body, r.Header.Get("x-ud-signature"), h.registrarSecret) {
		h.logger.WarnContext(ctx, "registrar webhook signature rejected",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteErrorStatus(w, http.StatusUnauthorized,
			dErrors.New(dErrors.CodeSignatureInvalid, "invalid webhook signature"))
		return
	}

	var event registrarWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook payload"))
		return
	}

	key := registrarEventKey(event)
	seen, err := h.deduper.Seen(ctx, key)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook dedupe check failed", "error", err.Error())
	}
	if err == nil && seen {
		// Redelivery of an already-processed event; acknowledge quietly.
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
		return
	}

	if event.Type == registrarEventOperationFinished {
		status := operation.Status(event.Data.Status)
		if status == "" {
			status = operation.StatusCompleted
		}
		if err := h.orders.CompleteOperation(ctx, event.Data.OperationID, status); err != nil {
			h.logger.ErrorContext(ctx, "registrar webhook reconciliation failed",
				"request_id", requestcontext.RequestID(ctx),
				"operation_id", event.Data.OperationID,
				"error", err.Error(),
			)
			// The event stays unmarked, so the registrar redelivers it.
			httputil.WriteError(w, err)
			return
		}
	}

	if err := h.deduper.MarkProcessed(ctx, key); err != nil {
		h.logger.ErrorContext(ctx, "failed to mark webhook processed", "error", err.Error())
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func registrarEventKey(event registrarWebhookEvent) string {
	if event.ID != "" {
		return "registrar:" + event.ID
	}
	if event.Data.OperationID == "" {
		return ""
	}
	return "registrar:" + event.Data.OperationID + ":" + event.Data.Status
}

// paymentWebhookEvent is the payment processor's event envelope.
type paymentWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

const (
	paymentEventSucceeded = "payment_intent.succeeded"
	paymentEventFailed    = "payment_intent.payment_failed"
)

func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read body"))
		return
	}

	if err := h.payments.VerifyWebhookSignature(body, r.Header.Get("stripe-signature")); err != nil {
		h.logger.WarnContext(ctx, "payment webhook signature rejected",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	var event paymentWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook payload"))
		return
	}

	key := "payment:" + event.ID
	seen, err := h.deduper.Seen(ctx, key)
	if err != nil {
		h.logger.ErrorContext(ctx, "webhook dedupe check failed", "error", err.Error())
	}
	if err == nil && seen {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
		return
	}

	intentID := event.Data.Object.ID
	domains := splitParam(event.Data.Object.Metadata["domains"])
	wallet := event.Data.Object.Metadata["wallet"]

	switch event.Type {
	case paymentEventSucceeded:
		if _, err := h.payments.MarkVerified(ctx, intentID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to mark intent verified",
				"intent_id", intentID, "error", err.Error())
		}
		if err := h.orders.PaymentVerified(ctx, domains, wallet); err != nil {
			h.logger.ErrorContext(ctx, "payment webhook transfer chain failed",
				"request_id", requestcontext.RequestID(ctx),
				"intent_id", intentID,
				"error", err.Error(),
			)
			// The event stays unmarked, so the processor redelivers it.
			httputil.WriteError(w, err)
			return
		}
	case paymentEventFailed:
		if _, err := h.payments.MarkFailed(ctx, intentID); err != nil && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to mark intent failed",
				"intent_id", intentID, "error", err.Error())
		}
		if err := h.orders.PaymentFailed(ctx, domains); err != nil {
			h.logger.ErrorContext(ctx, "payment webhook compensation failed",
				"intent_id", intentID, "error", err.Error())
			httputil.WriteError(w, err)
			return
		}
	default:
		h.logger.InfoContext(ctx, "ignoring payment webhook event",
			"type", event.Type)
	}

	if err := h.deduper.MarkProcessed(ctx, key); err != nil {
		h.logger.ErrorContext(ctx, "failed to mark webhook processed", "error", err.Error())
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
}
