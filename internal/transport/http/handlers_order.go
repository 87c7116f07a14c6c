package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"nameclaim/internal/operation"
	"nameclaim/internal/order"
	"nameclaim/internal/registrar"
	"nameclaim/internal/webhook"
	dErrors "nameclaim/pkg/domain-errors"
	"nameclaim/pkg/platform/httputil"
	"nameclaim/pkg/requestcontext"
)

// OrderService is the orchestrator surface the transport depends on.
type OrderService interface {
	ReserveDomains(ctx context.Context, domains []string, walletAddress string) (*order.BatchResult, error)
	RetryTransfer(ctx context.Context, domainName, walletAddress string) (*operation.Record, error)
	HandleExpiredCheckout(ctx context.Context, domains []string) (*order.BatchResult, error)
	OperationStatuses(ctx context.Context, operationIDs []string) ([]registrar.OperationStatus, error)
	RecordOperation(ctx context.Context, u operation.Update) (*operation.Record, error)
	ListOperations(ctx context.Context, wallet string) ([]*operation.Record, error)
	CompleteOperation(ctx context.Context, operationID string, status operation.Status) error
	PaymentVerified(ctx context.Context, domains []string, walletAddress string) error
	PaymentFailed(ctx context.Context, domains []string) error
}

// Handler is the thin HTTP layer. It delegates to the domain services and
// keeps transport concerns (decoding, validation, status mapping) here.
type Handler struct {
	orders   OrderService
	payments PaymentService
	deduper  webhook.Deduper
	// registrarSecret verifies inbound registrar webhook signatures. The
	// registrar signs with the same key used for outbound API auth.
	registrarSecret string
	logger          *slog.Logger
}

func NewHandler(orders OrderService, payments PaymentService, deduper webhook.Deduper, registrarSecret string, logger *slog.Logger) *Handler {
	return &Handler{
		orders:          orders,
		payments:        payments,
		deduper:         deduper,
		registrarSecret: registrarSecret,
		logger:          logger,
	}
}

func (h *Handler) handleReserveDomains(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req reserveDomainsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.orders.ReserveDomains(ctx, req.Domains, req.WalletAddress)
	if err != nil {
		h.logger.ErrorContext(ctx, "reservation batch failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batch)
}

func (h *Handler) handleRetryTransfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req retryTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	rec, err := h.orders.RetryTransfer(ctx, req.DomainName, req.WalletAddress)
	if err != nil {
		h.logger.WarnContext(ctx, "transfer retry failed",
			"request_id", requestcontext.RequestID(ctx),
			"domain", req.DomainName,
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "transfer initiated",
		"operation": rec,
	})
}

func (h *Handler) handleExpiredCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req expiredCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	batch, err := h.orders.HandleExpiredCheckout(ctx, req.names())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, batch)
}

// handleDomainStatus serves both GET ?operationIds=a,b and POST {operationIds}.
func (h *Handler) handleDomainStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var ids []string
	if r.Method == http.MethodPost {
		var req domainStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
			return
		}
		ids = req.OperationIDs
	} else {
		ids = splitParam(r.URL.Query().Get("operationIds"))
	}

	statuses, err := h.orders.OperationStatuses(ctx, ids)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"results": statuses})
}

func (h *Handler) handleStoreOperation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req storeOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	_, err := h.orders.RecordOperation(ctx, operation.Update{
		DomainName:    req.Domain,
		OperationID:   req.OperationID,
		Status:        operation.Status(req.Status),
		WalletAddress: req.WalletAddress,
		NeedsTransfer: req.NeedsTransfer,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (h *Handler) handleListOperations(w http.ResponseWriter, r *http.Request) {
	recs, err := h.orders.ListOperations(r.Context(), r.URL.Query().Get("wallet"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"operations": recs})
}

func splitParam(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
