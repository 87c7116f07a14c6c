// Package order drives a domain purchase from reservation through payment to
// final ownership transfer. The orchestrator talks to the registrar through
// its client adapter, records every registrar operation in the operation
// store, and reconciles webhook callbacks against those records.
package order

//go:generate mockgen -destination=mocks/mocks.go -package=mocks nameclaim/internal/registrar Client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"nameclaim/internal/operation"
	"nameclaim/internal/order/events"
	"nameclaim/internal/order/metrics"
	"nameclaim/internal/registrar"
	dErrors "nameclaim/pkg/domain-errors"
	"nameclaim/pkg/platform/retry"
	"nameclaim/pkg/platform/sentinel"
	"nameclaim/pkg/requestcontext"
)

const tracerName = "nameclaim/internal/order"

// Service is the order orchestrator.
type Service struct {
	registrar registrar.Client
	store     operation.Store
	retry     retry.Policy
	events    events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithRetryPolicy overrides the transfer retry policy. Tests shrink the base
// delay; production keeps the default three attempts.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *Service) { s.retry = p }
}

// NewService builds the orchestrator.
func NewService(reg registrar.Client, store operation.Store, opts ...Option) *Service {
	s := &Service{
		registrar: reg,
		store:     store,
		retry:     retry.Default(),
		events:    events.NoopPublisher{},
		logger:    slog.Default(),
		tracer:    otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DomainResult is the per-domain outcome of a batch operation. One domain's
// failure never removes its siblings from the result list.
type DomainResult struct {
	Domain          string            `json:"domain"`
	Success         bool              `json:"success"`
	AlreadyReserved bool              `json:"alreadyReserved,omitempty"`
	State           State             `json:"state,omitempty"`
	Message         string            `json:"message,omitempty"`
	Operation       *operation.Record `json:"operation,omitempty"`
}

// BatchResult joins the per-domain outcomes of a fan-out. AllSuccessful is a
// summary flag only; partial success is the contract and nothing rolls back.
type BatchResult struct {
	AllSuccessful bool           `json:"success"`
	Results       []DomainResult `json:"results"`
}

// ReserveDomains reserves each candidate domain independently. Domains are
// dispatched concurrently and joined before returning; a registrar failure
// for one domain degrades that entry only.
func (s *Service) ReserveDomains(ctx context.Context, domains []string, walletAddress string) (*BatchResult, error) {
	if len(domains) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "domains are required")
	}

	ctx, span := s.tracer.Start(ctx, "order.ReserveDomains",
		trace.WithAttributes(attribute.Int("order.batch_size", len(domains))))
	defer span.End()

	start := time.Now()
	wallet := operation.NormalizeWallet(walletAddress)
	candidates := uniqueDomains(domains)
	results := make([]DomainResult, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	for i, domain := range candidates {
		g.Go(func() error {
			results[i] = s.reserveOne(gctx, domain, wallet)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{AllSuccessful: true, Results: results}
	for _, r := range results {
		if !r.Success {
			batch.AllSuccessful = false
		}
	}

	s.metrics.ObserveReserveBatch(time.Since(start))
	s.logger.InfoContext(ctx, "reservation batch finished",
		"request_id", requestcontext.RequestID(ctx),
		"domains", len(candidates),
		"all_successful", batch.AllSuccessful,
	)
	return batch, nil
}

// uniqueDomains normalizes candidate names and drops duplicates, keeping
// first-seen order. A name repeated within one batch must not fan out as two
// goroutines and reach the registrar twice.
func uniqueDomains(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		domain := operation.NormalizeDomain(name)
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, domain)
	}
	return out
}

func (s *Service) reserveOne(ctx context.Context, domain, wallet string) DomainResult {
	ctx, span := s.tracer.Start(ctx, "order.reserveOne",
		trace.WithAttributes(attribute.String("order.domain", domain)))
	defer span.End()

	if domain == "" {
		return DomainResult{Success: false, State: StateReserveFailed, Message: "empty domain name"}
	}

	own, err := s.registrar.CheckOwnership(ctx, domain)
	if err != nil {
		s.metrics.IncReservation("error")
		return DomainResult{Domain: domain, State: StateReserveFailed, Message: "ownership check failed: " + err.Error()}
	}

	switch {
	case own.OwnedByUs:
		// Idempotent re-entry: no second registrar reservation call.
		s.metrics.IncReservation("already_owned")
		rec, err := s.store.FindByDomain(ctx, domain)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "reserved domain record lookup failed", "domain", domain, "error", err)
		}
		return DomainResult{
			Domain:          domain,
			Success:         true,
			AlreadyReserved: true,
			State:           StateReserved,
			Message:         "domain already reserved",
			Operation:       rec,
		}
	case own.Exists && !own.Available:
		s.metrics.IncReservation("unavailable")
		return DomainResult{Domain: domain, State: StateReserveFailed, Message: "DOMAIN_UNAVAILABLE"}
	}

	ref, err := s.registrar.Reserve(ctx, domain)
	if err != nil {
		s.metrics.IncReservation("error")
		s.events.Publish(ctx, events.Event{
			Type: events.TypeReservationFailed, DomainName: domain, State: string(StateReserveFailed), Detail: err.Error(),
		})
		return DomainResult{Domain: domain, State: StateReserveFailed, Message: "reservation failed: " + err.Error()}
	}

	rec, err := s.store.Upsert(ctx, operation.Update{
		DomainName:    domain,
		OperationID:   ref.ID,
		Status:        operation.StatusPending,
		Kind:          operation.KindReservation,
		WalletAddress: wallet,
		NeedsTransfer: operation.Bool(true),
	})
	if err != nil {
		s.metrics.IncReservation("error")
		return DomainResult{Domain: domain, State: StateReserveFailed, Message: "failed to record reservation: " + err.Error()}
	}

	s.metrics.IncReservation("reserved")
	s.events.Publish(ctx, events.Event{
		Type: events.TypeDomainReserved, DomainName: domain, OperationID: ref.ID, State: string(StateReserved), Wallet: wallet,
	})
	return DomainResult{Domain: domain, Success: true, State: StateReserved, Message: "reservation initiated", Operation: rec}
}

// CompleteOperation reconciles a registrar operation status report (webhook
// or poll) against the store. Unknown operation IDs are logged and ignored:
// the registrar may notify about operations never tracked locally.
//
// When a reservation completes with a pending transfer obligation, exactly
// one follow-up transfer is issued. The status write only lands while the
// record still tracks the reported operation, and the transfer itself is
// claimed atomically in startTransfer, so concurrent reports for the same
// operation (a webhook racing a status poll, or two event IDs for one
// operation) cannot double-transfer or clobber the chained record.
func (s *Service) CompleteOperation(ctx context.Context, operationID string, status operation.Status) error {
	if operationID == "" {
		return dErrors.New(dErrors.CodeValidation, "operationId is required")
	}
	if !status.Valid() {
		return dErrors.Newf(dErrors.CodeValidation, "unknown operation status %q", status)
	}

	ctx, span := s.tracer.Start(ctx, "order.CompleteOperation",
		trace.WithAttributes(attribute.String("order.operation_id", operationID)))
	defer span.End()

	rec, err := s.store.FindByOperationID(ctx, operationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncWebhook("registrar", "unknown_operation")
			s.logger.InfoContext(ctx, "ignoring update for untracked operation",
				"request_id", requestcontext.RequestID(ctx),
				"operation_id", operationID,
			)
			return nil
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
	}

	var superseded bool
	updated, err := s.store.Execute(ctx, rec.DomainName, func(cur *operation.Record) (*operation.Update, error) {
		if cur == nil || cur.OperationID != operationID {
			// The record moved on to a later operation between the lookup
			// and this write; the report is stale and must not clobber it.
			superseded = true
			return nil, nil
		}
		return &operation.Update{OperationID: operationID, Status: status}, nil
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update operation record")
	}
	if superseded {
		s.metrics.IncWebhook("registrar", "superseded")
		s.logger.InfoContext(ctx, "ignoring status report for superseded operation",
			"request_id", requestcontext.RequestID(ctx),
			"operation_id", operationID,
		)
		return nil
	}

	s.metrics.IncWebhook("registrar", "applied")
	s.events.Publish(ctx, events.Event{
		Type: events.TypeOperationCompleted, DomainName: updated.DomainName, OperationID: operationID, State: string(status),
	})

	if updated.Kind == operation.KindReservation &&
		updated.Status == operation.StatusCompleted &&
		updated.NeedsTransfer &&
		updated.WalletAddress != "" {
		if _, err := s.startTransfer(ctx, updated.DomainName, updated.WalletAddress, "webhook"); err != nil {
			return err
		}
	}
	return nil
}

// InitiateTransfers issues an ownership transfer for each paid domain whose
// reservation has completed. Domains whose reservation is still pending are
// left to the registrar-webhook chain; the needsTransfer flag keeps the
// obligation alive.
func (s *Service) InitiateTransfers(ctx context.Context, domains []string, walletAddress string) error {
	wallet := operation.NormalizeWallet(walletAddress)
	var errs []error
	for _, domain := range uniqueDomains(domains) {
		rec, err := s.store.FindByDomain(ctx, domain)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				s.logger.WarnContext(ctx, "paid domain has no operation record", "domain", domain)
				continue
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
		}

		if wallet != "" && rec.WalletAddress == "" {
			rec, err = s.store.Upsert(ctx, operation.Update{DomainName: domain, WalletAddress: wallet})
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to attach wallet to record")
			}
		}

		if rec.Kind != operation.KindReservation || !rec.NeedsTransfer || rec.WalletAddress == "" {
			continue
		}
		if rec.Status != operation.StatusCompleted {
			// Reservation still in flight; the completion webhook chains
			// the transfer once the registrar reports it.
			continue
		}
		if _, err := s.startTransfer(ctx, domain, rec.WalletAddress, "payment"); err != nil {
			s.logger.ErrorContext(ctx, "post-payment transfer failed", "domain", domain, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// startTransfer claims the domain's transfer obligation, re-validates
// ownership, issues the registrar transfer, and records the follow-up
// TRANSFER operation. The claim clears needsTransfer under the store's
// per-domain serialization, so competing triggers issue at most one
// registrar transfer per obligation; a failed attempt restores the flag so
// a later trigger or manual retry can claim it again.
func (s *Service) startTransfer(ctx context.Context, domain, wallet, trigger string) (*operation.Record, error) {
	ctx, span := s.tracer.Start(ctx, "order.startTransfer",
		trace.WithAttributes(
			attribute.String("order.domain", domain),
			attribute.String("order.trigger", trigger),
		))
	defer span.End()

	var claimed bool
	if _, err := s.store.Execute(ctx, domain, func(cur *operation.Record) (*operation.Update, error) {
		if cur == nil || cur.Kind != operation.KindReservation ||
			cur.Status != operation.StatusCompleted || !cur.NeedsTransfer {
			return nil, nil
		}
		claimed = true
		return &operation.Update{NeedsTransfer: operation.Bool(false)}, nil
	}); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim transfer obligation")
	}
	if !claimed {
		s.metrics.IncTransfer(trigger, "duplicate")
		s.logger.InfoContext(ctx, "transfer already claimed for domain",
			"request_id", requestcontext.RequestID(ctx),
			"domain", domain,
			"trigger", trigger,
		)
		return nil, nil
	}

	own, err := s.registrar.CheckOwnership(ctx, domain)
	if err != nil {
		s.releaseTransferClaim(ctx, domain)
		s.metrics.IncTransfer(trigger, "error")
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "ownership check failed")
	}
	if !own.OwnedByUs {
		s.releaseTransferClaim(ctx, domain)
		s.metrics.IncTransfer(trigger, "not_owned")
		return nil, dErrors.Newf(dErrors.CodeNotOwned, "domain %s is not held by the custody account", domain)
	}

	ref, err := s.registrar.TransferOwnership(ctx, domain, wallet)
	if err != nil {
		s.releaseTransferClaim(ctx, domain)
		s.metrics.IncTransfer(trigger, "error")
		s.events.Publish(ctx, events.Event{
			Type: events.TypeTransferFailed, DomainName: domain, State: string(StateTransferFailed), Wallet: wallet, Detail: err.Error(),
		})
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "transfer request failed")
	}

	rec, err := s.store.Upsert(ctx, operation.Update{
		DomainName:    domain,
		OperationID:   ref.ID,
		Status:        operation.StatusPending,
		Kind:          operation.KindTransfer,
		WalletAddress: wallet,
		NeedsTransfer: operation.Bool(false),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transfer")
	}

	s.metrics.IncTransfer(trigger, "started")
	s.events.Publish(ctx, events.Event{
		Type: events.TypeTransferStarted, DomainName: domain, OperationID: ref.ID, State: string(StateTransferring), Wallet: wallet,
	})
	s.logger.InfoContext(ctx, "ownership transfer initiated",
		"request_id", requestcontext.RequestID(ctx),
		"domain", domain,
		"operation_id", ref.ID,
		"trigger", trigger,
	)
	return rec, nil
}

// releaseTransferClaim restores the needsTransfer flag after a failed
// transfer attempt.
func (s *Service) releaseTransferClaim(ctx context.Context, domain string) {
	if _, err := s.store.Upsert(ctx, operation.Update{
		DomainName:    domain,
		NeedsTransfer: operation.Bool(true),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to restore transfer obligation", "domain", domain, "error", err)
	}
}

// RetryTransfer re-attempts an ownership transfer for a tracked domain,
// backing off between attempts. A domain already held by the target wallet
// short-circuits to success.
func (s *Service) RetryTransfer(ctx context.Context, domainName, walletAddress string) (*operation.Record, error) {
	domain := operation.NormalizeDomain(domainName)
	wallet := operation.NormalizeWallet(walletAddress)
	if domain == "" || wallet == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "domainName and walletAddress are required")
	}

	ctx, span := s.tracer.Start(ctx, "order.RetryTransfer",
		trace.WithAttributes(attribute.String("order.domain", domain)))
	defer span.End()

	if _, err := s.store.FindByDomain(ctx, domain); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no operation tracked for domain %s", domain)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load operation record")
	}

	own, err := s.registrar.CheckOwnership(ctx, domain)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "ownership check failed")
	}
	if !own.OwnedByUs {
		if operation.NormalizeWallet(own.OwnerRef) == wallet {
			// The earlier transfer landed; converge the record.
			return s.store.Upsert(ctx, operation.Update{
				DomainName:    domain,
				Status:        operation.StatusCompleted,
				Kind:          operation.KindTransfer,
				WalletAddress: wallet,
				NeedsTransfer: operation.Bool(false),
			})
		}
		return nil, dErrors.Newf(dErrors.CodeNotOwned, "domain %s is not held by the custody account", domain)
	}

	var ref *registrar.OperationRef
	res, err := s.retry.Do(ctx, func(ctx context.Context) error {
		r, err := s.registrar.TransferOwnership(ctx, domain, wallet)
		if err != nil {
			return err
		}
		ref = r
		return nil
	})
	s.metrics.ObserveTransferAttempts(res.Attempts)
	if err != nil {
		s.metrics.IncTransfer("retry", "exhausted")
		s.events.Publish(ctx, events.Event{
			Type: events.TypeTransferFailed, DomainName: domain, State: string(StateTransferFailed), Wallet: wallet, Detail: err.Error(),
		})
		return nil, dErrors.Wrap(err, dErrors.CodeRetryExhausted, "transfer retries exhausted")
	}

	updated, err := s.store.Upsert(ctx, operation.Update{
		DomainName:    domain,
		OperationID:   ref.ID,
		Status:        operation.StatusPending,
		Kind:          operation.KindTransfer,
		WalletAddress: wallet,
		NeedsTransfer: operation.Bool(false),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record transfer")
	}

	s.metrics.IncTransfer("retry", "started")
	s.events.Publish(ctx, events.Event{
		Type: events.TypeTransferStarted, DomainName: domain, OperationID: ref.ID, State: string(StateTransferring), Wallet: wallet,
	})
	s.logger.InfoContext(ctx, "transfer retry succeeded",
		"request_id", requestcontext.RequestID(ctx),
		"domain", domain,
		"attempts", res.Attempts,
	)
	return updated, nil
}

// HandleExpiredCheckout releases each domain still held by the custody
// account whose transfer never completed, recording a compensating RETURN
// operation. Domains are processed independently.
func (s *Service) HandleExpiredCheckout(ctx context.Context, domains []string) (*BatchResult, error) {
	if len(domains) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "domains are required")
	}

	ctx, span := s.tracer.Start(ctx, "order.HandleExpiredCheckout",
		trace.WithAttributes(attribute.Int("order.batch_size", len(domains))))
	defer span.End()

	candidates := uniqueDomains(domains)
	results := make([]DomainResult, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	for i, domain := range candidates {
		g.Go(func() error {
			results[i] = s.returnOne(gctx, domain)
			return nil
		})
	}
	_ = g.Wait()

	batch := &BatchResult{AllSuccessful: true, Results: results}
	for _, r := range results {
		if !r.Success {
			batch.AllSuccessful = false
		}
	}
	return batch, nil
}

func (s *Service) returnOne(ctx context.Context, domain string) DomainResult {
	if domain == "" {
		return DomainResult{Success: false, Message: "empty domain name"}
	}

	if rec, err := s.store.FindByDomain(ctx, domain); err == nil {
		if rec.Kind == operation.KindTransfer && rec.Status == operation.StatusCompleted {
			s.metrics.IncReturn("transferred")
			return DomainResult{Domain: domain, Success: true, State: StateTransferred, Message: "transfer already completed; nothing to return"}
		}
	}

	own, err := s.registrar.CheckOwnership(ctx, domain)
	if err != nil {
		s.metrics.IncReturn("error")
		return DomainResult{Domain: domain, Message: "ownership check failed: " + err.Error()}
	}
	if !own.OwnedByUs {
		s.metrics.IncReturn("not_held")
		return DomainResult{Domain: domain, Success: true, Message: "domain not held; nothing to return"}
	}

	ref, err := s.registrar.ReturnDomain(ctx, domain)
	if err != nil {
		s.metrics.IncReturn("error")
		return DomainResult{Domain: domain, Message: "return failed: " + err.Error()}
	}

	rec, err := s.store.Upsert(ctx, operation.Update{
		DomainName:    domain,
		OperationID:   ref.ID,
		Status:        operation.StatusPending,
		Kind:          operation.KindReturn,
		NeedsTransfer: operation.Bool(false),
	})
	if err != nil {
		return DomainResult{Domain: domain, Message: "failed to record return: " + err.Error()}
	}

	s.metrics.IncReturn("returned")
	s.events.Publish(ctx, events.Event{
		Type: events.TypeDomainReturned, DomainName: domain, OperationID: ref.ID, State: string(StateExpired),
	})
	return DomainResult{Domain: domain, Success: true, State: StateExpired, Message: "domain return initiated", Operation: rec}
}

// PaymentVerified marks the paid domains and chains their transfers.
func (s *Service) PaymentVerified(ctx context.Context, domains []string, walletAddress string) error {
	s.metrics.IncWebhook("payment", "verified")
	s.events.Publish(ctx, events.Event{
		Type: events.TypePaymentVerified, State: string(StatePaymentVerified), Wallet: operation.NormalizeWallet(walletAddress),
	})
	return s.InitiateTransfers(ctx, domains, walletAddress)
}

// PaymentFailed releases the reserved domains back to the registrar.
func (s *Service) PaymentFailed(ctx context.Context, domains []string) error {
	s.metrics.IncWebhook("payment", "failed")
	s.events.Publish(ctx, events.Event{
		Type: events.TypePaymentFailed, State: string(StatePaymentFailed),
	})
	if len(domains) == 0 {
		return nil
	}
	_, err := s.HandleExpiredCheckout(ctx, domains)
	return err
}

// OperationStatuses polls the registrar for the given operation IDs and
// folds any terminal statuses back into the store. Per-ID failures degrade
// that entry to ERROR; the batch itself never fails.
func (s *Service) OperationStatuses(ctx context.Context, operationIDs []string) ([]registrar.OperationStatus, error) {
	if len(operationIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "operationIds are required")
	}

	statuses, err := s.registrar.PollOperations(ctx, operationIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "operation poll failed")
	}

	for _, st := range statuses {
		status := operation.Status(st.Status)
		if !status.Valid() || !status.Terminal() {
			continue
		}
		if err := s.CompleteOperation(ctx, st.OperationID, status); err != nil {
			s.logger.WarnContext(ctx, "failed to reconcile polled operation",
				"operation_id", st.OperationID, "error", err)
		}
	}
	return statuses, nil
}

// RecordOperation stores an externally supplied operation update.
func (s *Service) RecordOperation(ctx context.Context, u operation.Update) (*operation.Record, error) {
	if operation.NormalizeDomain(u.DomainName) == "" || u.OperationID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "domain and operationId are required")
	}
	if u.Status != "" && !u.Status.Valid() {
		return nil, dErrors.Newf(dErrors.CodeValidation, "unknown operation status %q", u.Status)
	}
	rec, err := s.store.Upsert(ctx, u)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store operation")
	}
	return rec, nil
}

// ListOperations returns tracked records, optionally filtered by wallet.
func (s *Service) ListOperations(ctx context.Context, wallet string) ([]*operation.Record, error) {
	recs, err := s.store.List(ctx, operation.Filter{WalletAddress: wallet})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list operations")
	}
	return recs, nil
}
