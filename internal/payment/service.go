package payment

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"time"

	"nameclaim/internal/operation"
	dErrors "nameclaim/pkg/domain-errors"
	"nameclaim/pkg/platform/sentinel"
	"nameclaim/pkg/requestcontext"
)

// Service orchestrates payment intents around the processor client.
type Service struct {
	client        Client
	intents       IntentStore
	window        time.Duration
	webhookSecret string
	logger        *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// NewService builds the payment service. window is the checkout validity
// period measured from the client-supplied checkout start timestamp.
func NewService(client Client, intents IntentStore, window time.Duration, webhookSecret string, opts ...Option) *Service {
	s := &Service{
		client:        client,
		intents:       intents,
		window:        window,
		webhookSecret: webhookSecret,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateIntentRequest carries the checkout context for a new intent.
type CreateIntentRequest struct {
	AmountCents   int64
	DomainNames   []string
	WalletAddress string
	CheckoutStart time.Time
}

// CreateIntent creates a processor payment intent for a checkout. The
// checkout window is evaluated against the request clock at call time: a
// request arriving after start+window is refused regardless of when the
// domains were reserved.
func (s *Service) CreateIntent(ctx context.Context, req CreateIntentRequest) (*Intent, error) {
	if req.AmountCents <= 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "amount is required")
	}
	if err := s.checkWindow(ctx, req.CheckoutStart); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	metadata := map[string]string{
		"domains": joinDomains(req.DomainNames),
		"wallet":  operation.NormalizeWallet(req.WalletAddress),
	}
	processorIntent, err := s.client.CreateIntent(ctx, req.AmountCents, metadata)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to create payment intent")
	}

	intent := &Intent{
		ID:            processorIntent.ID,
		ClientSecret:  processorIntent.ClientSecret,
		AmountCents:   req.AmountCents,
		DomainNames:   normalizeDomains(req.DomainNames),
		WalletAddress: operation.NormalizeWallet(req.WalletAddress),
		CheckoutStart: req.CheckoutStart,
		State:         StateAwaitingPayment,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.intents.Save(ctx, intent); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record payment intent")
	}

	s.logger.InfoContext(ctx, "payment intent created",
		"request_id", requestcontext.RequestID(ctx),
		"intent_id", intent.ID,
		"amount_cents", intent.AmountCents,
		"domains", len(intent.DomainNames),
	)
	return intent, nil
}

// VerifyResult is the outcome of a client-triggered verification.
type VerifyResult struct {
	Succeeded   bool
	AmountCents int64
	DomainNames []string
	Wallet      string
}

// VerifyIntent confirms a completed payment. The presented client secret
// must match the stored one (anti-tampering), and the processor must report
// the intent as succeeded. Verifying an already-verified intent is a no-op
// success so replays cannot double-drive the order flow.
func (s *Service) VerifyIntent(ctx context.Context, intentID, clientSecret string) (*VerifyResult, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment intent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment intent")
	}

	if subtle.ConstantTimeCompare([]byte(intent.ClientSecret), []byte(clientSecret)) != 1 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "client secret mismatch")
	}
	if intent.State == StatePaymentVerified {
		return s.result(intent), nil
	}
	if err := s.checkWindow(ctx, intent.CheckoutStart); err != nil {
		return nil, err
	}

	processorIntent, err := s.client.GetIntent(ctx, intentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "failed to fetch payment intent")
	}
	if processorIntent.Status != StatusSucceeded {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "payment not completed: status %q", processorIntent.Status)
	}

	verified, err := s.MarkVerified(ctx, intentID)
	if err != nil {
		return nil, err
	}
	return s.result(verified), nil
}

// FindIntent loads a stored intent.
func (s *Service) FindIntent(ctx context.Context, intentID string) (*Intent, error) {
	intent, err := s.intents.FindByID(ctx, intentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment intent not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load payment intent")
	}
	return intent, nil
}

// MarkVerified transitions an intent to PAYMENT_VERIFIED. Idempotent: an
// already-verified intent is returned unchanged.
func (s *Service) MarkVerified(ctx context.Context, intentID string) (*Intent, error) {
	return s.transition(ctx, intentID, StatePaymentVerified)
}

// MarkFailed transitions an intent to PAYMENT_FAILED.
func (s *Service) MarkFailed(ctx context.Context, intentID string) (*Intent, error) {
	return s.transition(ctx, intentID, StatePaymentFailed)
}

// MarkExpired transitions an intent to EXPIRED.
func (s *Service) MarkExpired(ctx context.Context, intentID string) (*Intent, error) {
	return s.transition(ctx, intentID, StateExpired)
}

// VerifyWebhookSignature checks an inbound processor webhook header.
func (s *Service) VerifyWebhookSignature(rawBody []byte, header string) error {
	if !VerifyWebhookSignature(rawBody, header, s.webhookSecret) {
		return dErrors.New(dErrors.CodeSignatureInvalid, "invalid payment webhook signature")
	}
	return nil
}

func (s *Service) transition(ctx context.Context, intentID string, to CheckoutState) (*Intent, error) {
	now := requestcontext.Now(ctx)
	intent, err := s.intents.Execute(ctx, intentID,
		func(i *Intent) error {
			if i.State == to {
				return nil
			}
			if !CanTransition(i.State, to) {
				return sentinel.ErrInvalidState
			}
			return nil
		},
		func(i *Intent) {
			if i.State != to {
				_ = i.Transition(to, now)
			}
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "payment intent not found")
		case errors.Is(err, sentinel.ErrInvalidState):
			return nil, dErrors.Newf(dErrors.CodeConflict, "checkout cannot move to %s", to)
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update payment intent")
		}
	}
	return intent, nil
}

func (s *Service) checkWindow(ctx context.Context, checkoutStart time.Time) error {
	if checkoutStart.IsZero() {
		return nil
	}
	now := requestcontext.Now(ctx)
	if now.After(checkoutStart.Add(s.window)) {
		return dErrors.New(dErrors.CodeExpired, "checkout window has expired")
	}
	return nil
}

func (s *Service) result(intent *Intent) *VerifyResult {
	return &VerifyResult{
		Succeeded:   intent.State == StatePaymentVerified,
		AmountCents: intent.AmountCents,
		DomainNames: intent.DomainNames,
		Wallet:      intent.WalletAddress,
	}
}

func normalizeDomains(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		if n := operation.NormalizeDomain(d); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func joinDomains(domains []string) string {
	joined := ""
	for i, d := range normalizeDomains(domains) {
		if i > 0 {
			joined += ","
		}
		joined += d
	}
	return joined
}
