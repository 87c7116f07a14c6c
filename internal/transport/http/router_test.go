package httptransport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"nameclaim/internal/operation"
	"nameclaim/internal/order"
	"nameclaim/internal/order/mocks"
	"nameclaim/internal/payment"
	"nameclaim/internal/webhook"
	"nameclaim/pkg/platform/retry"
)

const (
	testAdminToken      = "admin-secret"
	testRegistrarSecret = "ud-api-key"
	testWebhookSecret   = "whsec_test"
	testWallet          = "0xabc123"
)

// stack bundles everything a handler test needs to drive the full route
// table against real services with a mocked registrar.
type stack struct {
	router    http.Handler
	registrar *mocks.MockClient
	store     *operation.InMemoryStore
	payments  *payment.Service
	processor *fakeProcessor
}

func newStack(t *testing.T) *stack {
	t.Helper()

	ctrl := gomock.NewController(t)
	reg := mocks.NewMockClient(ctrl)
	store := operation.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	orders := order.NewService(reg, store,
		order.WithLogger(logger),
		order.WithRetryPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}),
	)

	processor := newFakeProcessor()
	payments := payment.NewService(processor, payment.NewInMemoryIntentStore(), 2*time.Minute, testWebhookSecret,
		payment.WithLogger(logger))

	h := NewHandler(orders, payments, webhook.NewMemoryDeduper(time.Hour), testRegistrarSecret, logger)
	router := NewRouter(h, RouterConfig{AdminToken: testAdminToken}, logger)

	return &stack{
		router:    router,
		registrar: reg,
		store:     store,
		payments:  payments,
		processor: processor,
	}
}

// fakeProcessor is an in-memory payment.Client.
type fakeProcessor struct {
	intents map[string]*payment.ProcessorIntent
	nextID  int
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{intents: make(map[string]*payment.ProcessorIntent)}
}

func (f *fakeProcessor) CreateIntent(_ context.Context, amountCents int64, metadata map[string]string) (*payment.ProcessorIntent, error) {
	f.nextID++
	intent := &payment.ProcessorIntent{
		ID:           fmt.Sprintf("pi_%d", f.nextID),
		ClientSecret: fmt.Sprintf("secret_%d", f.nextID),
		Status:       "requires_payment_method",
		Amount:       amountCents,
		Metadata:     metadata,
	}
	f.intents[intent.ID] = intent
	return intent, nil
}

func (f *fakeProcessor) GetIntent(_ context.Context, intentID string) (*payment.ProcessorIntent, error) {
	if intent, ok := f.intents[intentID]; ok {
		return intent, nil
	}
	return nil, &payment.Error{StatusCode: 404, Message: "no such intent"}
}

func (f *fakeProcessor) succeed(intentID string) {
	if intent, ok := f.intents[intentID]; ok {
		intent.Status = payment.StatusSucceeded
	}
}
