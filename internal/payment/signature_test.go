package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWebhookSignature(t *testing.T) {
	secret := "whsec_test_secret"
	body := []byte(`{"type":"payment_intent.succeeded","data":{"object":{"id":"pi_1"}}}`)
	header := SignWebhook(body, 1748780400, secret)

	t.Run("valid header verifies", func(t *testing.T) {
		assert.True(t, VerifyWebhookSignature(body, header, secret))
	})

	t.Run("mutated body fails", func(t *testing.T) {
		tampered := append([]byte{}, body...)
		tampered[len(tampered)-2] = 'X'
		assert.False(t, VerifyWebhookSignature(tampered, header, secret))
	})

	t.Run("foreign secret fails", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature(body, header, "whsec_other"))
	})

	t.Run("timestamp is covered by the signature", func(t *testing.T) {
		other := SignWebhook(body, 1748780401, secret)
		assert.NotEqual(t, header, other)
	})

	t.Run("malformed headers fail closed", func(t *testing.T) {
		assert.False(t, VerifyWebhookSignature(body, "", secret))
		assert.False(t, VerifyWebhookSignature(body, "t=123", secret))
		assert.False(t, VerifyWebhookSignature(body, "v1=deadbeef", secret))
		assert.False(t, VerifyWebhookSignature(body, "not a signature", secret))
		assert.False(t, VerifyWebhookSignature(body, header, ""))
	})
}
