package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// The processor signs webhooks with a header of the form
// "t=<unix>,v1=<hex hmac>", where the HMAC-SHA256 covers "<t>.<raw body>"
// keyed with the endpoint's webhook secret.

// SignWebhook produces a signature header for a raw body. Tests and the
// processor fake use it; production traffic arrives already signed.
func SignWebhook(rawBody []byte, timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(rawBody)
	return fmt.Sprintf("t=%d,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}

// VerifyWebhookSignature checks an inbound processor signature header in
// constant time. Any body mutation or foreign secret fails the check.
func VerifyWebhookSignature(rawBody []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}

	var timestamp string
	var signature string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			signature = v
		}
	}
	if timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s.", timestamp)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
