package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// webhookTolerance bounds how old a signed webhook timestamp may be,
// limiting replay of captured deliveries.
const webhookTolerance = 5 * time.Minute

// EventPaymentSucceeded is the only webhook event type that mutates order
// state.
const EventPaymentSucceeded = "payment_intent.succeeded"

// Event is the processor's webhook payload, reduced to the fields the
// order flow reads.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Status   string            `json:"status"`
			Metadata map[string]string `json:"metadata"`
			Charges  struct {
				Data []struct {
					ReceiptURL string `json:"receipt_url"`
				} `json:"data"`
			} `json:"charges"`
		} `json:"object"`
	} `json:"data"`
}

// OrderID returns the order id carried in the intent metadata, if any.
func (e *Event) OrderID() string {
	return e.Data.Object.Metadata["orderId"]
}

// ReceiptURL returns the first charge receipt URL, if any.
func (e *Event) ReceiptURL() string {
	if len(e.Data.Object.Charges.Data) == 0 {
		return ""
	}
	return e.Data.Object.Charges.Data[0].ReceiptURL
}

// WebhookVerifier checks processor signatures over raw webhook bodies.
type WebhookVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewWebhookVerifier creates a verifier for the shared webhook signing
// secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret), now: time.Now}
}

// VerifyAndParse checks the signature header against the raw body and, on
// success, decodes the event. The header has the processor's
// "t=<unix>,v1=<hex>" shape; the signed message is "<t>.<body>". Any
// failure must reject the delivery before state is touched.
func (v *WebhookVerifier) VerifyAndParse(body []byte, sigHeader string) (*Event, error) {
	timestamp, signatures, err := parseSignatureHeader(sigHeader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}

	age := v.now().Sub(time.Unix(timestamp, 0))
	if age > webhookTolerance || age < -webhookTolerance {
		return nil, fmt.Errorf("%w: timestamp outside tolerance", ErrBadSignature)
	}

	mac := hmac.New(sha256.New, v.secret)
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(body)
	expected := mac.Sum(nil)

	verified := false
	for _, sig := range signatures {
		decoded, err := hex.DecodeString(sig)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			verified = true
			break
		}
	}
	if !verified {
		return nil, ErrBadSignature
	}

	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	return &event, nil
}

func parseSignatureHeader(header string) (int64, []string, error) {
	if header == "" {
		return 0, nil, fmt.Errorf("missing signature header")
	}

	var (
		timestamp  int64
		signatures []string
	)

	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			return 0, nil, fmt.Errorf("malformed signature header")
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, nil, fmt.Errorf("malformed timestamp")
			}
			timestamp = ts
		case "v1":
			signatures = append(signatures, value)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return 0, nil, fmt.Errorf("incomplete signature header")
	}

	return timestamp, signatures, nil
}
