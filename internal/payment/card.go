package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const defaultProcessorURL = "https://api.stripe.com"

// CardClient creates payment intents with the card processor. Confirmation
// arrives asynchronously through the signed webhook, never from here.
type CardClient struct {
	secretKey  string
	baseURL    string
	httpClient *retryablehttp.Client
}

// Intent is the processor's payment intent, reduced to what the checkout
// needs.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// NewCardClient creates a processor client with the given secret key.
func NewCardClient(secretKey string) *CardClient {
	return newCardClient(secretKey, defaultProcessorURL)
}

func newCardClient(secretKey, baseURL string) *CardClient {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &CardClient{
		secretKey:  secretKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// CreateIntent registers a payment intent for the amount in minor units
// and returns the intent with its client secret. The order id travels in
// the intent metadata and comes back in the webhook event.
func (c *CardClient) CreateIntent(ctx context.Context, amountMinor int64, currency, orderID string) (*Intent, error) {
	if amountMinor <= 0 {
		return nil, ErrInvalidAmount
	}
	if currency == "" {
		currency = "usd"
	}

	form := url.Values{}
	form.Set("amount", strconv.FormatInt(amountMinor, 10))
	form.Set("currency", currency)
	form.Set("metadata[orderId]", orderID)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/payment_intents", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessor, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: status %d: %s", ErrProcessor, resp.StatusCode, string(body))
	}

	var intent Intent
	if err := json.NewDecoder(resp.Body).Decode(&intent); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	return &intent, nil
}
