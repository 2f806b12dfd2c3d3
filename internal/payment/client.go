// Package payment is a minimal Mollie v2 API client covering what the
// webhook reconciler and the payment settings screens need.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-pos/internal/utils"
)

// DefaultBaseURL is the Mollie v2 API root.
const DefaultBaseURL = "https://api.mollie.com/v2"

const maxResponseBytes = 1 << 20

// ErrUnauthorized is returned when Mollie rejects the API key.
var ErrUnauthorized = errors.New("payment provider rejected api key")

// APIError carries a non-2xx answer from Mollie.
type APIError struct {
	StatusCode int
	Title      string
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("mollie: status %d: %s: %s", e.StatusCode, e.Title, e.Detail)
	}
	return fmt.Sprintf("mollie: status %d: %s", e.StatusCode, e.Body)
}

// Unwrap maps 401 answers to ErrUnauthorized.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Config describes how to reach Mollie for one organization.
type Config struct {
	APIKey     string
	TestMode   bool
	BaseURL    string
	Timeout    time.Duration
	MaxRetries uint
}

// Client is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client.  Empty BaseURL selects DefaultBaseURL and a
// zero Timeout selects ten seconds.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Amount is Mollie's money representation.
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// Decimal parses Value.
func (a Amount) Decimal() (decimal.Decimal, error) {
	return decimal.NewFromString(a.Value)
}

// Payment is the authoritative state of a payment at Mollie.
type Payment struct {
	ID          string          `json:"id"`
	Mode        string          `json:"mode"`
	Status      string          `json:"status"`
	Method      string          `json:"method"`
	Amount      Amount          `json:"amount"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"createdAt"`
	PaidAt      *time.Time      `json:"paidAt"`
	Metadata    json.RawMessage `json:"metadata"`
}

// TransactionID returns the register transaction the payment was created
// for, taken from metadata.transaction_id.  Empty when absent.
func (p *Payment) TransactionID() string {
	if len(p.Metadata) == 0 {
		return ""
	}
	var md struct {
		TransactionID  string `json:"transaction_id"`
		TransactionID2 string `json:"transactionId"`
	}
	if err := json.Unmarshal(p.Metadata, &md); err != nil {
		return ""
	}
	if md.TransactionID != "" {
		return md.TransactionID
	}
	return md.TransactionID2
}

// Method is a payment method enabled on the profile.
type Method struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Status      string `json:"status,omitempty"`
	Image       struct {
		SVG string `json:"svg"`
	} `json:"image"`
}

// GetPayment fetches payment id.
func (c *Client) GetPayment(ctx context.Context, id string) (*Payment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("mollie: empty payment id")
	}
	var p Payment
	if err := c.get(ctx, "/payments/"+url.PathEscape(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListMethods returns the payment methods enabled for the API key.
func (c *Client) ListMethods(ctx context.Context) ([]Method, error) {
	var out struct {
		Embedded struct {
			Methods []Method `json:"methods"`
		} `json:"_embedded"`
	}
	if err := c.get(ctx, "/methods", &out); err != nil {
		return nil, err
	}
	if out.Embedded.Methods == nil {
		return []Method{}, nil
	}
	return out.Embedded.Methods, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if c.cfg.APIKey == "" {
		return ErrUnauthorized
	}
	_, err := utils.Retry(ctx, c.cfg.MaxRetries, func() (struct{}, error) {
		return struct{}{}, c.attempt(ctx, path, out)
	})
	return err
}

func (c *Client) attempt(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return utils.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/hal+json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("mollie: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("mollie: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		var body struct {
			Title  string `json:"title"`
			Detail string `json:"detail"`
		}
		if json.Unmarshal(raw, &body) == nil {
			apiErr.Title, apiErr.Detail = body.Title, body.Detail
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return apiErr
		}
		return utils.Permanent(apiErr)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return utils.Permanent(fmt.Errorf("mollie: decode response: %w", err))
	}
	return nil
}
