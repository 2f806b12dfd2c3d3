// Package fiscal talks to the remote TSE (technical security device) that
// signs point-of-sale transactions.  Client speaks the fiskaly-style
// KassenSichV HTTP API; Signer resolves an organization's credentials and
// turns a sale into a signed receipt.
package fiscal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/studio-pos/internal/utils"
)

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// tokenSlack renews access tokens shortly before they expire.
const tokenSlack = 30 * time.Second

// APIError is returned when the signer answers with a non-2xx status.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fiscal %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// Credentials identify an organization's TSS and register client.
type Credentials struct {
	APIKey    string
	APISecret string
	TSSID     string
	ClientID  string
}

// Client is a small HTTP client for one set of credentials.  It caches the
// access token and is safe for concurrent use.
type Client struct {
	baseURL    string
	http       *http.Client
	maxRetries uint
	creds      Credentials

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

// NewClient returns a Client.  timeout bounds every single HTTP attempt
// and maxRetries bounds the additional attempts after a transient failure.
func NewClient(baseURL string, timeout time.Duration, maxRetries uint, creds Credentials) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: timeout},
		maxRetries: maxRetries,
		creds:      creds,
	}
}

// VATAmount is the gross amount booked under one VAT category.
type VATAmount struct {
	VATRate string `json:"vat_rate"`
	Amount  string `json:"amount"`
}

// PaymentAmount is the gross amount paid with one payment type.
type PaymentAmount struct {
	PaymentType string `json:"payment_type"`
	Amount      string `json:"amount"`
}

// Receipt is the standard_v1 receipt payload of a finished transaction.
type Receipt struct {
	ReceiptType           string          `json:"receipt_type"`
	AmountsPerVATRate     []VATAmount     `json:"amounts_per_vat_rate"`
	AmountsPerPaymentType []PaymentAmount `json:"amounts_per_payment_type"`
}

type txSchema struct {
	StandardV1 struct {
		Receipt Receipt `json:"receipt"`
	} `json:"standard_v1"`
}

type txRequest struct {
	State    string    `json:"state"`
	ClientID string    `json:"client_id"`
	Schema   *txSchema `json:"schema,omitempty"`
}

// TxResponse is the part of the signer's transaction resource we keep.
type TxResponse struct {
	Number          int64  `json:"number"`
	State           string `json:"state"`
	TimeEnd         int64  `json:"time_end"`
	TSSSerialNumber string `json:"tss_serial_number"`
	Signature       struct {
		Value     string `json:"value"`
		Algorithm string `json:"algorithm"`
		Counter   int64  `json:"counter"`
	} `json:"signature"`
}

// StartTransaction opens transaction txID on the TSS (revision 1).
func (c *Client) StartTransaction(ctx context.Context, txID string) error {
	in := txRequest{State: "ACTIVE", ClientID: c.creds.ClientID}
	return c.do(ctx, "start transaction", http.MethodPut, c.txPath(txID, 1), in, nil)
}

// FinishTransaction closes transaction txID with the receipt and returns
// the signed result (revision 2).  Before a retry it reads the transaction
// back, so a finish that reached the device but lost its response is not
// signed a second time.
func (c *Client) FinishTransaction(ctx context.Context, txID string, r Receipt) (*TxResponse, error) {
	in := txRequest{State: "FINISHED", ClientID: c.creds.ClientID, Schema: &txSchema{}}
	in.Schema.StandardV1.Receipt = r
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var out TxResponse
	sent := false
	_, err = utils.Retry(ctx, c.maxRetries, func() (struct{}, error) {
		token, err := c.accessToken(ctx)
		if err != nil {
			return struct{}{}, err
		}
		if sent {
			var cur TxResponse
			// read failures fall through to a normal retry
			if c.attempt(ctx, "read transaction", http.MethodGet, c.txReadPath(txID), token, nil, &cur) == nil && cur.State == "FINISHED" {
				out = cur
				return struct{}{}, nil
			}
		}
		sent = true
		return struct{}{}, c.attempt(ctx, "finish transaction", http.MethodPut, c.txPath(txID, 2), token, body, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) txPath(txID string, revision int) string {
	return fmt.Sprintf("/tss/%s/tx/%s?tx_revision=%d", c.creds.TSSID, txID, revision)
}

func (c *Client) txReadPath(txID string) string {
	return fmt.Sprintf("/tss/%s/tx/%s", c.creds.TSSID, txID)
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	_, err = utils.Retry(ctx, c.maxRetries, func() (struct{}, error) {
		token, err := c.accessToken(ctx)
		if err != nil {
			return struct{}{}, err
		}
		return struct{}{}, c.attempt(ctx, op, method, path, token, body, out)
	})
	return err
}

// attempt performs one HTTP exchange.  Errors that a retry cannot fix are
// wrapped with utils.Permanent.
func (c *Client) attempt(ctx context.Context, op, method, path, token string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return utils.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fiscal %s: %w", op, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("fiscal %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
		switch {
		case resp.StatusCode == http.StatusUnauthorized && token != "":
			// token revoked or expired early; fetch a new one on the next attempt
			c.resetToken()
			return apiErr
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			return apiErr
		default:
			return utils.Permanent(apiErr)
		}
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return utils.Permanent(fmt.Errorf("fiscal %s: decode response: %w", op, err))
		}
	}
	return nil
}

type authRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"access_token_expires_in"`
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Add(tokenSlack).Before(c.tokenExp) {
		return c.token, nil
	}
	body, err := json.Marshal(authRequest{APIKey: c.creds.APIKey, APISecret: c.creds.APISecret})
	if err != nil {
		return "", err
	}
	var out authResponse
	if err := c.attempt(ctx, "auth", http.MethodPost, "/auth", "", body, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", utils.Permanent(fmt.Errorf("fiscal auth: empty access token"))
	}
	c.token = out.AccessToken
	c.tokenExp = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second)
	return c.token, nil
}

func (c *Client) resetToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}
