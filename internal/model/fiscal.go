package model

import "time"

// FiscalSignature is the receipt data returned by the TSE once a
// transaction has been signed.  It is written once and never mutated.
type FiscalSignature struct {
	TransactionNumber int64     `json:"transaction_number"`
	SignatureCounter  int64     `json:"signature_counter"`
	SignatureValue    string    `json:"signature_value"`
	SignatureAlgo     string    `json:"signature_algorithm,omitempty"`
	TSSSerialNumber   string    `json:"tss_serial_number"`
	ClientID          string    `json:"client_id"`
	SignedAt          time.Time `json:"signed_at"`
}

// TSEConfig holds an organization's fiscal signer credentials.  Secret
// fields may be sealed at rest; the repository returns them opened.
type TSEConfig struct {
	OrganizationID string // tse_configs.organization_id
	APIKey         string // tse_configs.api_key
	APISecret      string // tse_configs.api_secret
	TSSID          string // tse_configs.tss_id
	ClientID       string // tse_configs.client_id
	Environment    string // tse_configs.environment (test|live)
	IsActive       bool   // tse_configs.is_active
}

// Usable reports whether the config carries everything needed to sign.
func (c *TSEConfig) Usable() bool {
	return c != nil && c.IsActive && c.APIKey != "" && c.APISecret != "" && c.TSSID != "" && c.ClientID != ""
}
