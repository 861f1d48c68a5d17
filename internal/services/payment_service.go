package services

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Settlement provider transaction statuses.
const (
	PayStatusConfirmed = "Confirmed"
	PayStatusPending   = "Pending"
	PayStatusFailed    = "Failed"
	PayStatusExpired   = "Expired"
)

// PaymentProviderError is a failed call against the settlement network.
// Callers decide how to react; the engine never retries or swallows these.
type PaymentProviderError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *PaymentProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsAuthError reports whether the failure calls for credential rotation.
func (e *PaymentProviderError) IsAuthError() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// PaymentRequest is the result of opening a payment channel for an order.
type PaymentRequest struct {
	RequestURI     string `json:"request_uri"`
	TransactionID  string `json:"tx_id"`
	Network        string `json:"network"`
	SimulationMode bool   `json:"simulation_mode"`
}

// StatusResult is one confirmation read for a transaction.
type StatusResult struct {
	TransactionID   string `json:"tx_id"`
	Status          string `json:"status"`
	Confirmations   int    `json:"confirmations"`
	TransactionHash string `json:"tx_hash,omitempty"`
	SimulationMode  bool   `json:"simulation_mode"`
	Refreshed       bool   `json:"refreshed,omitempty"`
}

// PaymentEngine is the settlement-network surface the rest of the pipeline
// programs against. PaymentService is the production implementation; tests
// substitute scripted engines.
type PaymentEngine interface {
	RequestPayment(ctx context.Context, orderID string, amount float64, contact string) (*PaymentRequest, error)
	CheckStatus(ctx context.Context, txID string) (*StatusResult, error)
	ForceRefresh(ctx context.Context, txID, orderID string) (*StatusResult, error)
	SimulationMode() bool
}

// PaymentService talks to the external settlement network. With no base URL
// or API key configured it runs in deterministic simulation mode, so dev and
// test environments need no network at all.
type PaymentService struct {
	baseURL string
	apiKey  string
	network string
	client  *http.Client
}

// NewPaymentService builds the engine. Pass empty baseURL/apiKey for
// simulation mode.
func NewPaymentService(baseURL, apiKey, network string) *PaymentService {
	if network == "" {
		network = "simnet"
	}
	return &PaymentService{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		network: network,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SimulationMode reports whether the engine is running without a provider.
func (s *PaymentService) SimulationMode() bool {
	return s.baseURL == "" || s.apiKey == ""
}

// RequestPayment opens a payment channel for the order. Simulation mode
// derives the transaction id and request URI from the inputs, so identical
// inputs always produce identical results.
func (s *PaymentService) RequestPayment(ctx context.Context, orderID string, amount float64, contact string) (*PaymentRequest, error) {
	if s.SimulationMode() {
		txID := simTransactionID(orderID, amount, contact)
		return &PaymentRequest{
			RequestURI:     fmt.Sprintf("settle://%s/%s?amount=%.2f", s.network, txID, amount),
			TransactionID:  txID,
			Network:        s.network,
			SimulationMode: true,
		}, nil
	}

	var out PaymentRequest
	err := s.doRequest(ctx, http.MethodPost, "/v1/payment-requests", map[string]any{
		"order_id": orderID,
		"amount":   amount,
		"contact":  contact,
		"network":  s.network,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckStatus reads the confirmation state of a transaction.
//
// Simulation rule: a transaction id ending in an even hex digit is Confirmed
// with 6 confirmations and a derived hash; everything else is Pending with 0.
func (s *PaymentService) CheckStatus(ctx context.Context, txID string) (*StatusResult, error) {
	if s.SimulationMode() {
		return simStatus(txID), nil
	}

	var out StatusResult
	if err := s.doRequest(ctx, http.MethodGet, "/v1/transactions/"+txID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ForceRefresh asks the provider to re-resolve a possibly stale transaction.
func (s *PaymentService) ForceRefresh(ctx context.Context, txID, orderID string) (*StatusResult, error) {
	if s.SimulationMode() {
		res := simStatus(txID)
		res.Refreshed = true
		return res, nil
	}

	var out StatusResult
	err := s.doRequest(ctx, http.MethodPost, "/v1/transactions/"+txID+"/refresh", map[string]any{
		"order_id": orderID,
	}, &out)
	if err != nil {
		return nil, err
	}
	out.Refreshed = true
	return &out, nil
}

func (s *PaymentService) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal payment request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build payment request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return &PaymentProviderError{StatusCode: 0, Message: err.Error(), Endpoint: path}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &PaymentProviderError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(data)),
			Endpoint:   path,
		}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode payment response from %s: %w", path, err)
		}
	}
	return nil
}

func simTransactionID(orderID string, amount float64, contact string) string {
	digest := sha256.Sum256([]byte(fmt.Sprintf("%s|%.2f|%s", orderID, amount, contact)))
	return hex.EncodeToString(digest[:])[:24]
}

func simStatus(txID string) *StatusResult {
	res := &StatusResult{
		TransactionID:  txID,
		Status:         PayStatusPending,
		SimulationMode: true,
	}
	if txID == "" {
		return res
	}

	last := txID[len(txID)-1]
	digit, ok := hexDigit(last)
	if ok && digit%2 == 0 {
		hash := sha256.Sum256([]byte("receipt|" + txID))
		res.Status = PayStatusConfirmed
		res.Confirmations = 6
		res.TransactionHash = hex.EncodeToString(hash[:])
	}
	return res
}

func hexDigit(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	}
	return 0, false
}
