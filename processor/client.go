package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sony/gobreaker"

	"escrow-backend/utils"
)

// TransferRequest is a single fund movement toward a connected account.
// Amount is in integer minor units; GroupKey doubles as the idempotency key
// so the processor recognizes repeats of the same logical transfer.
type TransferRequest struct {
	AmountMinor int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Destination string            `json:"destination"`
	GroupKey    string            `json:"transfer_group"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Transfer is the processor's confirmation of a created transfer.
type Transfer struct {
	ID          string `json:"id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Destination string `json:"destination"`
	GroupKey    string `json:"transfer_group"`
}

// Client is the contract this core expects from the payment processor.
type Client interface {
	// CreateTransfer moves funds. Errors are either *ProcessorError
	// (definitive rejection) or *AmbiguousError (unknown outcome).
	CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error)
	// LookupTransfer finds a previously created transfer by its group key,
	// used to reconcile ambiguous outcomes. Returns ErrTransferNotFound when
	// the processor never recorded one.
	LookupTransfer(ctx context.Context, groupKey string) (Transfer, error)
}

// HTTPClient talks to the processor's REST API with a bounded per-call
// timeout and a circuit breaker, so a degraded processor cannot pile up
// in-flight transfer calls.
type HTTPClient struct {
	baseURL   string
	secretKey string
	http      *http.Client
	breaker   *gobreaker.CircuitBreaker
}

func NewHTTPClient(baseURL, secretKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL:   baseURL,
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "payment-processor",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

// NewHTTPClientFromEnv builds the client from PROCESSOR_URL,
// PROCESSOR_SECRET_KEY and PROCESSOR_TIMEOUT (seconds).
func NewHTTPClientFromEnv() (*HTTPClient, error) {
	baseURL := os.Getenv("PROCESSOR_URL")
	secret := os.Getenv("PROCESSOR_SECRET_KEY")
	if baseURL == "" || secret == "" {
		return nil, errors.New("PROCESSOR_URL and PROCESSOR_SECRET_KEY must be set")
	}
	timeout := time.Duration(utils.EnvIntOrDefault("PROCESSOR_TIMEOUT", 15)) * time.Second
	return NewHTTPClient(baseURL, secret, timeout), nil
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *HTTPClient) CreateTransfer(ctx context.Context, req TransferRequest) (Transfer, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Transfer{}, fmt.Errorf("marshal transfer request: %w", err)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transfers", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Idempotency-Key", req.GroupKey)
		return c.http.Do(httpReq)
	})
	if err != nil {
		// Timeouts, dropped connections and an open breaker all leave the
		// outcome unknown: the request may have reached the processor.
		return Transfer{}, &AmbiguousError{GroupKey: req.GroupKey, Err: err}
	}

	resp := res.(*http.Response)
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Transfer{}, &AmbiguousError{
			GroupKey: req.GroupKey,
			Err:      fmt.Errorf("processor returned %s", resp.Status),
		}
	}
	if resp.StatusCode >= 400 {
		var apiErr apiError
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := apiErr.Error.Message
		if msg == "" {
			msg = resp.Status
		}
		return Transfer{}, &ProcessorError{Code: apiErr.Error.Code, Message: msg}
	}

	var tr Transfer
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return Transfer{}, &AmbiguousError{GroupKey: req.GroupKey, Err: fmt.Errorf("decode response: %w", err)}
	}
	return tr, nil
}

func (c *HTTPClient) LookupTransfer(ctx context.Context, groupKey string) (Transfer, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transfers?transfer_group="+groupKey, nil)
	if err != nil {
		return Transfer{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Transfer{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Transfer{}, ErrTransferNotFound
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Transfer{}, fmt.Errorf("lookup transfer %s: %s: %s", groupKey, resp.Status, string(b))
	}

	var list struct {
		Data []Transfer `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return Transfer{}, fmt.Errorf("decode lookup response: %w", err)
	}
	if len(list.Data) == 0 {
		return Transfer{}, ErrTransferNotFound
	}
	return list.Data[0], nil
}
