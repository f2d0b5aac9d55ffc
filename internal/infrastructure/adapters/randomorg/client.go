// Package randomorg calls the Random.org signed JSON-RPC API for
// verifiable raffle draws. The signed response is stored with the raffle
// so third parties can verify the outcome against Random.org's key.
package randomorg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/raffle-service/raffle_service/internal/domain/entities"
	"github.com/raffle-service/raffle_service/pkg/circuitbreaker"
)

// Client calls the Random.org Signed API
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a Random.org client
func NewClient(apiURL, apiKey string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig("random-org")),
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      int         `json:"id"`
}

type signedIntegersParams struct {
	APIKey      string `json:"apiKey"`
	N           int    `json:"n"`
	Min         int    `json:"min"`
	Max         int    `json:"max"`
	Replacement bool   `json:"replacement"`
}

type rpcResponse struct {
	Result *struct {
		Random struct {
			Data         []int `json:"data"`
			SerialNumber int64 `json:"serialNumber"`
		} `json:"random"`
		Signature string `json:"signature"`
	} `json:"result,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// SignedIntBetween draws one signed random integer in [min, max]
func (c *Client) SignedIntBetween(ctx context.Context, min, max int) (*entities.DrawResult, error) {
	payload := rpcRequest{
		JSONRPC: "2.0",
		Method:  "generateSignedIntegers",
		Params: signedIntegersParams{
			APIKey:      c.apiKey,
			N:           1,
			Min:         min,
			Max:         max,
			Replacement: true,
		},
		ID: 1,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode draw request: %w", err)
	}

	var raw []byte
	err = c.breaker.Execute(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		raw, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("random.org request failed: %w", err)
	}

	var rpc rpcResponse
	if err := json.Unmarshal(raw, &rpc); err != nil {
		return nil, fmt.Errorf("failed to decode random.org response: %w", err)
	}
	if rpc.Error != nil {
		return nil, fmt.Errorf("random.org error %d: %s", rpc.Error.Code, rpc.Error.Message)
	}
	if rpc.Result == nil || len(rpc.Result.Random.Data) == 0 {
		return nil, fmt.Errorf("random.org returned no data")
	}

	return &entities.DrawResult{
		WinnerNumber: rpc.Result.Random.Data[0],
		SerialNumber: rpc.Result.Random.SerialNumber,
		Signature:    rpc.Result.Signature,
		RawResponse:  raw,
	}, nil
}
