package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Swap statuses reported by the settlement service.
const (
	StatusWaitingBTC = "waiting_btc_payment"
	StatusWaitingETH = "waiting_eth_payment"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusExpired    = "expired"
)

const requestTimeout = 10 * time.Second

// IsTerminal reports whether a status ends the swap's lifecycle.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusExpired
}

// SwapRequest asks the settlement service for a BTC-to-ETH swap.
type SwapRequest struct {
	AmountBTC  string `json:"amountBtc"`
	AmountETH  string `json:"amountEth"`
	ETHAddress string `json:"ethAddress"`
}

// SwapResponse carries the Lightning invoice the user must pay.
type SwapResponse struct {
	LightningInvoice string `json:"lightningNetworkInvoice"`
}

// SwapDetails is the current state of an outstanding swap.
type SwapDetails struct {
	AmountBTC        string `json:"amountBtc"`
	AmountETH        string `json:"amountEth"`
	ETHAddress       string `json:"ethAddress"`
	LightningInvoice string `json:"btcLightningNetInvoice"`
	TxID             string `json:"txId,omitempty"`
	Status           string `json:"status"`
}

// Client talks to the Lightning swap settlement HTTP API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// CreateSwap registers a swap and returns the invoice to pay.
func (c *Client) CreateSwap(ctx context.Context, req SwapRequest) (SwapResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SwapResponse{}, fmt.Errorf("marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/swap", bytes.NewReader(body))
	if err != nil {
		return SwapResponse{}, fmt.Errorf("build swap request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var out SwapResponse
	if err := c.do(httpReq, &out); err != nil {
		return SwapResponse{}, fmt.Errorf("create swap: %w", err)
	}
	return out, nil
}

// GetSwap returns the current state of a swap by its payment hash.
func (c *Client) GetSwap(ctx context.Context, id string) (SwapDetails, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/swap/"+id, nil)
	if err != nil {
		return SwapDetails{}, fmt.Errorf("build swap status request: %w", err)
	}

	var out SwapDetails
	if err := c.do(httpReq, &out); err != nil {
		return SwapDetails{}, fmt.Errorf("get swap %s: %w", id, err)
	}
	return out, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
