package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultBaseURL is the public Hermes endpoint serving Pyth price updates.
const DefaultBaseURL = "https://hermes.pyth.network"

const requestTimeout = 10 * time.Second

// Price is one parsed mark price.
type Price struct {
	FeedID string
	Value  decimal.Decimal
}

// Client fetches latest prices from a Hermes-style price feed service.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
	}
}

type latestPriceResponse struct {
	Parsed []struct {
		ID    string `json:"id"`
		Price struct {
			Price string `json:"price"`
			Expo  int32  `json:"expo"`
		} `json:"price"`
	} `json:"parsed"`
}

// LatestPrices fetches the latest price for each feed id, keyed by the
// 0x-prefixed lowercase id. Unknown feeds are simply absent from the result.
func (c *Client) LatestPrices(ctx context.Context, feedIDs []string) (map[string]Price, error) {
	if len(feedIDs) == 0 {
		return map[string]Price{}, nil
	}

	query := url.Values{}
	for _, id := range feedIDs {
		query.Add("ids[]", id)
	}
	query.Set("parsed", "true")

	endpoint := fmt.Sprintf("%s/v2/updates/price/latest?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build price request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("price service status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed latestPriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode price response: %w", err)
	}

	out := make(map[string]Price, len(parsed.Parsed))
	for _, update := range parsed.Parsed {
		raw, err := decimal.NewFromString(update.Price.Price)
		if err != nil {
			return nil, fmt.Errorf("parse price for feed %s: %w", update.ID, err)
		}
		feedID := normalizeFeedID(update.ID)
		out[feedID] = Price{
			FeedID: feedID,
			Value:  raw.Shift(update.Price.Expo),
		}
	}
	return out, nil
}

func normalizeFeedID(id string) string {
	id = strings.ToLower(id)
	if !strings.HasPrefix(id, "0x") {
		id = "0x" + id
	}
	return id
}
