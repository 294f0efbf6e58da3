package oracle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLatestPrices(t *testing.T) {
	const feed = "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()["ids[]"]
		if len(ids) != 1 || ids[0] != feed {
			t.Errorf("unexpected ids query: %v", ids)
		}
		w.Header().Set("Content-Type", "application/json")
		// Hermes reports ids without the 0x prefix.
		w.Write([]byte(`{"parsed":[{"id":"ff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace","price":{"price":"250012345678","expo":-8}}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	prices, err := c.LatestPrices(context.Background(), []string{feed})
	if err != nil {
		t.Fatal(err)
	}

	price, ok := prices[feed]
	if !ok {
		t.Fatalf("feed missing from result: %v", prices)
	}
	want := decimal.RequireFromString("2500.12345678")
	if !price.Value.Equal(want) {
		t.Fatalf("price = %s, want %s", price.Value, want)
	}
}

func TestLatestPricesEmptyInput(t *testing.T) {
	c := NewClient("http://unused.invalid")
	prices, err := c.LatestPrices(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(prices) != 0 {
		t.Fatalf("expected empty result, got %v", prices)
	}
}

func TestLatestPricesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.LatestPrices(context.Background(), []string{"0xabc"}); err == nil {
		t.Fatal("expected error for 502 response")
	}
}
