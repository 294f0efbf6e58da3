package numeric

import (
	"fmt"
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseUnits(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int32
		want     string
	}{
		{"1", 18, "1000000000000000000"},
		{"0.5", 6, "500000"},
		{"100", 0, "100"},
		{"0.000001", 6, "1"},
		{"1.9999999", 6, "1999999"},
		{"0", 18, "0"},
	}

	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.amount)
		if err != nil {
			t.Fatalf("bad test amount %q: %v", tc.amount, err)
		}
		got := ParseUnits(amount, tc.decimals)
		if got.String() != tc.want {
			t.Fatalf("ParseUnits(%s, %d) = %s, want %s", tc.amount, tc.decimals, got, tc.want)
		}
	}
}

func TestFormatUnitsNil(t *testing.T) {
	if got := FormatUnits(nil, 18); !got.IsZero() {
		t.Fatalf("FormatUnits(nil) = %s, want 0", got)
	}
}

func TestUnitsRoundTrip(t *testing.T) {
	amounts := []string{"0", "1", "0.1", "123.456789", "0.000000000000000001", "99999999.9"}

	for _, s := range amounts {
		for d := int32(0); d <= MaxDecimals; d++ {
			amount, err := decimal.NewFromString(s)
			if err != nil {
				t.Fatalf("bad amount %q: %v", s, err)
			}
			if int32(-amount.Exponent()) > d {
				continue // not representable at this precision
			}
			back := FormatUnits(ParseUnits(amount, d), d)
			if !back.Equal(amount) {
				t.Fatalf("round trip %s at %d decimals: got %s", s, d, back)
			}
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"100", "100", true},
		{"1,5", "1.5", true},
		{"1,000,000.25", "1000000.25", true},
		{"  42.0 ", "42", true},
		{"", "", false},
		{"abc", "", false},
	}

	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseAmount(%q) error = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if !tc.ok {
			continue
		}
		want, _ := decimal.NewFromString(tc.want)
		if !got.Equal(want) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestParseUnitsLargeValues(t *testing.T) {
	amount := decimal.RequireFromString("123456789.123456789123456789")
	got := ParseUnits(amount, 18)
	want, ok := new(big.Int).SetString("123456789123456789123456789", 10)
	if !ok {
		t.Fatal("bad want literal")
	}
	if got.Cmp(want) != 0 {
		t.Fatalf("got %s, want %s", got, want)
	}
	if s := fmt.Sprint(FormatUnits(got, 18)); s != amount.String() {
		t.Fatalf("format back = %s, want %s", s, amount)
	}
}
