package quant

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPriceString(t *testing.T) {
	cases := []struct {
		p    PriceMicros
		want string
	}{
		{10_250_000, "10.25"},
		{1_000_000, "1"},
		{-500_000, "-0.5"},
		{1, "0.000001"},
		{0, "0"},
	}
	for _, c := range cases {
		if got := c.p.String(); got != c.want {
			t.Errorf("%d.String() = %q, want %q", int64(c.p), got, c.want)
		}
	}
}

func TestPriceFromDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want PriceMicros
	}{
		{"10.25", 10_250_000},
		{"0.01", 10_000},
		{"100", 100_000_000},
		{"0.0000019", 1}, // truncates below the sixth place
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := PriceFromDecimal(d); got != c.want {
			t.Errorf("PriceFromDecimal(%s) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestDecimalRoundTrip(t *testing.T) {
	p := PriceMicros(12_345_678)
	if got := PriceFromDecimal(p.Decimal()); got != p {
		t.Fatalf("round trip changed %d to %d", p, got)
	}
}

func TestFloatForDisplay(t *testing.T) {
	if got := PriceMicros(10_250_000).Float(); got != 10.25 {
		t.Fatal(got)
	}
	if got := FormatPrice(10_250_000); got != "10.250000" {
		t.Fatal(got)
	}
}
