package domain

import (
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// TickBand maps a price band to its tick size. Bands are evaluated in
// order; the first band whose Upper bound is at or above the price
// applies. A zero Upper bound means "no upper limit".
type TickBand struct {
	Upper quant.PriceMicros `json:"upper" yaml:"upper"`
	Tick  quant.PriceMicros `json:"tick" yaml:"tick"`
}

// Instrument carries the static trading rules for one symbol.
// Immutable after registration except for reference-price resets at
// auctions, applied by the exchange.
type Instrument struct {
	Symbol       string            `json:"symbol"`
	Name         string            `json:"name"`
	TickSize     quant.PriceMicros `json:"tick_size"`
	TickTable    []TickBand        `json:"tick_table,omitempty"` // optional, overrides TickSize
	LotSize      quant.Qty         `json:"lot_size"`
	MinQty       quant.Qty         `json:"min_qty"`
	MaxQty       quant.Qty         `json:"max_qty"`
	PriceBandPct int64             `json:"price_band_pct"` // percent around reference
	RefPrice     quant.PriceMicros `json:"ref_price"`
	MakerFeeBps  int64             `json:"maker_fee_bps"`
	TakerFeeBps  int64             `json:"taker_fee_bps"`
	ShortAllowed bool              `json:"short_allowed"`
}

// TickAt resolves the tick size applicable at a price, consulting the
// band table when present.
func (i *Instrument) TickAt(price quant.PriceMicros) quant.PriceMicros {
	for _, b := range i.TickTable {
		if b.Upper == 0 || price <= b.Upper {
			return b.Tick
		}
	}
	return i.TickSize
}

// ValidTick reports whether a price aligns to the instrument's tick.
func (i *Instrument) ValidTick(price quant.PriceMicros) bool {
	tick := i.TickAt(price)
	if tick <= 0 {
		return false
	}
	return price%tick == 0
}

// SnapToTick rounds a price onto the tick grid, toward the passive
// direction: buys round down, sells round up. A zero tick leaves the
// price untouched.
func (i *Instrument) SnapToTick(price quant.PriceMicros, side Side) quant.PriceMicros {
	tick := i.TickAt(price)
	if tick <= 0 {
		return price
	}
	rem := price % tick
	if rem == 0 {
		return price
	}
	if side == Buy {
		return price - rem
	}
	return price - rem + tick
}

// SnapQty rounds a quantity down onto the lot grid and clamps it to
// the instrument bounds. Returns zero when no tradable quantity fits.
func (i *Instrument) SnapQty(qty quant.Qty) quant.Qty {
	if qty <= 0 {
		return 0
	}
	if i.MaxQty > 0 && qty > i.MaxQty {
		qty = i.MaxQty
	}
	if i.LotSize > 1 {
		qty -= qty % i.LotSize
	}
	if qty <= 0 || qty < i.MinQty {
		return 0
	}
	return qty
}

// ValidQty checks lot alignment and min/max bounds.
func (i *Instrument) ValidQty(qty quant.Qty) bool {
	if qty <= 0 || qty < i.MinQty {
		return false
	}
	if i.MaxQty > 0 && qty > i.MaxQty {
		return false
	}
	if i.LotSize > 1 && qty%i.LotSize != 0 {
		return false
	}
	return true
}

// BandLimits returns the [low, high] price band around the reference
// price. A zero band percentage disables banding (returns false).
func (i *Instrument) BandLimits() (quant.PriceMicros, quant.PriceMicros, bool) {
	if i.PriceBandPct <= 0 || i.RefPrice <= 0 {
		return 0, 0, false
	}
	delta := safe.SafeDiv(safe.SafeMul(int64(i.RefPrice), i.PriceBandPct), 100)
	return quant.PriceMicros(int64(i.RefPrice) - delta), quant.PriceMicros(int64(i.RefPrice) + delta), true
}

// WithinBand reports whether a limit price sits inside the band.
func (i *Instrument) WithinBand(price quant.PriceMicros) bool {
	low, high, ok := i.BandLimits()
	if !ok {
		return true
	}
	return price >= low && price <= high
}
