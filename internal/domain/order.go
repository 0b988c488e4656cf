package domain

import (
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// Order represents a trading order. Once resting it is owned
// exclusively by the book; everything else sees copies or ids.
// All monetary values are strictly int64.
type Order struct {
	ID            int64             `json:"id"`
	ParticipantID int64             `json:"participant_id"`
	Symbol        string            `json:"symbol"`
	Side          Side              `json:"side"`
	Type          OrderType         `json:"type"`
	TIF           TimeInForce       `json:"tif"`
	Price         quant.PriceMicros `json:"price"`      // 0 for market orders
	StopPrice     quant.PriceMicros `json:"stop_price"` // stop / stop-limit / trailing trigger
	TrailOffset   quant.PriceMicros `json:"trail_offset,omitempty"`
	Peg           PegType           `json:"peg,omitempty"`
	PegOffset     quant.PriceMicros `json:"peg_offset,omitempty"`

	TotalQty   quant.Qty `json:"total_qty"`
	DisplayQty quant.Qty `json:"display_qty"` // iceberg visible slice; 0 means fully visible
	HiddenQty  quant.Qty `json:"hidden_qty"`
	Remaining  quant.Qty `json:"remaining"`
	FilledQty  quant.Qty `json:"filled_qty"`

	Status      OrderStatus     `json:"status"`
	CreatedAt   quant.TimeStamp `json:"created_at"`
	UpdatedAt   quant.TimeStamp `json:"updated_at"`
	AuctionOnly bool            `json:"auction_only,omitempty"`
}

// IsOpen reports whether the order is still working.
func (o *Order) IsOpen() bool {
	return o.Status == StatusNew || o.Status == StatusPartiallyFilled ||
		o.Status == StatusPendingTrigger
}

// IsBuy is sugar for side checks in the matching hotpath.
func (o *Order) IsBuy() bool { return o.Side == Buy }

// VisibleQty is the quantity an iceberg exposes to the book. For
// non-iceberg orders it equals Remaining.
func (o *Order) VisibleQty() quant.Qty {
	if o.Type != TypeIceberg || o.DisplayQty == 0 {
		return o.Remaining
	}
	visible := o.Remaining - o.HiddenQty
	if visible < 0 {
		return 0
	}
	return visible
}

// Fill consumes qty from the order and updates its status.
// Panics if qty exceeds Remaining; the matching engine never
// produces such a fill.
func (o *Order) Fill(qty quant.Qty, now quant.TimeStamp) {
	if qty > o.Remaining {
		panic("ORDER_OVERFILL")
	}
	o.Remaining = quant.Qty(safe.SafeSub(int64(o.Remaining), int64(qty)))
	o.FilledQty = quant.Qty(safe.SafeAdd(int64(o.FilledQty), int64(qty)))
	o.UpdatedAt = now
	if o.Remaining == 0 {
		o.Status = StatusFilled
	} else {
		o.Status = StatusPartiallyFilled
	}
}

// Reduce lowers the remaining quantity without counting a fill
// (amend-down). Reducing to zero cancels the order.
func (o *Order) Reduce(qty quant.Qty, now quant.TimeStamp) {
	if qty >= o.Remaining {
		o.Remaining = 0
		o.Status = StatusCancelled
	} else {
		o.Remaining -= qty
	}
	o.UpdatedAt = now
}

// Cancel terminates the order.
func (o *Order) Cancel(now quant.TimeStamp) {
	o.Status = StatusCancelled
	o.UpdatedAt = now
}

// Notional returns price*quantity in micros of the quote currency.
func (o *Order) Notional() int64 {
	return safe.SafeMul(int64(o.Price), int64(o.Remaining))
}
