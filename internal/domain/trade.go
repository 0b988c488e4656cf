package domain

import (
	"marketsim/pkg/quant"
	"marketsim/pkg/safe"
)

// Trade is a matched execution. Immutable once created; it is the unit
// handed to clearing and analytics.
type Trade struct {
	ID            int64             `json:"id"`
	Symbol        string            `json:"symbol"`
	Price         quant.PriceMicros `json:"price"`
	Qty           quant.Qty         `json:"qty"`
	Aggressor     Side              `json:"aggressor"`
	BuyOrderID    int64             `json:"buy_order_id"`
	SellOrderID   int64             `json:"sell_order_id"`
	BuyerID       int64             `json:"buyer_id"`
	SellerID      int64             `json:"seller_id"`
	Timestamp     quant.TimeStamp   `json:"timestamp"`
	AuctionTrade  bool              `json:"auction_trade,omitempty"`
	MakerOrderID  int64             `json:"maker_order_id,omitempty"`
	TakerOrderID  int64             `json:"taker_order_id,omitempty"`
}

// Notional returns price*qty in quote-currency micros.
func (t *Trade) Notional() int64 {
	return safe.SafeMul(int64(t.Price), int64(t.Qty))
}

// ParticipantOf returns the participant on the given side of the trade.
func (t *Trade) ParticipantOf(side Side) int64 {
	if side == Buy {
		return t.BuyerID
	}
	return t.SellerID
}
