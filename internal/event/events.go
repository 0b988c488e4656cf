// Package event defines the simulator's append-only domain events and
// the log that retains them. Every state change in the exchange is
// recorded here exactly once, in sequence order.
package event

import (
	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// Type tags the concrete variant of a SimEvent.
type Type int8

const (
	TypeOrderAccepted Type = iota
	TypeOrderRejected
	TypeOrderCancelled
	TypeOrderModified
	TypeTradeExecuted
	TypePhaseChange
	TypeCircuitBreaker
	TypeHaltLifted
	TypeKillSwitch
	TypeAuctionResult
	TypeNewsInjection
)

func (t Type) String() string {
	switch t {
	case TypeOrderAccepted:
		return "ORDER_ACCEPTED"
	case TypeOrderRejected:
		return "ORDER_REJECTED"
	case TypeOrderCancelled:
		return "ORDER_CANCELLED"
	case TypeOrderModified:
		return "ORDER_MODIFIED"
	case TypeTradeExecuted:
		return "TRADE_EXECUTED"
	case TypePhaseChange:
		return "PHASE_CHANGE"
	case TypeCircuitBreaker:
		return "CIRCUIT_BREAKER_TRIGGERED"
	case TypeHaltLifted:
		return "HALT_LIFTED"
	case TypeKillSwitch:
		return "KILL_SWITCH_TRIGGERED"
	case TypeAuctionResult:
		return "AUCTION_RESULT"
	case TypeNewsInjection:
		return "NEWS_INJECTION"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes Type as a human-readable string.
func (t Type) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// SimEvent is the interface all domain events implement. Events are
// immutable once appended to the log.
type SimEvent interface {
	GetSeq() uint64
	GetTs() quant.TimeStamp
	GetType() Type
}

// Base carries the fields common to every event. The log stamps Seq
// on append; producers fill Ts from the logical clock.
type Base struct {
	Seq uint64          `json:"seq"`
	Ts  quant.TimeStamp `json:"ts"`
}

func (b *Base) GetSeq() uint64         { return b.Seq }
func (b *Base) GetTs() quant.TimeStamp { return b.Ts }
func (b *Base) setSeq(seq uint64)      { b.Seq = seq }

// sequenced is implemented by every concrete event via *Base.
type sequenced interface {
	setSeq(uint64)
}

// OrderAccepted records an order passing validation and entering the
// matching path. Order is a copy taken at acceptance time.
type OrderAccepted struct {
	Base
	Order domain.Order `json:"order"`
}

func (*OrderAccepted) GetType() Type { return TypeOrderAccepted }

// OrderRejected records a validation or risk reject. The order never
// touched the book.
type OrderRejected struct {
	Base
	Order  domain.Order        `json:"order"`
	Reason domain.RejectReason `json:"reason"`
}

func (*OrderRejected) GetType() Type { return TypeOrderRejected }

// OrderCancelled records an order leaving the book unfilled or
// partially filled (user cancel, IOC remainder, FOK kill, re-peg).
type OrderCancelled struct {
	Base
	OrderID       int64     `json:"order_id"`
	ParticipantID int64     `json:"participant_id"`
	Symbol        string    `json:"symbol"`
	Remaining     quant.Qty `json:"remaining"`
}

func (*OrderCancelled) GetType() Type { return TypeOrderCancelled }

// OrderModified records a cancel-and-replace. NewOrder carries the
// fresh id; the old id is dead.
type OrderModified struct {
	Base
	OldOrderID int64        `json:"old_order_id"`
	NewOrder   domain.Order `json:"new_order"`
}

func (*OrderModified) GetType() Type { return TypeOrderModified }

// TradeExecuted records a matched execution, continuous or auction.
type TradeExecuted struct {
	Base
	Trade domain.Trade `json:"trade"`
}

func (*TradeExecuted) GetType() Type { return TypeTradeExecuted }

// PhaseChange records a market-phase transition for one instrument.
type PhaseChange struct {
	Base
	Symbol string             `json:"symbol"`
	From   domain.MarketPhase `json:"from"`
	To     domain.MarketPhase `json:"to"`
}

func (*PhaseChange) GetType() Type { return TypePhaseChange }

// CircuitBreakerTriggered records a halt entered on excessive price
// movement relative to the reference price.
type CircuitBreakerTriggered struct {
	Base
	Symbol    string            `json:"symbol"`
	LastPrice quant.PriceMicros `json:"last_price"`
	RefPrice  quant.PriceMicros `json:"ref_price"`
	ResumeAt  quant.TimeStamp   `json:"resume_at"`
}

func (*CircuitBreakerTriggered) GetType() Type { return TypeCircuitBreaker }

// HaltLifted records trading resuming after a halt expires.
type HaltLifted struct {
	Base
	Symbol string `json:"symbol"`
}

func (*HaltLifted) GetType() Type { return TypeHaltLifted }

// KillSwitchTriggered records the risk engine deactivating a
// participant. A protective transition, not an error.
type KillSwitchTriggered struct {
	Base
	ParticipantID  int64  `json:"participant_id"`
	Reason         string `json:"reason"`
	DrawdownMicros int64  `json:"drawdown"`
}

func (*KillSwitchTriggered) GetType() Type { return TypeKillSwitch }

// AuctionResult records the single clearing price and matched volume
// of a call auction.
type AuctionResult struct {
	Base
	Symbol    string             `json:"symbol"`
	Phase     domain.MarketPhase `json:"phase"`
	Price     quant.PriceMicros  `json:"price"`
	Volume    quant.Qty          `json:"volume"`
	Imbalance quant.Qty          `json:"imbalance"`
}

func (*AuctionResult) GetType() Type { return TypeAuctionResult }

// NewsInjection records an external shock applied to the background
// price process.
type NewsInjection struct {
	Base
	Headline  string   `json:"headline"`
	Sentiment float64  `json:"sentiment"` // -1..+1
	Magnitude float64  `json:"magnitude"` // 0..1
	Symbols   []string `json:"symbols"`
}

func (*NewsInjection) GetType() Type { return TypeNewsInjection }
