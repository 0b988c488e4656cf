// Package agent defines the trading-agent contract and the strategy
// families that generate the simulation's order flow. Agents observe a
// read-only market view and emit actions; they never touch exchange
// state directly.
package agent

import (
	"math/rand"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// ActionType discriminates agent actions.
type ActionType int8

const (
	ActionSubmit ActionType = iota + 1
	ActionCancel
	ActionModify
)

func (a ActionType) String() string {
	switch a {
	case ActionSubmit:
		return "SUBMIT"
	case ActionCancel:
		return "CANCEL"
	case ActionModify:
		return "MODIFY"
	default:
		return "UNKNOWN"
	}
}

// Action is a decision emitted by a strategy. The exchange stamps
// participant identity and routes it through risk and matching.
type Action struct {
	Type   ActionType
	Symbol string

	// submit fields
	Side        domain.Side
	OrderType   domain.OrderType
	TIF         domain.TimeInForce
	Price       quant.PriceMicros
	StopPrice   quant.PriceMicros
	TrailOffset quant.PriceMicros
	Peg         domain.PegType
	PegOffset   quant.PriceMicros
	Qty         quant.Qty
	DisplayQty  quant.Qty

	// cancel/modify fields
	OrderID  int64
	NewPrice quant.PriceMicros
	NewQty   quant.Qty
}

// Fill is the execution notice delivered to both sides of a trade.
type Fill struct {
	OrderID   int64
	Symbol    string
	Side      domain.Side
	Price     quant.PriceMicros
	Qty       quant.Qty
	Remaining quant.Qty
}

// Agent is the capability set every strategy implements. OnTick is
// called once per tick with a view that is only valid for the duration
// of the call; agents must copy anything they keep. The notification
// hooks run synchronously after the corresponding event so agents can
// track their own order state.
type Agent interface {
	OnTick(view *MarketView, rng *rand.Rand) []Action
	OnFill(fill Fill)
	OnOrderAccepted(order domain.Order)
	OnCancel(orderID int64, remaining quant.Qty)
}

// NopAgent provides no-op notification hooks for strategies that only
// care about OnTick. Embed it and override what matters.
type NopAgent struct{}

func (NopAgent) OnFill(Fill)                  {}
func (NopAgent) OnOrderAccepted(domain.Order) {}
func (NopAgent) OnCancel(int64, quant.Qty)    {}
