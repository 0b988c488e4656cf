package domain

import (
	"fmt"
	"strings"
)

// Side is the direction of an order.
type Side int8

const (
	Buy  Side = 1
	Sell Side = -1
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	return -s
}

// MarshalJSON serializes Side as a human-readable string.
func (s Side) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON deserializes Side from a string.
func (s *Side) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "BUY", "1":
		*s = Buy
	case "SELL", "-1":
		*s = Sell
	default:
		return fmt.Errorf("unknown Side: %s", data)
	}
	return nil
}

// OrderType covers every execution style the venue supports.
type OrderType int8

const (
	TypeMarket OrderType = iota
	TypeLimit
	TypeIceberg
	TypeStop
	TypeStopLimit
	TypeMarketToLimit
	TypePegged
	TypeTrailingStop
)

func (t OrderType) String() string {
	switch t {
	case TypeMarket:
		return "MARKET"
	case TypeLimit:
		return "LIMIT"
	case TypeIceberg:
		return "ICEBERG"
	case TypeStop:
		return "STOP"
	case TypeStopLimit:
		return "STOP_LIMIT"
	case TypeMarketToLimit:
		return "MARKET_TO_LIMIT"
	case TypePegged:
		return "PEGGED"
	case TypeTrailingStop:
		return "TRAILING_STOP"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes OrderType as a human-readable string.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// PegType selects the reference point a pegged order tracks.
type PegType int8

const (
	PegMidpoint PegType = iota
	PegPrimary          // same-side best
	PegMarket           // opposite-side best
)

func (p PegType) String() string {
	switch p {
	case PegMidpoint:
		return "MIDPOINT"
	case PegPrimary:
		return "PRIMARY"
	case PegMarket:
		return "MARKET"
	default:
		return "UNKNOWN"
	}
}

// TimeInForce controls how long an order remains working.
type TimeInForce int8

const (
	GTC TimeInForce = iota // rests until cancelled
	IOC                    // fill what's possible, cancel rest
	FOK                    // fill completely or cancel entirely
)

func (t TimeInForce) String() string {
	switch t {
	case GTC:
		return "GTC"
	case IOC:
		return "IOC"
	case FOK:
		return "FOK"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes TimeInForce as a human-readable string.
func (t TimeInForce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus int8

const (
	StatusNew OrderStatus = iota
	StatusPartiallyFilled
	StatusFilled
	StatusCancelled
	StatusRejected
	StatusPendingTrigger // stop orders resting untriggered
)

func (s OrderStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusPartiallyFilled:
		return "PARTIALLY_FILLED"
	case StatusFilled:
		return "FILLED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusRejected:
		return "REJECTED"
	case StatusPendingTrigger:
		return "PENDING_TRIGGER"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes OrderStatus as a human-readable string.
func (s OrderStatus) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// MarketPhase is the session state of an instrument's market.
type MarketPhase int8

const (
	PhasePreOpen MarketPhase = iota
	PhaseOpeningAuction
	PhaseContinuous
	PhaseClosingAuction
	PhasePostClose
	PhaseHalted
)

func (p MarketPhase) String() string {
	switch p {
	case PhasePreOpen:
		return "PRE_OPEN"
	case PhaseOpeningAuction:
		return "OPENING_AUCTION"
	case PhaseContinuous:
		return "CONTINUOUS_TRADING"
	case PhaseClosingAuction:
		return "CLOSING_AUCTION"
	case PhasePostClose:
		return "POST_CLOSE"
	case PhaseHalted:
		return "HALTED"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes MarketPhase as a human-readable string.
func (p MarketPhase) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.String() + `"`), nil
}

// IsTrading reports whether continuous matching runs in this phase.
func (p MarketPhase) IsTrading() bool {
	return p == PhaseContinuous
}

// IsAuction reports whether the phase collects call-auction orders.
func (p MarketPhase) IsAuction() bool {
	return p == PhaseOpeningAuction || p == PhaseClosingAuction
}

// ParticipantType selects default risk limits and agent behavior.
type ParticipantType int8

const (
	ParticipantMarketMaker ParticipantType = iota
	ParticipantHFT
	ParticipantStatArb
	ParticipantMomentum
	ParticipantNoiseTrader
	ParticipantInstitutional
	ParticipantSniperBot
	ParticipantRetail
)

func (t ParticipantType) String() string {
	switch t {
	case ParticipantMarketMaker:
		return "MARKET_MAKER"
	case ParticipantHFT:
		return "HFT"
	case ParticipantStatArb:
		return "STAT_ARB"
	case ParticipantMomentum:
		return "MOMENTUM"
	case ParticipantNoiseTrader:
		return "NOISE_TRADER"
	case ParticipantInstitutional:
		return "INSTITUTIONAL"
	case ParticipantSniperBot:
		return "SNIPER_BOT"
	case ParticipantRetail:
		return "RETAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes ParticipantType as a human-readable string.
func (t ParticipantType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// LatencyTier buckets participants by proximity to the matching engine.
// Lower tiers see their actions arrive first within a tick.
type LatencyTier int8

const (
	TierColocated LatencyTier = iota
	TierInstitutional
	TierProfessional
	TierRetail
)

func (t LatencyTier) String() string {
	switch t {
	case TierColocated:
		return "COLOCATED"
	case TierInstitutional:
		return "INSTITUTIONAL"
	case TierProfessional:
		return "PROFESSIONAL"
	case TierRetail:
		return "RETAIL"
	default:
		return "UNKNOWN"
	}
}

// RejectReason is the typed outcome of a failed order validation.
// Rejects are routine market outcomes, never Go errors.
type RejectReason int8

const (
	ReasonNone RejectReason = iota
	ReasonUnknownInstrument
	ReasonInvalidPrice
	ReasonInvalidQuantity
	ReasonTickViolation
	ReasonPriceOutsideBand
	ReasonMarketHalted
	ReasonWrongPhase
	ReasonParticipantInactive
	ReasonShortSaleRestricted
	ReasonInsufficientLiquidity
	ReasonRateLimit
	ReasonOrderTradeRatio
	ReasonPositionLimit
	ReasonExposureLimit
	ReasonPriceCollar
	ReasonKillSwitch
)

func (r RejectReason) String() string {
	switch r {
	case ReasonNone:
		return "NONE"
	case ReasonUnknownInstrument:
		return "UNKNOWN_INSTRUMENT"
	case ReasonInvalidPrice:
		return "INVALID_PRICE"
	case ReasonInvalidQuantity:
		return "INVALID_QUANTITY"
	case ReasonTickViolation:
		return "TICK_VIOLATION"
	case ReasonPriceOutsideBand:
		return "PRICE_OUTSIDE_BAND"
	case ReasonMarketHalted:
		return "MARKET_HALTED"
	case ReasonWrongPhase:
		return "WRONG_PHASE"
	case ReasonParticipantInactive:
		return "PARTICIPANT_INACTIVE"
	case ReasonShortSaleRestricted:
		return "SHORT_SALE_RESTRICTED"
	case ReasonInsufficientLiquidity:
		return "INSUFFICIENT_LIQUIDITY"
	case ReasonRateLimit:
		return "RATE_LIMIT"
	case ReasonOrderTradeRatio:
		return "ORDER_TRADE_RATIO"
	case ReasonPositionLimit:
		return "POSITION_LIMIT"
	case ReasonExposureLimit:
		return "EXPOSURE_LIMIT"
	case ReasonPriceCollar:
		return "PRICE_COLLAR"
	case ReasonKillSwitch:
		return "KILL_SWITCH"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON serializes RejectReason as a human-readable string.
func (r RejectReason) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}
