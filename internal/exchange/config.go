package exchange

import (
	"errors"
	"fmt"

	"marketsim/internal/domain"
	"marketsim/internal/price"
	"marketsim/pkg/quant"
)

// InstrumentSpec pairs an instrument's trading rules with its
// background price process parameters.
type InstrumentSpec struct {
	Instrument domain.Instrument
	Process    price.ProcessParams
}

// Config is the caller-supplied simulation configuration, immutable
// for a run. All times are logical nanoseconds.
type Config struct {
	Instruments []InstrumentSpec

	TickInterval quant.TimeStamp
	SessionOpen  quant.TimeStamp
	SessionClose quant.TimeStamp

	OpeningAuctionDur quant.TimeStamp
	ClosingAuctionDur quant.TimeStamp

	CircuitBreakerPct int64 // halt on |last-ref| >= ref*pct/100
	HaltDuration      quant.TimeStamp

	SettlementDelay quant.TimeStamp // T+N modeled as logical lag

	Seed int64

	DepthLevels       int
	EventLogCapacity  int // 0 = unbounded
	RecentTradeWindow int

	EnableAuctions        bool
	EnableCircuitBreakers bool
}

// Validate fails fast on a malformed configuration; nothing here is
// recoverable mid-simulation.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return &domain.ConfigError{Field: "instruments", Err: errors.New("at least one instrument is required")}
	}
	seen := make(map[string]bool)
	for _, spec := range c.Instruments {
		inst := spec.Instrument
		if inst.Symbol == "" {
			return &domain.ConfigError{Field: "instruments", Err: errors.New("empty symbol")}
		}
		if seen[inst.Symbol] {
			return &domain.ConfigError{Field: "instruments", Err: fmt.Errorf("duplicate symbol %s", inst.Symbol)}
		}
		seen[inst.Symbol] = true
		if inst.TickSize <= 0 && len(inst.TickTable) == 0 {
			return &domain.ConfigError{Field: inst.Symbol + ".tick_size", Err: errors.New("must be positive")}
		}
		for _, b := range inst.TickTable {
			if b.Tick <= 0 {
				return &domain.ConfigError{Field: inst.Symbol + ".tick_table", Err: errors.New("band tick must be positive")}
			}
		}
		if inst.RefPrice <= 0 {
			return &domain.ConfigError{Field: inst.Symbol + ".ref_price", Err: errors.New("must be positive")}
		}
		if spec.Process.Start <= 0 {
			return &domain.ConfigError{Field: inst.Symbol + ".process.start", Err: errors.New("must be positive")}
		}
	}
	if c.TickInterval <= 0 {
		return &domain.ConfigError{Field: "tick_interval", Err: errors.New("must be positive")}
	}
	if c.SessionClose <= c.SessionOpen {
		return &domain.ConfigError{Field: "session_close", Err: errors.New("must be after session_open")}
	}
	if c.EnableAuctions {
		if c.OpeningAuctionDur <= 0 || c.ClosingAuctionDur <= 0 {
			return &domain.ConfigError{Field: "auction_durations", Err: errors.New("must be positive when auctions are enabled")}
		}
		if c.SessionOpen < c.OpeningAuctionDur {
			return &domain.ConfigError{Field: "session_open", Err: errors.New("must leave room for the opening auction")}
		}
		if c.SessionClose-c.ClosingAuctionDur <= c.SessionOpen {
			return &domain.ConfigError{Field: "closing_auction_dur", Err: errors.New("closing auction overlaps the open")}
		}
	}
	if c.EnableCircuitBreakers {
		if c.CircuitBreakerPct <= 0 {
			return &domain.ConfigError{Field: "circuit_breaker_pct", Err: errors.New("must be positive when circuit breakers are enabled")}
		}
		if c.HaltDuration <= 0 {
			return &domain.ConfigError{Field: "halt_duration", Err: errors.New("must be positive when circuit breakers are enabled")}
		}
	}
	if c.SettlementDelay < 0 {
		return &domain.ConfigError{Field: "settlement_delay", Err: errors.New("must be non-negative")}
	}
	return nil
}
