// Package infra holds the run-level plumbing: file configuration,
// logging setup and process metrics. Everything here is built once at
// startup; the simulation itself never reaches back into this package.
package infra

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"marketsim/internal/domain"
	"marketsim/internal/exchange"
	"marketsim/internal/price"
	"marketsim/pkg/quant"
)

// millisecond in logical nanoseconds
const ms = 1_000_000

// InstrumentConfig is the YAML shape of one listed instrument plus
// its background price process.
type InstrumentConfig struct {
	Symbol       string          `yaml:"symbol"`
	Name         string          `yaml:"name"`
	TickSize     decimal.Decimal `yaml:"tick_size"`
	LotSize      int64           `yaml:"lot_size"`
	MinQty       int64           `yaml:"min_qty"`
	MaxQty       int64           `yaml:"max_qty"`
	RefPrice     decimal.Decimal `yaml:"ref_price"`
	PriceBandPct int64           `yaml:"price_band_pct"`
	MakerFeeBps  int64           `yaml:"maker_fee_bps"`
	TakerFeeBps  int64           `yaml:"taker_fee_bps"`
	ShortAllowed bool            `yaml:"short_allowed"`

	TickTable []struct {
		Upper decimal.Decimal `yaml:"upper"`
		Tick  decimal.Decimal `yaml:"tick"`
	} `yaml:"tick_table"`

	Process struct {
		Drift    float64 `yaml:"drift"`
		Vol      float64 `yaml:"vol"`
		JumpProb float64 `yaml:"jump_prob"`
		JumpVol  float64 `yaml:"jump_vol"`
	} `yaml:"process"`
}

// AgentPopulation sizes each strategy family. Zero entries are simply
// not spawned.
type AgentPopulation struct {
	MarketMakers  int `yaml:"market_makers"`
	Snipers       int `yaml:"snipers"`
	Momentum      int `yaml:"momentum"`
	StatArb       int `yaml:"stat_arb"`
	Institutional int `yaml:"institutional"`
	Noise         int `yaml:"noise"`
	Retail        int `yaml:"retail"`

	StartCash decimal.Decimal `yaml:"start_cash"`
}

// NewsConfig schedules one exogenous shock.
type NewsConfig struct {
	AtMS      int64    `yaml:"at_ms"`
	Headline  string   `yaml:"headline"`
	Sentiment float64  `yaml:"sentiment"` // -1..+1
	Magnitude float64  `yaml:"magnitude"` // 0..1
	Symbols   []string `yaml:"symbols"`
}

// Config is the full simulator configuration file.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Session struct {
		TickIntervalMS    int64 `yaml:"tick_interval_ms"`
		OpenMS            int64 `yaml:"open_ms"`
		CloseMS           int64 `yaml:"close_ms"`
		OpeningAuctionMS  int64 `yaml:"opening_auction_ms"`
		ClosingAuctionMS  int64 `yaml:"closing_auction_ms"`
		EnableAuctions    bool  `yaml:"enable_auctions"`
		SettlementDelayMS int64 `yaml:"settlement_delay_ms"`
	} `yaml:"session"`

	Risk struct {
		EnableCircuitBreakers bool  `yaml:"enable_circuit_breakers"`
		CircuitBreakerPct     int64 `yaml:"circuit_breaker_pct"`
		HaltDurationMS        int64 `yaml:"halt_duration_ms"`
	} `yaml:"risk"`

	Sim struct {
		Seed              int64 `yaml:"seed"`
		DepthLevels       int   `yaml:"depth_levels"`
		EventLogCapacity  int   `yaml:"event_log_capacity"`
		RecentTradeWindow int   `yaml:"recent_trade_window"`
	} `yaml:"sim"`

	Instruments []InstrumentConfig `yaml:"instruments"`
	Agents      AgentPopulation    `yaml:"agents"`
	News        []NewsConfig       `yaml:"news"`

	Storage struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"storage"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses a config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConfigNotFound, path)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// overrideWithEnv lets reproducibility-critical knobs be set without
// editing the file, which is what batch runs want.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("MARKETSIM_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sim.Seed = seed
		}
	}
	if v := os.Getenv("MARKETSIM_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("MARKETSIM_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks everything the exchange constructor cannot: file
// level shape and agent population sanity. Exchange-level invariants
// are re-checked by exchange.Config.Validate.
func (c *Config) Validate() error {
	if len(c.Instruments) == 0 {
		return fmt.Errorf("at least one instrument is required")
	}
	for _, ic := range c.Instruments {
		if ic.Symbol == "" {
			return fmt.Errorf("instrument with empty symbol")
		}
		if ic.RefPrice.Sign() <= 0 {
			return fmt.Errorf("%s: ref_price must be positive", ic.Symbol)
		}
		if ic.TickSize.Sign() <= 0 && len(ic.TickTable) == 0 {
			return fmt.Errorf("%s: tick_size must be positive", ic.Symbol)
		}
	}
	if c.Session.TickIntervalMS <= 0 {
		return fmt.Errorf("session.tick_interval_ms must be positive")
	}
	if c.Session.CloseMS <= c.Session.OpenMS {
		return fmt.Errorf("session.close_ms must be after open_ms")
	}
	if c.Agents.StartCash.Sign() <= 0 {
		return fmt.Errorf("agents.start_cash must be positive")
	}
	total := c.Agents.MarketMakers + c.Agents.Snipers + c.Agents.Momentum +
		c.Agents.StatArb + c.Agents.Institutional + c.Agents.Noise + c.Agents.Retail
	if total == 0 {
		return fmt.Errorf("agent population is empty")
	}
	for _, n := range c.News {
		if n.AtMS < 0 {
			return fmt.Errorf("news.at_ms must be non-negative")
		}
		if n.Magnitude < 0 || n.Magnitude > 1 {
			return fmt.Errorf("news magnitude must be in [0,1]")
		}
	}
	return nil
}

// ExchangeConfig converts the file shape into the exchange's runtime
// configuration.
func (c *Config) ExchangeConfig() exchange.Config {
	out := exchange.Config{
		TickInterval:          quant.TimeStamp(c.Session.TickIntervalMS * ms),
		SessionOpen:           quant.TimeStamp(c.Session.OpenMS * ms),
		SessionClose:          quant.TimeStamp(c.Session.CloseMS * ms),
		OpeningAuctionDur:     quant.TimeStamp(c.Session.OpeningAuctionMS * ms),
		ClosingAuctionDur:     quant.TimeStamp(c.Session.ClosingAuctionMS * ms),
		CircuitBreakerPct:     c.Risk.CircuitBreakerPct,
		HaltDuration:          quant.TimeStamp(c.Risk.HaltDurationMS * ms),
		SettlementDelay:       quant.TimeStamp(c.Session.SettlementDelayMS * ms),
		Seed:                  c.Sim.Seed,
		DepthLevels:           c.Sim.DepthLevels,
		EventLogCapacity:      c.Sim.EventLogCapacity,
		RecentTradeWindow:     c.Sim.RecentTradeWindow,
		EnableAuctions:        c.Session.EnableAuctions,
		EnableCircuitBreakers: c.Risk.EnableCircuitBreakers,
	}
	for _, ic := range c.Instruments {
		inst := domain.Instrument{
			Symbol:       ic.Symbol,
			Name:         ic.Name,
			TickSize:     quant.PriceFromDecimal(ic.TickSize),
			LotSize:      quant.Qty(ic.LotSize),
			MinQty:       quant.Qty(ic.MinQty),
			MaxQty:       quant.Qty(ic.MaxQty),
			PriceBandPct: ic.PriceBandPct,
			RefPrice:     quant.PriceFromDecimal(ic.RefPrice),
			MakerFeeBps:  ic.MakerFeeBps,
			TakerFeeBps:  ic.TakerFeeBps,
			ShortAllowed: ic.ShortAllowed,
		}
		for _, b := range ic.TickTable {
			inst.TickTable = append(inst.TickTable, domain.TickBand{
				Upper: quant.PriceFromDecimal(b.Upper),
				Tick:  quant.PriceFromDecimal(b.Tick),
			})
		}
		out.Instruments = append(out.Instruments, exchange.InstrumentSpec{
			Instrument: inst,
			Process: price.ProcessParams{
				Start:    quant.PriceFromDecimal(ic.RefPrice),
				Drift:    ic.Process.Drift,
				Vol:      ic.Process.Vol,
				JumpProb: ic.Process.JumpProb,
				JumpVol:  ic.Process.JumpVol,
			},
		})
	}
	return out
}

// StartCashMicros returns the agent starting cash in quote micros.
func (c *Config) StartCashMicros() int64 {
	return int64(quant.PriceFromDecimal(c.Agents.StartCash))
}
