package infra

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

const sampleYAML = `
app:
  name: marketsim
  version: test
session:
  tick_interval_ms: 100
  open_ms: 60000
  close_ms: 3660000
  opening_auction_ms: 30000
  closing_auction_ms: 30000
  enable_auctions: true
  settlement_delay_ms: 2000
risk:
  enable_circuit_breakers: true
  circuit_breaker_pct: 10
  halt_duration_ms: 60000
sim:
  seed: 42
  depth_levels: 10
  event_log_capacity: 100000
  recent_trade_window: 50
instruments:
  - symbol: SIMA
    name: Sim Alpha
    tick_size: "0.01"
    lot_size: 1
    min_qty: 1
    ref_price: "100.00"
    price_band_pct: 20
    maker_fee_bps: 1
    taker_fee_bps: 3
    short_allowed: true
    process:
      vol: 0.002
agents:
  market_makers: 2
  noise: 10
  start_cash: "1000000.00"
news:
  - at_ms: 600000
    headline: "earnings beat"
    sentiment: 0.8
    magnitude: 0.5
    symbols: [SIMA]
storage:
  enabled: false
logging:
  level: info
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.Sim.Seed)
	assert.Equal(t, int64(100), cfg.Session.TickIntervalMS)
	require.Len(t, cfg.Instruments, 1)
	assert.Equal(t, "SIMA", cfg.Instruments[0].Symbol)
	assert.Equal(t, "100", cfg.Instruments[0].RefPrice.String())
	require.Len(t, cfg.News, 1)
	assert.Equal(t, 0.8, cfg.News[0].Sentiment)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfigNotFound))
}

func TestLoadConfigBadYAML(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "session: ["))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MARKETSIM_SEED", "777")
	t.Setenv("MARKETSIM_LOG_LEVEL", "debug")
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, int64(777), cfg.Sim.Seed)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no instruments", func(c *Config) { c.Instruments = nil }},
		{"empty symbol", func(c *Config) { c.Instruments[0].Symbol = "" }},
		{"zero ref price", func(c *Config) { c.Instruments[0].RefPrice = c.Instruments[0].RefPrice.Sub(c.Instruments[0].RefPrice) }},
		{"zero tick interval", func(c *Config) { c.Session.TickIntervalMS = 0 }},
		{"close before open", func(c *Config) { c.Session.CloseMS = c.Session.OpenMS }},
		{"no agents", func(c *Config) {
			c.Agents.MarketMakers = 0
			c.Agents.Noise = 0
		}},
		{"news magnitude out of range", func(c *Config) { c.News[0].Magnitude = 1.5 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadConfig(writeConfig(t, sampleYAML))
			require.NoError(t, err)
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExchangeConfigConversion(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	xc := cfg.ExchangeConfig()
	assert.Equal(t, quant.TimeStamp(100_000_000), xc.TickInterval)
	assert.Equal(t, quant.TimeStamp(60_000_000_000), xc.SessionOpen)
	assert.Equal(t, quant.TimeStamp(2_000_000_000), xc.SettlementDelay)
	assert.True(t, xc.EnableAuctions)
	assert.True(t, xc.EnableCircuitBreakers)

	require.Len(t, xc.Instruments, 1)
	inst := xc.Instruments[0].Instrument
	assert.Equal(t, quant.PriceMicros(10_000), inst.TickSize)
	assert.Equal(t, quant.PriceMicros(100_000_000), inst.RefPrice)
	assert.Equal(t, quant.PriceMicros(100_000_000), xc.Instruments[0].Process.Start)
	assert.Equal(t, 0.002, xc.Instruments[0].Process.Vol)

	require.NoError(t, xc.Validate())
}

func TestStartCashMicros(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000_000_000), cfg.StartCashMicros())
}
