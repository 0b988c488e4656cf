// Package app wires configuration, logging, storage and the exchange
// into a runnable simulation, then drives it to the close.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"marketsim/internal/agent"
	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/internal/exchange"
	"marketsim/internal/infra"
	"marketsim/internal/infra/storage"
	"marketsim/pkg/quant"
)

// tradeFlushBatch is the archive write granularity for executions.
const tradeFlushBatch = 256

// Bootstrap orchestrates the startup sequence and owns the run loop.
type Bootstrap struct {
	Config   *infra.Config
	Archive  *storage.Archive
	Exchange *exchange.Exchange

	news     []infra.NewsConfig // sorted by AtMS
	nextNews int
	tradeBuf []domain.Trade // executions awaiting archival
}

// NewBootstrap creates a Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, installs the logger, opens storage
// when enabled, builds the exchange and spawns the agent population.
func (b *Bootstrap) Initialize(configPath string) error {
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("bootstrapping simulator",
		slog.String("name", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.Int64("seed", cfg.Sim.Seed))

	ex, err := exchange.New(cfg.ExchangeConfig())
	if err != nil {
		return err
	}
	b.Exchange = ex

	if cfg.Storage.Enabled {
		archive, err := storage.Open(cfg.Storage.Path, cfg.Sim.Seed)
		if err != nil {
			return err
		}
		b.Archive = archive
		ex.SetEventSink(archive)
		// executions also land in the trade table for reporting
		ex.EventLog().Observe(func(ev event.SimEvent) {
			if te, ok := ev.(*event.TradeExecuted); ok {
				b.tradeBuf = append(b.tradeBuf, te.Trade)
			}
		})
		slog.Info("archive opened",
			slog.String("path", cfg.Storage.Path),
			slog.String("run_id", archive.RunID()))
	}

	if err := b.populate(); err != nil {
		return err
	}

	b.news = append(b.news, cfg.News...)
	sort.SliceStable(b.news, func(i, j int) bool { return b.news[i].AtMS < b.news[j].AtMS })
	return nil
}

// populate registers the configured agent population. Each family gets
// the participant type, latency tier and parameters that match its
// real-world counterpart; instrument assignment round-robins across
// the listed symbols.
func (b *Bootstrap) populate() error {
	cfg := b.Config
	ex := b.Exchange
	cash := cfg.StartCashMicros()

	symbols := make([]string, 0, len(cfg.Instruments))
	tick := make(map[string]quant.PriceMicros, len(cfg.Instruments))
	for _, ic := range cfg.Instruments {
		symbols = append(symbols, ic.Symbol)
		t := quant.PriceFromDecimal(ic.TickSize)
		if t <= 0 && len(ic.TickTable) > 0 {
			t = quant.PriceFromDecimal(ic.TickTable[0].Tick)
		}
		tick[ic.Symbol] = t
	}
	sym := func(i int) string { return symbols[i%len(symbols)] }

	attach := func(name string, ptype domain.ParticipantType, tier domain.LatencyTier, a agent.Agent) error {
		id := ex.RegisterParticipant(name, ptype, cash, tier)
		return ex.AttachAgent(id, a)
	}

	for i := 0; i < cfg.Agents.MarketMakers; i++ {
		s := sym(i)
		if err := attach(fmt.Sprintf("mm-%d", i+1), domain.ParticipantMarketMaker, domain.TierColocated,
			agent.NewMarketMaker(s, 2*tick[s], 100, 2_000)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Agents.Snipers; i++ {
		if err := attach(fmt.Sprintf("sniper-%d", i+1), domain.ParticipantSniperBot, domain.TierColocated,
			agent.NewSniper(sym(i), 0.6, 50, 500)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Agents.Momentum; i++ {
		if err := attach(fmt.Sprintf("momentum-%d", i+1), domain.ParticipantMomentum, domain.TierProfessional,
			agent.NewMomentum(sym(i), 5, 20, 50)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Agents.StatArb; i++ {
		if err := attach(fmt.Sprintf("statarb-%d", i+1), domain.ParticipantStatArb, domain.TierInstitutional,
			agent.NewStatArb(sym(i), 30, 50, 1_000)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Agents.Institutional; i++ {
		side := domain.Buy
		if i%2 == 1 {
			side = domain.Sell
		}
		ecfg := cfg.ExchangeConfig()
		if err := attach(fmt.Sprintf("inst-%d", i+1), domain.ParticipantInstitutional, domain.TierInstitutional,
			agent.NewVWAPExecutor(sym(i), side, 5_000, ecfg.SessionOpen, ecfg.SessionClose, 0)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Agents.Noise; i++ {
		if err := attach(fmt.Sprintf("noise-%d", i+1), domain.ParticipantNoiseTrader, domain.TierRetail,
			agent.NewNoiseTrader(symbols, 0.3, 20)); err != nil {
			return err
		}
	}
	for i := 0; i < cfg.Agents.Retail; i++ {
		if err := attach(fmt.Sprintf("retail-%d", i+1), domain.ParticipantRetail, domain.TierRetail,
			agent.NewRetailTrader(symbols, 0.1, 10)); err != nil {
			return err
		}
	}

	slog.Info("agent population spawned",
		slog.Int("market_makers", cfg.Agents.MarketMakers),
		slog.Int("snipers", cfg.Agents.Snipers),
		slog.Int("momentum", cfg.Agents.Momentum),
		slog.Int("stat_arb", cfg.Agents.StatArb),
		slog.Int("institutional", cfg.Agents.Institutional),
		slog.Int("noise", cfg.Agents.Noise),
		slog.Int("retail", cfg.Agents.Retail))
	return nil
}

// Run steps the simulation to the close, injecting scheduled news and
// recording tick metrics. ctx cancels an in-flight run between ticks.
func (b *Bootstrap) Run(ctx context.Context) error {
	ex := b.Exchange
	for {
		select {
		case <-ctx.Done():
			slog.Warn("run interrupted", slog.Int64("clock", int64(ex.Clock())))
			return ctx.Err()
		default:
		}

		b.injectDueNews()

		start := time.Now()
		err := ex.Step()
		infra.GlobalMetrics.RecordTick(time.Since(start))
		if err != nil {
			infra.GlobalMetrics.RecordError()
			return err
		}
		b.flushTrades(false)
		if ex.Ended() {
			break
		}
	}
	b.flushTrades(true)

	snap := ex.Snapshot()
	infra.GlobalMetrics.RecordSettlements(int(snap.Settled))
	slog.Info("run complete",
		slog.Uint64("ticks", infra.GlobalMetrics.Ticks()),
		slog.Uint64("events", snap.EventCount),
		slog.Int64("orders", snap.OrdersTotal),
		slog.Int64("settled", snap.Settled),
		slog.Duration("avg_tick", infra.GlobalMetrics.AvgTickLatency()))
	return nil
}

// injectDueNews fires every scheduled shock whose time has come.
func (b *Bootstrap) injectDueNews() {
	now := b.Exchange.Clock()
	for b.nextNews < len(b.news) {
		n := b.news[b.nextNews]
		if quant.TimeStamp(n.AtMS*1_000_000) > now {
			return
		}
		b.Exchange.InjectNews(n.Headline, n.Sentiment, n.Magnitude, n.Symbols)
		b.nextNews++
	}
}

// flushTrades archives buffered executions once a batch has built up,
// or unconditionally when force is set.
func (b *Bootstrap) flushTrades(force bool) {
	if b.Archive == nil || len(b.tradeBuf) == 0 {
		return
	}
	if !force && len(b.tradeBuf) < tradeFlushBatch {
		return
	}
	if err := b.Archive.ArchiveTrades(b.tradeBuf); err != nil {
		slog.Warn("trade archival failed",
			slog.Int("trades", len(b.tradeBuf)), slog.Any("error", err))
	}
	b.tradeBuf = b.tradeBuf[:0]
}

// Close flushes and releases external resources.
func (b *Bootstrap) Close() {
	if b.Archive != nil {
		b.flushTrades(true)
		if err := b.Archive.Close(); err != nil {
			slog.Warn("archive close failed", slog.Any("error", err))
		}
	}
}
