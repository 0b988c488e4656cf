// Package storage externalizes run history to SQLite. The archive is
// an event.Sink, so a capacity-bounded in-memory log spills its full
// history here instead of dropping it.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"marketsim/internal/domain"
	"marketsim/internal/event"
	"marketsim/internal/infra"
)

// EventRecord is one archived event row. Payload carries the full
// event as JSON; seq and type are broken out for querying.
type EventRecord struct {
	ID      uint   `gorm:"primaryKey"`
	RunID   string `gorm:"index;size:36"`
	Seq     uint64 `gorm:"index"`
	Ts      int64
	Type    string `gorm:"index;size:32"`
	Payload string
}

// TradeRecord is one archived execution, denormalized for reporting.
type TradeRecord struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"index;size:36"`
	TradeID      int64  `gorm:"index"`
	Symbol       string `gorm:"index;size:16"`
	PriceMicros  int64
	Qty          int64
	BuyerID      int64
	SellerID     int64
	Ts           int64
	AuctionTrade bool
}

// RunRecord identifies one simulation run in the archive.
type RunRecord struct {
	RunID     string `gorm:"primaryKey;size:36"`
	Seed      int64
	StartedAt time.Time
	Note      string
}

// Archive persists run history. One Archive serves one run; the run id
// is minted at open.
type Archive struct {
	db    *gorm.DB
	runID string
}

// Open connects to (or creates) the archive database at path and
// registers a new run.
func Open(path string, seed int64) (*Archive, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create archive directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	if err := db.AutoMigrate(&RunRecord{}, &EventRecord{}, &TradeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate archive: %w", err)
	}

	a := &Archive{db: db, runID: uuid.NewString()}
	run := RunRecord{RunID: a.runID, Seed: seed, StartedAt: time.Now()}
	if err := db.Create(&run).Error; err != nil {
		return nil, fmt.Errorf("register run: %w", err)
	}
	return a, nil
}

// RunID returns this run's archive identifier.
func (a *Archive) RunID() string { return a.runID }

// SpillEvents implements event.Sink: evicted events land here with
// their sequence numbers intact.
func (a *Archive) SpillEvents(evs []event.SimEvent) error {
	if len(evs) == 0 {
		return nil
	}
	records := make([]EventRecord, 0, len(evs))
	for _, ev := range evs {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal event seq=%d: %w", ev.GetSeq(), err)
		}
		records = append(records, EventRecord{
			RunID:   a.runID,
			Seq:     ev.GetSeq(),
			Ts:      int64(ev.GetTs()),
			Type:    ev.GetType().String(),
			Payload: string(payload),
		})
	}
	if err := a.db.CreateInBatches(records, 200).Error; err != nil {
		return err
	}
	infra.GlobalMetrics.RecordSpill(len(records))
	return nil
}

// ArchiveTrades writes executions for reporting queries.
func (a *Archive) ArchiveTrades(trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	records := make([]TradeRecord, 0, len(trades))
	for _, t := range trades {
		records = append(records, TradeRecord{
			RunID:        a.runID,
			TradeID:      t.ID,
			Symbol:       t.Symbol,
			PriceMicros:  int64(t.Price),
			Qty:          int64(t.Qty),
			BuyerID:      t.BuyerID,
			SellerID:     t.SellerID,
			Ts:           int64(t.Timestamp),
			AuctionTrade: t.AuctionTrade,
		})
	}
	return a.db.CreateInBatches(records, 200).Error
}

// EventsBetween returns archived event rows for this run with
// fromSeq <= seq <= toSeq, in sequence order.
func (a *Archive) EventsBetween(fromSeq, toSeq uint64) ([]EventRecord, error) {
	var out []EventRecord
	err := a.db.
		Where("run_id = ? AND seq >= ? AND seq <= ?", a.runID, fromSeq, toSeq).
		Order("seq asc").
		Find(&out).Error
	return out, err
}

// TradeCount returns the number of archived trades for this run.
func (a *Archive) TradeCount() (int64, error) {
	var n int64
	err := a.db.Model(&TradeRecord{}).Where("run_id = ?", a.runID).Count(&n).Error
	return n, err
}

// Close releases the underlying connection.
func (a *Archive) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
