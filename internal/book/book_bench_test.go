package book

import (
	"testing"

	"marketsim/internal/domain"
	"marketsim/pkg/quant"
)

// BenchmarkInsertCancel measures the resting-order churn path.
func BenchmarkInsertCancel(b *testing.B) {
	bk := New("TST")
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		id := int64(i + 1)
		price := (995 + quant.PriceMicros(i%10)) * cent
		bk.Insert(mkOrder(id, domain.Buy, price, 10))
		bk.Cancel(id)
	}
}

// BenchmarkBestBid measures top-of-book lookup against a deep book.
func BenchmarkBestBid(b *testing.B) {
	bk := New("TST")
	for i := 0; i < 200; i++ {
		bk.Insert(mkOrder(int64(i+1), domain.Buy, (800+quant.PriceMicros(i))*cent, 10))
		bk.Insert(mkOrder(int64(i+1001), domain.Sell, (1001+quant.PriceMicros(i))*cent, 10))
	}
	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		bk.BestBid()
		bk.BestAsk()
	}
}
