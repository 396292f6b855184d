package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/storage/filestore"
)

func TestComputeTickerStats(t *testing.T) {
	rows := domain.DayTable{
		{TradeDate: "2025-01-02", Ticker: "PETR4", MinPrice: "36.90", MaxPrice: "37.80", LastPrice: "37.50", AvgPrice: "37.00", TradeQty: "100", TradeAmount: "10"},
		{TradeDate: "2025-01-02", Ticker: "PETR3", MinPrice: "1", MaxPrice: "99", TradeQty: "5"},
		{TradeDate: "2025-01-03", Ticker: "PETR4", MinPrice: "37.20", MaxPrice: "38.40", LastPrice: "38.00", AvgPrice: "38.00", TradeQty: "300", TradeAmount: "20"},
	}

	stats, err := ComputeTickerStats("PETR4", rows)
	require.NoError(t, err)

	assert.Equal(t, "2025-01-02", stats.FirstDate)
	assert.Equal(t, "2025-01-03", stats.LastDate)
	assert.Equal(t, 2, stats.DaysTraded)
	assert.True(t, decimal.NewFromInt(400).Equal(stats.TotalQty))
	assert.True(t, decimal.NewFromInt(30).Equal(stats.TotalAmount))
	assert.Equal(t, "36.9", stats.MinPrice.String())
	assert.Equal(t, "38.4", stats.MaxPrice.String())
	assert.Equal(t, "38", stats.LastPrice.String())
	assert.Equal(t, "1.5", stats.PriceRange.String())
	assert.Equal(t, "37.75", stats.AvgPrice.String())
}

func TestComputeTickerStats_NotFound(t *testing.T) {
	_, err := ComputeTickerStats("VALE3", domain.DayTable{{TradeDate: "2025-01-02", Ticker: "PETR4", TradeQty: "1"}})
	assert.True(t, errors.Is(err, ErrTickerNotFound))
}

func TestAnalysisService_TickerStatsIsExactMatch(t *testing.T) {
	store := filestore.New(t.TempDir())
	require.NoError(t, store.WriteTable(domain.FileCode("PR250102").DayTableName(), domain.DayTable{
		{TradeDate: "2025-01-02", Ticker: "BOVA11", LastPrice: "120", TradeQty: "10"},
		{TradeDate: "2025-01-02", Ticker: "BOVA11F", LastPrice: "121", TradeQty: "3"},
	}))

	svc := NewAnalysisService(NewMergeService(store, filestore.WriteCSV))
	stats, err := svc.TickerStats(context.Background(), "BOVA11")
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(10).Equal(stats.TotalQty))
	assert.Equal(t, "120", stats.LastPrice.String())
}
