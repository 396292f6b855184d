package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
)

var ErrTickerNotFound = errors.New("ticker sem negócios no consolidado")

type RowCollector interface {
	Collect(ctx context.Context, pattern *domain.TickerPattern) (domain.DayTable, MergeStats, error)
}

type AnalysisService struct {
	rows RowCollector
}

func NewAnalysisService(rows RowCollector) *AnalysisService {
	return &AnalysisService{rows: rows}
}

func (s *AnalysisService) TickerStats(ctx context.Context, ticker string) (*domain.TickerStats, error) {
	pattern, err := domain.CompileTickerPattern([]string{"^" + regexp.QuoteMeta(ticker) + "$"})
	if err != nil {
		return nil, err
	}

	rows, _, err := s.rows.Collect(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("erro ao consolidar %s: %w", ticker, err)
	}

	return ComputeTickerStats(ticker, rows)
}

// ComputeTickerStats resume os pregões de um ticker. As linhas devem estar
// ordenadas por TradeDate; o preço médio é ponderado pela quantidade.
func ComputeTickerStats(ticker string, rows domain.DayTable) (*domain.TickerStats, error) {
	stats := &domain.TickerStats{Ticker: ticker}
	days := make(map[string]struct{})

	var weighted decimal.Decimal
	var hasMin, hasMax bool

	for _, r := range rows {
		if r.Ticker != ticker {
			continue
		}

		if r.TradeDate != "" {
			if stats.FirstDate == "" {
				stats.FirstDate = r.TradeDate
			}
			stats.LastDate = r.TradeDate
			days[r.TradeDate] = struct{}{}
		}

		qty, _ := domain.Decimal(r.TradeQty)
		stats.TotalQty = stats.TotalQty.Add(qty)

		if amount, ok := domain.Decimal(r.TradeAmount); ok {
			stats.TotalAmount = stats.TotalAmount.Add(amount)
		}
		if min, ok := domain.Decimal(r.MinPrice); ok && (!hasMin || min.LessThan(stats.MinPrice)) {
			stats.MinPrice, hasMin = min, true
		}
		if max, ok := domain.Decimal(r.MaxPrice); ok && (!hasMax || max.GreaterThan(stats.MaxPrice)) {
			stats.MaxPrice, hasMax = max, true
		}
		if last, ok := domain.Decimal(r.LastPrice); ok {
			stats.LastPrice = last
		}
		if avg, ok := domain.Decimal(r.AvgPrice); ok {
			weighted = weighted.Add(avg.Mul(qty))
		}
	}

	if len(days) == 0 && stats.TotalQty.IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrTickerNotFound, ticker)
	}

	stats.DaysTraded = len(days)
	stats.PriceRange = stats.MaxPrice.Sub(stats.MinPrice)
	if stats.TotalQty.IsPositive() {
		stats.AvgPrice = weighted.DivRound(stats.TotalQty, 4)
	}

	return stats, nil
}
