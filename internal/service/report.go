package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ReportService consulta os boletins carregados no Postgres.
type ReportService struct {
	db    Querier
	table string
}

func NewReportService(db Querier, table string) *ReportService {
	if table == "" {
		table = "price_reports"
	}
	return &ReportService{db: db, table: table}
}

func (s *ReportService) TickerHistory(ctx context.Context, filter domain.ReportFilter, limit int) (history []domain.PriceReport, err error) {
	timer := metrics.NewTimer()
	defer func() {
		metrics.RecordDatabaseQuery("ticker_history", metrics.QueryStatus(err), timer.Elapsed().Seconds())
	}()

	query, args := historyQuery(s.table, filter, limit)

	logger.Debug("executando query de histórico",
		zap.String("ticker", filter.Ticker),
		zap.Any("start_date", filter.StartDate),
		zap.Any("end_date", filter.EndDate))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar histórico: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r domain.PriceReport
		var first, min, max, last, avg, osc, amount pgtype.Numeric

		if err := rows.Scan(
			&r.TradeDate,
			&r.Ticker,
			&first,
			&min,
			&max,
			&last,
			&avg,
			&osc,
			&r.TradeQty,
			&amount,
		); err != nil {
			return nil, fmt.Errorf("erro ao escanear linha: %w", err)
		}

		r.FirstPrice = fromNumeric(first)
		r.MinPrice = fromNumeric(min)
		r.MaxPrice = fromNumeric(max)
		r.LastPrice = fromNumeric(last)
		r.AvgPrice = fromNumeric(avg)
		r.Oscillation = fromNumeric(osc)
		r.TradeAmount = fromNumeric(amount)

		history = append(history, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("erro ao iterar resultados: %w", err)
	}

	logger.Info("histórico recuperado",
		zap.String("ticker", filter.Ticker),
		zap.Int("records", len(history)))

	return history, nil
}

func historyQuery(table string, filter domain.ReportFilter, limit int) (string, []any) {
	query := fmt.Sprintf(`
        SELECT
            trade_date,
            ticker,
            first_price,
            min_price,
            max_price,
            last_price,
            avg_price,
            oscillation_pct,
            trade_qty,
            trade_amount
        FROM %s
        WHERE ticker = $1`, pgx.Identifier{table}.Sanitize())

	args := []any{filter.Ticker}

	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += fmt.Sprintf(" AND trade_date >= $%d", len(args))
	}

	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += fmt.Sprintf(" AND trade_date <= $%d", len(args))
	}

	query += " ORDER BY trade_date DESC"

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return query, args
}

func fromNumeric(n pgtype.Numeric) decimal.NullDecimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromBigInt(n.Int, n.Exp), Valid: true}
}
