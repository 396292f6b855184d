package ingestion

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

var priceReportColumns = []string{
	"trade_date",
	"ticker",
	"first_price",
	"min_price",
	"max_price",
	"last_price",
	"avg_price",
	"oscillation_pct",
	"trade_qty",
	"trade_amount",
}

type BulkLoader struct {
	pool      *pgxpool.Pool
	table     string
	batchSize int
}

func NewBulkLoader(pool *pgxpool.Pool, table string, batchSize int) *BulkLoader {
	if table == "" {
		table = "price_reports"
	}
	if batchSize <= 0 {
		batchSize = 10000
	}
	return &BulkLoader{
		pool:      pool,
		table:     table,
		batchSize: batchSize,
	}
}

// PrepareReports tipa os registros; linhas sem data ou ticker são descartadas
// e contadas em skipped.
func PrepareReports(table domain.DayTable) (reports []domain.PriceReport, skipped int) {
	reports = make([]domain.PriceReport, 0, len(table))
	for _, rec := range table {
		report, err := rec.PriceReport()
		if err != nil {
			skipped++
			logger.Debug("registro ignorado na carga", zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, skipped
}

func (l *BulkLoader) LoadRecords(ctx context.Context, table domain.DayTable) (int64, error) {
	reports, skipped := PrepareReports(table)
	if skipped > 0 {
		logger.Warn("registros sem data ou ticker ignorados", zap.Int("rows", skipped))
	}

	var total int64
	for _, chunk := range splitIntoChunks(reports, l.batchSize) {
		count, err := l.LoadReports(ctx, chunk)
		total += count
		if err != nil {
			return total, err
		}
	}

	return total, nil
}

func (l *BulkLoader) LoadReports(ctx context.Context, reports []domain.PriceReport) (loaded int64, err error) {
	if len(reports) == 0 {
		return 0, nil
	}

	timer := metrics.NewTimer()
	defer func() {
		metrics.RecordDatabaseQuery("copy", metrics.QueryStatus(err), timer.Elapsed().Seconds())
	}()

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("erro ao iniciar transação: %w", err)
	}
	defer tx.Rollback(ctx)

	staging := l.table + "_staging"
	if _, err := tx.Exec(ctx, stagingSQL(l.table, staging)); err != nil {
		return 0, fmt.Errorf("erro ao criar tabela de carga: %w", err)
	}

	if _, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{staging},
		priceReportColumns,
		&reportSource{reports: reports},
	); err != nil {
		return 0, fmt.Errorf("erro no COPY: %w", err)
	}

	// recarregar o mesmo consolidado atualiza as linhas em vez de duplicar
	tag, err := tx.Exec(ctx, upsertSQL(l.table, staging))
	if err != nil {
		return 0, fmt.Errorf("erro ao gravar boletins: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("erro no commit: %w", err)
	}

	return tag.RowsAffected(), nil
}

func stagingSQL(table, staging string) string {
	return fmt.Sprintf("CREATE TEMP TABLE IF NOT EXISTS %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{staging}.Sanitize(), pgx.Identifier{table}.Sanitize())
}

func upsertSQL(table, staging string) string {
	cols := strings.Join(priceReportColumns, ", ")

	var updates []string
	for _, col := range priceReportColumns[2:] {
		updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT DISTINCT ON (trade_date, ticker) %s FROM %s ORDER BY trade_date, ticker "+
			"ON CONFLICT (trade_date, ticker) DO UPDATE SET %s",
		pgx.Identifier{table}.Sanitize(), cols, cols, pgx.Identifier{staging}.Sanitize(), strings.Join(updates, ", "))
}

type reportSource struct {
	reports []domain.PriceReport
	index   int
}

func (rs *reportSource) Next() bool {
	rs.index++
	return rs.index <= len(rs.reports)
}

func (rs *reportSource) Values() ([]interface{}, error) {
	if rs.index > len(rs.reports) {
		return nil, nil
	}
	return reportValues(rs.reports[rs.index-1]), nil
}

func (rs *reportSource) Err() error {
	return nil
}

func reportValues(r domain.PriceReport) []interface{} {
	return []interface{}{
		pgtype.Date{Time: r.TradeDate, Valid: true},
		r.Ticker,
		numeric(r.FirstPrice),
		numeric(r.MinPrice),
		numeric(r.MaxPrice),
		numeric(r.LastPrice),
		numeric(r.AvgPrice),
		numeric(r.Oscillation),
		r.TradeQty,
		numeric(r.TradeAmount),
	}
}

func numeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return pgtype.Numeric{Int: d.Decimal.Coefficient(), Exp: d.Decimal.Exponent(), Valid: true}
}

func splitIntoChunks(reports []domain.PriceReport, size int) [][]domain.PriceReport {
	var chunks [][]domain.PriceReport

	for i := 0; i < len(reports); i += size {
		end := i + size
		if end > len(reports) {
			end = len(reports)
		}
		chunks = append(chunks, reports[i:end])
	}

	return chunks
}
