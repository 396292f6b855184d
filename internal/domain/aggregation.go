package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TickerStats struct {
	Ticker      string          `json:"ticker"`
	FirstDate   string          `json:"first_date"`
	LastDate    string          `json:"last_date"`
	DaysTraded  int             `json:"days_traded"`
	TotalQty    decimal.Decimal `json:"total_qty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	LastPrice   decimal.Decimal `json:"last_price"`
	PriceRange  decimal.Decimal `json:"price_range"`
	AvgPrice    decimal.Decimal `json:"avg_price"`
}

// DayTableInfo descreve um CSV diário presente no diretório de saída.
type DayTableInfo struct {
	Code    FileCode  `json:"code"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

type ReportFilter struct {
	Ticker    string
	StartDate *time.Time
	EndDate   *time.Time
}

// PriceReport é a linha tipada carregada no Postgres.
type PriceReport struct {
	TradeDate   time.Time           `db:"trade_date" json:"trade_date"`
	Ticker      string              `db:"ticker" json:"ticker"`
	FirstPrice  decimal.NullDecimal `db:"first_price" json:"first_price"`
	MinPrice    decimal.NullDecimal `db:"min_price" json:"min_price"`
	MaxPrice    decimal.NullDecimal `db:"max_price" json:"max_price"`
	LastPrice   decimal.NullDecimal `db:"last_price" json:"last_price"`
	AvgPrice    decimal.NullDecimal `db:"avg_price" json:"avg_price"`
	Oscillation decimal.NullDecimal `db:"oscillation_pct" json:"oscillation_pct"`
	TradeQty    int64               `db:"trade_qty" json:"trade_qty"`
	TradeAmount decimal.NullDecimal `db:"trade_amount" json:"trade_amount"`
}
