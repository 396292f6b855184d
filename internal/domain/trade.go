package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Columns é o cabeçalho exato dos CSVs diários e do consolidado.
var Columns = []string{
	"TradeDate",
	"Ticker",
	"FirstPrice",
	"MinPrice",
	"MaxPrice",
	"LastPrice",
	"AvgPrice",
	"OscnPctg",
	"TradeQty",
	"TradeAmount",
}

// TradeRecord guarda os campos como texto, exatamente como vieram do boletim.
// Campos ausentes ficam vazios.
type TradeRecord struct {
	TradeDate      string `json:"trade_date"`
	Ticker         string `json:"ticker"`
	FirstPrice     string `json:"first_price"`
	MinPrice       string `json:"min_price"`
	MaxPrice       string `json:"max_price"`
	LastPrice      string `json:"last_price"`
	AvgPrice       string `json:"avg_price"`
	OscillationPct string `json:"oscillation_pct"`
	TradeQty       string `json:"trade_qty"`
	TradeAmount    string `json:"trade_amount"`
}

type DayTable []TradeRecord

func (r TradeRecord) Values() []string {
	return []string{
		r.TradeDate,
		r.Ticker,
		r.FirstPrice,
		r.MinPrice,
		r.MaxPrice,
		r.LastPrice,
		r.AvgPrice,
		r.OscillationPct,
		r.TradeQty,
		r.TradeAmount,
	}
}

// RecordFromValues monta um registro a partir de uma linha, usando o índice
// de cada coluna no cabeçalho lido. Colunas ausentes ficam vazias.
func RecordFromValues(index map[string]int, row []string) TradeRecord {
	get := func(col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	return TradeRecord{
		TradeDate:      get("TradeDate"),
		Ticker:         get("Ticker"),
		FirstPrice:     get("FirstPrice"),
		MinPrice:       get("MinPrice"),
		MaxPrice:       get("MaxPrice"),
		LastPrice:      get("LastPrice"),
		AvgPrice:       get("AvgPrice"),
		OscillationPct: get("OscnPctg"),
		TradeQty:       get("TradeQty"),
		TradeAmount:    get("TradeAmount"),
	}
}

func ColumnIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimPrefix(strings.TrimSpace(col), "\ufeff")] = i
	}
	return index
}

// Decimal converte um campo textual; vazio ou inválido retorna ok=false.
func Decimal(value string) (decimal.Decimal, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func (r TradeRecord) HasPositiveQty() bool {
	qty, ok := Decimal(r.TradeQty)
	return ok && qty.IsPositive()
}

// PriceReport tipa o registro para carga no banco. TradeDate e Ticker são obrigatórios.
func (r TradeRecord) PriceReport() (PriceReport, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(r.TradeDate))
	if err != nil {
		return PriceReport{}, fmt.Errorf("data inválida %q: %w", r.TradeDate, err)
	}
	ticker := strings.TrimSpace(r.Ticker)
	if ticker == "" {
		return PriceReport{}, fmt.Errorf("ticker vazio em %s", r.TradeDate)
	}

	var qty int64
	if d, ok := Decimal(r.TradeQty); ok {
		qty = d.IntPart()
	}

	return PriceReport{
		TradeDate:   date,
		Ticker:      ticker,
		FirstPrice:  nullDecimal(r.FirstPrice),
		MinPrice:    nullDecimal(r.MinPrice),
		MaxPrice:    nullDecimal(r.MaxPrice),
		LastPrice:   nullDecimal(r.LastPrice),
		AvgPrice:    nullDecimal(r.AvgPrice),
		Oscillation: nullDecimal(r.OscillationPct),
		TradeQty:    qty,
		TradeAmount: nullDecimal(r.TradeAmount),
	}, nil
}

func nullDecimal(value string) decimal.NullDecimal {
	d, ok := Decimal(value)
	return decimal.NullDecimal{Decimal: d, Valid: ok}
}
