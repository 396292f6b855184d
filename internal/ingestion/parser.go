package ingestion

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

// Namespaces do boletim de negociação (BVMF 217 dentro do envelope BVMF 052).
var Namespaces = map[string]string{
	"bvmf052": "urn:bvmf.052.01.xsd",
	"head":    "urn:iso:std:iso:20022:tech:xsd:head.001.001.01",
	"bvmf217": "urn:bvmf.217.01.xsd",
}

const priceReportPath = "//bvmf217:PricRpt"

type fieldPath struct {
	path string
	set  func(*domain.TradeRecord, string)
}

var fieldPaths = []fieldPath{
	{"bvmf217:TradDt/bvmf217:Dt", func(r *domain.TradeRecord, v string) { r.TradeDate = v }},
	{"bvmf217:SctyId/bvmf217:TckrSymb", func(r *domain.TradeRecord, v string) { r.Ticker = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:FrstPric", func(r *domain.TradeRecord, v string) { r.FirstPrice = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:MinPric", func(r *domain.TradeRecord, v string) { r.MinPrice = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:MaxPric", func(r *domain.TradeRecord, v string) { r.MaxPrice = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:LastPric", func(r *domain.TradeRecord, v string) { r.LastPrice = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:TradAvrgPric", func(r *domain.TradeRecord, v string) { r.AvgPrice = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:OscnPctg", func(r *domain.TradeRecord, v string) { r.OscillationPct = v }},
	{"bvmf217:TradDtls/bvmf217:TradQty", func(r *domain.TradeRecord, v string) { r.TradeQty = v }},
	{"bvmf217:FinInstrmAttrbts/bvmf217:RglrTraddCtrcts", func(r *domain.TradeRecord, v string) { r.TradeAmount = v }},
}

type compiledField struct {
	expr *xpath.Expr
	set  func(*domain.TradeRecord, string)
}

type Parser struct {
	reports *xpath.Expr
	fields  []compiledField
}

func NewParser() (*Parser, error) {
	reports, err := xpath.CompileWithNS(priceReportPath, Namespaces)
	if err != nil {
		return nil, fmt.Errorf("erro ao compilar %s: %w", priceReportPath, err)
	}

	p := &Parser{reports: reports}
	for _, f := range fieldPaths {
		expr, err := xpath.CompileWithNS(f.path, Namespaces)
		if err != nil {
			return nil, fmt.Errorf("erro ao compilar %s: %w", f.path, err)
		}
		p.fields = append(p.fields, compiledField{expr: expr, set: f.set})
	}

	return p, nil
}

func MustNewParser() *Parser {
	p, err := NewParser()
	if err != nil {
		panic(err)
	}
	return p
}

// ParseFile lê um boletim XML. Em falha de leitura ou XML malformado devolve
// tabela vazia junto com o erro.
func (p *Parser) ParseFile(path string) (domain.DayTable, error) {
	file, err := os.Open(path)
	if err != nil {
		logger.Warn("erro ao abrir boletim", zap.String("path", path), zap.Error(err))
		return domain.DayTable{}, fmt.Errorf("erro ao abrir arquivo: %w", err)
	}
	defer file.Close()

	table, err := p.Parse(file)
	if err != nil {
		logger.Warn("erro ao interpretar boletim", zap.String("path", path), zap.Error(err))
		return table, err
	}

	logger.Debug("boletim interpretado", zap.String("path", path), zap.Int("rows", len(table)))
	return table, nil
}

func (p *Parser) Parse(r io.Reader) (domain.DayTable, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return domain.DayTable{}, fmt.Errorf("XML inválido: %w", err)
	}

	nodes := xmlquery.QuerySelectorAll(doc, p.reports)
	table := make(domain.DayTable, 0, len(nodes))

	for _, node := range nodes {
		table = append(table, p.parseReport(node))
	}

	metrics.RecordsParsed.Add(float64(len(table)))
	return table, nil
}

// Sub-caminho ausente vira campo vazio.
func (p *Parser) parseReport(node *xmlquery.Node) domain.TradeRecord {
	var rec domain.TradeRecord
	for _, f := range p.fields {
		if found := xmlquery.QuerySelector(node, f.expr); found != nil {
			f.set(&rec, strings.TrimSpace(found.InnerText()))
		}
	}
	return rec
}
