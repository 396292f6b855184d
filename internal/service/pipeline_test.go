package service

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/storage/filestore"
)

func zipBytes(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func dayXML(date string, rows map[string]string) []byte {
	var sb strings.Builder
	sb.WriteString(`<BizFileHdr xmlns="urn:bvmf.052.01.xsd"><Xchg><BizGrp><Document xmlns="urn:bvmf.217.01.xsd">`)
	for ticker, qty := range rows {
		fmt.Fprintf(&sb, `<PricRpt><TradDt><Dt>%s</Dt></TradDt><SctyId><TckrSymb>%s</TckrSymb></SctyId>`+
			`<TradDtls><TradQty>%s</TradQty></TradDtls><FinInstrmAttrbts><LastPric>10.5</LastPric></FinInstrmAttrbts></PricRpt>`,
			date, ticker, qty)
	}
	sb.WriteString(`</Document></BizGrp></Xchg></BizFileHdr>`)
	return []byte(sb.String())
}

// portal simula o serviço de boletins: um zip externo contendo outro zip com
// o XML do pregão.
type portal struct {
	t      *testing.T
	mu     sync.Mutex
	hits   map[string]int
	broken map[string]bool
}

func (p *portal) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(r.URL.Query().Get("filelist"), ",")
	code := strings.TrimSuffix(name, ".zip")

	p.mu.Lock()
	p.hits[code]++
	broken := p.broken[code]
	p.mu.Unlock()

	if broken {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	c := domain.FileCode(code)
	d, err := c.Date()
	if !assert.NoError(p.t, err) {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	inner := zipBytes(p.t, "BVBG.086.01_"+code+".xml", dayXML(d.Format(domain.DateLayout), map[string]string{"PETR4": "100"}))
	w.Write(zipBytes(p.t, "SPRE"+code+".zip", inner))
}

func TestHistoryPipeline_EndToEnd(t *testing.T) {
	p := &portal{t: t, hits: map[string]int{}, broken: map[string]bool{"PR250103": true}}
	server := httptest.NewServer(p)
	defer server.Close()

	root := t.TempDir()
	store := filestore.New(filepath.Join(root, "Histórico B3"))
	svc := NewHistoryService(
		ingestion.NewDownloader(server.URL, ingestion.WithPacer(ingestion.NewPacer(0, 0))),
		ingestion.NewUnpacker(false),
		ingestion.MustNewParser(),
		store,
		filepath.Join(root, "zips"),
	)

	codes := []domain.FileCode{"PR250102", "PR250103", "PR250104"}
	summary := svc.Run(context.Background(), codes)

	assert.Equal(t, 2, summary.Written)
	assert.Equal(t, []domain.FileCode{"PR250103"}, summary.FailedCodes())

	table, err := store.ReadTable("Negociações 20250102.csv")
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, "2025-01-02", table[0].TradeDate)
	assert.Equal(t, "PETR4", table[0].Ticker)
	assert.Equal(t, "100", table[0].TradeQty)
	assert.Equal(t, "10.5", table[0].LastPrice)

	// somente os CSVs diários sobram no diretório de saída
	tables, err := store.DayTables()
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, domain.FileCode("PR250102"), tables[0].Code)
	assert.Equal(t, domain.FileCode("PR250104"), tables[1].Code)
	assert.NoDirExists(t, store.Path("PR250102"))

	p.mu.Lock()
	p.broken = map[string]bool{}
	p.mu.Unlock()

	retry := svc.Run(context.Background(), codes)
	assert.Equal(t, 1, retry.Written)
	assert.Equal(t, 2, retry.Skipped)

	p.mu.Lock()
	assert.Equal(t, map[string]int{"PR250102": 1, "PR250103": 2, "PR250104": 1}, p.hits)
	p.mu.Unlock()

	merged, _, err := NewMergeService(store, filestore.WriteCSV).Collect(context.Background(), domain.MustCompileTickerPattern("PETR.*"))
	require.NoError(t, err)
	require.Len(t, merged, 3)
	assert.Equal(t, "2025-01-02", merged[0].TradeDate)
	assert.Equal(t, "2025-01-04", merged[2].TradeDate)
}
