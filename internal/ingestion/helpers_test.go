package ingestion

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type zipEntry struct {
	name string
	data []byte
}

func buildZip(t testing.TB, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, e := range entries {
		f, err := w.Create(e.name)
		require.NoError(t, err)
		_, err = f.Write(e.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	return buf.Bytes()
}

func writeZip(t testing.TB, path string, entries ...zipEntry) string {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, buildZip(t, entries...), 0644))
	return path
}

type reportFixture struct {
	date   string
	ticker string
	qty    string
	skip   string
}

// priceReportXML gera um boletim no formato do envelope BVMF 052 com namespaces
// padrão, como o portal publica.
func priceReportXML(reports ...reportFixture) []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString(`<BizFileHdr xmlns="urn:bvmf.052.01.xsd"><Xchg><BizGrp>`)
	sb.WriteString(`<AppHdr xmlns="urn:iso:std:iso:20022:tech:xsd:head.001.001.01"><Fr><Id>BVMF</Id></Fr></AppHdr>`)
	sb.WriteString(`<Document xmlns="urn:bvmf.217.01.xsd">`)

	for _, r := range reports {
		sb.WriteString("<PricRpt>")
		if r.skip != "TradDt" {
			fmt.Fprintf(&sb, "<TradDt><Dt>%s</Dt></TradDt>", r.date)
		}
		if r.skip != "SctyId" {
			fmt.Fprintf(&sb, "<SctyId><TckrSymb>%s</TckrSymb></SctyId>", r.ticker)
		}
		if r.skip != "TradDtls" {
			fmt.Fprintf(&sb, "<TradDtls><TradQty>%s</TradQty></TradDtls>", r.qty)
		}
		sb.WriteString("<FinInstrmAttrbts>")
		sb.WriteString(`<MktDataStrmId>E</MktDataStrmId>`)
		sb.WriteString(`<NtlFinVol Ccy="BRL">1000.00</NtlFinVol>`)
		sb.WriteString(`<RglrTraddCtrcts>12</RglrTraddCtrcts>`)
		sb.WriteString(`<FrstPric Ccy="BRL">37.10</FrstPric>`)
		sb.WriteString(`<MinPric Ccy="BRL">36.90</MinPric>`)
		sb.WriteString(`<MaxPric Ccy="BRL">37.80</MaxPric>`)
		sb.WriteString(`<TradAvrgPric Ccy="BRL">37.35</TradAvrgPric>`)
		sb.WriteString(`<LastPric Ccy="BRL">37.50</LastPric>`)
		if r.skip != "OscnPctg" {
			sb.WriteString(`<OscnPctg>1.08</OscnPctg>`)
		}
		sb.WriteString("</FinInstrmAttrbts>")
		sb.WriteString("</PricRpt>")
	}

	sb.WriteString(`</Document></BizGrp></Xchg></BizFileHdr>`)
	return []byte(sb.String())
}
