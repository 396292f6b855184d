package filestore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
)

func sampleTable() domain.DayTable {
	return domain.DayTable{
		{TradeDate: "2025-01-02", Ticker: "PETR4", FirstPrice: "37.10", TradeQty: "100", TradeAmount: "12"},
		{TradeDate: "2025-01-02", Ticker: "VALE3", OscillationPct: "-1.5", TradeQty: "0"},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "saida"))

	require.NoError(t, store.WriteTable("Negociações 20250102.csv", sampleTable()))
	assert.True(t, store.Exists("Negociações 20250102.csv"))
	assert.False(t, store.Exists("Negociações 20250102.csv.tmp"))

	got, err := store.ReadTable("Negociações 20250102.csv")
	require.NoError(t, err)
	assert.Equal(t, sampleTable(), got)
}

func TestWriteCSV_Header(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vazio.csv")
	require.NoError(t, WriteCSV(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"TradeDate,Ticker,FirstPrice,MinPrice,MaxPrice,LastPrice,AvgPrice,OscnPctg,TradeQty,TradeAmount\n",
		string(data))
}

func TestDecodeCSV(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		table, err := DecodeCSV(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, table)
	})

	t.Run("missing ticker column", func(t *testing.T) {
		_, err := DecodeCSV(strings.NewReader("a,b\n1,2\n"))
		assert.Error(t, err)
	})

	t.Run("subset of columns", func(t *testing.T) {
		table, err := DecodeCSV(strings.NewReader("Ticker,TradeQty,TradeDate\nPETR4,100,2025-01-02\n"))
		require.NoError(t, err)
		require.Len(t, table, 1)
		assert.Equal(t, "PETR4", table[0].Ticker)
		assert.Equal(t, "2025-01-02", table[0].TradeDate)
	})
}

func TestDayTables(t *testing.T) {
	root := t.TempDir()
	store := New(root)

	require.NoError(t, store.WriteTable("Negociações 20250103.csv", nil))
	require.NoError(t, store.WriteTable("Negociações 20250102.csv", nil))
	require.NoError(t, os.WriteFile(filepath.Join(root, "outro.csv"), []byte("x"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "PR250104"), 0755))

	tables, err := store.DayTables()
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "Negociações 20250102.csv", tables[0].Name)
	assert.Equal(t, domain.FileCode("PR250102"), tables[0].Code)
	assert.Equal(t, domain.FileCode("PR250103"), tables[1].Code)
}

func TestDayTables_MissingRoot(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nao-existe"))

	tables, err := store.DayTables()
	require.NoError(t, err)
	assert.Empty(t, tables)
}

func TestRemoveAll(t *testing.T) {
	store := New(t.TempDir())
	require.NoError(t, os.MkdirAll(store.Path("PR250102/sub"), 0755))

	require.NoError(t, store.RemoveAll("PR250102"))
	assert.False(t, store.Exists("PR250102"))
}
