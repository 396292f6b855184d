package exporter

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
)

const SheetName = "Negociações"

// colunas gravadas como texto; as demais viram número quando possível
var textColumns = map[int]bool{0: true, 1: true}

// WriteXLSX grava a tabela numa planilha com o mesmo cabeçalho do CSV.
func WriteXLSX(path string, table domain.DayTable) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("erro ao nomear planilha: %w", err)
	}

	sw, err := f.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("erro ao abrir planilha: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("erro ao criar estilo: %w", err)
	}

	header := make([]interface{}, len(domain.Columns))
	for i, col := range domain.Columns {
		header[i] = excelize.Cell{StyleID: bold, Value: col}
	}
	if err := sw.SetRow("A1", header, excelize.RowOpts{}); err != nil {
		return fmt.Errorf("erro ao escrever cabeçalho: %w", err)
	}

	for i, rec := range table {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, rowValues(rec)); err != nil {
			return fmt.Errorf("erro ao escrever linha %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("erro ao finalizar planilha: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("erro ao criar diretório: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("erro ao salvar %s: %w", path, err)
	}

	return nil
}

func rowValues(rec domain.TradeRecord) []interface{} {
	values := rec.Values()
	row := make([]interface{}, len(values))
	for i, v := range values {
		if textColumns[i] {
			row[i] = v
			continue
		}
		if d, ok := domain.Decimal(v); ok {
			row[i] = d.InexactFloat64()
			continue
		}
		row[i] = v
	}
	return row
}
