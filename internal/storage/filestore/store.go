package filestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
)

// Store é o diretório de saída: a existência de um CSV diário é o checkpoint
// que marca o pregão como processado.
type Store struct {
	root string
}

func New(root string) *Store {
	if root == "" {
		root = "."
	}
	return &Store{root: root}
}

func (s *Store) Root() string {
	return s.root
}

func (s *Store) Path(name string) string {
	return filepath.Join(s.root, name)
}

func (s *Store) Exists(name string) bool {
	_, err := os.Stat(s.Path(name))
	return err == nil
}

func (s *Store) WriteTable(name string, table domain.DayTable) error {
	return WriteCSV(s.Path(name), table)
}

func (s *Store) ReadTable(name string) (domain.DayTable, error) {
	return ReadCSV(s.Path(name))
}

func (s *Store) RemoveAll(name string) error {
	return os.RemoveAll(s.Path(name))
}

// DayTables lista os CSVs diários em ordem de nome.
func (s *Store) DayTables() ([]domain.DayTableInfo, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("erro ao listar diretório %s: %w", s.root, err)
	}

	var tables []domain.DayTableInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsDayTable(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		tables = append(tables, domain.DayTableInfo{
			Code:    codeFromDayTable(name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	return tables, nil
}

func IsDayTable(name string) bool {
	return strings.HasSuffix(name, ".csv") && strings.Contains(name, domain.DayTablePrefix)
}

func codeFromDayTable(name string) domain.FileCode {
	digits := strings.TrimSuffix(strings.TrimPrefix(name, domain.DayTablePrefix+" 20"), ".csv")
	code, err := domain.ParseFileCode("PR" + digits)
	if err != nil {
		return ""
	}
	return code
}

// WriteCSV grava num arquivo temporário e renomeia, para que um CSV
// incompleto nunca satisfaça o checkpoint.
func WriteCSV(path string, table domain.DayTable) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("erro ao criar diretório: %w", err)
		}
	}

	tempFile := path + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("erro ao criar arquivo: %w", err)
	}

	if err := EncodeCSV(file, table); err != nil {
		file.Close()
		os.Remove(tempFile)
		return err
	}

	if err := file.Close(); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("erro ao fechar arquivo: %w", err)
	}

	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("erro ao renomear arquivo: %w", err)
	}

	return nil
}

func EncodeCSV(w io.Writer, table domain.DayTable) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(domain.Columns); err != nil {
		return fmt.Errorf("erro ao escrever cabeçalho: %w", err)
	}

	for i, rec := range table {
		if err := writer.Write(rec.Values()); err != nil {
			return fmt.Errorf("erro ao escrever linha %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func ReadCSV(path string) (domain.DayTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("erro ao abrir arquivo: %w", err)
	}
	defer file.Close()

	return DecodeCSV(file)
}

func DecodeCSV(r io.Reader) (domain.DayTable, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return domain.DayTable{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("erro ao ler cabeçalho: %w", err)
	}

	index := domain.ColumnIndex(header)
	if _, ok := index["Ticker"]; !ok {
		return nil, fmt.Errorf("cabeçalho sem coluna Ticker: %v", header)
	}

	table := domain.DayTable{}
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("erro na linha %d: %w", line, err)
		}
		table = append(table, domain.RecordFromValues(index, row))
	}

	return table, nil
}
