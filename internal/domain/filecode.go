package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	fileCodePrefix = "PR"
	fileCodeLayout = "060102"

	// DayTablePrefix identifica os CSVs diários dentro do diretório de saída.
	DayTablePrefix = "Negociações"
)

var ErrInvalidDateRange = errors.New("intervalo de datas inválido")

// FileCode identifica o arquivo de um pregão no portal da B3 (ex: PR250102).
type FileCode string

func NewFileCode(date time.Time) FileCode {
	return FileCode(fileCodePrefix + date.Format(fileCodeLayout))
}

func ParseFileCode(s string) (FileCode, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, fileCodePrefix) || len(s) != len(fileCodePrefix)+len(fileCodeLayout) {
		return "", fmt.Errorf("código de arquivo inválido: %q", s)
	}
	if _, err := time.Parse(fileCodeLayout, strings.TrimPrefix(s, fileCodePrefix)); err != nil {
		return "", fmt.Errorf("código de arquivo inválido: %q: %w", s, err)
	}
	return FileCode(s), nil
}

func (c FileCode) String() string {
	return string(c)
}

func (c FileCode) Date() (time.Time, error) {
	return time.Parse(fileCodeLayout, strings.TrimPrefix(string(c), fileCodePrefix))
}

func (c FileCode) ArchiveName() string {
	return string(c) + ".zip"
}

// DayTableName segue o nome histórico dos arquivos: "Negociações 20250102.csv".
func (c FileCode) DayTableName() string {
	return DayTablePrefix + " 20" + strings.TrimPrefix(string(c), fileCodePrefix) + ".csv"
}

func ParseDateRange(start, end string) (time.Time, time.Time, error) {
	from, err := time.Parse(DateLayout, strings.TrimSpace(start))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: data inicial %q: %v", ErrInvalidDateRange, start, err)
	}

	to, err := time.Parse(DateLayout, strings.TrimSpace(end))
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: data final %q: %v", ErrInvalidDateRange, end, err)
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: %s é posterior a %s", ErrInvalidDateRange, start, end)
	}

	return from, to, nil
}

// DateRange devolve todos os dias corridos entre start e end, inclusive.
func DateRange(start, end time.Time) []time.Time {
	start = truncateDay(start)
	end = truncateDay(end)

	var dates []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func GenerateFileCodes(start, end time.Time) ([]FileCode, error) {
	if truncateDay(start).After(truncateDay(end)) {
		return nil, fmt.Errorf("%w: %s é posterior a %s",
			ErrInvalidDateRange, start.Format(DateLayout), end.Format(DateLayout))
	}

	dates := DateRange(start, end)
	codes := make([]FileCode, 0, len(dates))
	for _, d := range dates {
		codes = append(codes, NewFileCode(d))
	}
	return codes, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
