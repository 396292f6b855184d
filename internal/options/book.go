package options

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

const DefaultBookURL = "https://arquivos.b3.com.br/bdi/table/export/csv?lang=pt-BR"

// Categorias do boletim de opções exportado pelo BDI.
const (
	SellingIndexOptions  = "SellingIndixesOptions"
	SellingOptions       = "SellingOptions"
	PurchaseOptions      = "PurchaseOptions"
	PurchaseIndexOptions = "PurchaseIndixesOptions"
)

var Categories = []string{
	SellingIndexOptions,
	SellingOptions,
	PurchaseOptions,
	PurchaseIndexOptions,
}

const (
	tableMarker  = "Negócios Realizados;"
	footerMarker = "(*) Lote de mil"
)

type exportRequest struct {
	Name      string            `json:"Name"`
	Date      string            `json:"Date"`
	FinalDate string            `json:"FinalDate"`
	ClientID  string            `json:"ClientId"`
	Filters   map[string]string `json:"Filters"`
}

type BookDownloader struct {
	url        string
	httpClient *http.Client
	pacer      *ingestion.Pacer
}

func NewBookDownloader(url string, httpClient *http.Client, pacer *ingestion.Pacer) *BookDownloader {
	if url == "" {
		url = DefaultBookURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	return &BookDownloader{url: url, httpClient: httpClient, pacer: pacer}
}

// Download grava <dir>/<data>/<categoria>.csv com a tabela de negócios da
// categoria no dia. Um arquivo já presente não é baixado de novo.
func (d *BookDownloader) Download(ctx context.Context, category string, date time.Time, dir string) (string, error) {
	day := date.Format(domain.DateLayout)
	path := filepath.Join(dir, day, category+".csv")

	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		logger.Debug("boletim de opções já existe", zap.String("path", path))
		return path, nil
	}

	if err := d.pacer.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(exportRequest{
		Name:      category,
		Date:      day,
		FinalDate: day,
		Filters:   map[string]string{},
	})
	if err != nil {
		return "", fmt.Errorf("erro ao serializar pedido: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("erro ao criar request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("erro ao baixar boletim: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d para %s em %s", ingestion.ErrUnexpectedStatus, resp.StatusCode, category, day)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("erro ao ler resposta: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("erro ao criar diretório: %w", err)
	}
	if err := os.WriteFile(path, []byte(ExtractTable(string(raw))), 0644); err != nil {
		return "", fmt.Errorf("erro ao gravar boletim: %w", err)
	}

	return path, nil
}

type BookSummary struct {
	Written []string
	Failed  int
}

// DownloadRange percorre dias × categorias em sequência; falhas são
// registradas e puladas.
func (d *BookDownloader) DownloadRange(ctx context.Context, start, end time.Time, categories []string, dir string) (BookSummary, error) {
	var summary BookSummary

	for _, date := range domain.DateRange(start, end) {
		for _, category := range categories {
			if err := ctx.Err(); err != nil {
				return summary, err
			}

			path, err := d.Download(ctx, category, date, dir)
			if err != nil {
				summary.Failed++
				logger.Warn("falha ao baixar boletim de opções",
					zap.String("category", category),
					zap.String("date", date.Format(domain.DateLayout)),
					zap.Error(err))
				continue
			}
			summary.Written = append(summary.Written, path)
		}
	}

	return summary, nil
}

// ExtractTable corta a exportação entre o último cabeçalho de "Negócios
// Realizados" e o rodapé "(*) Lote de mil".
func ExtractTable(text string) string {
	if i := strings.LastIndex(text, tableMarker); i >= 0 {
		text = text[i+len(tableMarker):]
	}
	if i := strings.Index(text, footerMarker); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
