package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

const (
	DefaultHistoryURL     = "https://www.b3.com.br/pesquisapregao/download"
	DefaultHistoryReferer = "https://www.b3.com.br/pt_br/market-data-e-indices/servicos-de-dados/market-data/historico/boletins-diarios/pesquisa-por-pregao/pesquisa-por-pregao/"
)

var ErrUnexpectedStatus = errors.New("status inesperado")

type Downloader struct {
	baseURL    string
	referer    string
	httpClient *http.Client
	pacer      *Pacer
}

type DownloaderOption func(*Downloader)

func WithHTTPClient(client *http.Client) DownloaderOption {
	return func(d *Downloader) { d.httpClient = client }
}

func WithPacer(p *Pacer) DownloaderOption {
	return func(d *Downloader) { d.pacer = p }
}

func WithReferer(referer string) DownloaderOption {
	return func(d *Downloader) { d.referer = referer }
}

func NewDownloader(baseURL string, opts ...DownloaderOption) *Downloader {
	if baseURL == "" {
		baseURL = DefaultHistoryURL
	}

	d := &Downloader{
		baseURL: baseURL,
		referer: DefaultHistoryReferer,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
		pacer: NewPacer(100*time.Millisecond, 3*time.Second),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

func (d *Downloader) URL(code domain.FileCode) string {
	// O portal espera a lista de arquivos terminada em vírgula.
	return fmt.Sprintf("%s?filelist=%s,", d.baseURL, url.QueryEscape(code.ArchiveName()))
}

// Fetch baixa o zip do pregão para dir (vazio = diretório corrente) e devolve
// o caminho salvo. Falhas são registradas e devolvidas; quem chama decide pular.
func (d *Downloader) Fetch(ctx context.Context, code domain.FileCode, dir string) (string, error) {
	path, err := d.fetch(ctx, code, dir)
	if err != nil {
		metrics.RecordDownload("error", 0)
		logger.Warn("falha ao baixar arquivo do pregão",
			zap.String("file_code", code.String()),
			zap.Error(err))
		return "", err
	}
	return path, nil
}

func (d *Downloader) fetch(ctx context.Context, code domain.FileCode, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("erro ao criar diretório: %w", err)
	}

	outputPath := filepath.Join(dir, code.ArchiveName())

	if _, err := os.Stat(outputPath); err == nil {
		logger.Info("arquivo já existe", zap.String("path", outputPath))
		return outputPath, nil
	}

	if err := d.pacer.Wait(ctx); err != nil {
		return "", err
	}

	target := d.URL(code)
	logger.Info("baixando arquivo", zap.String("file_code", code.String()), zap.String("url", target))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("erro ao criar request: %w", err)
	}
	req.Header.Set("Referer", d.referer)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("erro ao fazer download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: %d para URL: %s", ErrUnexpectedStatus, resp.StatusCode, target)
	}

	tempFile := outputPath + ".tmp"
	file, err := os.Create(tempFile)
	if err != nil {
		return "", fmt.Errorf("erro ao criar arquivo: %w", err)
	}

	written, err := io.Copy(file, resp.Body)
	file.Close()

	if err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("erro ao salvar arquivo: %w", err)
	}

	if err := os.Rename(tempFile, outputPath); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("erro ao renomear arquivo: %w", err)
	}

	metrics.RecordDownload("ok", written)
	logger.Info("arquivo baixado",
		zap.String("path", outputPath),
		zap.Float64("mb", float64(written)/(1024*1024)))

	return outputPath, nil
}
