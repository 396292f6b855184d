package options

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/ingestion"
	"github.com/jeovahfialho/b3-pregao/internal/storage/cache"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

const (
	DefaultPriceURL = "https://opcoes.net.br/chartData/json"
	refererBase     = "https://opcoes.net.br/"
)

// ChartPoint é uma linha de chartData: instante do negócio, prêmio, preço do
// ativo-objeto e volatilidade implícita.
type ChartPoint struct {
	Time       string              `json:"time"`
	Premium    decimal.NullDecimal `json:"premium"`
	Underlying decimal.NullDecimal `json:"underlying"`
	ImpliedVol decimal.NullDecimal `json:"implied_vol"`
}

type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []ChartPoint `json:"points"`
}

var PriceColumns = []string{"Time", "Premium", "Underlying", "ImpliedVol"}

type PriceClient struct {
	baseURL    string
	httpClient *http.Client
	pacer      *ingestion.Pacer
}

func NewPriceClient(baseURL string, httpClient *http.Client, pacer *ingestion.Pacer) *PriceClient {
	if baseURL == "" {
		baseURL = DefaultPriceURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PriceClient{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient, pacer: pacer}
}

func (c *PriceClient) History(ctx context.Context, ticker string) (*PriceSeries, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, errors.New("ticker da opção vazio")
	}

	if err := c.pacer.Wait(ctx); err != nil {
		return nil, err
	}

	target := c.baseURL + "/" + url.PathEscape(ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("erro ao criar request: %w", err)
	}
	req.Header.Set("Accept", "application/json, */*; q=0.01")
	req.Header.Set("Accept-Language", "pt-BR,pt;q=0.9")
	req.Header.Set("Referer", refererBase+ticker)
	req.Header.Set("Sec-Fetch-Dest", "empty")
	req.Header.Set("Sec-Fetch-Mode", "cors")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erro ao buscar histórico de %s: %w", ticker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %d para URL: %s", ingestion.ErrUnexpectedStatus, resp.StatusCode, target)
	}

	points, err := decodeChartData(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("erro ao interpretar histórico de %s: %w", ticker, err)
	}

	logger.Info("histórico de opção recuperado", zap.String("ticker", ticker), zap.Int("rows", len(points)))

	return &PriceSeries{Ticker: ticker, Points: points}, nil
}

func decodeChartData(r io.Reader) ([]ChartPoint, error) {
	var payload struct {
		ChartData [][]json.RawMessage `json:"chartData"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, err
	}

	points := make([]ChartPoint, 0, len(payload.ChartData))
	for i, row := range payload.ChartData {
		var p ChartPoint
		fields := []*decimal.NullDecimal{&p.Premium, &p.Underlying, &p.ImpliedVol}

		for j, raw := range row {
			if j == 0 {
				p.Time = rawText(raw)
				continue
			}
			if j > len(fields) {
				break
			}
			if err := fields[j-1].UnmarshalJSON(raw); err != nil {
				return nil, fmt.Errorf("linha %d coluna %d: %w", i, j, err)
			}
		}
		points = append(points, p)
	}

	return points, nil
}

func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

func (s *PriceSeries) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(PriceColumns); err != nil {
		return err
	}
	for _, p := range s.Points {
		if err := writer.Write([]string{p.Time, nullText(p.Premium), nullText(p.Underlying), nullText(p.ImpliedVol)}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func nullText(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl ...time.Duration) error
}

type PriceSource interface {
	History(ctx context.Context, ticker string) (*PriceSeries, error)
}

// CachedPriceClient consulta o cache antes do site; erro de cache não
// impede a resposta.
type CachedPriceClient struct {
	source PriceSource
	cache  Cache
}

func NewCachedPriceClient(source PriceSource, c Cache) *CachedPriceClient {
	return &CachedPriceClient{source: source, cache: c}
}

func CacheKey(ticker string) string {
	return "options:chart:" + strings.ToUpper(strings.TrimSpace(ticker))
}

func (c *CachedPriceClient) History(ctx context.Context, ticker string) (*PriceSeries, error) {
	if c.cache == nil {
		return c.source.History(ctx, ticker)
	}

	key := CacheKey(ticker)

	var cached PriceSeries
	err := c.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		logger.Warn("erro ao ler cache", zap.String("key", key), zap.Error(err))
	}

	series, err := c.source.History(ctx, ticker)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, series); err != nil {
		logger.Warn("erro ao salvar no cache", zap.String("key", key), zap.Error(err))
	}

	return series, nil
}
