package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
	"github.com/jeovahfialho/b3-pregao/pkg/metrics"
)

type ArchiveFetcher interface {
	Fetch(ctx context.Context, code domain.FileCode, dir string) (string, error)
}

type ArchiveUnpacker interface {
	Unpack(archivePath, destDir string) ([]string, error)
}

type ReportParser interface {
	ParseFile(path string) (domain.DayTable, error)
}

// ArtifactStore é o diretório de saída visto pelo orquestrador.
type ArtifactStore interface {
	Exists(name string) bool
	Path(name string) string
	WriteTable(name string, table domain.DayTable) error
	RemoveAll(name string) error
}

type Stage string

const (
	StagePending   Stage = "pending"
	StageFetched   Stage = "fetched"
	StageExtracted Stage = "extracted"
	StageParsed    Stage = "parsed"
	StageWritten   Stage = "written"
)

type DayResult struct {
	Code    domain.FileCode
	Stage   Stage
	Skipped bool
	Rows    int
	Err     error
}

func (r DayResult) Outcome() string {
	switch {
	case r.Skipped:
		return "skipped"
	case r.Stage == StageWritten:
		return "written"
	default:
		return "failed_" + string(r.Stage)
	}
}

type RunSummary struct {
	Results []DayResult
	Written int
	Skipped int
	Failed  int
}

func (s RunSummary) FailedCodes() []domain.FileCode {
	var codes []domain.FileCode
	for _, r := range s.Results {
		if !r.Skipped && r.Stage != StageWritten {
			codes = append(codes, r.Code)
		}
	}
	return codes
}

const reportExtension = ".xml"

type HistoryService struct {
	fetcher    ArchiveFetcher
	unpacker   ArchiveUnpacker
	parser     ReportParser
	store      ArtifactStore
	archiveDir string
}

func NewHistoryService(fetcher ArchiveFetcher, unpacker ArchiveUnpacker, parser ReportParser, store ArtifactStore, archiveDir string) *HistoryService {
	return &HistoryService{
		fetcher:    fetcher,
		unpacker:   unpacker,
		parser:     parser,
		store:      store,
		archiveDir: archiveDir,
	}
}

// Pending filtra os códigos cujo CSV diário ainda não existe.
func (s *HistoryService) Pending(codes []domain.FileCode) []domain.FileCode {
	var pending []domain.FileCode
	for _, code := range codes {
		if !s.store.Exists(code.DayTableName()) {
			pending = append(pending, code)
		}
	}
	return pending
}

// Run processa os pregões em sequência. A falha de um dia não interrompe os
// demais; só o cancelamento do contexto encerra o laço.
func (s *HistoryService) Run(ctx context.Context, codes []domain.FileCode) RunSummary {
	var summary RunSummary

	for _, code := range codes {
		if err := ctx.Err(); err != nil {
			logger.Warn("execução cancelada", zap.String("file_code", code.String()), zap.Error(err))
			break
		}

		result := s.ProcessDay(ctx, code)
		metrics.RecordDay(result.Outcome())
		summary.Results = append(summary.Results, result)

		switch {
		case result.Skipped:
			summary.Skipped++
		case result.Stage == StageWritten:
			summary.Written++
		default:
			summary.Failed++
		}
	}

	logger.Info("processamento de pregões concluído",
		zap.Int("total", len(summary.Results)),
		zap.Int("written", summary.Written),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))

	return summary
}

// ProcessDay leva um pregão de pending até written. Erro de parse no XML não
// grava tabela vazia: o CSV só é gravado quando o parse termina sem erro, e o
// dia continua pendente para a próxima execução. Um último arquivo que não é
// XML gera tabela vazia.
func (s *HistoryService) ProcessDay(ctx context.Context, code domain.FileCode) DayResult {
	result := DayResult{Code: code, Stage: StagePending}
	output := code.DayTableName()

	if s.store.Exists(output) {
		logger.Debug("pregão já processado", zap.String("file_code", code.String()))
		result.Skipped = true
		return result
	}

	timer := metrics.NewTimer()
	archive, err := s.fetcher.Fetch(ctx, code, s.archiveDir)
	timer.ObserveDuration(metrics.StageDuration.WithLabelValues(string(StageFetched)))
	if err != nil {
		result.Err = fmt.Errorf("erro ao baixar %s: %w", code, err)
		return result
	}
	result.Stage = StageFetched

	// diretório temporário do pregão, removido aconteça o que acontecer
	workDir := code.String()
	defer func() {
		if err := s.store.RemoveAll(workDir); err != nil {
			logger.Warn("erro ao remover diretório temporário",
				zap.String("path", s.store.Path(workDir)), zap.Error(err))
		}
	}()

	timer = metrics.NewTimer()
	files, err := s.unpacker.Unpack(archive, s.store.Path(workDir))
	timer.ObserveDuration(metrics.StageDuration.WithLabelValues(string(StageExtracted)))
	if err != nil {
		// um zip corrompido não pode ser reaproveitado na próxima execução
		if rmErr := os.Remove(archive); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("erro ao remover arquivo corrompido", zap.String("path", archive), zap.Error(rmErr))
		}
		result.Err = fmt.Errorf("erro ao extrair %s: %w", code, err)
		return result
	}
	if len(files) == 0 {
		result.Err = fmt.Errorf("arquivo %s sem conteúdo", code)
		logger.Warn("arquivo do pregão vazio", zap.String("file_code", code.String()))
		return result
	}
	result.Stage = StageExtracted

	table := domain.DayTable{}
	report := lastPath(files)
	if strings.EqualFold(filepath.Ext(report), reportExtension) {
		timer = metrics.NewTimer()
		table, err = s.parser.ParseFile(report)
		timer.ObserveDuration(metrics.StageDuration.WithLabelValues(string(StageParsed)))
		if err != nil {
			// sem CSV o pregão continua pendente e será tentado de novo
			result.Err = fmt.Errorf("erro ao interpretar %s: %w", report, err)
			return result
		}
	} else {
		logger.Warn("último arquivo extraído não é XML",
			zap.String("file_code", code.String()), zap.String("path", report))
	}
	result.Stage = StageParsed
	result.Rows = len(table)

	if err := s.store.WriteTable(output, table); err != nil {
		result.Err = fmt.Errorf("erro ao gravar %s: %w", output, err)
		logger.Error("erro ao gravar tabela do pregão", zap.String("file_code", code.String()), zap.Error(err))
		return result
	}
	result.Stage = StageWritten

	logger.Info("pregão processado",
		zap.String("file_code", code.String()),
		zap.String("path", s.store.Path(output)),
		zap.Int("rows", len(table)))

	return result
}

func lastPath(paths []string) string {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)
	return sorted[len(sorted)-1]
}

