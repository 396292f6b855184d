package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jeovahfialho/b3-pregao/internal/domain"
	"github.com/jeovahfialho/b3-pregao/pkg/logger"
)

type RecordLoader interface {
	LoadRecords(ctx context.Context, table domain.DayTable) (int64, error)
}

type TableReader func(path string) (domain.DayTable, error)

// IngestionService carrega um CSV consolidado (ou diário) no banco.
type IngestionService struct {
	read   TableReader
	loader RecordLoader
}

func NewIngestionService(read TableReader, loader RecordLoader) *IngestionService {
	return &IngestionService{
		read:   read,
		loader: loader,
	}
}

type ProcessFileResult struct {
	FilePath     string
	RowsRead     int
	RecordsCount int64
}

func (s *IngestionService) ProcessFile(ctx context.Context, filePath string) (*ProcessFileResult, error) {
	logger.Info("processando arquivo", zap.String("file", filePath))

	table, err := s.read(filePath)
	if err != nil {
		return nil, fmt.Errorf("erro ao ler %s: %w", filePath, err)
	}

	count, err := s.loader.LoadRecords(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("erro ao carregar %s: %w", filePath, err)
	}

	logger.Info("arquivo carregado",
		zap.String("file", filePath),
		zap.Int("rows", len(table)),
		zap.Int64("loaded", count))

	return &ProcessFileResult{
		FilePath:     filePath,
		RowsRead:     len(table),
		RecordsCount: count,
	}, nil
}
