package ingestion

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAll(t *testing.T) {
	var calls int32
	process := func(ctx context.Context, path string) (int64, error) {
		atomic.AddInt32(&calls, 1)
		if path == "ruim.csv" {
			return 0, errors.New("arquivo ilegível")
		}
		return int64(len(path)), nil
	}

	files := []string{"a.csv", "ruim.csv", "bb.csv", "a.csv"}
	results := ProcessAll(context.Background(), 3, files, process)

	require.Len(t, results, 4)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	for i, r := range results {
		assert.Equal(t, files[i], r.FilePath)
	}
	assert.Equal(t, int64(5), results[0].RecordsCount)
	assert.Error(t, results[1].Error)
	assert.Equal(t, int64(6), results[2].RecordsCount)
	assert.NoError(t, results[3].Error)
}

func TestProcessAll_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	process := func(ctx context.Context, path string) (int64, error) {
		t.Errorf("não deveria processar %s", path)
		return 0, nil
	}

	results := ProcessAll(ctx, 2, []string{"a.csv", "b.csv"}, process)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.ErrorIs(t, r.Error, context.Canceled)
	}
}

func TestNewWorkerPool_MinimumOneWorker(t *testing.T) {
	pool := NewWorkerPool(0, nil)
	assert.Equal(t, 1, pool.workers)
}
