package ingestion

import (
	"context"
	"sync"
)

// ProcessFunc carrega um arquivo e devolve quantos registros gravou.
type ProcessFunc func(ctx context.Context, filePath string) (int64, error)

// WorkerPool distribui arquivos entre workers que chamam o mesmo ProcessFunc.
type WorkerPool struct {
	workers  int
	process  ProcessFunc
	jobQueue chan Job
	wg       sync.WaitGroup
}

type Job struct {
	FilePath string
	Result   chan<- JobResult
}

type JobResult struct {
	FilePath     string
	RecordsCount int64
	Error        error
}

func NewWorkerPool(workers int, process ProcessFunc) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers:  workers,
		process:  process,
		jobQueue: make(chan Job, workers*2),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) Submit(job Job) {
	wp.jobQueue <- job
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		// com o contexto cancelado os jobs restantes falham sem processar
		if err := ctx.Err(); err != nil {
			job.Result <- JobResult{FilePath: job.FilePath, Error: err}
			continue
		}

		count, err := wp.process(ctx, job.FilePath)
		job.Result <- JobResult{
			FilePath:     job.FilePath,
			RecordsCount: count,
			Error:        err,
		}
	}
}

// ProcessAll envia todos os arquivos ao pool e devolve os resultados na
// ordem de entrada.
func ProcessAll(ctx context.Context, workers int, files []string, process ProcessFunc) []JobResult {
	pool := NewWorkerPool(workers, process)
	pool.Start(ctx)

	results := make(chan JobResult, len(files))
	go func() {
		for _, f := range files {
			pool.Submit(Job{FilePath: f, Result: results})
		}
		pool.Stop()
		close(results)
	}()

	byPath := make(map[string][]JobResult, len(files))
	for r := range results {
		byPath[r.FilePath] = append(byPath[r.FilePath], r)
	}

	ordered := make([]JobResult, 0, len(files))
	for _, f := range files {
		ordered = append(ordered, byPath[f][0])
		byPath[f] = byPath[f][1:]
	}
	return ordered
}
