package convworker

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrPoolStopped is returned for jobs submitted after Stop.
var ErrPoolStopped = errors.New("conversion worker pool is stopped")

// ConversionJob is one converter invocation. Jobs for the same fingerprint
// route to the same worker, so a single process never runs the same
// document twice in parallel even before the store-level reservation is
// consulted.
type ConversionJob struct {
	ID          string
	Fingerprint string
	Run         func(ctx context.Context) (json.RawMessage, error)
	done        chan jobResult
}

type jobResult struct {
	result json.RawMessage
	err    error
}

// PoolStats contains point-in-time pool metrics.
type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalErrors     int64         `json:"total_errors"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
}

// WorkerStats contains per-worker metrics.
type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// ConversionPool bounds how many converter invocations a process runs at
// once. Each worker owns its queue; jobs are sharded onto workers by
// fingerprint hash.
type ConversionPool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32

	totalDispatched int64
	totalProcessed  int64
	totalErrors     int64
}

type worker struct {
	id            int
	jobQueue      chan ConversionJob
	isProcessing  int32 // atomic: 1 if processing, 0 if idle
	jobsProcessed int64 // atomic counter
	pool          *ConversionPool
}

func NewConversionPool(numWorkers, queueSize int) *ConversionPool {
	if numWorkers <= 0 {
		numWorkers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	return &ConversionPool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
}

// Start launches the workers.
func (p *ConversionPool) Start() {
	for i := 0; i < p.numWorkers; i++ {
		w := &worker{
			id:       i,
			jobQueue: make(chan ConversionJob, p.queueSize),
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}

	logrus.Infof("[CONV_POOL] Started with %d workers, queue size: %d", p.numWorkers, p.queueSize)
}

// Do runs the conversion on the worker assigned to the fingerprint and
// waits for its result. Enqueueing blocks when the worker's queue is full;
// both the enqueue and the wait honour ctx.
func (p *ConversionPool) Do(ctx context.Context, fingerprint string, run func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if atomic.LoadInt32(&p.stopped) == 1 {
		return nil, ErrPoolStopped
	}

	job := ConversionJob{
		ID:          uuid.NewString(),
		Fingerprint: fingerprint,
		Run:         run,
		done:        make(chan jobResult, 1),
	}

	shard := p.shardForFingerprint(fingerprint)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		// Stop closes the queues; a send racing it must not take the
		// process down.
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		case <-ctx.Done():
			return false
		}
	}()
	if !sent {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrPoolStopped
	}

	select {
	case res := <-job.done:
		return res.result, res.err
	case <-ctx.Done():
		// The worker still finishes the job and drops the result into the
		// buffered channel; only this caller stops waiting.
		return nil, ctx.Err()
	}
}

// Stop drains the pool gracefully.
func (p *ConversionPool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		logrus.Info("[CONV_POOL] Stopping workers...")

		for _, w := range p.workers {
			close(w.jobQueue)
		}
		p.wg.Wait()

		logrus.Info("[CONV_POOL] All workers stopped")
	})
}

func (p *ConversionPool) shardForFingerprint(fingerprint string) int {
	h := fnv.New32a()
	h.Write([]byte(fingerprint))
	return int(h.Sum32() % uint32(p.numWorkers))
}

// GetStats returns point-in-time pool metrics.
func (p *ConversionPool) GetStats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}

		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	logrus.Debugf("[CONV_POOL] Worker %d started", w.id)

	for job := range w.jobQueue {
		atomic.StoreInt32(&w.isProcessing, 1)

		ctx := context.Background()
		result, err := job.Run(ctx)

		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
		if err != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Debugf("[CONV_POOL] Worker %d job %s failed: %v", w.id, job.ID, err)
		}

		job.done <- jobResult{result: result, err: err}
	}

	logrus.Debugf("[CONV_POOL] Worker %d shutting down", w.id)
}
