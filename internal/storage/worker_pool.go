package storage

import (
	"errors"
	"runtime"
	"sync"
)

// ErrPoolClosed is returned when submitting to a closed pool
var ErrPoolClosed = errors.New("worker pool closed")

// ErrQueueFull is returned by TrySubmit when every queue slot is taken
var ErrQueueFull = errors.New("worker pool queue full")

// WorkerPool runs background upload jobs on a fixed number of goroutines
type WorkerPool struct {
	workers  int
	jobQueue chan func()
	wg       sync.WaitGroup
	start    sync.Once

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool creates a pool with the given number of workers and a
// queue twice that deep
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (wp *WorkerPool) Start() {
	wp.start.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		wp.runJob(job)
	}
}

func (wp *WorkerPool) runJob(job func()) {
	defer wp.wg.Done()
	job()
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(job func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}
	wp.wg.Add(1)
	wp.jobQueue <- job
	return nil
}

// TrySubmit queues a job only if there is room
func (wp *WorkerPool) TrySubmit(job func()) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()
	if wp.closed {
		return ErrPoolClosed
	}
	wp.wg.Add(1)
	select {
	case wp.jobQueue <- job:
		return nil
	default:
		wp.wg.Done()
		return ErrQueueFull
	}
}

// Wait blocks until every submitted job has finished
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// Close stops accepting jobs. Queued jobs still run.
func (wp *WorkerPool) Close() {
	wp.mu.Lock()
	defer wp.mu.Unlock()
	if wp.closed {
		return
	}
	wp.closed = true
	close(wp.jobQueue)
}
