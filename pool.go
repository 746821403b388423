package qsim

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
)

/*
Pool is a fixed-size worker pool for the host backend. Idle workers offer
their job channel on workers; the manager hands each queued job to the next
idle worker. Run is a full barrier: it returns once every job it submitted has
finished.

The pool lives until Close. Callers' contexts do not reach it, so a gate step
that started always runs to the end.
*/
type Pool struct {
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	workers    chan chan Job
	jobs       chan Job
	workerList []*Worker
	metrics    *Metrics
	closed     atomic.Bool
}

/*
NewPool starts size workers. A size of zero or less uses the number of
logical CPUs.
*/
func NewPool(size int, metrics *Metrics) *Pool {
	if size <= 0 {
		size = HardwareThreads()
	}

	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		ctx:        ctx,
		cancel:     cancel,
		workers:    make(chan chan Job, size),
		jobs:       make(chan Job, size*4),
		workerList: make([]*Worker, 0, size),
		metrics:    metrics,
	}

	for i := 0; i < size; i++ {
		p.startWorker(i)
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.manage()
	}()

	return p
}

// HardwareThreads reports the logical CPU count, preferring gopsutil.
func HardwareThreads() int {
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}

	return runtime.NumCPU()
}

func (p *Pool) manage() {
	for {
		select {
		case <-p.ctx.Done():
			return
		case job := <-p.jobs:
			select {
			case <-p.ctx.Done():
				job.batch.done(fmt.Errorf("%w: pool closed", ErrBackend))
				return
			case workerChan := <-p.workers:
				select {
				case workerChan <- job:
				case <-p.ctx.Done():
					job.batch.done(fmt.Errorf("%w: pool closed", ErrBackend))
					return
				}
			}
		}
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workerList) }

/*
Run submits fns as one batch and blocks until all of them completed. The
first error (or recovered panic) is returned after the barrier.
*/
func (p *Pool) Run(fns []func() error) error {
	if p.closed.Load() {
		return fmt.Errorf("%w: pool closed", ErrBackend)
	}

	b := &batch{}
	b.wg.Add(len(fns))
	start := time.Now()

	for i, fn := range fns {
		select {
		case p.jobs <- Job{ID: i, Fn: fn, StartTime: start, batch: b}:
		case <-p.ctx.Done():
			for range fns[i:] {
				b.done(fmt.Errorf("%w: pool closed", ErrBackend))
			}

			p.wg.Wait()
			p.drain()
			b.wg.Wait()

			return errors.Join(b.errs...)
		}
	}

	b.wg.Wait()

	return errors.Join(b.errs...)
}

func (p *Pool) startWorker(id int) {
	w := &Worker{
		id:   id,
		pool: p,
		jobs: make(chan Job),
	}
	p.workerList = append(p.workerList, w)

	p.metrics.mu.Lock()
	p.metrics.WorkerCount++
	p.metrics.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		w.run()
	}()
}

// drain fails jobs that were queued but never reached a worker.
func (p *Pool) drain() {
	for {
		select {
		case job := <-p.jobs:
			job.batch.done(fmt.Errorf("%w: pool closed", ErrBackend))
		default:
			return
		}
	}
}

/*
Close stops every worker. It must not race a Run call; the owning backend
guarantees that.
*/
func (p *Pool) Close() {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return
	}

	p.cancel()
	p.wg.Wait()
	p.drain()

	p.metrics.mu.Lock()
	p.metrics.WorkerCount -= len(p.workerList)
	p.metrics.mu.Unlock()

	logger.Debug("pool closed", "workers", len(p.workerList))
}
