package qsim

import (
	"fmt"
)

// Worker processes chunks handed out by the pool manager.
type Worker struct {
	id   int
	pool *Pool
	jobs chan Job
}

func (w *Worker) run() {
	for {
		select {
		case <-w.pool.ctx.Done():
			return
		case w.pool.workers <- w.jobs:
			select {
			case job := <-w.jobs:
				job.batch.done(w.processJob(job))
			case <-w.pool.ctx.Done():
				return
			}
		}
	}
}

func (w *Worker) processJob(job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: worker %d job %d panicked: %v", ErrBackend, w.id, job.ID, r)
		}

		w.pool.metrics.recordJobExecution(job.StartTime, err == nil)
	}()

	return job.Fn()
}
