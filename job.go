package qsim

import (
	"sync"
	"time"
)

// Job is one chunk of data-parallel work handed to a pool worker.
type Job struct {
	ID        int
	Fn        func() error
	StartTime time.Time

	batch *batch
}

/*
batch tracks the jobs of one Run call. It is the barrier between successive
gate applications: Run returns only after every job in the batch finished.
*/
type batch struct {
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs []error
}

func (b *batch) done(err error) {
	if err != nil {
		b.mu.Lock()
		b.errs = append(b.errs, err)
		b.mu.Unlock()
	}

	b.wg.Done()
}
