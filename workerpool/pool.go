package workerpool

import (
	"sync"

	"github.com/fewshotml/fewshot/errors"
)

// Job is a unit of work submitted to a Pool.
type Job func() error

// Pool runs submitted jobs on a fixed number of worker goroutines.
// Jobs submitted after Stop are dropped.
type Pool struct {
	jobs    chan Job
	stop    chan struct{}
	pending sync.WaitGroup

	mu      sync.Mutex
	errs    errors.Errors
	stopped bool
}

// New returns a Pool running numWorkers workers.
func New(numWorkers int) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	p := &Pool{
		jobs: make(chan Job),
		stop: make(chan struct{}),
	}
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for {
		select {
		case <-p.stop:
			return
		case job := <-p.jobs:
			if err := job(); err != nil {
				p.mu.Lock()
				p.errs = errors.Append(p.errs, err)
				p.mu.Unlock()
			}
			p.pending.Done()
		}
	}
}

// Add submits jobs without blocking the caller.
func (p *Pool) Add(jobs []Job) {
	p.pending.Add(len(jobs))
	go func() {
		for _, job := range jobs {
			select {
			case <-p.stop:
				p.pending.Done()
			case p.jobs <- job:
			}
		}
	}()
}

// AddBlocking submits jobs, blocking until each has been handed to a worker.
func (p *Pool) AddBlocking(jobs []Job) {
	p.pending.Add(len(jobs))
	for _, job := range jobs {
		select {
		case <-p.stop:
			p.pending.Done()
		case p.jobs <- job:
		}
	}
}

// Stop shuts the pool down; queued jobs that have not started are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.stopped = true
	close(p.stop)
}

// Wait blocks until all submitted jobs have completed or the pool is stopped,
// and returns any errors the jobs returned.
func (p *Pool) Wait() error {
	done := make(chan struct{})
	go func() {
		p.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-p.stop:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.errs == nil {
		return nil
	}
	return p.errs
}
