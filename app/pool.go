package app

import (
	"sync"
)

// WorkerPool executes scan and search jobs on a fixed number of workers so
// request handling never blocks on a long directory walk. Submission beyond
// capacity either queues on the bounded job channel or fails fast with
// ErrPoolBusy, depending on failFast.
type WorkerPool struct {
	jobs     chan func()
	failFast bool

	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
	running int

	done    chan struct{} // closed when shutdown begins; unparks blocked senders
	stopped chan struct{} // closed once the workers have drained the queue
}

func NewWorkerPool(workers, queueSize int, failFast bool) *WorkerPool {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 64
	}

	p := &WorkerPool{
		jobs:     make(chan func(), queueSize),
		failFast: failFast,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case job := <-p.jobs:
			p.runJob(job)
		case <-p.done:
			// Shutdown: finish what is already queued, then exit.
			for {
				select {
				case job := <-p.jobs:
					p.runJob(job)
				default:
					return
				}
			}
		}
	}
}

func (p *WorkerPool) runJob(job func()) {
	p.mu.Lock()
	p.running++
	p.mu.Unlock()

	job()

	p.mu.Lock()
	p.running--
	p.mu.Unlock()
}

// Submit schedules a job. In fail-fast mode a saturated queue returns
// ErrPoolBusy; otherwise Submit blocks until a slot frees up or the pool
// shuts down.
func (p *WorkerPool) Submit(job func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolBusy
	}
	if p.failFast {
		defer p.mu.Unlock()
		select {
		case p.jobs <- job:
			return nil
		default:
			return ErrPoolBusy
		}
	}
	p.mu.Unlock()

	select {
	case p.jobs <- job:
		return nil
	case <-p.done:
		return ErrPoolBusy
	}
}

// TrySubmit schedules a job without ever blocking, regardless of the pool's
// submission mode. The watcher loops use this: they must never park on the
// pool they share with the scans they schedule.
func (p *WorkerPool) TrySubmit(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPoolBusy
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return ErrPoolBusy
	}
}

// Run schedules a job and waits for it to finish, returning its error.
func (p *WorkerPool) Run(job func() error) error {
	result := make(chan error, 1)
	if err := p.Submit(func() { result <- job() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-p.done:
		// Shutdown started; the queue drain may still execute the job.
		<-p.stopped
		select {
		case err := <-result:
			return err
		default:
			return ErrPoolBusy
		}
	}
}

// QueueDepth reports jobs waiting plus jobs currently executing.
func (p *WorkerPool) QueueDepth() int {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	return len(p.jobs) + running
}

// Close stops accepting jobs, unparks blocked submitters and waits for
// queued work to finish. The jobs channel is never closed, so a racing
// Submit cannot panic on it.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()

	// A submitter that raced shutdown may have slipped one more job in
	// after the workers exited.
	for {
		select {
		case job := <-p.jobs:
			job()
		default:
			close(p.stopped)
			return
		}
	}
}
