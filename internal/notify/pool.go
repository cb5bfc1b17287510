package notify

import (
	"errors"
	"sync"
)

var (
	errPoolFull   = errors.New("notify: worker pool is full")
	errPoolClosed = errors.New("notify: worker pool is closed")
)

// pool runs tasks on a fixed number of goroutines with a bounded queue.
// submit never blocks.
type pool struct {
	mu     sync.RWMutex
	closed bool
	tasks  chan func()
	wg     sync.WaitGroup
}

func newPool(workers int, queue int) *pool {
	if workers < 1 {
		workers = 1
	}
	if queue < workers {
		queue = workers * 2
	}

	p := &pool{tasks: make(chan func(), queue)}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *pool) submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return errPoolFull
	}
}

// shutdown stops intake and waits for queued tasks to finish.
func (p *pool) shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		safeRun(task)
	}
}

func safeRun(task func()) {
	defer func() { _ = recover() }()
	task()
}
