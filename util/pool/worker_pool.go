package pool

import (
	"context"
	"omapid/util/log"
	"sync"
)

type worker struct {
	taskQueue chan func()
	id        int
}

// WorkerPool runs submitted tasks on a fixed set of goroutines. Tasks
// submitted with the same hash always run on the same worker, in order.
type WorkerPool struct {
	n       int
	workers []*worker
	wg      sync.WaitGroup
}

func NewWorkerPool(n int) *WorkerPool {
	if n <= 0 {
		n = 1
	}
	p := &WorkerPool{n: n}
	p.workers = make([]*worker, n)
	for i := 0; i < n; i++ {
		p.workers[i] = &worker{taskQueue: make(chan func(), 1024), id: i}
	}
	return p
}

func (p *WorkerPool) Start(ctx context.Context) {
	p.wg.Add(p.n)
	for i := 0; i < p.n; i++ {
		go func(w *worker) {
			defer p.wg.Done()
			w.work(ctx)
		}(p.workers[i])
	}
	log.Debug("worker pool started, total %d goroutines", p.n)
}

// Wait blocks until every worker has returned after ctx is cancelled.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) Size() int {
	return p.n
}

func (p *WorkerPool) SubmitHashBalance(task func(), hash int) {
	if hash < 0 {
		hash = -hash
	}
	p.workers[hash%p.n].taskQueue <- task
}

func (w *worker) work(ctx context.Context) {
	for {
		select {
		case task := <-w.taskQueue:
			w.run(task)
		case <-ctx.Done():
			return
		}
	}
}

func (w *worker) run(task func()) {
	defer func() {
		if err := recover(); err != nil {
			log.Warn("worker-%d error: %v", w.id, err)
		}
	}()
	task()
}
