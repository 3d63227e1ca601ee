package app

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrPoolClosed возвращается из Do после Close.
var ErrPoolClosed = errors.New("worker pool is closed")

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context)
	ran  bool
	done chan struct{}
}

// Pool выполняет CPU-нагрузку на фиксированном числе горутин, чтобы поток
// кадров от многих соединений не перегружал машину.
type Pool struct {
	jobs    chan *job
	quit    chan struct{}
	wg      sync.WaitGroup
	closeMu sync.RWMutex
	closed  bool
}

// NewPool запускает workers горутин с очередью на queueSize задач.
func NewPool(workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		jobs: make(chan *job, queueSize),
		quit: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case j := <-p.jobs:
			p.run(j)
		case <-p.quit:
			return
		}
	}
}

func (p *Pool) run(j *job) {
	defer close(j.done)
	// отправитель перестал ждать, пока задача была в очереди
	if j.ctx.Err() != nil {
		return
	}
	j.fn(j.ctx)
	j.ran = true
}

// Do выполняет fn на воркере и ждёт результата. nil означает, что fn
// завершилась. Если ctx закончился раньше, Do сразу возвращает ctx.Err(),
// поэтому fn должна отдавать результат через то, что можно бросить,
// например буферизованный канал.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context)) error {
	p.closeMu.RLock()
	if p.closed {
		p.closeMu.RUnlock()
		return ErrPoolClosed
	}
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}
	select {
	case p.jobs <- j:
		p.closeMu.RUnlock()
	case <-ctx.Done():
		p.closeMu.RUnlock()
		return ctx.Err()
	}

	select {
	case <-j.done:
		if j.ran {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close останавливает воркеры после текущих задач. Задачи, которые так и
// не начались, освобождаются.
func (p *Pool) Close() {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return
	}
	p.closed = true
	p.closeMu.Unlock()

	close(p.quit)
	p.wg.Wait()

	for {
		select {
		case j := <-p.jobs:
			close(j.done)
		default:
			return
		}
	}
}
