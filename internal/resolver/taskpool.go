package resolver

import (
	"context"
	"runtime"
	"sync"
)

// taskPool is a bounded worker pool for the engine's fire-and-forget audit
// and cache write-back tasks. It exists so a burst of lookups can't spawn
// an unbounded number of goroutines, and so Shutdown has something
// concrete to drain rather than leaking tasks at process exit. Unlike a
// generic object pool, this pool holds closures, not reusable values.
type taskPool struct {
	work chan func()
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

func newTaskPool() *taskPool {
	workers := runtime.GOMAXPROCS(0)
	if workers < 2 {
		workers = 2
	}
	p := &taskPool{
		work: make(chan func(), workers*4),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return p
}

func (p *taskPool) loop() {
	defer p.wg.Done()
	for {
		select {
		case fn := <-p.work:
			fn()
		case <-p.done:
			// Drain whatever is already buffered, then exit.
			for {
				select {
				case fn := <-p.work:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues fn to run on a worker goroutine. If the pool has been
// shut down, fn is dropped silently — shutdown only happens at process
// teardown, by which point no caller cares about these results anyway.
func (p *taskPool) Submit(fn func()) {
	select {
	case p.work <- fn:
	case <-p.done:
	}
}

// Shutdown signals workers to drain and exit, waiting for them or for ctx
// to expire, whichever comes first. The work channel is never closed, so
// a Submit racing with Shutdown can never panic on a send to a closed
// channel.
func (p *taskPool) Shutdown(ctx context.Context) {
	p.once.Do(func() { close(p.done) })
	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
	}
}
