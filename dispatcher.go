package threedsecure

import "sync"

// Dispatcher runs posted functions one at a time, in order.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc lifts bare functions into [Dispatcher].
type DispatcherFunc func(fn func())

// Post delegates to the wrapped function.
func (f DispatcherFunc) Post(fn func()) {
	f(fn)
}

// MainLoop is a serial executor backed by a single goroutine. Posting never
// blocks, so tasks may post follow-up tasks.
type MainLoop struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []func()
	closed  bool
	stopped chan struct{}
}

// NewMainLoop starts a loop. Close releases its goroutine.
func NewMainLoop() *MainLoop {
	l := &MainLoop{stopped: make(chan struct{})}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	return l
}

// Post queues fn behind every task posted before it. Tasks posted after
// Close are dropped.
func (l *MainLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.queue = append(l.queue, fn)
	l.cond.Signal()
}

// Flush blocks until every task posted so far has run. It must not be
// called from a task.
func (l *MainLoop) Flush() {
	done := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		<-l.stopped
		return
	}
	l.queue = append(l.queue, func() { close(done) })
	l.cond.Signal()
	l.mu.Unlock()
	<-done
}

// Close runs the queued tasks and stops the loop.
func (l *MainLoop) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.cond.Signal()
	}
	l.mu.Unlock()
	<-l.stopped
}

func (l *MainLoop) run() {
	defer close(l.stopped)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()
		fn()
	}
}
