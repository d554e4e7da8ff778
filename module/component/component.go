package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/module/irrecoverable"
	"github.com/oprf-network/oprf-node/module/util"
)

// Component is a long-running part of a node. It is started exactly once and reports
// the end of its startup and shutdown through the Ready and Done channels.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a worker once it is serving. Repeated calls are ignored.
type ReadyFunc func()

// ComponentWorker is a routine run by a ComponentManager. It must return once ctx is
// cancelled, and reports unexpected failures with ctx.Throw.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects the workers of a component. Not concurrency-safe.
type ComponentManagerBuilder struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() *ComponentManagerBuilder {
	return &ComponentManagerBuilder{}
}

// AddWorker registers a worker. All workers run concurrently once the component starts.
func (b *ComponentManagerBuilder) AddWorker(worker ComponentWorker) *ComponentManagerBuilder {
	b.workers = append(b.workers, worker)
	return b
}

func (b *ComponentManagerBuilder) Build() *ComponentManager {
	workers := make([]ComponentWorker, len(b.workers))
	copy(workers, b.workers)
	return &ComponentManager{
		started:  atomic.NewBool(false),
		ready:    make(chan struct{}),
		stopping: make(chan struct{}),
		done:     make(chan struct{}),
		workers:  workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager implements Component on behalf of a set of workers.
//
// Ready closes once every worker called its ReadyFunc and Done once every worker returned.
// The first irrecoverable error thrown by a worker stops the remaining workers and is
// re-thrown on the context the manager was started with, before Done closes.
type ComponentManager struct {
	started  *atomic.Bool
	ready    chan struct{}
	stopping chan struct{}
	done     chan struct{}
	workers  []ComponentWorker
}

// Start launches the workers. It panics with module.ErrMultipleStartup on a second call.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	workerCtx, errChan := irrecoverable.WithSignaler(ctx)

	var pendingReady, running sync.WaitGroup
	pendingReady.Add(len(c.workers))
	running.Add(len(c.workers))
	for _, worker := range c.workers {
		go c.runWorker(workerCtx, worker, &pendingReady, &running)
	}

	stopped := make(chan struct{})
	go func() {
		running.Wait()
		close(stopped)
	}()
	go func() {
		pendingReady.Wait()
		close(c.ready)
	}()
	go func() {
		<-ctx.Done()
		close(c.stopping)
	}()

	go c.supervise(parent, cancel, errChan, stopped)
}

func (c *ComponentManager) runWorker(ctx irrecoverable.SignalerContext, worker ComponentWorker, pendingReady, running *sync.WaitGroup) {
	defer running.Done()
	var once sync.Once
	worker(ctx, func() {
		once.Do(pendingReady.Done)
	})
}

// supervise closes done after all workers returned. A thrown error is forwarded to the
// parent first, so the parent never observes a clean shutdown of a failed component.
func (c *ComponentManager) supervise(parent irrecoverable.SignalerContext, cancel context.CancelFunc, errChan <-chan error, stopped <-chan struct{}) {
	defer func() {
		<-stopped
		close(c.done)
	}()

	err := util.WaitError(errChan, stopped)
	if err == nil {
		return
	}
	cancel()
	parent.Throw(err)
}

// Ready returns a channel closed once all workers are ready. It never closes if a
// worker returns without calling its ReadyFunc.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done returns a channel closed once all workers returned.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal returns a channel closed when shutdown has commenced.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.stopping
}
