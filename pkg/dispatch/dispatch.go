// Package dispatch propagates component updates to the external rendering
// engine. Each update is an asynchronous task; tasks that share a queue key
// reach the engine in the order they were enqueued, while tasks on different
// keys may interleave.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/geoscene/pkg/wire"
)

// Renderer is the external engine. Index is the component's position inside
// its container; ContainerIndex is the container's own position, or -1 for
// top-level components. Implementations must treat an index that is no longer
// valid as a no-op, since late updates for detached components can arrive.
type Renderer interface {
	UpdateComponent(ctx context.Context, index, containerIndex int, rec wire.Record) error
	RemoveComponent(ctx context.Context, index, containerIndex int) error
}

// OpKind distinguishes update operations.
type OpKind int

const (
	OpUpdate OpKind = iota // add or replace a component
	OpRemove               // release a component
)

func (k OpKind) String() string {
	switch k {
	case OpUpdate:
		return "update"
	case OpRemove:
		return "remove"
	default:
		return fmt.Sprintf("OpKind(%d)", int(k))
	}
}

// Op is a snapshot of one engine call. It is built on the tree's owner
// goroutine and never refers back into the live tree.
type Op struct {
	Kind           OpKind
	Target         string // id of the component the op addresses
	Index          int
	ContainerIndex int
	Record         wire.Record // nil for OpRemove

	// Fence orders the op against every queue: it runs after all tasks
	// enqueued before it, and every task enqueued after it waits for it.
	// Ops that shift the positions of components on other queues set it.
	Fence bool
}

func (op Op) String() string {
	return fmt.Sprintf("%s %s @%d/%d", op.Kind, op.Target, op.Index, op.ContainerIndex)
}

// Task is the asynchronous result of one enqueued Op.
type Task struct {
	Op  Op
	Key string
	Seq uint64

	after []*Task // must finish before this task runs
	done  chan struct{}
	err   error
}

// Done is closed once the engine call has finished.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the engine call's error. It is only meaningful after Done.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task finishes or ctx ends. Ending ctx does not
// cancel the task.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type queue struct {
	tasks   []*Task
	running bool
}

// Scheduler owns the per-key task queues.
type Scheduler struct {
	renderer    Renderer
	callTimeout time.Duration

	mu       sync.Mutex
	seq      uint64
	queues   map[string]*queue
	inflight map[*Task]struct{}
	fence    *Task
	failed   []error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCallTimeout bounds every engine call. Zero means no bound.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.callTimeout = d }
}

// New creates a Scheduler that delivers ops to r.
func New(r Renderer, opts ...Option) *Scheduler {
	s := &Scheduler{
		renderer: r,
		queues:   make(map[string]*queue),
		inflight: make(map[*Task]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enqueue schedules op on the queue named key and returns immediately.
func (s *Scheduler) Enqueue(key string, op Op) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &Task{Op: op, Key: key, Seq: s.seq, done: make(chan struct{})}
	switch {
	case op.Fence:
		t.after = make([]*Task, 0, len(s.inflight))
		for other := range s.inflight {
			t.after = append(t.after, other)
		}
		s.fence = t
	case s.fence != nil:
		t.after = []*Task{s.fence}
	}
	s.inflight[t] = struct{}{}

	q := s.queues[key]
	if q == nil {
		q = &queue{}
		s.queues[key] = q
	}
	q.tasks = append(q.tasks, t)
	if !q.running {
		q.running = true
		go s.run(key, q)
	}
	if glog.V(2) {
		glog.Infof("[dispatch] enqueue #%d key=%s %s", t.Seq, key, op)
	}
	return t
}

// run drains q one task at a time and exits when it is empty.
func (s *Scheduler) run(key string, q *queue) {
	for {
		s.mu.Lock()
		if len(q.tasks) == 0 {
			q.running = false
			delete(s.queues, key)
			s.mu.Unlock()
			return
		}
		t := q.tasks[0]
		q.tasks[0] = nil
		q.tasks = q.tasks[1:]
		s.mu.Unlock()

		for _, dep := range t.after {
			<-dep.done
		}
		t.after = nil
		t.err = s.call(t.Op)
		if t.err != nil {
			glog.Warningf("[dispatch] #%d %s failed: %v", t.Seq, t.Op, t.err)
		} else if glog.V(1) {
			glog.Infof("[dispatch] #%d %s ok", t.Seq, t.Op)
		}

		s.mu.Lock()
		delete(s.inflight, t)
		if s.fence == t {
			s.fence = nil
		}
		if t.err != nil {
			s.failed = append(s.failed, t.err)
		}
		s.mu.Unlock()
		close(t.done)
	}
}

func (s *Scheduler) call(op Op) (err error) {
	ctx := context.Background()
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: renderer panic: %v", r)
		}
	}()

	switch op.Kind {
	case OpUpdate:
		err = s.renderer.UpdateComponent(ctx, op.Index, op.ContainerIndex, op.Record)
	case OpRemove:
		err = s.renderer.RemoveComponent(ctx, op.Index, op.ContainerIndex)
	default:
		return fmt.Errorf("dispatch: unknown op kind %d", int(op.Kind))
	}
	if err != nil {
		return fmt.Errorf("dispatch: %s: %w", op, err)
	}
	return nil
}

// Pending returns the number of tasks not yet finished.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Drain waits for every task enqueued before the call, then returns the
// failures of all tasks that finished since the previous Drain.
func (s *Scheduler) Drain(ctx context.Context) error {
	s.mu.Lock()
	tasks := make([]*Task, 0, len(s.inflight))
	for t := range s.inflight {
		tasks = append(tasks, t)
	}
	s.mu.Unlock()

	var g errgroup.Group
	for _, t := range tasks {
		g.Go(func() error {
			select {
			case <-t.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	s.mu.Lock()
	failed := s.failed
	s.failed = nil
	s.mu.Unlock()
	return errors.Join(failed...)
}
