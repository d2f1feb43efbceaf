package vm

import (
	"context"

	"github.com/roach88/vecverify/internal/compiler"
)

// runBroker is the background compile loop. It processes tasks in FIFO
// order and returns once the queue is closed and empty.
func (r *Runtime) runBroker() {
	defer close(r.done)

	for {
		if t, ok := r.queue.TryDequeue(); ok {
			r.process(t)
			continue
		}

		// The signal channel closes when the queue is closed, so this
		// receive returns immediately after Close.
		if _, open := <-r.queue.Wait(); !open && r.queue.Len() == 0 {
			return
		}
	}
}

func (r *Runtime) process(t compileTask) {
	defer r.taskDone()

	r.mu.Lock()
	st, ok := r.methods[t.method]
	if !ok || r.stale(st, t) {
		r.mu.Unlock()
		r.logger.Debug("compile task discarded", "method", t.method, "level", t.level)
		return
	}
	m, prof := st.method, st.profile
	r.mu.Unlock()

	code, err := compiler.Compile(t.method, m, t.level, prof, r.copts)

	r.mu.Lock()
	defer r.mu.Unlock()
	if t.epoch == st.epoch {
		delete(st.queued, t.level)
	}
	if err != nil {
		r.compileFailed(st, t.level, err)
		return
	}
	if r.stale(st, t) {
		r.logger.Debug("compile task discarded", "method", t.method, "level", t.level)
		return
	}
	r.install(context.Background(), st, code)
}

// stale reports whether t no longer applies to st. Called with r.mu held.
func (r *Runtime) stale(st *methodState, t compileTask) bool {
	return t.epoch != st.epoch || st.interpreterOnly || st.level() >= t.level
}

func (r *Runtime) taskDone() {
	r.mu.Lock()
	r.pending--
	if r.pending == 0 {
		r.idle.Broadcast()
	}
	r.mu.Unlock()
}

// drain blocks until every queued compile task has been processed.
func (r *Runtime) drain(ctx context.Context) error {
	if r.queue == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		r.mu.Lock()
		for r.pending > 0 {
			r.idle.Wait()
		}
		r.mu.Unlock()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
