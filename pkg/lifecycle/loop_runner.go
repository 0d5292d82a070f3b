// Package lifecycle holds the start/stop primitive shared by the long
// running loops in the gateway.
package lifecycle

import "sync"

// LoopRunner owns one background loop at a time. Start is a no-op while a
// loop is live, Stop closes the loop's stop channel and blocks until the
// loop function has returned.
type LoopRunner struct {
	mu   sync.Mutex
	done chan struct{} // closed when the loop exits, nil while stopped
	stop chan struct{}
}

func NewLoopRunner() *LoopRunner {
	return &LoopRunner{}
}

// Start launches loop in its own goroutine. The loop must return promptly
// once its stop channel closes. Reports whether a new loop was started.
func (r *LoopRunner) Start(loop func(stop <-chan struct{})) bool {
	if loop == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return false
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	r.stop, r.done = stop, done

	go func() {
		defer close(done)
		loop(stop)
	}()
	return true
}

// Stop signals the running loop and waits for it to exit. Reports whether
// there was a loop to stop.
func (r *LoopRunner) Stop() bool {
	r.mu.Lock()
	done, stop := r.done, r.stop
	r.done, r.stop = nil, nil
	r.mu.Unlock()

	if done == nil {
		return false
	}
	close(stop)
	<-done
	return true
}

func (r *LoopRunner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done != nil
}
