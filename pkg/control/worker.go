// Package control delivers signals and priority changes to processes on a
// background goroutine and reports each result asynchronously.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/phuslu/log"
	"golang.org/x/sys/unix"
)

// Nice bounds accepted by Renice.
const (
	MinNice = -20
	MaxNice = 19
)

const queueSize = 16

var (
	// ErrClosed is reported for requests made after Close or before Start.
	ErrClosed = errors.New("control worker not running")
	// ErrQueueFull is reported when requests arrive faster than they are delivered.
	ErrQueueFull = errors.New("control queue full")
)

// killFunc and setpriorityFunc allow tests to stub syscalls.
var (
	killFunc        = unix.Kill
	setpriorityFunc = unix.Setpriority
)

// Outcome is how a request ended.
type Outcome uint8

const (
	Delivered Outcome = iota
	PermissionDenied
	NoSuchProcess
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case PermissionDenied:
		return "permission denied"
	case NoSuchProcess:
		return "no such process"
	default:
		return "failed"
	}
}

// Result reports one request back to its caller.
type Result struct {
	PID     int32
	Action  string
	Outcome Outcome
	Err     error
}

func (r Result) String() string {
	if r.Outcome == Delivered {
		return fmt.Sprintf("%s to pid %d delivered", r.Action, r.PID)
	}
	return fmt.Sprintf("%s to pid %d: %s", r.Action, r.PID, r.Outcome)
}

type request struct {
	pid    int32
	action string
	apply  func() error
	reply  chan Result
}

// Worker serialises control requests on its own goroutine so callers such as
// the UI event loop never wait on a syscall.
type Worker struct {
	log log.Logger

	mu      sync.Mutex
	reqs    chan request
	running bool
	done    chan struct{}
}

// NewWorker returns a worker; call Start before submitting requests.
func NewWorker(logger log.Logger) *Worker {
	return &Worker{log: logger, reqs: make(chan request, queueSize)}
}

// Start launches the delivery goroutine. It stops when ctx ends or on Close.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running || w.done != nil {
		return
	}
	w.running = true
	w.done = make(chan struct{})
	go w.loop(ctx, w.reqs, w.done)
}

// Signal sends sig to pid.
func (w *Worker) Signal(pid int32, sig unix.Signal) <-chan Result {
	action := unix.SignalName(sig)
	if action == "" {
		action = fmt.Sprintf("signal %d", int(sig))
	}
	return w.submit(pid, action, func() error {
		return killFunc(int(pid), sig)
	})
}

// Renice sets the nice value of pid. Values outside -20..19 are rejected
// without touching the process.
func (w *Worker) Renice(pid int32, nice int) <-chan Result {
	action := fmt.Sprintf("renice %d", nice)
	if nice < MinNice || nice > MaxNice {
		return resolved(Result{PID: pid, Action: action, Outcome: Failed,
			Err: fmt.Errorf("nice value must be between %d and %d, got %d", MinNice, MaxNice, nice)})
	}
	return w.submit(pid, action, func() error {
		return setpriorityFunc(unix.PRIO_PROCESS, int(pid), nice)
	})
}

// Close stops the worker after delivering queued requests.
func (w *Worker) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.reqs)
	done := w.done
	w.mu.Unlock()
	<-done
	return nil
}

func (w *Worker) submit(pid int32, action string, apply func() error) <-chan Result {
	if pid <= 0 {
		return resolved(Result{PID: pid, Action: action, Outcome: Failed, Err: fmt.Errorf("invalid PID: %d", pid)})
	}
	reply := make(chan Result, 1)
	req := request{pid: pid, action: action, apply: apply, reply: reply}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		reply <- Result{PID: pid, Action: action, Outcome: Failed, Err: ErrClosed}
		return reply
	}
	select {
	case w.reqs <- req:
	default:
		reply <- Result{PID: pid, Action: action, Outcome: Failed, Err: ErrQueueFull}
	}
	return reply
}

func (w *Worker) loop(ctx context.Context, reqs <-chan request, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			w.drain(reqs, ctx.Err())
			return
		case req, ok := <-reqs:
			if !ok {
				return
			}
			req.reply <- w.deliver(req)
		}
	}
}

func (w *Worker) deliver(req request) Result {
	err := req.apply()
	res := Result{PID: req.pid, Action: req.action, Outcome: classify(err), Err: err}
	if err != nil {
		w.log.Debug().Int32("pid", req.pid).Str("action", req.action).Err(err).Msg("control request failed")
	} else {
		w.log.Info().Int32("pid", req.pid).Str("action", req.action).Msg("control request delivered")
	}
	return res
}

// drain fails whatever is still queued once the context has ended.
func (w *Worker) drain(reqs <-chan request, cause error) {
	w.mu.Lock()
	w.running = false
	w.mu.Unlock()
	for {
		select {
		case req, ok := <-reqs:
			if !ok {
				return
			}
			req.reply <- Result{PID: req.pid, Action: req.action, Outcome: Failed, Err: cause}
		default:
			return
		}
	}
}

func classify(err error) Outcome {
	switch {
	case err == nil:
		return Delivered
	case errors.Is(err, unix.EPERM), errors.Is(err, unix.EACCES):
		return PermissionDenied
	case errors.Is(err, unix.ESRCH):
		return NoSuchProcess
	}
	return Failed
}

func resolved(r Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- r
	return ch
}
