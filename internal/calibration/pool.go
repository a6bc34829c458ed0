package calibration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GoSim-25-26J-441/q2k-calibrator/internal/sandbox"
)

var (
	// ErrDispatchTimeout marks an evaluation that did not return within the
	// pool timeout.
	ErrDispatchTimeout = errors.New("evaluation dispatch timed out")
	ErrPoolClosed      = errors.New("worker pool closed")
)

type reply struct {
	res sandbox.Result
	err error
}

type task struct {
	ctx   context.Context
	req   sandbox.Request
	reply chan reply
}

// Pool runs evaluations on a fixed set of workers. Submit blocks the caller
// until its result arrives or the per-dispatch timeout elapses.
type Pool struct {
	eval    Evaluator
	timeout time.Duration
	size    int

	tasks chan task
	done  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
}

// NewPool starts size workers. A timeout of zero disables the dispatch
// deadline.
func NewPool(eval Evaluator, size int, timeout time.Duration) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{
		eval:    eval,
		timeout: timeout,
		size:    size,
		tasks:   make(chan task),
		done:    make(chan struct{}),
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	return p
}

// Size is the number of workers, fixed at construction.
func (p *Pool) Size() int { return p.size }

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case t := <-p.tasks:
			res, err := p.eval.Evaluate(t.ctx, t.req)
			t.reply <- reply{res: res, err: err}
		case <-p.done:
			return
		}
	}
}

// Submit evaluates req on a worker. A timed out or cancelled dispatch comes
// back as a failed result; the evaluation's context is cancelled with it.
// The error is non-nil only for a closed pool or a configuration error.
func (p *Pool) Submit(ctx context.Context, req sandbox.Request) (sandbox.Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	t := task{ctx: ctx, req: req, reply: make(chan reply, 1)}

	select {
	case p.tasks <- t:
	case <-ctx.Done():
		return failed(req, p.dispatchErr(ctx)), nil
	case <-p.done:
		return failed(req, ErrPoolClosed), ErrPoolClosed
	}

	select {
	case r := <-t.reply:
		return r.res, r.err
	case <-ctx.Done():
		return failed(req, p.dispatchErr(ctx)), nil
	}
}

func (p *Pool) dispatchErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s", ErrDispatchTimeout, p.timeout)
	}
	return err
}

// Close stops the workers and waits for running evaluations to return.
// It is safe to call more than once.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
}

func failed(req sandbox.Request, err error) sandbox.Result {
	return sandbox.Result{
		ID:      req.ID,
		Genes:   append([]float64(nil), req.Genes...),
		Fitness: sandbox.FailureFitness,
		Err:     err,
	}
}
