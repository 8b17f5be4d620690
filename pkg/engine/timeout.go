package engine

import (
	"time"

	"github.com/pkg/errors"

	"github.com/chazu/shadegraph/pkg/graph"
)

// EvalTimeout is the default limit for a single evaluation.
const EvalTimeout = 5 * time.Second

// ErrSuperseded is returned when a newer evaluation started before this
// one finished.
var ErrSuperseded = errors.New("evaluation superseded by newer request")

// ErrTimeout is returned when an evaluation exceeds its time limit.
var ErrTimeout = errors.New("evaluation timed out")

type evalResult struct {
	graph  *graph.Graph
	errors []EvalError
	err    error
}

// await blocks until ch delivers the result of evaluation gen or the
// engine's timeout elapses. A result that arrives after a newer Evaluate
// call has started is dropped with ErrSuperseded. A timed-out evaluation
// keeps running in its goroutine; ch is buffered so it never blocks.
func (e *Engine) await(ch <-chan evalResult, gen uint64) (*graph.Graph, []EvalError, error) {
	timer := time.NewTimer(e.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if e.generation.Load() != gen {
			return nil, nil, ErrSuperseded
		}
		return res.graph, res.errors, res.err
	case <-timer.C:
		return nil, nil, errors.Wrapf(ErrTimeout, "after %s", e.timeout)
	}
}
