package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tradecouncil/tradecouncil/pkg/models"
	"github.com/tradecouncil/tradecouncil/pkg/state"
)

// ErrRecursionLimit is returned when the session exceeds its node-activation
// budget. Fatal; surfaced to the client as GraphLimitExceeded.
var ErrRecursionLimit = errors.New("graph limit exceeded: recursion limit reached")

// RunOptions tunes one execution.
type RunOptions struct {
	// RecursionLimit caps node activations for the whole run.
	RecursionLimit int

	// OnCommit observes report sections newly assigned by each commit.
	// Called from the scheduler goroutine, never concurrently.
	OnCommit func(assigned []models.ReportSection)
}

// completion carries a finished node back to the scheduler loop.
type completion struct {
	node   NodeName
	result *NodeResult
	err    error
}

// Run executes the graph to quiescence: the End node reached and all
// branches committed, a fatal node error, the recursion limit, or ctx
// expiry (the session deadline).
//
// On ctx expiry the scheduler keeps draining completions so that kernels
// which caught the cancellation can still commit their deterministic stubs,
// then returns ctx's error.
func (g *Graph) Run(ctx context.Context, store *state.Store, opts RunOptions) error {
	if opts.RecursionLimit <= 0 {
		opts.RecursionLimit = 50
	}

	nodeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	completions := make(chan completion)
	// Remaining barrier arrivals per fan-in node for the current wave.
	waiting := make(map[NodeName]int)

	activations := 0
	running := 0
	endReached := false
	var fatal error

	launch := func(name NodeName) {
		activations++
		if activations > opts.RecursionLimit {
			if fatal == nil {
				fatal = fmt.Errorf("%w (limit %d)", ErrRecursionLimit, opts.RecursionLimit)
				cancel()
			}
			return
		}
		fn := g.nodes[name]
		running++
		snap := store.Snapshot()
		go func() {
			result, err := fn(nodeCtx, snap)
			completions <- completion{node: name, result: result, err: err}
		}()
	}

	// arrive routes control into a node, honoring fan-in barriers for nodes
	// with several static incoming edges.
	arrive := func(name NodeName, viaStaticEdge bool) {
		if name == End {
			endReached = true
			return
		}
		if fatal != nil {
			return
		}
		if deg := g.inDegree[name]; viaStaticEdge && deg > 1 {
			if waiting[name] == 0 {
				waiting[name] = deg
			}
			waiting[name]--
			if waiting[name] > 0 {
				return
			}
			delete(waiting, name)
		}
		launch(name)
	}

	commit := func(u *state.Update) {
		if u == nil {
			return
		}
		assigned := store.Commit(u)
		if len(assigned) > 0 && opts.OnCommit != nil {
			opts.OnCommit(assigned)
		}
	}

	arrive(g.start, false)

	for running > 0 {
		select {
		case <-ctx.Done():
			// Deadline or external cancellation: let in-flight kernels
			// observe the cancelled context and commit their stubs.
			cancel()
			for running > 0 {
				c := <-completions
				running--
				if c.err == nil && c.result != nil {
					commit(c.result.Update)
				}
			}
			return ctx.Err()

		case c := <-completions:
			running--
			if c.err != nil {
				if fatal == nil {
					fatal = fmt.Errorf("node %s: %w", c.node, c.err)
					cancel()
				}
				continue
			}
			if c.result == nil {
				if fatal == nil {
					fatal = fmt.Errorf("node %s returned nil result", c.node)
					cancel()
				}
				continue
			}

			commit(c.result.Update)
			if fatal != nil {
				continue
			}

			switch {
			case len(c.result.Sends) > 0:
				for _, send := range c.result.Sends {
					commit(send.Update)
				}
				for _, send := range c.result.Sends {
					arrive(send.Target, false)
				}
			case g.conditional[c.node] != nil:
				target := g.conditional[c.node](store.Snapshot())
				arrive(target, false)
			default:
				for _, target := range g.edges[c.node] {
					arrive(target, true)
				}
			}
		}
	}

	if fatal != nil {
		return fatal
	}
	if !endReached {
		slog.Warn("Graph quiesced without reaching terminal node")
	}
	return nil
}
