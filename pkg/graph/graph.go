// Package graph implements the agent-graph execution engine: a declarative
// node+edge description compiled into an executable plan, and a scheduler
// that runs ready nodes concurrently, merging their partial state updates
// through the reducer gateway.
package graph

import (
	"context"
	"fmt"

	"github.com/tradecouncil/tradecouncil/pkg/state"
)

// NodeName identifies a node in the graph.
type NodeName string

// End is the terminal pseudo-node. Routing to End finishes the session once
// all in-flight branches have committed.
const End NodeName = "__end__"

// NodeFunc is one node kernel. It receives a consistent snapshot of the
// state and returns a partial update, dynamic dispatches, or both.
// ctx carries the session deadline; kernels with documented fallbacks catch
// cancellation themselves and return deterministic stubs.
type NodeFunc func(ctx context.Context, snap *state.State) (*NodeResult, error)

// NodeResult is what a node produces.
type NodeResult struct {
	// Update is committed through the reducers before any successor runs.
	Update *state.Update

	// Sends dynamically dispatches specific downstream nodes, each with an
	// update committed before the target is scheduled. When non-empty,
	// static and conditional routing for this node is skipped.
	Sends []Send
}

// Send is a dynamic dispatch to a target node.
type Send struct {
	Target NodeName
	Update *state.Update
}

// Predicate routes a conditional edge by inspecting the state.
type Predicate func(snap *state.State) NodeName

// Builder accumulates a graph description for Compile.
type Builder struct {
	nodes       map[NodeName]NodeFunc
	edges       map[NodeName][]NodeName
	conditional map[NodeName]Predicate
	start       NodeName
}

// NewBuilder creates an empty graph builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes:       make(map[NodeName]NodeFunc),
		edges:       make(map[NodeName][]NodeName),
		conditional: make(map[NodeName]Predicate),
	}
}

// AddNode registers a node kernel.
func (b *Builder) AddNode(name NodeName, fn NodeFunc) *Builder {
	b.nodes[name] = fn
	return b
}

// AddEdge declares a static edge. A node with several outgoing static edges
// fans out to all targets; a node with several incoming static edges is a
// fan-in barrier.
func (b *Builder) AddEdge(from, to NodeName) *Builder {
	b.edges[from] = append(b.edges[from], to)
	return b
}

// AddConditionalEdge declares predicate-based routing for a node. The
// predicate runs on a fresh snapshot after the node's update commits.
func (b *Builder) AddConditionalEdge(from NodeName, p Predicate) *Builder {
	b.conditional[from] = p
	return b
}

// SetStart declares the entry node.
func (b *Builder) SetStart(name NodeName) *Builder {
	b.start = name
	return b
}

// Compile validates the description and produces an executable graph.
func (b *Builder) Compile() (*Graph, error) {
	if b.start == "" {
		return nil, fmt.Errorf("graph: start node not set")
	}
	if _, ok := b.nodes[b.start]; !ok {
		return nil, fmt.Errorf("graph: start node %q not registered", b.start)
	}

	inDegree := make(map[NodeName]int)
	for from, targets := range b.edges {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: edge from unregistered node %q", from)
		}
		for _, to := range targets {
			if to == End {
				continue
			}
			if _, ok := b.nodes[to]; !ok {
				return nil, fmt.Errorf("graph: edge %q -> unregistered node %q", from, to)
			}
			inDegree[to]++
		}
	}
	for from := range b.conditional {
		if _, ok := b.nodes[from]; !ok {
			return nil, fmt.Errorf("graph: conditional edge from unregistered node %q", from)
		}
	}

	return &Graph{
		nodes:       b.nodes,
		edges:       b.edges,
		conditional: b.conditional,
		start:       b.start,
		inDegree:    inDegree,
	}, nil
}

// Graph is the compiled, immutable execution plan. Safe for concurrent use;
// each Run gets its own scheduler state.
type Graph struct {
	nodes       map[NodeName]NodeFunc
	edges       map[NodeName][]NodeName
	conditional map[NodeName]Predicate
	start       NodeName
	inDegree    map[NodeName]int
}
