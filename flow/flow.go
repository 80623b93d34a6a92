// Package flow provides a small typed state graph: named nodes joined by
// static and conditional edges, compiled into a runnable that walks one node
// at a time until it reaches End.
package flow

import (
	"context"
	"errors"
	"fmt"
)

// End is the terminal pseudo-node. An edge leading to it stops execution.
const End = "__end__"

var (
	ErrEntryPointNotSet = errors.New("entry point not set")
	ErrNodeNotFound     = errors.New("node not found")
	ErrNoOutgoingEdge   = errors.New("no outgoing edge found for node")
)

// Node is a named state transformation.
type Node[S any] struct {
	Name        string
	Description string
	Run         func(ctx context.Context, state S) (S, error)
}

type edge struct {
	from, to string
}

// Graph is a mutable graph definition. Build it up, then Compile.
type Graph[S any] struct {
	nodes            map[string]Node[S]
	edges            []edge
	conditionalEdges map[string]func(ctx context.Context, state S) string
	entryPoint       string
}

// New creates an empty graph over state type S.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:            make(map[string]Node[S]),
		conditionalEdges: make(map[string]func(ctx context.Context, state S) string),
	}
}

// AddNode registers a node under name. Registering the same name twice
// replaces the earlier node.
func (g *Graph[S]) AddNode(name, description string, run func(ctx context.Context, state S) (S, error)) {
	g.nodes[name] = Node[S]{Name: name, Description: description, Run: run}
}

// AddEdge connects from to to unconditionally.
func (g *Graph[S]) AddEdge(from, to string) {
	g.edges = append(g.edges, edge{from: from, to: to})
}

// AddConditionalEdge picks the next node at runtime. The condition returns a
// node name or End, and takes precedence over static edges from the same node.
func (g *Graph[S]) AddConditionalEdge(from string, condition func(ctx context.Context, state S) string) {
	g.conditionalEdges[from] = condition
}

// SetEntryPoint names the node execution starts from.
func (g *Graph[S]) SetEntryPoint(name string) {
	g.entryPoint = name
}

// Runnable is a compiled, immutable graph.
type Runnable[S any] struct {
	graph *Graph[S]
}

// Compile validates the graph and returns a runnable. Every edge endpoint
// must name a registered node or End.
func (g *Graph[S]) Compile() (*Runnable[S], error) {
	if g.entryPoint == "" {
		return nil, ErrEntryPointNotSet
	}
	if _, ok := g.nodes[g.entryPoint]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, g.entryPoint)
	}
	for _, e := range g.edges {
		if _, ok := g.nodes[e.from]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, e.from)
		}
		if e.to == End {
			continue
		}
		if _, ok := g.nodes[e.to]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, e.to)
		}
	}
	return &Runnable[S]{graph: g}, nil
}

// Invoke walks the graph from the entry point until End, threading the state
// through each node. A node error stops the walk and names the node.
func (r *Runnable[S]) Invoke(ctx context.Context, initial S) (S, error) {
	var zero S

	state := initial
	current := r.graph.entryPoint
	for current != End {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		node, ok := r.graph.nodes[current]
		if !ok {
			return zero, fmt.Errorf("%w: %s", ErrNodeNotFound, current)
		}

		var err error
		state, err = node.Run(ctx, state)
		if err != nil {
			return zero, fmt.Errorf("error in node %s: %w", current, err)
		}

		current, err = r.nextNode(ctx, current, state)
		if err != nil {
			return zero, err
		}
	}
	return state, nil
}

func (r *Runnable[S]) nextNode(ctx context.Context, name string, state S) (string, error) {
	if condition, ok := r.graph.conditionalEdges[name]; ok {
		next := condition(ctx, state)
		if next == "" {
			return "", fmt.Errorf("conditional edge from %s returned no target", name)
		}
		return next, nil
	}
	for _, e := range r.graph.edges {
		if e.from == name {
			return e.to, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNoOutgoingEdge, name)
}
