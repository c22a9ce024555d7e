/*
 * Copyright (C) 2025 Simone Pezzano
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package chatgraph

import (
	"context"
	"fmt"

	"github.com/theirish81/chatgraph/log"
)

// START and END are the virtual entry and exit points of a graph.
const (
	START = "__start__"
	END   = "__end__"
)

// State is what a graph run carries from node to node.
type State struct {
	ThreadID string
	Messages Messages
}

// NodeFunc is a processing step. It receives a copy of the current state and returns the messages to append to
// it. onFragment is nil when the graph is invoked in blocking mode.
type NodeFunc func(ctx context.Context, state State, onFragment FragmentHandler) (Messages, error)

// StateGraph describes nodes and the edges between them. Only linear paths are supported: each node has at most
// one outgoing edge and a node with no outgoing edge ends the run.
type StateGraph struct {
	nodes map[string]NodeFunc
	edges map[string]string
	names []string
}

// NewStateGraph creates an empty graph
func NewStateGraph() *StateGraph {
	return &StateGraph{
		nodes: make(map[string]NodeFunc),
		edges: make(map[string]string),
		names: make([]string, 0),
	}
}

// AddNode registers a node under a unique name
func (g *StateGraph) AddNode(name string, fn NodeFunc) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: node name is empty", ErrInvalidGraph)
	case name == START || name == END:
		return fmt.Errorf("%w: node name %s is reserved", ErrInvalidGraph, name)
	case fn == nil:
		return fmt.Errorf("%w: node %s has no function", ErrInvalidGraph, name)
	}
	if _, ok := g.nodes[name]; ok {
		return fmt.Errorf("%w: node %s already exists", ErrInvalidGraph, name)
	}
	g.nodes[name] = fn
	g.names = append(g.names, name)
	return nil
}

// AddEdge connects two nodes. A source can only have one outgoing edge.
func (g *StateGraph) AddEdge(from string, to string) error {
	if from == END {
		return fmt.Errorf("%w: %s cannot have outgoing edges", ErrInvalidGraph, END)
	}
	if to == START {
		return fmt.Errorf("%w: %s cannot have incoming edges", ErrInvalidGraph, START)
	}
	if existing, ok := g.edges[from]; ok {
		return fmt.Errorf("%w: %s already has an edge to %s, branching is not supported", ErrInvalidGraph, from, existing)
	}
	g.edges[from] = to
	return nil
}

// Compile validates the graph and binds it to a checkpointer.
func (g *StateGraph) Compile(checkpointer Checkpointer, options ...Option) (*CompiledGraph, error) {
	if checkpointer == nil {
		return nil, fmt.Errorf("%w: a checkpointer is required", ErrInvalidGraph)
	}
	for from, to := range g.edges {
		if _, ok := g.nodes[from]; !ok && from != START {
			return nil, fmt.Errorf("%w: edge from unknown node %s", ErrInvalidGraph, from)
		}
		if _, ok := g.nodes[to]; !ok && to != END {
			return nil, fmt.Errorf("%w: edge to unknown node %s", ErrInvalidGraph, to)
		}
	}
	path, err := g.path()
	if err != nil {
		return nil, err
	}
	opts := newOptions(options...)
	nodes := make(map[string]NodeFunc, len(g.nodes))
	for k, v := range g.nodes {
		nodes[k] = v
	}
	return &CompiledGraph{
		path:         path,
		nodes:        nodes,
		checkpointer: checkpointer,
		log:          opts.logger,
	}, nil
}

// path walks the edges from START and returns the nodes in execution order
func (g *StateGraph) path() ([]string, error) {
	current, ok := g.edges[START]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no outgoing edge", ErrInvalidGraph, START)
	}
	visited := make(map[string]bool)
	path := make([]string, 0, len(g.nodes))
	for current != END {
		if visited[current] {
			return nil, fmt.Errorf("%w: cycle detected at node %s", ErrInvalidGraph, current)
		}
		visited[current] = true
		path = append(path, current)
		next, ok := g.edges[current]
		if !ok {
			break
		}
		current = next
	}
	for _, name := range g.names {
		if !visited[name] {
			return nil, fmt.Errorf("%w: node %s is unreachable", ErrInvalidGraph, name)
		}
	}
	return path, nil
}

// CompiledGraph is an executable StateGraph.
type CompiledGraph struct {
	path         []string
	nodes        map[string]NodeFunc
	checkpointer Checkpointer
	log          *log.StreamerLogger
}

// StreamEventType is the type of StreamEvent.
type StreamEventType string

const (
	FragmentStreamEvent StreamEventType = "fragment"
	UpdateStreamEvent   StreamEventType = "update"
	ErrorStreamEvent    StreamEventType = "error"
	EndStreamEvent      StreamEventType = "end"
)

// StreamEvent is produced by CompiledGraph.Stream.
// Fragment events carry a piece of a node's output, update events carry the messages a node appended, the end
// event carries the final history and the error event carries the error that stopped the run.
type StreamEvent struct {
	Type     StreamEventType
	Node     string
	Fragment string
	Messages Messages
	Err      error
}

// Path returns the names of the nodes in execution order
func (g *CompiledGraph) Path() []string {
	return append([]string{}, g.path...)
}

// GetState returns the persisted state of a thread.
func (g *CompiledGraph) GetState(ctx context.Context, threadID string) (State, error) {
	messages, _, err := g.checkpointer.Get(ctx, threadID)
	if err != nil {
		return State{}, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	return State{ThreadID: threadID, Messages: messages}, nil
}

// Invoke runs the graph to completion for a thread, appending input to its history.
func (g *CompiledGraph) Invoke(ctx context.Context, threadID string, input Messages) (State, error) {
	return g.run(ctx, threadID, input, nil)
}

// Stream runs the graph asynchronously. The returned channel is closed when the run ends. Events stop being
// produced when ctx is cancelled.
func (g *CompiledGraph) Stream(ctx context.Context, threadID string, input Messages) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		emit := func(event StreamEvent) error {
			select {
			case ch <- event:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		state, err := g.run(ctx, threadID, input, emit)
		if err != nil {
			_ = emit(StreamEvent{Type: ErrorStreamEvent, Err: err})
			return
		}
		_ = emit(StreamEvent{Type: EndStreamEvent, Messages: state.Messages})
	}()
	return ch
}

// run loads the thread, appends the input and runs every node in order, checkpointing after each step.
func (g *CompiledGraph) run(ctx context.Context, threadID string, input Messages, emit func(StreamEvent) error) (State, error) {
	if threadID == "" {
		return State{}, fmt.Errorf("%w: thread id is empty", ErrInvalidRequest)
	}
	history, found, err := g.checkpointer.Get(ctx, threadID)
	if err != nil {
		return State{}, fmt.Errorf("loading thread %s: %w", threadID, err)
	}
	if !found {
		g.log.Info(log.NewEvent(log.StartEventType, log.GraphComponent).WithSession(threadID).WithMessage("new thread"))
	} else {
		g.log.Debug(log.NewEvent(log.LoadEventType, log.GraphComponent).WithSession(threadID).
			WithMessage("thread loaded").WithArg("messages", len(history)))
	}

	state := State{ThreadID: threadID, Messages: history.Add(input...)}
	if err := g.checkpoint(ctx, state, 0); err != nil {
		return state, err
	}

	for i, name := range g.path {
		step := i + 1
		var onFragment FragmentHandler
		if emit != nil {
			onFragment = func(fragment string) error {
				return emit(StreamEvent{Type: FragmentStreamEvent, Node: name, Fragment: fragment})
			}
		}
		g.log.Debug(log.NewEvent(log.StartEventType, log.NodeComponent).WithSession(threadID).WithNode(name).
			WithStep(step).WithMessage("running node"))
		update, err := g.nodes[name](ctx, State{ThreadID: threadID, Messages: state.Messages.Clone()}, onFragment)
		if err != nil {
			g.log.Err(log.NewEvent(log.ErrorEventType, log.NodeComponent).WithSession(threadID).WithNode(name).
				WithStep(step).WithMessage("node failed").WithErr(err))
			return state, fmt.Errorf("node %s: %w", name, err)
		}
		before := len(state.Messages)
		state.Messages = state.Messages.Add(update...)
		if err := g.checkpoint(ctx, state, step); err != nil {
			return state, err
		}
		g.log.Debug(log.NewEvent(log.EndEventType, log.NodeComponent).WithSession(threadID).WithNode(name).
			WithStep(step).WithMessage("node completed").WithArg("appended", len(update)))
		if emit != nil {
			if err := emit(StreamEvent{Type: UpdateStreamEvent, Node: name, Messages: state.Messages[before:].Clone()}); err != nil {
				return state, err
			}
		}
	}
	return state, nil
}

func (g *CompiledGraph) checkpoint(ctx context.Context, state State, step int) error {
	if err := g.checkpointer.Put(ctx, state.ThreadID, state.Messages); err != nil {
		g.log.Err(log.NewEvent(log.ErrorEventType, log.CheckpointComponent).WithSession(state.ThreadID).
			WithStep(step).WithMessage("checkpoint failed").WithErr(err))
		return fmt.Errorf("saving thread %s: %w", state.ThreadID, err)
	}
	g.log.Debug(log.NewEvent(log.SaveEventType, log.CheckpointComponent).WithSession(state.ThreadID).
		WithStep(step).WithMessage("checkpoint saved").WithArg("messages", len(state.Messages)))
	return nil
}
