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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendNode(content string) NodeFunc {
	return func(ctx context.Context, state State, onFragment FragmentHandler) (Messages, error) {
		if onFragment != nil {
			if err := onFragment(content); err != nil {
				return nil, err
			}
		}
		return Messages{NewAssistantMessage(content)}, nil
	}
}

func TestStateGraph_Compile(t *testing.T) {
	noop := appendNode("x")
	tests := []struct {
		name  string
		build func(g *StateGraph)
	}{
		{"no entry point", func(g *StateGraph) {
			_ = g.AddNode("a", noop)
		}},
		{"unknown target", func(g *StateGraph) {
			_ = g.AddNode("a", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("a", "b")
		}},
		{"unknown source", func(g *StateGraph) {
			_ = g.AddNode("a", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("z", "a")
		}},
		{"cycle", func(g *StateGraph) {
			_ = g.AddNode("a", noop)
			_ = g.AddNode("b", noop)
			_ = g.AddEdge(START, "a")
			_ = g.AddEdge("a", "b")
			_ = g.AddEdge("b", "a")
		}},
		{"unreachable", func(g *StateGraph) {
			_ = g.AddNode("a", noop)
			_ = g.AddNode("b", noop)
			_ = g.AddEdge(START, "a")
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewStateGraph()
			tt.build(g)
			_, err := g.Compile(NewMemorySaver())
			assert.ErrorIs(t, err, ErrInvalidGraph)
		})
	}

	g := NewStateGraph()
	require.NoError(t, g.AddNode("a", noop))
	require.NoError(t, g.AddEdge(START, "a"))
	_, err := g.Compile(nil)
	assert.ErrorIs(t, err, ErrInvalidGraph)
}

func TestStateGraph_AddErrors(t *testing.T) {
	g := NewStateGraph()
	noop := appendNode("x")
	require.NoError(t, g.AddNode("a", noop))
	assert.ErrorIs(t, g.AddNode("a", noop), ErrInvalidGraph)
	assert.ErrorIs(t, g.AddNode(START, noop), ErrInvalidGraph)
	assert.ErrorIs(t, g.AddNode("", noop), ErrInvalidGraph)
	assert.ErrorIs(t, g.AddNode("b", nil), ErrInvalidGraph)
	require.NoError(t, g.AddEdge(START, "a"))
	assert.ErrorIs(t, g.AddEdge(START, "b"), ErrInvalidGraph)
	assert.ErrorIs(t, g.AddEdge(END, "a"), ErrInvalidGraph)
	assert.ErrorIs(t, g.AddEdge("a", START), ErrInvalidGraph)
}

func newLinearGraph(t *testing.T, checkpointer Checkpointer, nodes ...string) *CompiledGraph {
	g := NewStateGraph()
	prev := START
	for _, name := range nodes {
		require.NoError(t, g.AddNode(name, appendNode(name)))
		require.NoError(t, g.AddEdge(prev, name))
		prev = name
	}
	require.NoError(t, g.AddEdge(prev, END))
	compiled, err := g.Compile(checkpointer)
	require.NoError(t, err)
	return compiled
}

func TestCompiledGraph_Invoke(t *testing.T) {
	ctx := context.Background()
	saver := NewMemorySaver()
	graph := newLinearGraph(t, saver, "a", "b")
	assert.Equal(t, []string{"a", "b"}, graph.Path())

	state, err := graph.Invoke(ctx, "t1", Messages{NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "user: hi\nassistant: a\nassistant: b\n", state.Messages.String())

	state, err = graph.Invoke(ctx, "t1", Messages{NewUserMessage("again")})
	require.NoError(t, err)
	assert.Len(t, state.Messages, 6)

	persisted, err := graph.GetState(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, state.Messages, persisted.Messages)

	other, err := graph.GetState(ctx, "t2")
	require.NoError(t, err)
	assert.Empty(t, other.Messages)

	_, err = graph.Invoke(ctx, "", Messages{NewUserMessage("hi")})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCompiledGraph_NodeFailureKeepsInput(t *testing.T) {
	ctx := context.Background()
	saver := NewMemorySaver()
	g := NewStateGraph()
	boom := errors.New("boom")
	require.NoError(t, g.AddNode("fail", func(ctx context.Context, state State, onFragment FragmentHandler) (Messages, error) {
		return nil, boom
	}))
	require.NoError(t, g.AddEdge(START, "fail"))
	graph, err := g.Compile(saver)
	require.NoError(t, err)

	_, err = graph.Invoke(ctx, "t1", Messages{NewUserMessage("hi")})
	assert.ErrorIs(t, err, boom)

	msgs, found, err := saver.Get(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, msgs, 1)
	assert.Equal(t, RoleUser, msgs[0].Role)
}

func TestCompiledGraph_NodeGetsACopy(t *testing.T) {
	ctx := context.Background()
	g := NewStateGraph()
	require.NoError(t, g.AddNode("vandal", func(ctx context.Context, state State, onFragment FragmentHandler) (Messages, error) {
		state.Messages[0].Content = "vandalised"
		return nil, nil
	}))
	require.NoError(t, g.AddEdge(START, "vandal"))
	graph, err := g.Compile(NewMemorySaver())
	require.NoError(t, err)

	state, err := graph.Invoke(ctx, "t1", Messages{NewUserMessage("hi")})
	require.NoError(t, err)
	assert.Equal(t, "hi", state.Messages[0].Content)
}

func TestCompiledGraph_Stream(t *testing.T) {
	graph := newLinearGraph(t, NewMemorySaver(), "a", "b")
	events := make([]StreamEvent, 0)
	for event := range graph.Stream(context.Background(), "t1", Messages{NewUserMessage("hi")}) {
		events = append(events, event)
	}
	require.Len(t, events, 5)
	assert.Equal(t, StreamEvent{Type: FragmentStreamEvent, Node: "a", Fragment: "a"}, events[0])
	assert.Equal(t, UpdateStreamEvent, events[1].Type)
	assert.Equal(t, "a", events[1].Messages[0].Content)
	assert.Equal(t, FragmentStreamEvent, events[2].Type)
	assert.Equal(t, UpdateStreamEvent, events[3].Type)
	assert.Equal(t, EndStreamEvent, events[4].Type)
	assert.Len(t, events[4].Messages, 3)
}

func TestCompiledGraph_StreamError(t *testing.T) {
	g := NewStateGraph()
	require.NoError(t, g.AddNode("fail", func(ctx context.Context, state State, onFragment FragmentHandler) (Messages, error) {
		_ = onFragment("partial")
		return nil, errors.New("boom")
	}))
	require.NoError(t, g.AddEdge(START, "fail"))
	graph, err := g.Compile(NewMemorySaver())
	require.NoError(t, err)

	events := make([]StreamEvent, 0)
	for event := range graph.Stream(context.Background(), "t1", Messages{NewUserMessage("hi")}) {
		events = append(events, event)
	}
	require.Len(t, events, 2)
	assert.Equal(t, "partial", events[0].Fragment)
	assert.Equal(t, ErrorStreamEvent, events[1].Type)
	assert.ErrorContains(t, events[1].Err, "boom")
}

func TestCompiledGraph_StreamCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	graph := newLinearGraph(t, NewMemorySaver(), "a", "b")
	events := graph.Stream(ctx, "t1", Messages{NewUserMessage("hi")})
	first := <-events
	assert.Equal(t, FragmentStreamEvent, first.Type)
	cancel()
	for range events {
	}
}
