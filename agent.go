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
	"fmt"
	"strings"

	"github.com/theirish81/chatgraph/log"
)

// ChatbotNode is the name of the single node of the conversation graph
const ChatbotNode = "chatbot"

// Fragment is a piece of a streamed reply. A Fragment with a non-nil Err is the last one sent.
type Fragment struct {
	Text string
	Err  error
}

// Agent is a conversational agent: a START -> chatbot graph bound to a checkpointer, keyed by session ID.
type Agent struct {
	graph        *CompiledGraph
	checkpointer Checkpointer
	log          *log.StreamerLogger
}

// NewAgent builds and compiles the conversation graph
func NewAgent(ai Ai, checkpointer Checkpointer, options ...Option) (*Agent, error) {
	if ai == nil {
		return nil, fmt.Errorf("%w: an ai is required", ErrInvalidGraph)
	}
	opts := newOptions(options...)
	node := NewConversationNode(ai, opts.systemPrompt, opts.logger)
	graph := NewStateGraph()
	if err := graph.AddNode(ChatbotNode, node.Run); err != nil {
		return nil, err
	}
	if err := graph.AddEdge(START, ChatbotNode); err != nil {
		return nil, err
	}
	compiled, err := graph.Compile(checkpointer, WithLogger(opts.logger))
	if err != nil {
		return nil, err
	}
	return &Agent{graph: compiled, checkpointer: checkpointer, log: opts.logger}, nil
}

// Chat appends message to the session, runs the graph and returns the assistant reply.
func (a *Agent) Chat(ctx context.Context, sessionID string, message string) (string, error) {
	if err := validate(sessionID, message); err != nil {
		return "", err
	}
	a.log.Info(log.NewEvent(log.StartEventType, log.AgentComponent).WithSession(sessionID).WithMessage("chat"))
	state, err := a.graph.Invoke(ctx, sessionID, Messages{NewUserMessage(message)})
	if err != nil {
		return "", a.fail(sessionID, err)
	}
	last, ok := state.Messages.Last()
	if !ok || last.Role != RoleAssistant {
		return "", a.fail(sessionID, errors.New("the graph produced no reply"))
	}
	a.log.Info(log.NewEvent(log.EndEventType, log.AgentComponent).WithSession(sessionID).WithMessage("chat completed"))
	return last.Content, nil
}

// StreamChat is Chat with the reply delivered as fragments. The channel is closed once the run ends, after an
// error fragment if the run failed. Input errors are returned synchronously.
func (a *Agent) StreamChat(ctx context.Context, sessionID string, message string) (<-chan Fragment, error) {
	if err := validate(sessionID, message); err != nil {
		return nil, err
	}
	a.log.Info(log.NewEvent(log.StartEventType, log.AgentComponent).WithSession(sessionID).WithMessage("stream chat"))
	events := a.graph.Stream(ctx, sessionID, Messages{NewUserMessage(message)})
	out := make(chan Fragment)
	go func() {
		defer close(out)
		for event := range events {
			var fragment Fragment
			switch event.Type {
			case FragmentStreamEvent:
				fragment = Fragment{Text: event.Fragment}
			case ErrorStreamEvent:
				fragment = Fragment{Err: a.fail(sessionID, event.Err)}
			case EndStreamEvent:
				a.log.Info(log.NewEvent(log.EndEventType, log.AgentComponent).WithSession(sessionID).
					WithMessage("stream chat completed"))
				continue
			default:
				continue
			}
			select {
			case out <- fragment:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// History returns the persisted messages of a session. Unknown sessions have an empty history.
func (a *Agent) History(ctx context.Context, sessionID string) (Messages, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	state, err := a.graph.GetState(ctx, sessionID)
	if err != nil {
		return nil, a.fail(sessionID, err)
	}
	if state.Messages == nil {
		return Messages{}, nil
	}
	return state.Messages, nil
}

// Sessions returns the IDs of all the persisted sessions
func (a *Agent) Sessions(ctx context.Context) ([]string, error) {
	sessions, err := a.checkpointer.List(ctx)
	if err != nil {
		return nil, a.fail("", err)
	}
	return sessions, nil
}

func (a *Agent) fail(sessionID string, err error) error {
	event := log.NewEvent(log.ErrorEventType, log.AgentComponent).WithMessage("agent failure").WithErr(err)
	if sessionID != "" {
		event = event.WithSession(sessionID)
	}
	a.log.Err(event)
	return fmt.Errorf("%w: %w", ErrAgent, err)
}

func validate(sessionID string, message string) error {
	if strings.TrimSpace(sessionID) == "" {
		return fmt.Errorf("%w: session_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidRequest)
	}
	return nil
}
