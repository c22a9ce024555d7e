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

// ConversationNode sends the full history of a thread to a model and appends the reply. The system prompt goes
// with every request and is never part of the persisted history.
type ConversationNode struct {
	ai           Ai
	systemPrompt string
	log          *log.StreamerLogger
}

// NewConversationNode creates a ConversationNode
func NewConversationNode(ai Ai, systemPrompt string, logger *log.StreamerLogger) *ConversationNode {
	if logger == nil {
		logger = log.Default()
	}
	return &ConversationNode{ai: ai, systemPrompt: systemPrompt, log: logger}
}

// Run implements NodeFunc. When onFragment is set, the model is streamed and each non-empty fragment is forwarded.
func (n *ConversationNode) Run(ctx context.Context, state State, onFragment FragmentHandler) (Messages, error) {
	if len(state.Messages) == 0 {
		return nil, fmt.Errorf("thread %s has no messages", state.ThreadID)
	}
	request := Request{SystemPrompt: n.systemPrompt, Messages: state.Messages}
	var reply string
	var err error
	if onFragment == nil {
		reply, err = n.ai.Complete(ctx, request)
	} else {
		reply, err = n.ai.Stream(ctx, request, func(fragment string) error {
			if fragment == "" {
				return nil
			}
			n.log.Debug(log.NewEvent(log.FragmentEventType, log.AiComponent).WithSession(state.ThreadID).
				WithContent(fragment))
			return onFragment(fragment)
		})
	}
	if err != nil {
		return nil, err
	}
	return Messages{NewAssistantMessage(reply)}, nil
}
