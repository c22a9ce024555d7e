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
	"sync"
)

// Request is what the conversation node hands to a model: the system instruction and the full history.
type Request struct {
	SystemPrompt string
	Messages     Messages
}

// FragmentHandler receives text fragments while a model streams its reply. Returning an error aborts the stream.
type FragmentHandler func(fragment string) error

// Ai is an interface for language models.
type Ai interface {
	// Complete returns the whole reply in one go.
	Complete(ctx context.Context, request Request) (string, error)
	// Stream calls onFragment for every piece of the reply as it becomes available and returns the full reply.
	Stream(ctx context.Context, request Request, onFragment FragmentHandler) (string, error)
}

// DummyAi is a deterministic model for testing purposes. It replies by quoting the last user message and
// the number of user turns it has seen in the history.
type DummyAi struct {
	History []Request
	mx      sync.Mutex
}

// NewDummyAi returns a new DummyAi instance.
func NewDummyAi() *DummyAi {
	return &DummyAi{History: make([]Request, 0)}
}

// Complete returns a deterministic reply for the request.
func (d *DummyAi) Complete(ctx context.Context, request Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.record(request)
	return dummyReply(request)
}

// Stream returns the same reply as Complete, one word at a time.
func (d *DummyAi) Stream(ctx context.Context, request Request, onFragment FragmentHandler) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	d.record(request)
	reply, err := dummyReply(request)
	if err != nil {
		return "", err
	}
	for _, fragment := range strings.SplitAfter(reply, " ") {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := onFragment(fragment); err != nil {
			return "", err
		}
	}
	return reply, nil
}

// Requests returns a copy of the requests received so far
func (d *DummyAi) Requests() []Request {
	d.mx.Lock()
	defer d.mx.Unlock()
	return append([]Request{}, d.History...)
}

func (d *DummyAi) record(request Request) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.History = append(d.History, Request{SystemPrompt: request.SystemPrompt, Messages: request.Messages.Clone()})
}

func dummyReply(request Request) (string, error) {
	last, ok := request.Messages.LastOfRole(RoleUser)
	if !ok {
		return "", errors.New("no user message in history")
	}
	turns := 0
	for _, msg := range request.Messages {
		if msg.Role == RoleUser {
			turns++
		}
	}
	return fmt.Sprintf("turn %d, you said: %s", turns, last.Content), nil
}
