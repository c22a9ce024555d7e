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
)

// Checkpointer persists the state of each thread. A thread is identified by the session id the client provides.
// Implementations must return copies: callers are free to mutate what Get returns.
type Checkpointer interface {
	// Get returns the stored history of a thread. found is false when the thread was never saved.
	Get(ctx context.Context, threadID string) (messages Messages, found bool, err error)
	// Put stores the full history of a thread. Histories only ever grow.
	Put(ctx context.Context, threadID string, messages Messages) error
	// List returns the ids of all the known threads.
	List(ctx context.Context) ([]string, error)
}

// MemorySaver is a process-local Checkpointer. Everything is lost when the process ends.
type MemorySaver struct {
	threads *SafeMap[string, Messages]
}

// NewMemorySaver creates an empty MemorySaver
func NewMemorySaver() *MemorySaver {
	return &MemorySaver{threads: NewSafeMap[string, Messages]()}
}

func (m *MemorySaver) Get(ctx context.Context, threadID string) (Messages, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	messages, ok := m.threads.Load(threadID)
	if !ok {
		return Messages{}, false, nil
	}
	return messages.Clone(), true, nil
}

func (m *MemorySaver) Put(ctx context.Context, threadID string, messages Messages) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.threads.Store(threadID, messages.Clone())
	return nil
}

func (m *MemorySaver) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return SortedKeys(m.threads), nil
}
