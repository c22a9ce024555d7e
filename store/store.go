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

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/theirish81/chatgraph"
)

// ConnectDelay is the pause between two connection attempts
var ConnectDelay = 2 * time.Second

// ErrShrink is returned when a Put would remove messages from a thread
var ErrShrink = errors.New("history cannot shrink")

// ErrConflict is returned when a Put does not extend the stored history, as when two turns of the same thread
// race each other
var ErrConflict = errors.New("history was changed by another writer")

// connect runs dial until it succeeds or attempts run out
func connect(ctx context.Context, attempts int, what string, dial func() error) error {
	if err := chatgraph.Retry(ctx, attempts, ConnectDelay, dial); err != nil {
		return fmt.Errorf("connecting to %s: %w", what, err)
	}
	return nil
}

// tail returns the messages past the stored ones. messages must start with the stored ids, in order.
func tail(messages chatgraph.Messages, storedIDs []string) (chatgraph.Messages, error) {
	if len(messages) < len(storedIDs) {
		return nil, fmt.Errorf("%w: %d stored, %d given", ErrShrink, len(storedIDs), len(messages))
	}
	for i, id := range storedIDs {
		if messages[i].ID != id {
			return nil, fmt.Errorf("%w: message %d is %s, %s is stored", ErrConflict, i, messages[i].ID, id)
		}
	}
	return messages[len(storedIDs):], nil
}
