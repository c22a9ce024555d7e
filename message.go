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
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a conversation.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// NewUserMessage creates a message authored by the user
func NewUserMessage(content string) Message {
	return newMessage(RoleUser, content)
}

// NewAssistantMessage creates a message authored by the model
func NewAssistantMessage(content string) Message {
	return newMessage(RoleAssistant, content)
}

// NewSystemMessage creates a system instruction message
func NewSystemMessage(content string) Message {
	return newMessage(RoleSystem, content)
}

func newMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Messages is an ordered conversation history. Order is append-only.
type Messages []Message

// Add returns a new history with msgs appended. Messages without an ID or a timestamp get one.
func (m Messages) Add(msgs ...Message) Messages {
	out := make(Messages, 0, len(m)+len(msgs))
	out = append(out, m...)
	for _, msg := range msgs {
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now().UTC()
		}
		out = append(out, msg)
	}
	return out
}

// Last returns the last message of the history, if any
func (m Messages) Last() (Message, bool) {
	if len(m) == 0 {
		return Message{}, false
	}
	return m[len(m)-1], true
}

// LastOfRole returns the most recent message with the given role
func (m Messages) LastOfRole(role Role) (Message, bool) {
	msg, _, found := lo.FindLastIndexOf(m, func(item Message) bool {
		return item.Role == role
	})
	return msg, found
}

// WithoutSystem returns a copy of the history that excludes system messages.
func (m Messages) WithoutSystem() Messages {
	return lo.Filter(m, func(item Message, _ int) bool {
		return item.Role != RoleSystem
	})
}

// Clone returns a copy of the history that shares no backing array with the original.
func (m Messages) Clone() Messages {
	out := make(Messages, len(m))
	copy(out, m)
	return out
}

// String renders the history as role-prefixed lines, mostly for debugging
func (m Messages) String() string {
	sb := strings.Builder{}
	for _, msg := range m {
		sb.WriteString(string(msg.Role))
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n")
	}
	return sb.String()
}
