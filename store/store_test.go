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
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirish81/chatgraph"
)

type flatMessage struct {
	ID      string
	Role    chatgraph.Role
	Content string
}

func flatten(messages chatgraph.Messages) []flatMessage {
	out := make([]flatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, flatMessage{ID: m.ID, Role: m.Role, Content: m.Content})
	}
	return out
}

// testCheckpointer runs the behaviour every Checkpointer must have. prefix keeps runs against shared servers apart.
func testCheckpointer(t *testing.T, cp chatgraph.Checkpointer, prefix string) {
	ctx := context.Background()
	t1 := prefix + "user-1"
	t2 := prefix + "user-2"

	msgs, found, err := cp.Get(ctx, t1)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, msgs)

	history := chatgraph.Messages{chatgraph.NewUserMessage("hola")}
	require.NoError(t, cp.Put(ctx, t1, history))
	history = history.Add(chatgraph.NewAssistantMessage("¡hola! ¿qué tal?"))
	require.NoError(t, cp.Put(ctx, t1, history))
	// same content twice is a no-op
	require.NoError(t, cp.Put(ctx, t1, history))
	require.NoError(t, cp.Put(ctx, t2, chatgraph.Messages{chatgraph.NewUserMessage("otra")}))

	msgs, found, err = cp.Get(ctx, t1)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, flatten(history), flatten(msgs))
	assert.WithinDuration(t, history[0].CreatedAt, msgs[0].CreatedAt, time.Millisecond)

	msgs, _, err = cp.Get(ctx, t2)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "otra", msgs[0].Content)

	ids, err := cp.List(ctx)
	require.NoError(t, err)
	assert.Subset(t, ids, []string{t1, t2})
}

// testCheckpointerConflict checks that a history which does not extend the stored one is rejected
func testCheckpointerConflict(t *testing.T, cp chatgraph.Checkpointer, prefix string) {
	ctx := context.Background()
	thread := prefix + "race"
	first := chatgraph.Messages{chatgraph.NewUserMessage("A")}
	require.NoError(t, cp.Put(ctx, thread, first))

	other := chatgraph.Messages{chatgraph.NewUserMessage("B")}
	assert.ErrorIs(t, cp.Put(ctx, thread, other), ErrConflict)
	assert.ErrorIs(t, cp.Put(ctx, thread, other.Add(chatgraph.NewAssistantMessage("reply to B"))), ErrConflict)

	msgs, _, err := cp.Get(ctx, thread)
	require.NoError(t, err)
	assert.Equal(t, flatten(first), flatten(msgs))

	require.NoError(t, cp.Put(ctx, thread, first.Add(chatgraph.NewAssistantMessage("reply to A"))))
}

// gatedAi holds every call until the gate of its last user message is closed
type gatedAi struct {
	arrived chan string
	gates   map[string]chan struct{}
}

func newGatedAi(messages ...string) *gatedAi {
	g := &gatedAi{arrived: make(chan string, len(messages)), gates: make(map[string]chan struct{})}
	for _, m := range messages {
		g.gates[m] = make(chan struct{})
	}
	return g
}

func (g *gatedAi) Complete(ctx context.Context, request chatgraph.Request) (string, error) {
	last, _ := request.Messages.LastOfRole(chatgraph.RoleUser)
	g.arrived <- last.Content
	select {
	case <-g.gates[last.Content]:
		return "reply to " + last.Content, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedAi) Stream(ctx context.Context, request chatgraph.Request, onFragment chatgraph.FragmentHandler) (string, error) {
	return g.Complete(ctx, request)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out")
	}
	var zero T
	return zero
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/chat.db"
	db, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	testCheckpointer(t, db, "")

	ids, err := db.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-1", "user-2"}, ids)

	msgs, _, err := db.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.ErrorIs(t, db.Put(ctx, "user-1", msgs[:1]), ErrShrink)
	testCheckpointerConflict(t, db, "")
	require.NoError(t, db.Close())

	reopened, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	defer func() {
		_ = reopened.Close()
	}()
	again, found, err := reopened.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, msgs, again)
}

func TestSQLite_AgentSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/chat.db"

	db, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	agent, err := chatgraph.NewAgent(chatgraph.NewDummyAi(), db)
	require.NoError(t, err)
	_, err = agent.Chat(ctx, "user-1", "me llamo Ana")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = NewSQLite(ctx, path)
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	agent, err = chatgraph.NewAgent(chatgraph.NewDummyAi(), db)
	require.NoError(t, err)
	reply, err := agent.Chat(ctx, "user-1", "¿cómo me llamo?")
	require.NoError(t, err)
	assert.Equal(t, "turn 2, you said: ¿cómo me llamo?", reply)
}

func TestSQLite_ConcurrentTurns(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, t.TempDir()+"/chat.db")
	require.NoError(t, err)
	defer func() {
		_ = db.Close()
	}()
	ai := newGatedAi("A", "B")
	agent, err := chatgraph.NewAgent(ai, db)
	require.NoError(t, err)

	errA := make(chan error, 1)
	errB := make(chan error, 1)
	go func() {
		_, err := agent.Chat(ctx, "s", "A")
		errA <- err
	}()
	require.Equal(t, "A", receive(t, ai.arrived))
	go func() {
		_, err := agent.Chat(ctx, "s", "B")
		errB <- err
	}()
	require.Equal(t, "B", receive(t, ai.arrived))

	// A started first but B already extended the history past A's snapshot
	close(ai.gates["A"])
	err = receive(t, errA)
	assert.ErrorIs(t, err, chatgraph.ErrAgent)
	assert.ErrorIs(t, err, ErrConflict)
	close(ai.gates["B"])
	assert.NoError(t, receive(t, errB))

	history, err := agent.History(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "user: A\nuser: B\nassistant: reply to B\n", history.String())
}

func TestTail(t *testing.T) {
	msgs := chatgraph.Messages{chatgraph.NewUserMessage("a"), chatgraph.NewAssistantMessage("b")}
	out, err := tail(msgs, []string{msgs[0].ID})
	require.NoError(t, err)
	assert.Equal(t, msgs[1:], out)
	out, err = tail(msgs, nil)
	require.NoError(t, err)
	assert.Equal(t, msgs, out)
	_, err = tail(msgs, []string{msgs[0].ID, msgs[1].ID, "c"})
	assert.ErrorIs(t, err, ErrShrink)
	_, err = tail(msgs, []string{msgs[1].ID})
	assert.ErrorIs(t, err, ErrConflict)
}

func testPrefix() string {
	return fmt.Sprintf("test-%d-", time.Now().UnixNano())
}
