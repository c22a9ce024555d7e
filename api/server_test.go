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

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirish81/chatgraph"
)

type brokenAi struct{}

func (brokenAi) Complete(ctx context.Context, request chatgraph.Request) (string, error) {
	return "", errors.New("connection refused: secret-host:11434")
}

func (brokenAi) Stream(ctx context.Context, request chatgraph.Request, onFragment chatgraph.FragmentHandler) (string, error) {
	if err := onFragment("Un "); err != nil {
		return "", err
	}
	return "", errors.New("connection refused: secret-host:11434")
}

func newTestServer(t *testing.T, ai chatgraph.Ai) *echo.Echo {
	agent, err := chatgraph.NewAgent(ai, chatgraph.NewMemorySaver())
	require.NoError(t, err)
	return NewServer(agent, nil)
}

func do(e *echo.Echo, method string, path string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func parseEvents(t *testing.T, body string) []StreamEvent {
	events := make([]StreamEvent, 0)
	for _, frame := range strings.Split(body, "\n\n") {
		for _, line := range strings.Split(frame, "\n") {
			if data, ok := strings.CutPrefix(line, "data:"); ok {
				event := StreamEvent{}
				require.NoError(t, json.Unmarshal([]byte(data), &event))
				events = append(events, event)
			}
		}
	}
	return events
}

func TestChat(t *testing.T) {
	e := newTestServer(t, chatgraph.NewDummyAi())

	rec := do(e, http.MethodPost, "/chat", `{"message":"Hola","session_id":"user-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	res := ChatResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, ChatResponse{Response: "turn 1, you said: Hola", SessionID: "user-1"}, res)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	rec = do(e, http.MethodPost, "/chat", `{"message":"¿Me recuerdas?","session_id":"user-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "turn 2, you said: ¿Me recuerdas?", res.Response)

	rec = do(e, http.MethodPost, "/chat", `{"message":"Hola","session_id":"user-2"}`)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "turn 1, you said: Hola", res.Response)
}

func TestChat_BadRequest(t *testing.T) {
	e := newTestServer(t, chatgraph.NewDummyAi())
	for _, body := range []string{
		`{"message":"Hola"}`,
		`{"session_id":"user-1"}`,
		`{"message":"   ","session_id":"user-1"}`,
		`{"message":`,
	} {
		rec := do(e, http.MethodPost, "/chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		rec = do(e, http.MethodPost, "/stream_chat", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestChat_FailureIsGeneric(t *testing.T) {
	e := newTestServer(t, brokenAi{})
	rec := do(e, http.MethodPost, "/chat", `{"message":"Hola","session_id":"user-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"agent failure"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret-host")
}

func TestStreamChat_MatchesChat(t *testing.T) {
	e := newTestServer(t, chatgraph.NewDummyAi())
	for _, msg := range []string{"Hola", "¿Qué tal el día de hoy?"} {
		body := `{"message":"` + msg + `","session_id":"%s"}`
		rec := do(e, http.MethodPost, "/chat", strings.Replace(body, "%s", "blocking", 1))
		require.Equal(t, http.StatusOK, rec.Code)
		res := ChatResponse{}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))

		rec = do(e, http.MethodPost, "/stream_chat", strings.Replace(body, "%s", "streaming", 1))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
		events := parseEvents(t, rec.Body.String())
		require.NotEmpty(t, events)

		streamed := strings.Builder{}
		for _, event := range events[:len(events)-1] {
			assert.Equal(t, FragmentEventType, event.Type)
			assert.NotEmpty(t, event.ID)
			streamed.WriteString(event.Text)
		}
		last := events[len(events)-1]
		assert.Equal(t, EndEventType, last.Type)
		assert.Equal(t, "streaming", last.SessionID)
		assert.Equal(t, res.Response, streamed.String())
	}
}

func TestStreamChat_Failure(t *testing.T) {
	e := newTestServer(t, brokenAi{})
	rec := do(e, http.MethodPost, "/stream_chat", `{"message":"Hola","session_id":"user-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	events := parseEvents(t, rec.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, StreamEvent{ID: events[0].ID, Type: FragmentEventType, Text: "Un "}, events[0])
	assert.Equal(t, ErrorEventType, events[1].Type)
	assert.Equal(t, "agent failure", events[1].Error)
	assert.NotContains(t, rec.Body.String(), "secret-host")
}

func TestSessionsAndHistory(t *testing.T) {
	e := newTestServer(t, chatgraph.NewDummyAi())
	do(e, http.MethodPost, "/chat", `{"message":"uno","session_id":"b"}`)
	do(e, http.MethodPost, "/chat", `{"message":"dos","session_id":"a"}`)

	rec := do(e, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":["a","b"]}`, rec.Body.String())

	rec = do(e, http.MethodGet, "/sessions/b", "")
	require.Equal(t, http.StatusOK, rec.Code)
	history := HistoryResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, "b", history.SessionID)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, chatgraph.RoleUser, history.Messages[0].Role)
	assert.Equal(t, "uno", history.Messages[0].Content)

	rec = do(e, http.MethodGet, "/sessions/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"unknown","messages":[]}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	e := newTestServer(t, chatgraph.NewDummyAi())
	rec := do(e, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	health := HealthResponse{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.False(t, health.Timestamp.IsZero())

	rec = do(e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToData(t *testing.T) {
	data, err := toData(StreamEvent{ID: "abc", Type: FragmentEventType, Text: "hola"})
	require.NoError(t, err)
	assert.Equal(t, "id: abc\nevent:fragment\ndata:{\"id\":\"abc\",\"type\":\"fragment\",\"text\":\"hola\"}\n\n", string(data))
}
