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
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	FragmentEventType = "fragment"
	EndEventType      = "end"
	ErrorEventType    = "error"
)

// StreamEvent is a server-sent event of /stream_chat
type StreamEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Streamer writes server-sent events to an echo response
type Streamer struct {
	c       echo.Context
	mx      sync.Mutex
	started bool
}

func NewStreamer(c echo.Context) *Streamer {
	return &Streamer{c: c}
}

// Start sends the event-stream headers. It is called by the first Send.
func (s *Streamer) Start() {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.start()
}

func (s *Streamer) start() {
	if s.started {
		return
	}
	s.started = true
	s.c.Response().Header().Set("Content-Type", "text/event-stream")
	s.c.Response().Header().Set("Cache-Control", "no-cache")
	s.c.Response().Header().Set("Connection", "keep-alive")
	s.c.Response().Header().Set("X-Accel-Buffering", "no")
	s.c.Response().WriteHeader(http.StatusOK)
	s.c.Response().Flush()
}

// Send writes one event and flushes it
func (s *Streamer) Send(event StreamEvent) error {
	if event.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		event.ID = id
	}
	data, err := toData(event)
	if err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	s.start()
	if _, err := s.c.Response().Write(data); err != nil {
		return err
	}
	s.c.Response().Flush()
	return nil
}

func toData(event StreamEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("id: %s\nevent:%s\ndata:%s\n\n", event.ID, event.Type, string(data))), nil
}
