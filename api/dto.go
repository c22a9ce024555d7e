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
	"time"

	"github.com/theirish81/chatgraph"
)

// ChatRequest is the body of /chat and /stream_chat
type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id" validate:"required"`
}

// ChatResponse is the body returned by /chat
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	Messages  chatgraph.Messages `json:"messages"`
}

type SessionsResponse struct {
	Sessions []string `json:"sessions"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
