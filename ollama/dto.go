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

package ollama

// Message represents a message sent to the LLM.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents a request to Ollama
type Request struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Think    bool      `json:"think"`
	Options  Options   `json:"options,omitempty"`
}

// Response represents a response from Ollama. When streaming, one Response is received per line.
type Response struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
	Error   string  `json:"error,omitempty"`
}

type Options struct {
	NumPredict        int      `json:"num_predict,omitempty"`
	Stop              []string `json:"stop,omitempty"`
	Temperature       float32  `json:"temperature,omitempty"`
	TopK              float32  `json:"top_k,omitempty"`
	TopP              float32  `json:"top_p,omitempty"`
	RepetitionPenalty float32  `json:"repeat_penalty,omitempty"`
}
