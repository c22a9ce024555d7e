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

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/theirish81/chatgraph"
)

const defaultModel = "qwen3:latest"
const defaultBaseURL = "http://localhost:11434"
const temperature float32 = 0.1
const topK float32 = 40
const topP float32 = 0.9

// ErrIncompleteStream is returned when a streamed reply ends before Ollama marks it as done
var ErrIncompleteStream = errors.New("ollama: stream ended before the reply was complete")

// Ai implements the chatgraph.Ai interface for Ollama.
type Ai struct {
	client  *http.Client
	baseURL string
	config  Config
	log     *slog.Logger
}

type Config struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
	TopK        float32 `yaml:"topK" json:"top_k"`
	TopP        float32 `yaml:"topP" json:"top_p"`
	NumPredict  int     `yaml:"numPredict" json:"num_predict"`
}

func DefaultConfig() Config {
	return Config{
		Model:       defaultModel,
		Temperature: temperature,
		TopK:        topK,
		TopP:        topP,
		NumPredict:  1024,
	}
}

// NewAI creates a new Ai instance
func NewAI(baseURL string, config Config, log *slog.Logger) *Ai {
	if log == nil {
		log = slog.Default()
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	return &Ai{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		config:  config,
		log:     log,
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
			},
		},
	}
}

// Complete performs a query against the Ollama API and waits for the whole reply
func (d *Ai) Complete(ctx context.Context, request chatgraph.Request) (string, error) {
	res, err := d.sendRequest(ctx, d.newRequest(request, false))
	if err != nil {
		return "", err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	response := Response{}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return "", err
	}
	d.log.Debug("generated response", "ai", "ollama", "response", response.Message.Content)
	return response.Message.Content, nil
}

// Stream performs a query against the Ollama API and forwards every chunk of the reply
func (d *Ai) Stream(ctx context.Context, request chatgraph.Request, onFragment chatgraph.FragmentHandler) (string, error) {
	res, err := d.sendRequest(ctx, d.newRequest(request, true))
	if err != nil {
		return "", err
	}
	defer func() {
		_ = res.Body.Close()
	}()
	out := strings.Builder{}
	done := false
	scanner := bufio.NewScanner(res.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		chunk := Response{}
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", err
		}
		if chunk.Error != "" {
			return "", fmt.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			out.WriteString(chunk.Message.Content)
			if err := onFragment(chunk.Message.Content); err != nil {
				return "", err
			}
		}
		if chunk.Done {
			done = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	if !done {
		return "", ErrIncompleteStream
	}
	d.log.Debug("streamed response", "ai", "ollama", "response", out.String())
	return out.String(), nil
}

// newRequest builds the Ollama payload. The system prompt, if any, is prepended to the history.
func (d *Ai) newRequest(request chatgraph.Request, stream bool) Request {
	messages := make([]Message, 0, len(request.Messages)+1)
	if request.SystemPrompt != "" {
		messages = append(messages, Message{Role: string(chatgraph.RoleSystem), Content: request.SystemPrompt})
	}
	for _, msg := range request.Messages {
		messages = append(messages, Message{Role: string(msg.Role), Content: msg.Content})
	}
	return Request{
		Messages: messages,
		Model:    d.config.Model,
		Stream:   stream,
		Think:    false,
		Options: Options{
			NumPredict:  d.config.NumPredict,
			Temperature: d.config.Temperature,
			TopK:        d.config.TopK,
			TopP:        d.config.TopP,
		},
	}
}

// sendRequest posts to /api/chat. The caller closes the body of a successful response.
func (d *Ai) sendRequest(ctx context.Context, request Request) (*http.Response, error) {
	requestBody, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	apiUrl, err := url.Parse(d.baseURL + "/api/chat")
	if err != nil {
		return nil, err
	}
	d.log.Debug("sending request", "ai", "ollama", "model", request.Model, "messages", len(request.Messages),
		"stream", request.Stream)
	req := http.Request{
		Method: "POST",
		URL:    apiUrl,
		Header: http.Header{
			"Content-Type": []string{"application/json"},
		},
		Body: io.NopCloser(bytes.NewReader(requestBody)),
	}
	res, err := d.client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusBadRequest {
		defer func() {
			_ = res.Body.Close()
		}()
		body, _ := io.ReadAll(res.Body)
		failure := Response{}
		if json.Unmarshal(body, &failure) == nil && failure.Error != "" {
			return nil, fmt.Errorf("ollama: %s (status %d)", failure.Error, res.StatusCode)
		}
		return nil, fmt.Errorf("ollama: unexpected status %d", res.StatusCode)
	}
	return res, nil
}
