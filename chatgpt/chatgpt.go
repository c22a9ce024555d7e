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

package chatgpt

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/theirish81/chatgraph"
)

// Defaults target Groq's OpenAI compatible endpoint
const defaultModel = "llama-3.1-8b-instant"
const DefaultBaseURL = "https://api.groq.com/openai/v1"
const temperature float32 = 0.7

// Ai implements chatgraph.Ai for any OpenAI compatible chat completions endpoint.
type Ai struct {
	client openai.Client
	config Config
	log    *slog.Logger
}

type Config struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
}

func DefaultConfig() Config {
	return Config{
		Model:       defaultModel,
		Temperature: temperature,
	}
}

// NewAI creates a new Ai. An empty baseURL means DefaultBaseURL.
func NewAI(baseURL string, apiKey string, config Config, log *slog.Logger) *Ai {
	if log == nil {
		log = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	return &Ai{
		client: openai.NewClient(
			option.WithBaseURL(baseURL),
			option.WithAPIKey(apiKey),
			option.WithMaxRetries(0),
		),
		config: config,
		log:    log,
	}
}

// Complete sends the conversation and returns the first choice
func (d *Ai) Complete(ctx context.Context, request chatgraph.Request) (string, error) {
	d.log.Debug("sending completion", "ai", "chatgpt", "model", d.config.Model, "messages", len(request.Messages))
	res, err := d.client.Chat.Completions.New(ctx, d.newParams(request))
	if err != nil {
		return "", err
	}
	if len(res.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	out := res.Choices[0].Message.Content
	d.log.Debug("generated response", "ai", "chatgpt", "response", out)
	return out, nil
}

// Stream sends the conversation and forwards every content delta of the first choice
func (d *Ai) Stream(ctx context.Context, request chatgraph.Request, onFragment chatgraph.FragmentHandler) (string, error) {
	d.log.Debug("sending streaming completion", "ai", "chatgpt", "model", d.config.Model, "messages", len(request.Messages))
	stream := d.client.Chat.Completions.NewStreaming(ctx, d.newParams(request))
	defer func() {
		_ = stream.Close()
	}()
	out := strings.Builder{}
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		fragment := chunk.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		out.WriteString(fragment)
		if err := onFragment(fragment); err != nil {
			return "", err
		}
	}
	if err := stream.Err(); err != nil {
		return "", err
	}
	d.log.Debug("streamed response", "ai", "chatgpt", "response", out.String())
	return out.String(), nil
}

func (d *Ai) newParams(request chatgraph.Request) openai.ChatCompletionNewParams {
	return openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(d.config.Model),
		Messages:    toMessages(request),
		Temperature: openai.Float(float64(d.config.Temperature)),
	}
}
