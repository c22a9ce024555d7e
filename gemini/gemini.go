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

package gemini

import (
	"context"
	"errors"
	"log/slog"

	"github.com/theirish81/chatgraph"
	"google.golang.org/genai"
)

// Gemini defaults
const temperature float32 = 0.1
const topK float32 = 40
const topP float32 = 0.9

const defaultModel = "gemini-2.5-flash"

// Ai is a wrapper around the genai client
type Ai struct {
	client *genai.Client
	config Config
	log    *slog.Logger
}

type Config struct {
	Model       string  `yaml:"model" json:"model"`
	Temperature float32 `yaml:"temperature" json:"temperature"`
	TopK        float32 `yaml:"topK" json:"top_k"`
	TopP        float32 `yaml:"topP" json:"top_p"`
}

func DefaultConfig() Config {
	return Config{
		Model:       defaultModel,
		Temperature: temperature,
		TopK:        topK,
		TopP:        topP,
	}
}

// NewAI creates a new Ai wrapper
func NewAI(client *genai.Client, config Config, log *slog.Logger) *Ai {
	if log == nil {
		log = slog.Default()
	}
	if config.Model == "" {
		config.Model = defaultModel
	}
	return &Ai{
		client: client,
		config: config,
		log:    log,
	}
}

// Complete sends the whole conversation to Gemini and returns the reply
func (d *Ai) Complete(ctx context.Context, request chatgraph.Request) (string, error) {
	contents := toContents(request.Messages)
	if len(contents) == 0 {
		return "", errors.New("no messages to send")
	}
	d.log.Debug("generating content", "ai", "gemini", "message", PartToLoggableText(contents[len(contents)-1]))
	res, err := d.client.Models.GenerateContent(ctx, d.config.Model, contents, d.generateConfig(request.SystemPrompt))
	if err != nil {
		return "", err
	}
	if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	out := joinParts(res.Candidates[0].Content.Parts)
	d.log.Debug("generated response", "ai", "gemini", "response", out)
	return out, nil
}

// Stream sends the whole conversation to Gemini and forwards the reply as it is generated
func (d *Ai) Stream(ctx context.Context, request chatgraph.Request, onFragment chatgraph.FragmentHandler) (string, error) {
	contents := toContents(request.Messages)
	if len(contents) == 0 {
		return "", errors.New("no messages to send")
	}
	d.log.Debug("streaming content", "ai", "gemini", "message", PartToLoggableText(contents[len(contents)-1]))
	out := ""
	for res, err := range d.client.Models.GenerateContentStream(ctx, d.config.Model, contents, d.generateConfig(request.SystemPrompt)) {
		if err != nil {
			return "", err
		}
		if len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
			continue
		}
		fragment := joinParts(res.Candidates[0].Content.Parts)
		if fragment == "" {
			continue
		}
		out += fragment
		if err := onFragment(fragment); err != nil {
			return "", err
		}
	}
	d.log.Debug("streamed response", "ai", "gemini", "response", out)
	return out, nil
}

func (d *Ai) generateConfig(systemPrompt string) *genai.GenerateContentConfig {
	cfg := genai.GenerateContentConfig{
		Temperature: &d.config.Temperature,
		TopK:        &d.config.TopK,
		TopP:        &d.config.TopP,
	}
	if len(systemPrompt) > 0 {
		cfg.SystemInstruction = genai.NewContentFromText(systemPrompt, "system")
	}
	return &cfg
}
