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

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"cloud.google.com/go/auth/credentials"
	"github.com/jinzhu/copier"
	"github.com/theirish81/chatgraph"
	"github.com/theirish81/chatgraph/chatgpt"
	"github.com/theirish81/chatgraph/gemini"
	"github.com/theirish81/chatgraph/ollama"
	"google.golang.org/genai"
)

// overlay copies the non-empty model settings of cfg over a provider's defaults. Sampling values are pointers
// in cfg, so an explicit zero is copied too.
func overlay[T any](defaults T) (T, error) {
	err := copier.CopyWithOption(&defaults, &cfg, copier.Option{IgnoreEmpty: true})
	return defaults, err
}

// initAi initializes the AI engine based on the configuration.
func initAi(ctx context.Context, log *slog.Logger) (chatgraph.Ai, error) {
	switch cfg.guessAi() {
	case engineGemini:
		client, err := newGeminiClient(ctx)
		if err != nil {
			return nil, err
		}
		config, err := overlay(gemini.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return gemini.NewAI(client, config, log), nil
	case engineOllama:
		config, err := overlay(ollama.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return ollama.NewAI(cfg.OllamaBaseURL, config, log), nil
	case engineChatgpt:
		config, err := overlay(chatgpt.DefaultConfig())
		if err != nil {
			return nil, err
		}
		return chatgpt.NewAI(cfg.OpenAiBaseURL, cfg.OpenAiApiKey, config, log), nil
	case engineDummy:
		return chatgraph.NewDummyAi(), nil
	default:
		return nil, errors.New("no AI is fully configured, check your .env file")
	}
}

// newGeminiClient constructs a genai client, with the API key when present or the configured service account.
func newGeminiClient(ctx context.Context) (*genai.Client, error) {
	if cfg.GeminiApiKey != "" {
		return genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiApiKey,
			Backend: genai.BackendGeminiAPI,
		})
	}
	credsBytes, err := os.ReadFile(cfg.GeminiServiceAccountPath)
	if err != nil {
		return nil, err
	}
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		CredentialsJSON: credsBytes,
	})
	if err != nil {
		return nil, err
	}
	return genai.NewClient(ctx, &genai.ClientConfig{
		Project:     cfg.GeminiProjectID,
		Location:    cfg.GeminiLocation,
		Credentials: creds,
		Backend:     genai.BackendVertexAI,
	})
}
