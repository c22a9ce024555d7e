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
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theirish81/chatgraph"
	"github.com/theirish81/chatgraph/chatgpt"
	"github.com/theirish81/chatgraph/gemini"
	"github.com/theirish81/chatgraph/log"
	"github.com/theirish81/chatgraph/ollama"
)

func withConfig(t *testing.T, c Config) {
	previous := cfg
	cfg = c
	t.Cleanup(func() {
		cfg = previous
	})
}

func TestOverlay(t *testing.T) {
	withConfig(t, Config{Model: "llama3.2", NumPredict: 64})
	config, err := overlay(ollama.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", config.Model)
	assert.Equal(t, 64, config.NumPredict)
	assert.Equal(t, ollama.DefaultConfig().TopK, config.TopK)
	assert.Equal(t, ollama.DefaultConfig().Temperature, config.Temperature)
}

func TestOverlay_ZeroTemperature(t *testing.T) {
	withConfig(t, Config{Temperature: lo.ToPtr(float32(0)), TopK: lo.ToPtr(float32(10))})
	config, err := overlay(chatgpt.DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, config.Temperature)

	gem, err := overlay(gemini.DefaultConfig())
	require.NoError(t, err)
	assert.Zero(t, gem.Temperature)
	assert.Equal(t, float32(10), gem.TopK)
	assert.Equal(t, gemini.DefaultConfig().TopP, gem.TopP)
}

func TestInitAi(t *testing.T) {
	withConfig(t, Config{AiEngine: engineDummy})
	ai, err := initAi(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, &chatgraph.DummyAi{}, ai)

	withConfig(t, Config{OllamaBaseURL: "http://localhost:11434"})
	ai, err = initAi(context.Background(), nil)
	require.NoError(t, err)
	assert.IsType(t, &ollama.Ai{}, ai)

	withConfig(t, Config{})
	_, err = initAi(context.Background(), nil)
	assert.Error(t, err)
}

func TestInitAgent(t *testing.T) {
	withConfig(t, Config{AiEngine: engineDummy, Store: storeSQLite, SQLitePath: t.TempDir() + "/chat.db"})
	agent, closeStore, err := initAgent(context.Background(), log.Default())
	require.NoError(t, err)
	defer func() {
		_ = closeStore()
	}()
	reply, err := agent.Chat(context.Background(), "user-1", "hola")
	require.NoError(t, err)
	assert.Equal(t, "turn 1, you said: hola", reply)
}
