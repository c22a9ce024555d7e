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
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"github.com/theirish81/chatgraph"
)

// supported AI engines
const (
	engineGemini  = "gemini"
	engineOllama  = "ollama"
	engineChatgpt = "chatgpt"
	engineDummy   = "dummy"
)

// supported stores
const (
	storeMemory   = "memory"
	storeSQLite   = "sqlite"
	storePostgres = "postgres"
	storeRedis    = "redis"
)

const maskedValue = "*****"

type Config struct {
	AiEngine                 string        `mapstructure:"AI_ENGINE" yaml:"AI_ENGINE"`
	Model                    string        `mapstructure:"MODEL" yaml:"MODEL"`
	Temperature              *float32      `mapstructure:"TEMPERATURE" yaml:"TEMPERATURE"`
	TopK                     *float32      `mapstructure:"TOP_K" yaml:"TOP_K"`
	TopP                     *float32      `mapstructure:"TOP_P" yaml:"TOP_P"`
	NumPredict               int           `mapstructure:"NUM_PREDICT" yaml:"NUM_PREDICT"`
	SystemPrompt             string        `mapstructure:"SYSTEM_PROMPT" yaml:"SYSTEM_PROMPT"`
	OllamaBaseURL            string        `mapstructure:"OLLAMA_BASE_URL" yaml:"OLLAMA_BASE_URL"`
	OpenAiApiKey             string        `mapstructure:"OPENAI_API_KEY" yaml:"OPENAI_API_KEY"`
	OpenAiBaseURL            string        `mapstructure:"OPENAI_BASE_URL" yaml:"OPENAI_BASE_URL"`
	GeminiApiKey             string        `mapstructure:"GEMINI_API_KEY" yaml:"GEMINI_API_KEY"`
	GeminiServiceAccountPath string        `mapstructure:"GEMINI_SERVICE_ACCOUNT_PATH" yaml:"GEMINI_SERVICE_ACCOUNT_PATH"`
	GeminiProjectID          string        `mapstructure:"GEMINI_PROJECT_ID" yaml:"GEMINI_PROJECT_ID"`
	GeminiLocation           string        `mapstructure:"GEMINI_LOCATION" yaml:"GEMINI_LOCATION"`
	Store                    string        `mapstructure:"STORE" yaml:"STORE"`
	SQLitePath               string        `mapstructure:"SQLITE_PATH" yaml:"SQLITE_PATH"`
	PostgresDSN              string        `mapstructure:"POSTGRES_DSN" yaml:"POSTGRES_DSN"`
	RedisAddr                string        `mapstructure:"REDIS_ADDR" yaml:"REDIS_ADDR"`
	RedisPassword            string        `mapstructure:"REDIS_PASSWORD" yaml:"REDIS_PASSWORD"`
	RedisDB                  int           `mapstructure:"REDIS_DB" yaml:"REDIS_DB"`
	RedisTTL                 time.Duration `mapstructure:"REDIS_TTL" yaml:"REDIS_TTL"`
	StoreConnectAttempts     int           `mapstructure:"STORE_CONNECT_ATTEMPTS" yaml:"STORE_CONNECT_ATTEMPTS"`
	Port                     int           `mapstructure:"PORT" yaml:"PORT"`
}

// defaultConfig holds the values used when neither the environment nor .env set a key. Provider specific
// values (model, sampling) are left empty so each provider applies its own defaults.
func defaultConfig() Config {
	return Config{
		SystemPrompt:         chatgraph.DefaultSystemPrompt,
		StoreConnectAttempts: 5,
		Port:                 8080,
	}
}

// configDefaults flattens defaultConfig into a map keyed like the environment. Keys with no default map to nil.
func configDefaults() (map[string]any, error) {
	defaults := make(map[string]any)
	if err := mapstructure.Decode(defaultConfig(), &defaults); err != nil {
		return nil, err
	}
	for k, val := range defaults {
		if rv := reflect.ValueOf(val); rv.Kind() == reflect.Pointer && rv.IsNil() {
			defaults[k] = nil
		}
	}
	return defaults, nil
}

// loadConfig reads the configuration from the environment, falling back to defaultConfig
func loadConfig(v *viper.Viper) (Config, error) {
	defaults, err := configDefaults()
	if err != nil {
		return Config{}, err
	}
	for k, val := range defaults {
		if val == nil {
			// unset sampling values must stay nil so the provider defaults apply
			if err := v.BindEnv(k); err != nil {
				return Config{}, err
			}
			continue
		}
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()
	c := Config{}
	err = v.Unmarshal(&c)
	return c, err
}

// guessAi tries to guess the AI engine based on the configuration.
func (c Config) guessAi() string {
	switch strings.ToLower(c.AiEngine) {
	case engineOllama:
		return engineOllama
	case engineGemini:
		return engineGemini
	case engineChatgpt:
		return engineChatgpt
	case engineDummy:
		return engineDummy
	}
	if c.OpenAiApiKey != "" {
		return engineChatgpt
	}
	if c.GeminiApiKey != "" ||
		(c.GeminiServiceAccountPath != "" && c.GeminiProjectID != "" && c.GeminiLocation != "") {
		return engineGemini
	}
	if c.OllamaBaseURL != "" {
		return engineOllama
	}
	return ""
}

// guessStore tries to guess the store based on the configuration. Memory is the fallback.
func (c Config) guessStore() string {
	switch strings.ToLower(c.Store) {
	case storeMemory:
		return storeMemory
	case storeSQLite:
		return storeSQLite
	case storePostgres:
		return storePostgres
	case storeRedis:
		return storeRedis
	}
	if c.PostgresDSN != "" {
		return storePostgres
	}
	if c.RedisAddr != "" {
		return storeRedis
	}
	if c.SQLitePath != "" {
		return storeSQLite
	}
	return storeMemory
}

// masked returns a copy of the configuration that is safe to print
func (c Config) masked() Config {
	for _, secret := range []*string{&c.OpenAiApiKey, &c.GeminiApiKey, &c.RedisPassword, &c.PostgresDSN} {
		if *secret != "" {
			*secret = maskedValue
		}
	}
	return c
}

var cfg = Config{}
