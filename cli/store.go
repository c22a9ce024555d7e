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

	"github.com/theirish81/chatgraph"
	"github.com/theirish81/chatgraph/log"
	"github.com/theirish81/chatgraph/store"
)

// initStore opens the checkpointer selected by the configuration. The returned function releases it.
func initStore(ctx context.Context) (chatgraph.Checkpointer, func() error, error) {
	switch cfg.guessStore() {
	case storeSQLite:
		db, err := store.NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case storePostgres:
		db, err := store.NewPostgres(ctx, cfg.PostgresDSN, cfg.StoreConnectAttempts)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	case storeRedis:
		db, err := store.NewRedis(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.RedisTTL,
		}, cfg.StoreConnectAttempts)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	default:
		return chatgraph.NewMemorySaver(), func() error { return nil }, nil
	}
}

// initAgent wires the configured model and store into an agent
func initAgent(ctx context.Context, logger *log.StreamerLogger) (*chatgraph.Agent, func() error, error) {
	ai, err := initAi(ctx, logger.Slog())
	if err != nil {
		return nil, nil, err
	}
	checkpointer, closer, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(log.NewEvent(log.StartEventType, log.AppComponent).WithEngine(cfg.guessAi()).
		WithMessage("agent ready").WithArg("store", cfg.guessStore()))
	agent, err := chatgraph.NewAgent(ai, checkpointer,
		chatgraph.WithSystemPrompt(cfg.SystemPrompt),
		chatgraph.WithLogger(logger))
	if err != nil {
		_ = closer()
		return nil, nil, err
	}
	return agent, closer, nil
}
