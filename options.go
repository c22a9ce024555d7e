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

package chatgraph

import (
	"github.com/theirish81/chatgraph/log"
)

// Options are options for graphs and agents.
type Options struct {
	logger       *log.StreamerLogger
	systemPrompt string
}

// Option is an option for graphs and agents.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(logger *log.StreamerLogger) Option {
	return func(o *Options) {
		o.logger = logger
	}
}

// WithSystemPrompt sets the instruction the conversation node sends ahead of the history. Agents only.
func WithSystemPrompt(systemPrompt string) Option {
	return func(o *Options) {
		o.systemPrompt = systemPrompt
	}
}

func newOptions(options ...Option) Options {
	opts := Options{
		systemPrompt: DefaultSystemPrompt,
	}
	for _, opt := range options {
		opt(&opts)
	}
	if opts.logger == nil {
		opts.logger = log.Default()
	}
	return opts
}
