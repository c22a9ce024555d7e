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
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/theirish81/chatgraph"
	"github.com/theirish81/chatgraph/log"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))
	userStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))
	botStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// newLogger returns a StreamerLogger writing to slog, at debug level when debug is set. Events are mirrored on
// events, when not nil.
func newLogger(debug bool, events chan log.Event) *log.StreamerLogger {
	logger := slog.Default()
	if debug {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	return log.NewStreamerLogger(logger, events, log.DebugChannelLevel)
}

// newChatLogger returns a logger that writes nothing while chatting. With debug set, events are printed to out
// instead. The returned function closes the logger and waits for the pending events to be printed.
func newChatLogger(debug bool, out io.Writer) (*log.StreamerLogger, func()) {
	// slog output would mix with the conversation
	logger := log.NewStreamerLogger(slog.New(slog.NewTextHandler(io.Discard, nil)), nil, log.InfoChannelLevel)
	if !debug {
		return logger, func() {}
	}
	events := make(chan log.Event, 100)
	logger.SetChannel(events, log.DebugChannelLevel)
	done := make(chan struct{})
	go func() {
		defer close(done)
		printEvents(out, events)
	}()
	return logger, func() {
		logger.Close()
		<-done
	}
}

// printEvents prints the events of a StreamerLogger until the channel is closed
func printEvents(out io.Writer, events <-chan log.Event) {
	for event := range events {
		line := fmt.Sprintf("[%s] %s %s", event.Component, event.Type, event.Message)
		if event.Session != nil {
			line += " session=" + *event.Session
		}
		if event.Node != nil {
			line += " node=" + *event.Node
		}
		if event.Err != nil {
			line += " err=" + event.Err.Error()
		}
		_, _ = fmt.Fprintln(out, dimStyle.Render(line))
	}
}

func roleStyle(role chatgraph.Role) lipgloss.Style {
	switch role {
	case chatgraph.RoleUser:
		return userStyle
	case chatgraph.RoleAssistant:
		return botStyle
	default:
		return dimStyle
	}
}

func isQuit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "quit", "exit", "salir":
		return true
	}
	return false
}
