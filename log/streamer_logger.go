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

package log

import (
	"encoding/json"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type EventType string

const GenericEventType EventType = "generic"
const StartEventType EventType = "start"
const EndEventType EventType = "end"
const LoadEventType EventType = "load"
const SaveEventType EventType = "save"
const ErrorEventType EventType = "error"
const FragmentEventType EventType = "fragment"

type EventComponent string

const AgentComponent EventComponent = "agent"
const GraphComponent EventComponent = "graph"
const NodeComponent EventComponent = "node"
const CheckpointComponent EventComponent = "checkpoint"
const AiComponent EventComponent = "ai"
const ApiComponent EventComponent = "api"
const AppComponent EventComponent = "app"

type ChannelLevel string

const DebugChannelLevel ChannelLevel = "debug"
const InfoChannelLevel ChannelLevel = "info"

// Event is a structured log record. It is logged through slog and, optionally, mirrored on a channel.
type Event struct {
	Level     string         `json:"level"`
	Component EventComponent `json:"component"`
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Time      time.Time      `json:"time"`
	Message   string         `json:"message,omitempty"`
	Session   *string        `json:"session,omitempty"`
	Node      *string        `json:"node,omitempty"`
	Step      *int           `json:"step,omitempty"`
	Content   *any           `json:"content,omitempty"`
	Engine    *string        `json:"engine,omitempty"`
	Err       *EventError    `json:"error,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
}

type EventError struct {
	Message string
}

func (e EventError) Error() string {
	return e.Message
}

func (e EventError) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Message)
}

func NewEvent(eType EventType, component EventComponent) Event {
	return Event{
		Component: component,
		Type:      eType,
		Time:      time.Now(),
		ID:        uuid.NewString(),
	}
}

func (e Event) WithMessage(message string) Event {
	e.Message = message
	return e
}

func (e Event) WithSession(session string) Event {
	e.Session = &session
	return e
}

func (e Event) WithNode(node string) Event {
	e.Node = &node
	return e
}

func (e Event) WithStep(step int) Event {
	e.Step = &step
	return e
}

func (e Event) WithErr(err error) Event {
	e.Err = &EventError{Message: err.Error()}
	return e
}

func (e Event) WithContent(content any) Event {
	e.Content = &content
	return e
}

func (e Event) WithEngine(engine string) Event {
	e.Engine = &engine
	return e
}

func (e Event) WithArg(key string, value any) Event {
	args := make(map[string]any, len(e.Args)+1)
	for k, v := range e.Args {
		args[k] = v
	}
	args[key] = value
	e.Args = args
	return e
}

// ToArray flattens the event into slog key/value pairs
func (e Event) ToArray() []any {
	result := make([]any, 0)
	v := reflect.ValueOf(e)
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldName := strings.ToLower(field.Name)

		// Skip fields which make no sense in the logging context
		if slices.Contains([]string{"args", "level", "message", "id", "time"}, fieldName) {
			continue
		}
		fieldValue := v.Field(i)
		if fieldValue.Kind() == reflect.Pointer {
			if fieldValue.IsNil() {
				continue
			}
			result = append(result, fieldName, fieldValue.Elem().Interface())
			continue
		}
		result = append(result, fieldName, fieldValue.Interface())
	}
	for k, val := range e.Args {
		result = append(result, k, val)
	}

	return result
}

// StreamerLogger logs events through slog and mirrors them on a channel, when one is set.
type StreamerLogger struct {
	progressChannel chan Event
	logger          *slog.Logger
	channelLevel    ChannelLevel
	mx              sync.RWMutex
}

func NewStreamerLogger(logger *slog.Logger, channel chan Event, channelLevel ChannelLevel) *StreamerLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamerLogger{
		logger:          logger,
		progressChannel: channel,
		channelLevel:    channelLevel,
	}
}

// Default returns a StreamerLogger with no channel, logging to slog.Default()
func Default() *StreamerLogger {
	return NewStreamerLogger(slog.Default(), nil, InfoChannelLevel)
}

// SetChannel starts mirroring events on channel, at the given level
func (l *StreamerLogger) SetChannel(channel chan Event, level ChannelLevel) {
	l.mx.Lock()
	defer l.mx.Unlock()
	l.progressChannel = channel
	l.channelLevel = level
}

func (l *StreamerLogger) Close() {
	l.mx.Lock()
	defer l.mx.Unlock()
	if l.progressChannel != nil {
		close(l.progressChannel)
		l.progressChannel = nil
	}
}

func (l *StreamerLogger) Channel() chan Event {
	l.mx.RLock()
	defer l.mx.RUnlock()
	return l.progressChannel
}

// Slog returns the underlying slog logger
func (l *StreamerLogger) Slog() *slog.Logger {
	return l.logger
}

func (l *StreamerLogger) Debug(event Event) {
	event.Level = "debug"
	l.logger.Debug(event.Message, event.ToArray()...)
	l.mx.RLock()
	level := l.channelLevel
	l.mx.RUnlock()
	if level == DebugChannelLevel {
		l.Send(event)
	}
}

func (l *StreamerLogger) Info(event Event) {
	event.Level = "info"
	l.logger.Info(event.Message, event.ToArray()...)
	l.Send(event)
}

func (l *StreamerLogger) Warn(event Event) {
	event.Level = "warn"
	l.logger.Warn(event.Message, event.ToArray()...)
	l.Send(event)
}

func (l *StreamerLogger) Err(event Event) {
	event.Level = "err"
	l.logger.Error(event.Message, event.ToArray()...)
	l.Send(event)
}

// Send pushes the event on the channel without blocking. Events are dropped when the channel is full.
func (l *StreamerLogger) Send(event Event) {
	l.mx.RLock()
	defer l.mx.RUnlock()
	if l.progressChannel != nil {
		select {
		case l.progressChannel <- event:
		default:
			l.logger.Warn("streamer logger channel full, dropping event")
		}
	}
}
