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

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/theirish81/chatgraph"
	"github.com/theirish81/chatgraph/log"
)

// Server exposes an Agent over HTTP
type Server struct {
	agent *chatgraph.Agent
	log   *log.StreamerLogger
}

// NewServer returns an echo instance with every route registered
func NewServer(agent *chatgraph.Agent, logger *log.StreamerLogger) *echo.Echo {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{agent: agent, log: logger}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validator: validator.New()}
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			id, _ := gonanoid.New()
			return id
		},
	}))
	addRequestLoggerMiddleware(e, logger.Slog())
	e.Use(middleware.Recover())

	e.GET("/health", s.health)
	e.POST("/chat", s.chat)
	e.POST("/stream_chat", s.streamChat)
	e.GET("/sessions", s.sessions)
	e.GET("/sessions/:id", s.history)
	return e
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func (s *Server) chat(c echo.Context) error {
	req, err := bindChatRequest(c)
	if err != nil {
		return err
	}
	reply, err := s.agent.Chat(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ChatResponse{Response: reply, SessionID: req.SessionID})
}

// streamChat relays the reply as server-sent events: one fragment event per piece of text, then an end event, or
// an error event if the agent fails midway.
func (s *Server) streamChat(c echo.Context) error {
	req, err := bindChatRequest(c)
	if err != nil {
		return err
	}
	fragments, err := s.agent.StreamChat(c.Request().Context(), req.SessionID, req.Message)
	if err != nil {
		return err
	}
	streamer := NewStreamer(c)
	streamer.Start()
	for fragment := range fragments {
		if fragment.Err != nil {
			return streamer.Send(StreamEvent{Type: ErrorEventType, SessionID: req.SessionID, Error: chatgraph.ErrAgent.Error()})
		}
		if err := streamer.Send(StreamEvent{Type: FragmentEventType, Text: fragment.Text}); err != nil {
			s.log.Warn(log.NewEvent(log.ErrorEventType, log.ApiComponent).WithSession(req.SessionID).
				WithMessage("client went away").WithErr(err))
			return nil
		}
	}
	return streamer.Send(StreamEvent{Type: EndEventType, SessionID: req.SessionID})
}

func (s *Server) sessions(c echo.Context) error {
	sessions, err := s.agent.Sessions(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, SessionsResponse{Sessions: sessions})
}

func (s *Server) history(c echo.Context) error {
	sessionID := c.Param("id")
	messages, err := s.agent.History(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, HistoryResponse{SessionID: sessionID, Messages: messages})
}

func bindChatRequest(c echo.Context) (ChatRequest, error) {
	req := ChatRequest{}
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	if err := c.Validate(&req); err != nil {
		return req, err
	}
	return req, nil
}

// errorHandler maps input errors to 400 and hides every other failure behind a generic 500
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var httpErr *echo.HTTPError
	switch {
	case errors.Is(err, chatgraph.ErrInvalidRequest):
		_ = c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &httpErr):
		_ = c.JSON(httpErr.Code, ErrorResponse{Error: fmt.Sprint(httpErr.Message)})
	default:
		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{Error: chatgraph.ErrAgent.Error()})
	}
}

type requestValidator struct {
	validator *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	if err := v.validator.Struct(i); err != nil {
		return fmt.Errorf("%w: %w", chatgraph.ErrInvalidRequest, err)
	}
	return nil
}

// addRequestLoggerMiddleware adds a middleware that logs each request.
func addRequestLoggerMiddleware(e *echo.Echo, log *slog.Logger) {
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error == nil {
				log.LogAttrs(context.Background(), slog.LevelInfo, "REQUEST",
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("request_id", v.RequestID),
				)
			} else {
				log.LogAttrs(context.Background(), slog.LevelError, "REQUEST_ERROR",
					slog.String("method", v.Method),
					slog.String("uri", v.URI),
					slog.Int("status", v.Status),
					slog.String("request_id", v.RequestID),
					slog.String("err", v.Error.Error()),
				)
			}
			return nil
		},
	}))
}
