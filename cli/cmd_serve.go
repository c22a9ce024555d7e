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
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/theirish81/chatgraph/api"
	"github.com/theirish81/chatgraph/log"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `
Run the HTTP server. POST /chat answers in one go, POST /stream_chat streams the answer as server-sent events.
Both take {"message": "...", "session_id": "..."}.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(debug, nil)
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		agent, closeStore, err := initAgent(ctx, logger)
		if err != nil {
			cmd.PrintErrln(err)
			return
		}
		defer func() {
			_ = closeStore()
		}()
		e := api.NewServer(agent, logger)
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = e.Shutdown(shutdownCtx)
		}()
		if port == 0 {
			port = cfg.Port
		}
		logger.Info(log.NewEvent(log.StartEventType, log.ApiComponent).WithMessage("listening").WithArg("port", port))
		if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			cmd.PrintErrln(err)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on, PORT when not set")
}
