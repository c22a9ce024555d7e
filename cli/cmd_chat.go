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
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/theirish81/chatgraph"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent from the terminal",
	Long: `
Chat with the agent from the terminal. Replies are streamed as they are generated. Type quit, exit or salir to
leave. With --debug the agent events are printed as they happen.`,
	Run: func(cmd *cobra.Command, args []string) {
		logger, closeLogger := newChatLogger(debug, cmd.ErrOrStderr())
		defer closeLogger()
		agent, closeStore, err := initAgent(cmd.Context(), logger)
		if err != nil {
			cmd.PrintErrln(err)
			return
		}
		defer func() {
			_ = closeStore()
		}()
		if err := runChat(cmd.Context(), agent, sessionID, cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
			cmd.PrintErrln(err)
		}
	},
}

// runChat reads one message per line from in and streams the replies to out until a quit word or EOF
func runChat(ctx context.Context, agent *chatgraph.Agent, sessionID string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	_, _ = fmt.Fprintln(out, titleStyle.Render("chatgraph")+" "+dimStyle.Render("session "+sessionID+", type salir to leave"))
	for {
		_, _ = fmt.Fprint(out, userStyle.Render("tú> "))
		if !scanner.Scan() {
			_, _ = fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if isQuit(line) {
			_, _ = fmt.Fprintln(out, "¡Hasta luego!")
			return nil
		}
		fragments, err := agent.StreamChat(ctx, sessionID, line)
		if err != nil {
			_, _ = fmt.Fprintln(out, errorStyle.Render(err.Error()))
			continue
		}
		_, _ = fmt.Fprint(out, botStyle.Render("bot> "))
		for fragment := range fragments {
			if fragment.Err != nil {
				_, _ = fmt.Fprint(out, errorStyle.Render("["+chatgraph.ErrAgent.Error()+"]"))
				continue
			}
			_, _ = fmt.Fprint(out, fragment.Text)
		}
		_, _ = fmt.Fprintln(out)
	}
}

func init() {
	chatCmd.Flags().StringVarP(&sessionID, "session", "s", "user-1", "session id")
}
