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
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/theirish81/chatgraph"
)

var historyCmd = &cobra.Command{
	Use:   "history [session]",
	Short: "Print the stored history of a session, or the list of sessions",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		logger := newLogger(debug, nil)
		agent, closeStore, err := initAgent(cmd.Context(), logger)
		if err != nil {
			cmd.PrintErrln(err)
			return
		}
		defer func() {
			_ = closeStore()
		}()
		if len(args) == 0 {
			err = printSessions(cmd.Context(), agent, cmd.OutOrStdout())
		} else {
			err = printHistory(cmd.Context(), agent, args[0], cmd.OutOrStdout())
		}
		if err != nil {
			cmd.PrintErrln(err)
		}
	},
}

func printHistory(ctx context.Context, agent *chatgraph.Agent, session string, out io.Writer) error {
	messages, err := agent.History(ctx, session)
	if err != nil {
		return err
	}
	if len(messages) == 0 {
		_, _ = fmt.Fprintln(out, dimStyle.Render("no messages for session "+session))
		return nil
	}
	for _, msg := range messages {
		_, _ = fmt.Fprintf(out, "%s %s %s\n",
			dimStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			roleStyle(msg.Role).Render(string(msg.Role)+">"),
			msg.Content)
	}
	return nil
}

func printSessions(ctx context.Context, agent *chatgraph.Agent, out io.Writer) error {
	sessions, err := agent.Sessions(ctx)
	if err != nil {
		return err
	}
	for _, session := range sessions {
		_, _ = fmt.Fprintln(out, session)
	}
	return nil
}
