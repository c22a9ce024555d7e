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

// DefaultSystemPrompt is the instruction the conversation node sends ahead of every history. It is never
// persisted.
const DefaultSystemPrompt = "You are FabiBot, a friendly and helpful assistant, expert in technology and programming. " +
	"Your goal is to answer the user's questions. Answer clearly and concisely, and always in Spanish. " +
	"Keep the context of the conversation."
