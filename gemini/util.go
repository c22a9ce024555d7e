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

package gemini

import (
	"github.com/theirish81/chatgraph"
	"google.golang.org/genai"
)

// PartToLoggableText returns the text of the last part of a content
func PartToLoggableText(content *genai.Content) string {
	if content == nil || len(content.Parts) == 0 {
		return ""
	}
	return content.Parts[len(content.Parts)-1].Text
}

// toContents converts a history into Gemini contents. System messages are not part of a Gemini conversation and
// are skipped, the system prompt travels in the generation config instead.
func toContents(messages chatgraph.Messages) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages.WithoutSystem() {
		role := genai.Role(genai.RoleUser)
		if msg.Role == chatgraph.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return contents
}

func joinParts(parts []*genai.Part) string {
	out := ""
	for _, part := range parts {
		if part == nil {
			continue
		}
		out += part.Text
	}
	return out
}
