// Package chat implements the conversation core: assembling model input
// from stored history, persona instruction, and the incoming turn, and
// orchestrating the two-round tool-calling protocol against the upstream
// model.
package chat

import (
	"github.com/yuchingtsai/chatpad/internal/gemini"
)

// Assemble merges stored history, the persona instruction, and the new
// user turn into the request the upstream model expects.
//
// History is trimmed to the most recent maxTurns before concatenation;
// this bound is independent of the store's own cap and only limits the
// size of each upstream request. The incoming turn is appended last,
// verbatim, including any non-text parts. The persona is injected as the
// system instruction only on the first turn of a session (empty history);
// an empty persona injects nothing.
func Assemble(history []gemini.Content, persona string, incoming gemini.Content, maxTurns int) *gemini.GenerateRequest {
	firstTurn := len(history) == 0

	if maxTurns > 0 && len(history) > maxTurns {
		history = history[len(history)-maxTurns:]
	}

	if incoming.Role == "" {
		incoming.Role = gemini.RoleUser
	}

	contents := make([]gemini.Content, 0, len(history)+1)
	contents = append(contents, history...)
	contents = append(contents, incoming)

	req := &gemini.GenerateRequest{Contents: contents}
	if firstTurn && persona != "" {
		req.SystemInstruction = &gemini.Content{Parts: []gemini.Part{{Text: persona}}}
	}
	return req
}
