package agent

import (
	"github.com/nextlevelbuilder/agentrun/internal/providers"
	"github.com/nextlevelbuilder/agentrun/internal/session"
)

// ToProviderMessages flattens the persisted tagged-union Record shape into
// the provider boundary's flat Message shape.
func ToProviderMessages(records []session.Record) []providers.Message {
	out := make([]providers.Message, 0, len(records))
	for _, r := range records {
		if !r.IsMessage() {
			continue
		}
		out = append(out, toProviderMessage(r))
	}
	return out
}

func toProviderMessage(r session.Record) providers.Message {
	msg := providers.Message{
		Role:       providerRole(r.Role),
		ToolCallID: r.ToolCallID,
	}
	if r.IsError != nil {
		msg.IsError = *r.IsError
	}

	var text string
	for _, b := range r.Content {
		switch b.Type {
		case "text":
			text += b.Text
		case "toolCall":
			if b.ToolCall != nil {
				msg.ToolCalls = append(msg.ToolCalls, providers.ToolCall{
					ID:        b.ToolCall.ID,
					Name:      b.ToolCall.Name,
					Arguments: b.ToolCall.Arguments,
				})
			}
		}
	}
	msg.Content = text
	return msg
}

func providerRole(r session.Role) string {
	if r == session.RoleToolResult {
		return "tool"
	}
	return string(r)
}

// RecordsSince converts the provider messages a Run produced (i.e.
// messages[startLen:]) back into unsequenced session Records ready for
// Store.AppendMessage.
func RecordsSince(messages []providers.Message, startLen int) []session.Record {
	if startLen >= len(messages) {
		return nil
	}
	out := make([]session.Record, 0, len(messages)-startLen)
	for _, m := range messages[startLen:] {
		out = append(out, toSessionRecord(m))
	}
	return out
}

func toSessionRecord(m providers.Message) session.Record {
	role := session.Role(m.Role)
	if m.Role == "tool" {
		role = session.RoleToolResult
	}

	var content []session.ContentBlock
	if m.Content != "" {
		content = append(content, session.ContentBlock{Type: "text", Text: m.Content})
	}
	for _, tc := range m.ToolCalls {
		content = append(content, session.ContentBlock{
			Type: "toolCall",
			ToolCall: &session.ToolCallBlock{
				ID:        tc.ID,
				Name:      tc.Name,
				Arguments: tc.Arguments,
			},
		})
	}

	var isError *bool
	if m.Role == "tool" {
		v := m.IsError
		isError = &v
	}

	return session.NewMessageRecord(role, content, isError, m.ToolCallID, "")
}
