package pipeline

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat body. Fields other than role and content
// are kept verbatim and written back on marshal.
type Message struct {
	Role    string
	Content string

	// rawContent is the content as received; it is re-emitted unless Content
	// was changed, so multi-part content survives a round trip untouched.
	rawContent json.RawMessage
	decoded    string
	extra      map[string]json.RawMessage
	// malformed holds an entry that was not a JSON object at all.
	malformed json.RawMessage
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		m.malformed = append(json.RawMessage(nil), data...)
		return nil
	}

	if raw, ok := fields["role"]; ok {
		_ = json.Unmarshal(raw, &m.Role)
		delete(fields, "role")
	}
	if raw, ok := fields["content"]; ok {
		m.rawContent = raw
		m.Content = decodeContent(raw)
		m.decoded = m.Content
		delete(fields, "content")
	}
	m.extra = fields
	return nil
}

func (m Message) MarshalJSON() ([]byte, error) {
	if m.malformed != nil {
		return m.malformed, nil
	}
	out := make(map[string]any, len(m.extra)+2)
	for k, v := range m.extra {
		out[k] = v
	}
	if m.Role != "" {
		out["role"] = m.Role
	}
	switch {
	case m.rawContent != nil && m.Content == m.decoded:
		out["content"] = m.rawContent
	case m.rawContent != nil || m.Content != "":
		out["content"] = m.Content
	}
	return json.Marshal(out)
}

// decodeContent accepts either a plain string or an array of
// {"type":"text","text":...} parts. Anything else reads as empty.
func decodeContent(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return ""
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// Body is a chat request as passed between the chat host and the filter.
// Only messages is interpreted; every other field passes through unchanged.
type Body struct {
	Messages []Message
	// ConversationID is read from chat_id or conversation_id. It is not
	// written back separately; the original field stays in place.
	ConversationID string

	extra map[string]json.RawMessage
	// rawMessages is set when "messages" was present but not an array.
	rawMessages json.RawMessage
}

func (b *Body) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	if raw, ok := fields["messages"]; ok {
		delete(fields, "messages")
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			b.rawMessages = raw
		} else {
			b.Messages = make([]Message, len(items))
			for i, item := range items {
				_ = b.Messages[i].UnmarshalJSON(item)
			}
		}
	}
	for _, key := range []string{"chat_id", "conversation_id"} {
		var id string
		if raw, ok := fields[key]; ok && json.Unmarshal(raw, &id) == nil && id != "" {
			b.ConversationID = id
			break
		}
	}
	b.extra = fields
	return nil
}

func (b Body) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(b.extra)+1)
	for k, v := range b.extra {
		out[k] = v
	}
	switch {
	case b.Messages != nil:
		out["messages"] = b.Messages
	case b.rawMessages != nil:
		out["messages"] = b.rawMessages
	}
	return json.Marshal(out)
}

// lastIndex returns the index of the last message with role before end, or -1.
func (b *Body) lastIndex(role string, end int) int {
	for i := min(end, len(b.Messages)) - 1; i >= 0; i-- {
		if b.Messages[i].Role == role {
			return i
		}
	}
	return -1
}

// LatestUserMessage returns the content of the most recent user message.
func (b *Body) LatestUserMessage() string {
	if i := b.lastIndex(RoleUser, len(b.Messages)); i >= 0 {
		return strings.TrimSpace(b.Messages[i].Content)
	}
	return ""
}

// LastExchange returns the most recent assistant reply and the user message
// that preceded it. Either may be empty.
func (b *Body) LastExchange() (userMsg, assistantMsg string) {
	ai := b.lastIndex(RoleAssistant, len(b.Messages))
	if ai < 0 {
		return "", ""
	}
	assistantMsg = strings.TrimSpace(b.Messages[ai].Content)
	if ui := b.lastIndex(RoleUser, ai); ui >= 0 {
		userMsg = strings.TrimSpace(b.Messages[ui].Content)
	}
	return userMsg, assistantMsg
}

// injectSystem appends block to a leading system message, or prepends a new
// system message when there is none.
func (b *Body) injectSystem(block string) {
	if len(b.Messages) > 0 && b.Messages[0].Role == RoleSystem && b.Messages[0].malformed == nil {
		if existing := b.Messages[0].Content; existing != "" {
			block = existing + "\n\n" + block
		}
		b.Messages[0].Content = block
		return
	}
	b.Messages = append([]Message{{Role: RoleSystem, Content: block}}, b.Messages...)
}

// User identifies the chat user as supplied by the host.
type User struct {
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}
