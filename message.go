package structout

// Role is the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MediaFile is a reference to attached media, passed through to the backend.
type MediaFile struct {
	URI      string `json:"uri"`
	MimeType string `json:"mime_type"`
}

// Message is one conversation turn.
type Message struct {
	Role  Role        `json:"role"`
	Text  string      `json:"text"`
	Media []MediaFile `json:"media,omitempty"`
}

// UserMessage returns a user turn.
func UserMessage(text string, media ...MediaFile) Message {
	return Message{Role: RoleUser, Text: text, Media: media}
}

// AssistantMessage returns an assistant turn.
func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Text: text}
}

// Alternates reports whether no two consecutive non-system messages share a
// role.
func Alternates(msgs []Message) bool {
	var prev Role
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		if m.Role == prev {
			return false
		}
		prev = m.Role
	}
	return true
}

// TokenUsage is what the backend reports for one or more calls.
type TokenUsage struct {
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Total is InputTokens plus OutputTokens.
func (u TokenUsage) Total() int { return u.InputTokens + u.OutputTokens }

// Add accumulates o into u. The model name of the latest report wins.
func (u TokenUsage) Add(o TokenUsage) TokenUsage {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	if o.Model != "" {
		u.Model = o.Model
	}
	return u
}
