package conversation

// Role represents who produced a turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Turn is one utterance in the conversation.
type Turn struct {
	Role      Role   `json:"role" yaml:"role"`
	Content   string `json:"content" yaml:"content"`
	Timestamp int64  `json:"timestamp" yaml:"timestamp"`             // seconds since epoch
	Model     string `json:"model,omitempty" yaml:"model,omitempty"` // assistant turns only
}

// Document is the decoded text of one uploaded file.
type Document struct {
	SourceName string `json:"source_name" yaml:"source_name"`
	Text       string `json:"text" yaml:"text"`
}
