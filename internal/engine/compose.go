package engine

import (
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
)

// DocumentsPreamble starts the system turn that carries uploaded documents.
const DocumentsPreamble = "Documents contain:\n"

// Compose builds the context sent to the model: when documents are present
// a single system turn with their texts comes first, followed by the
// history. The inputs are never modified.
func Compose(history []conversation.Turn, docs []conversation.Document) []conversation.Turn {
	out := make([]conversation.Turn, 0, len(history)+1)
	if len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Text
		}
		out = append(out, conversation.Turn{
			Role:    conversation.RoleSystem,
			Content: DocumentsPreamble + strings.Join(texts, "\n\n"),
		})
	}
	return append(out, history...)
}
