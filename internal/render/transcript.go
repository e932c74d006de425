// Package render turns conversation state into text for the terminal and
// for history exports.
package render

import (
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
)

// Label is the prefix shown before a turn of the given role.
func Label(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return "you>"
	case conversation.RoleAssistant:
		return "assistant>"
	default:
		return string(role) + ">"
	}
}

// FormatTurn renders one turn without styling.
func FormatTurn(t conversation.Turn) string {
	return formatTurn(Label(t.Role), t.Content)
}

func formatTurn(label, content string) string {
	return label + " " + content + "\n\n"
}

// Transcript is the plain-text export of the log, used by /save. It
// depends only on its input, so rendering the same log twice yields the
// same text.
func Transcript(turns []conversation.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(FormatTurn(t))
	}
	return b.String()
}
