package render

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/ChamsBouzaiene/localchat/internal/store"
	"github.com/ChamsBouzaiene/localchat/internal/upload"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// WritingIndicator is shown while a markdown answer is being produced.
const WritingIndicator = "Writing..."

var (
	userStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5FAFFF"))
	assistantStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#87D787"))
	systemStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D7AF5F"))
	dimStyle       = lipgloss.NewStyle().Faint(true)
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#87D787"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#D7AF5F"))
)

// TerminalOptions configure a Terminal.
type TerminalOptions struct {
	// Markdown renders finished answers with glamour instead of streaming them.
	Markdown bool
	// Color forces styling on or off; nil detects a TTY.
	Color *bool
}

// Terminal writes the conversation to a terminal. It only prints what was
// not shown yet, so the full transcript can be passed after every change.
type Terminal struct {
	mu       sync.Mutex
	out      io.Writer
	color    bool
	markdown bool

	printed  int    // turns already written
	pending  bool   // an answer is awaited; its label or indicator is on screen
	streamed string // part of the answer already on screen
}

func NewTerminal(out io.Writer, opts TerminalOptions) *Terminal {
	color := false
	if opts.Color != nil {
		color = *opts.Color
	} else if f, ok := out.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Terminal{out: out, color: color, markdown: opts.Markdown}
}

func (t *Terminal) style(s lipgloss.Style, text string) string {
	if !t.color {
		return text
	}
	return s.Render(text)
}

func (t *Terminal) label(role conversation.Role) string {
	switch role {
	case conversation.RoleUser:
		return t.style(userStyle, Label(role))
	case conversation.RoleAssistant:
		return t.style(assistantStyle, Label(role))
	default:
		return t.style(systemStyle, Label(role))
	}
}

func (t *Terminal) write(s string) {
	if _, err := io.WriteString(t.out, s); err != nil {
		log.Debug().Err(err).Msg("render: write failed")
	}
}

// Transcript prints the turns that were not printed yet. A shorter log than
// last time means it was cleared, so printing starts over.
func (t *Terminal) Transcript(turns []conversation.Turn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(turns) < t.printed {
		t.printed = 0
	}
	for _, turn := range turns[t.printed:] {
		if turn.Role == conversation.RoleAssistant && t.pending {
			t.finishAnswer(turn)
			continue
		}
		if t.pending {
			// the awaited answer was abandoned
			t.write("\n")
			t.pending = false
			t.streamed = ""
		}
		t.write(formatTurn(t.label(turn.Role), turn.Content))
	}
	t.printed = len(turns)

	if n := len(turns); n > 0 && turns[n-1].Role == conversation.RoleUser && !t.pending {
		t.pending = true
		t.streamed = ""
		if t.markdown {
			t.write(t.style(dimStyle, WritingIndicator))
		} else {
			t.write(t.label(conversation.RoleAssistant) + " ")
		}
	}
}

func (t *Terminal) finishAnswer(turn conversation.Turn) {
	defer func() {
		t.pending = false
		t.streamed = ""
	}()

	if t.markdown {
		if t.color {
			t.write("\r\x1b[2K")
		} else {
			t.write("\n")
		}
		t.write(t.label(turn.Role) + "\n" + t.markdownBody(turn.Content))
		return
	}

	if strings.HasPrefix(turn.Content, t.streamed) {
		t.write(turn.Content[len(t.streamed):] + "\n\n")
		return
	}
	// the answer failed after partial output
	if t.streamed != "" {
		t.write("\n")
	}
	t.write(turn.Content + "\n\n")
}

func (t *Terminal) markdownBody(content string) string {
	style := "notty"
	if t.color {
		style = "dark"
	}
	out, err := glamour.Render(content, style)
	if err != nil {
		log.Debug().Err(err).Msg("render: markdown failed, printing raw text")
		return content + "\n\n"
	}
	return out
}

// Progress prints the part of the streaming answer not shown yet. In
// markdown mode the indicator stays until the answer is complete.
func (t *Terminal) Progress(partial string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.markdown || !strings.HasPrefix(partial, t.streamed) {
		return
	}
	t.write(partial[len(t.streamed):])
	t.streamed = partial
}

func (t *Terminal) UploadAccepted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.write(t.style(successStyle, fmt.Sprintf("File '%s' has been processed and added.", name)) + "\n")
}

func (t *Terminal) UploadRejected(name string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	msg := fmt.Sprintf("Could not add '%s': %v", name, errors.Cause(err))
	if errors.Is(err, upload.ErrUnsupportedType) {
		msg = fmt.Sprintf("Unsupported file type: %s. Please upload .txt files.", name)
	}
	t.write(t.style(errorStyle, msg) + "\n")
}

func (t *Terminal) History(records []store.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	text, _ := FormatHistory(records, FormatText)
	t.write(text)
}

func (t *Terminal) Cleared() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printed = 0
	t.pending = false
	t.streamed = ""
	t.write(t.style(successStyle, "Chat cleared!") + "\n")
}

func (t *Terminal) Notice(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.write(t.style(noticeStyle, "! "+msg) + "\n")
}
