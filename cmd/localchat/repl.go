package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ChamsBouzaiene/localchat/internal/chat"
	"github.com/ChamsBouzaiene/localchat/internal/providers"
	"github.com/ChamsBouzaiene/localchat/internal/render"
	"github.com/ChamsBouzaiene/localchat/internal/upload"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const helpText = `Commands:
  /upload <file.txt>...  add text files to the conversation context
  /history               show every stored record
  /clear                 start over (stored history is kept)
  /model [name]          show or select the model
  /models                list configured and served models
  /copy                  copy the last answer to the clipboard
  /save <file>           write the conversation as plain text
  /help                  show this help
  /quit                  leave
`

// repl reads prompts and slash commands line by line.
type repl struct {
	ctrl   *chat.Controller
	lister providers.ModelLister
	in     io.Reader
	out    io.Writer
	copy   func(string) error
}

// parseCommand splits a slash command into its name and argument.
func parseCommand(line string) (name, arg string, ok bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return "", "", false
	}
	name, arg, _ = strings.Cut(line[1:], " ")
	return strings.ToLower(name), strings.TrimSpace(arg), name != ""
}

func (r *repl) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *repl) run(ctx context.Context) error {
	r.printf("Chatting with %s. Type /help for commands.\n", r.ctrl.Model())

	// Scan blocks until a line arrives, so it runs apart from the loop
	// to let cancellation end the session at an idle prompt.
	done := make(chan struct{})
	defer close(done)
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r.in)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		r.printf("> ")
		var line string
		select {
		case <-ctx.Done():
			r.printf("\n")
			return ctx.Err()
		case l, ok := <-lines:
			if !ok {
				r.printf("\n")
				return <-scanErr
			}
			line = l
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// handle executes one input line. Only context errors end the session.
func (r *repl) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}

	name, arg, isCommand := parseCommand(line)
	if !isCommand {
		if err := r.ctrl.Submit(ctx, line); err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			r.printf("%v\n", err)
		}
		return false, nil
	}

	switch name {
	case "quit", "exit", "q":
		return true, nil
	case "help":
		r.printf("%s", helpText)
	case "upload":
		r.upload(ctx, arg)
	case "history":
		// failures are reported by the controller
		_, _ = r.ctrl.History(ctx)
	case "clear":
		r.ctrl.Clear()
	case "model":
		if arg == "" {
			r.printf("Current model: %s\n", r.ctrl.Model())
			break
		}
		if err := r.ctrl.SetModel(arg); err != nil {
			r.printf("%v\n", err)
			break
		}
		r.printf("Model set to %s\n", arg)
	case "models":
		r.models(ctx)
	case "copy":
		r.copyLast()
	case "save":
		r.save(arg)
	default:
		r.printf("Unknown command /%s. Type /help for commands.\n", name)
	}
	return false, nil
}

func (r *repl) upload(ctx context.Context, arg string) {
	paths := strings.Fields(arg)
	if len(paths) == 0 {
		r.printf("Usage: /upload <file.txt>...\n")
		return
	}
	files := make([]upload.File, 0, len(paths))
	for _, p := range paths {
		f, err := upload.ReadFile(p)
		if err != nil {
			r.printf("%v\n", err)
			continue
		}
		files = append(files, f)
	}
	if len(files) > 0 {
		r.ctrl.Upload(ctx, files)
	}
}

func (r *repl) models(ctx context.Context) {
	current := r.ctrl.Model()
	for _, m := range r.ctrl.Models() {
		marker := " "
		if m == current {
			marker = "*"
		}
		r.printf("%s %s\n", marker, m)
	}
	if r.lister == nil {
		return
	}
	served, err := r.lister.ListModels(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("listing served models")
		r.printf("Could not list served models: %v\n", errors.Cause(err))
		return
	}
	if len(served) > 0 {
		r.printf("Served: %s\n", strings.Join(served, ", "))
	}
}

func (r *repl) copyLast() {
	turn, ok := r.ctrl.LastAssistant()
	if !ok {
		r.printf("Nothing to copy yet.\n")
		return
	}
	if err := r.copy(turn.Content); err != nil {
		r.printf("Copy failed: %v\n", err)
		return
	}
	r.printf("Copied the last answer to the clipboard.\n")
}

func (r *repl) save(path string) {
	if path == "" {
		r.printf("Usage: /save <file>\n")
		return
	}
	text := render.Transcript(r.ctrl.Session().Turns())
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		r.printf("Save failed: %v\n", err)
		return
	}
	r.printf("Saved the conversation to %s\n", path)
}
