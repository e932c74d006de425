package chat

import (
	"github.com/ChamsBouzaiene/localchat/internal/conversation"
	"github.com/ChamsBouzaiene/localchat/internal/store"
)

// Renderer is the display surface driven by the Controller.
// Calls may come from the writer goroutine (Notice) as well as from the
// goroutine running a Controller method, so implementations must be safe
// for concurrent use.
type Renderer interface {
	// Transcript receives the full turn log after every change.
	Transcript(turns []conversation.Turn)
	// Progress receives the accumulated answer while it streams.
	Progress(partial string)
	UploadAccepted(name string)
	UploadRejected(name string, err error)
	// History receives a flat dump of every persisted record.
	History(records []store.Record)
	Cleared()
	Notice(msg string)
}

// NopRenderer discards everything.
type NopRenderer struct{}

func (NopRenderer) Transcript([]conversation.Turn) {}
func (NopRenderer) Progress(string)                {}
func (NopRenderer) UploadAccepted(string)          {}
func (NopRenderer) UploadRejected(string, error)   {}
func (NopRenderer) History([]store.Record)         {}
func (NopRenderer) Cleared()                       {}
func (NopRenderer) Notice(string)                  {}
