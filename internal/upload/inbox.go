package upload

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	gitignore "github.com/sabhiram/go-gitignore"
)

// IgnoreFile holds gitignore-style patterns for files the inbox skips.
const IgnoreFile = ".uploadignore"

// DefaultDebounce is how long a file must stay quiet before it is picked up.
const DefaultDebounce = 500 * time.Millisecond

// Inbox watches a directory and hands new or changed files to a callback
// as upload batches.
type Inbox struct {
	dir      string
	watcher  *fsnotify.Watcher
	onBatch  func([]File)
	debounce time.Duration
	ignore   gitignore.IgnoreParser

	mu        sync.Mutex
	pending   map[string]bool
	lastEvent time.Time
}

// NewInbox creates the directory if needed and starts watching it.
// Nothing is delivered until Run is called.
func NewInbox(dir string, onBatch func([]File)) (*Inbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create inbox directory")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrapf(err, "watch %s", dir)
	}

	in := &Inbox{
		dir:      dir,
		watcher:  watcher,
		onBatch:  onBatch,
		debounce: DefaultDebounce,
		pending:  make(map[string]bool),
	}
	in.loadIgnore()
	return in, nil
}

// SetDebounce changes the quiet period. Call before Run.
func (in *Inbox) SetDebounce(d time.Duration) {
	if d > 0 {
		in.debounce = d
	}
}

func (in *Inbox) loadIgnore() {
	path := filepath.Join(in.dir, IgnoreFile)
	if _, err := os.Stat(path); err != nil {
		in.ignore = gitignore.CompileIgnoreLines()
		return
	}
	matcher, err := gitignore.CompileIgnoreFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("upload: cannot read ignore file")
		matcher = gitignore.CompileIgnoreLines()
	}
	in.ignore = matcher
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string {
	return in.dir
}

// Run processes events until ctx is done, then releases the watcher.
func (in *Inbox) Run(ctx context.Context) error {
	defer in.watcher.Close()

	ticker := time.NewTicker(in.debounce / 2)
	defer ticker.Stop()

	log.Info().Str("dir", in.dir).Msg("upload: watching inbox")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-in.watcher.Events:
			if !ok {
				return nil
			}
			in.handleEvent(event)
		case err, ok := <-in.watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("upload: watcher error")
		case <-ticker.C:
			in.flushQuiet()
		}
	}
}

func (in *Inbox) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	name := filepath.Base(event.Name)
	if name == IgnoreFile {
		in.loadIgnore()
		return
	}
	if in.skip(name) {
		return
	}

	in.mu.Lock()
	in.pending[event.Name] = true
	in.lastEvent = time.Now()
	in.mu.Unlock()
}

// skip filters hidden and editor temporary files as well as ignored names.
func (in *Inbox) skip(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") {
		return true
	}
	return in.ignore != nil && in.ignore.MatchesPath(name)
}

// flushQuiet delivers pending files once no event arrived for the debounce period.
func (in *Inbox) flushQuiet() {
	in.mu.Lock()
	if len(in.pending) == 0 || time.Since(in.lastEvent) < in.debounce {
		in.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(in.pending))
	for p := range in.pending {
		paths = append(paths, p)
	}
	in.pending = make(map[string]bool)
	in.mu.Unlock()

	sort.Strings(paths)
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil || info.IsDir() {
			continue
		}
		f, err := ReadFile(p)
		if err != nil {
			log.Warn().Err(err).Msg("upload: skipping file")
			continue
		}
		files = append(files, f)
	}
	if len(files) == 0 {
		return
	}
	log.Debug().Int("files", len(files)).Msg("upload: inbox batch ready")
	if in.onBatch != nil {
		in.onBatch(files)
	}
}
