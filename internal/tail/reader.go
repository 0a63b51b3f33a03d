package tail

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartPosition controls where a Reader begins reading a freshly opened
// file.
type StartPosition int

const (
	// StartAtEnd skips existing content; only lines written after the
	// reader attaches are delivered. This is the default for adaptive
	// thresholding, where the burn-in window should be filled with fresh
	// traffic rather than historical backlog.
	StartAtEnd StartPosition = iota
	// StartAtBeginning replays the file's existing content before
	// following new writes. Used when a manual threshold is configured,
	// since there's no burn-in period to protect from backlog noise.
	StartAtBeginning
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Path          string
	Start         StartPosition
	Follow        bool          // keep polling after EOF; false drains once and returns
	PollInterval  time.Duration // default 500ms if zero
	LineHandler   func(line string) error
	DisableNotify bool // skip the fsnotify accelerant (used in tests)
}

// Reader polls a file by path for new content and transparently follows log
// rotation: truncation in place, replacement by a new inode, and rewrites
// that reset mtime without changing size. fsnotify, when available, wakes
// the poll loop early; the stat-based checks below are what actually decide
// what happened; this package never trusts fsnotify's event type alone.
type Reader struct {
	opts ReaderOptions

	file      *os.File
	offset    int64
	lastSize  int64
	lastMtime time.Time
}

// NewReader constructs a Reader. The file is not opened until Run is called.
func NewReader(opts ReaderOptions) *Reader {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	return &Reader{opts: opts}
}

// Run opens the file per opts.Start and polls for changes until ctx is
// cancelled or an unrecoverable error occurs. With Follow set, a missing
// file is not an error: Run keeps polling for it to appear. Without Follow,
// Run delivers whatever the file currently holds and returns.
func (r *Reader) Run(ctx context.Context) error {
	defer r.closeFile()

	if !r.opts.Follow {
		// One-shot drain. StartAtEnd would make this a no-op by
		// definition, so a non-follow run always reads from the start.
		r.opts.Start = StartAtBeginning
		return r.poll()
	}

	var watcher *fsnotify.Watcher
	if !r.opts.DisableNotify {
		w, err := fsnotify.NewWatcher()
		if err == nil {
			watcher = w
			defer watcher.Close()
			_ = watcher.Add(r.opts.Path) // best-effort; absence is fine, polling covers it
		}
	}

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := r.poll(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case ev, ok := <-watcherEvents(watcher):
			if ok {
				if watcher != nil {
					_ = watcher.Add(r.opts.Path) // path may now point at a different inode
				}
				_ = ev
			}
		}
	}
}

func watcherEvents(w *fsnotify.Watcher) chan fsnotify.Event {
	if w == nil {
		return nil
	}
	return w.Events
}

// poll runs one detection-and-read cycle: open the file if needed, detect
// truncation or rotation, read whatever new bytes are available, and
// dispatch complete lines to LineHandler.
func (r *Reader) poll() error {
	pathInfo, statErr := os.Stat(r.opts.Path)
	if statErr != nil {
		// File temporarily absent (mid-rotation gap, or not created yet).
		// Nothing to do until the path resolves again.
		return nil
	}

	if r.file == nil {
		if err := r.open(pathInfo, r.opts.Start); err != nil {
			return err
		}
		return r.drain()
	}

	handleInfo, err := r.file.Stat()
	if err != nil {
		return r.open(pathInfo, r.opts.Start)
	}

	switch {
	case pathInfo.Size() < r.offset && os.SameFile(pathInfo, handleInfo):
		// Same file, but it's shorter than what we've read: truncated in
		// place (e.g. ">file" or a rotator that truncates instead of
		// renaming). Start over from offset 0 so nothing appended after
		// the truncation is missed.
		if _, err := r.file.Seek(0, io.SeekStart); err != nil {
			return fmt.Errorf("tail: seek after truncation: %w", err)
		}
		r.offset = 0
	case !os.SameFile(pathInfo, handleInfo):
		// A new file now sits at this path: log rotation via rename+create.
		// Attach to the new file at its end, so only lines written after
		// the rotation are delivered and nothing already read from the old
		// file repeats.
		if err := r.open(pathInfo, StartAtEnd); err != nil {
			return err
		}
	case pathInfo.ModTime().Before(r.lastMtime) && pathInfo.Size() == r.lastSize:
		// mtime moved backward with no size change: the file was replaced
		// by one of identical length. Go's stdlib doesn't expose ctime
		// portably, so mtime-went-backward is the cross-platform substitute
		// for the ctime-change rotation check.
		if err := r.open(pathInfo, StartAtEnd); err != nil {
			return err
		}
	case pathInfo.Size() > handleInfo.Size():
		// Fallback for platforms where inode identity is unreliable: the
		// path reports more bytes than the handle's underlying file, so
		// the path must point at a different (new, larger) file.
		if err := r.open(pathInfo, StartAtEnd); err != nil {
			return err
		}
	}

	r.lastSize = pathInfo.Size()
	r.lastMtime = pathInfo.ModTime()

	return r.drain()
}

// open (re)opens the file at the configured path, positioning the read
// offset per start. Used both for the first open and for every detected
// rotation.
func (r *Reader) open(info os.FileInfo, start StartPosition) error {
	r.closeFile()

	f, err := os.Open(r.opts.Path)
	if err != nil {
		return nil // disappeared between Stat and Open; retry next poll
	}
	r.file = f

	switch start {
	case StartAtBeginning:
		r.offset = 0
	default:
		r.offset = info.Size()
		if _, err := f.Seek(r.offset, io.SeekStart); err != nil {
			return fmt.Errorf("tail: seek to end: %w", err)
		}
	}
	r.lastSize = info.Size()
	r.lastMtime = info.ModTime()
	return nil
}

// drain reads every complete line currently available and advances offset
// past what was consumed. A trailing partial line (no final newline yet) is
// left unread for the next poll.
func (r *Reader) drain() error {
	if r.file == nil {
		return nil
	}
	if _, err := r.file.Seek(r.offset, io.SeekStart); err != nil {
		return fmt.Errorf("tail: seek to offset: %w", err)
	}

	reader := bufio.NewReaderSize(r.file, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			// Any bytes here are a partial line: don't consume them, wait
			// for the rest.
			break
		}
		if err != nil {
			return fmt.Errorf("tail: read: %w", err)
		}
		consumed += int64(len(line))
		text := line[:len(line)-1]
		if len(text) > 0 && text[len(text)-1] == '\r' {
			text = text[:len(text)-1]
		}
		if r.opts.LineHandler != nil {
			if err := r.opts.LineHandler(text); err != nil {
				return err
			}
		}
	}

	r.offset += consumed
	return nil
}

func (r *Reader) closeFile() {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}
}
