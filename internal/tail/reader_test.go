package tail

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReaderFollowsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "line one\n")

	var got []string
	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtBeginning,
		DisableNotify: true,
		LineHandler: func(line string) error {
			got = append(got, line)
			return nil
		},
	})

	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	if len(got) != 1 || got[0] != "line one" {
		t.Fatalf("got %v, want [\"line one\"]", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("line two\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	if len(got) != 2 || got[1] != "line two" {
		t.Fatalf("got %v, want a second line appended", got)
	}
}

func TestReaderDetectsTruncation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "aaaaaaaaaa\nbbbbbbbbbb\n")

	var got []string
	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtBeginning,
		DisableNotify: true,
		LineHandler: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 lines before truncation, got %v", got)
	}

	writeFile(t, path, "short\n")
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error after truncation: %v", err)
	}
	if len(got) != 3 || got[2] != "short" {
		t.Fatalf("expected truncated file's single line to be read fresh, got %v", got)
	}
}

func TestReaderDetectsRotationByRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "old file line\n")

	var got []string
	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtBeginning,
		DisableNotify: true,
		LineHandler: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}

	rotated := filepath.Join(dir, "app.log.1")
	if err := os.Rename(path, rotated); err != nil {
		t.Fatalf("rename: %v", err)
	}
	writeFile(t, path, "newA\nnewB\n")

	// The poll that notices the rotation attaches to the new file at its
	// end: content written before the reader caught up is skipped, exactly
	// like tail -F.
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error after rotation: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected pre-attach content of the rotated file to be skipped, got %v", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("newC\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	if len(got) != 2 || got[1] != "newC" {
		t.Fatalf("expected only the post-rotation append to be delivered, got %v", got)
	}
}

func TestReaderNoDuplicatesAcrossTruncateThenAppend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "one\ntwo\nthree\n")

	var got []string
	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtBeginning,
		DisableNotify: true,
		LineHandler: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}

	writeFile(t, path, "")
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error after truncate-to-empty: %v", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	if _, err := f.WriteString("fresh\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()

	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	want := []string{"one", "two", "three", "fresh"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestReaderNoFollowDrainsOnceAndReturns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "first\nsecond\n")

	var got []string
	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtEnd, // overridden: a one-shot run always reads from the start
		Follow:        false,
		DisableNotify: true,
		LineHandler: func(line string) error {
			got = append(got, line)
			return nil
		},
	})

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("non-follow Run() did not return")
	}
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Fatalf("expected existing content delivered once, got %v", got)
	}
}

func TestReaderStartAtEndSkipsBacklog(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "backlog line\n")

	var got []string
	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtEnd,
		DisableNotify: true,
		LineHandler: func(line string) error {
			got = append(got, line)
			return nil
		},
	})
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected backlog skipped, got %v", got)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	f.WriteString("fresh line\n")
	f.Close()

	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
	if len(got) != 1 || got[0] != "fresh line" {
		t.Fatalf("expected only the post-attach line, got %v", got)
	}
}

func TestReaderToleratesMissingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.log")

	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtBeginning,
		DisableNotify: true,
		LineHandler: func(line string) error {
			return nil
		},
	})

	if err := r.poll(); err != nil {
		t.Fatalf("expected no error polling a missing file, got %v", err)
	}

	writeFile(t, path, "appeared later\n")
	if err := r.poll(); err != nil {
		t.Fatalf("poll() error: %v", err)
	}
}

func TestReaderRunRespectsContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	writeFile(t, path, "line\n")

	r := NewReader(ReaderOptions{
		Path:          path,
		Start:         StartAtBeginning,
		Follow:        true,
		DisableNotify: true,
		PollInterval:  10 * time.Millisecond,
		LineHandler: func(line string) error {
			return nil
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
}
