package push

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/adamavenir/frayfeed/internal/types"
)

// FileSource tails a JSONL file of push envelopes. The parent directory is
// watched so the file may be created, truncated or replaced while running.
type FileSource struct {
	Path string
	// FromStart replays lines already in the file instead of starting at EOF.
	FromStart bool
	Logger    *slog.Logger
}

type tail struct {
	path    string
	file    *os.File
	offset  int64
	partial []byte
	log     *slog.Logger
}

// Run watches Path and emits each complete line as an event.
func (s *FileSource) Run(ctx context.Context, out chan<- types.PushEvent) error {
	log := s.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	path, err := filepath.Abs(s.Path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	t := &tail{path: path, log: log}
	defer t.close()
	if err := t.open(!s.FromStart); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !t.drain(ctx, out) {
		return ctx.Err()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			switch {
			case event.Has(fsnotify.Create), event.Has(fsnotify.Rename), event.Has(fsnotify.Remove):
				t.close()
				if err := t.open(false); err != nil && !errors.Is(err, os.ErrNotExist) {
					log.Warn("push_file_reopen_failed", "path", path, "error", err)
				}
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if !t.drain(ctx, out) {
					return ctx.Err()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Debug("push_file_watch_error", "error", err)
		}
	}
}

func (t *tail) open(atEnd bool) error {
	file, err := os.Open(t.path)
	if err != nil {
		return err
	}
	t.file = file
	t.offset = 0
	t.partial = nil
	if atEnd {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			_ = file.Close()
			t.file = nil
			return err
		}
		t.offset = end
	}
	return nil
}

func (t *tail) close() {
	if t.file != nil {
		_ = t.file.Close()
		t.file = nil
	}
}

// drain reads everything appended since the last call. It returns false only
// when ctx ends while handing events off.
func (t *tail) drain(ctx context.Context, out chan<- types.PushEvent) bool {
	if t.file == nil {
		if err := t.open(false); err != nil {
			return true
		}
	}
	if info, err := t.file.Stat(); err == nil && info.Size() < t.offset {
		// Truncated in place.
		t.offset = 0
		t.partial = nil
	}
	if _, err := t.file.Seek(t.offset, io.SeekStart); err != nil {
		t.log.Debug("push_file_seek_failed", "error", err)
		return true
	}
	data, err := io.ReadAll(t.file)
	if err != nil {
		t.log.Debug("push_file_read_failed", "error", err)
		return true
	}
	t.offset += int64(len(data))
	data = append(t.partial, data...)

	for {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSpace(data[:idx])
		data = data[idx+1:]
		if len(line) == 0 {
			continue
		}
		ev, err := Decode(line)
		if err != nil {
			t.log.Debug("push_event_skipped", "error", err)
			continue
		}
		if !send(ctx, out, ev) {
			return false
		}
	}
	t.partial = append([]byte(nil), data...)
	return true
}

// AppendEvent writes ev as one line to the JSONL file at path.
func AppendEvent(path string, ev types.PushEvent) error {
	data, err := Encode(ev)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
