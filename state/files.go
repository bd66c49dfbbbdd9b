package state

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/synapsedaili/youtube-automation/types"
)

// TopicFile reads one topic per line from a plain-text file.
type TopicFile struct {
	Path string
}

func (f TopicFile) Topics(ctx context.Context) ([]string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: topic list %s not found (run `seed` first)", types.ErrConfiguration, f.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read topic list: %w", types.ErrConfiguration, err)
	}

	var topics []string
	for _, line := range strings.Split(string(data), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			topics = append(topics, line)
		}
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("%w: topic list %s is empty", types.ErrConfiguration, f.Path)
	}
	return topics, nil
}

// FileCursor stores the cursor as a decimal integer in a text file.
type FileCursor struct {
	Path string
}

// Cursor returns the stored cursor. A missing file is created holding 1;
// unparsable content reads as 1.
func (f FileCursor) Cursor(ctx context.Context) (int, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := f.SetCursor(ctx, 1); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: read cursor: %w", types.ErrConfiguration, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 1, nil
	}
	return n, nil
}

// SetCursor replaces the cursor file atomically.
func (f FileCursor) SetCursor(ctx context.Context, cursor int) error {
	return WriteFileAtomic(f.Path, []byte(strconv.Itoa(cursor)), 0644)
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// JSONLLog appends upload records as newline-delimited JSON.
type JSONLLog struct {
	Path string
	mu   sync.Mutex
}

func NewJSONLLog(path string) *JSONLLog {
	return &JSONLLog{Path: path}
}

func (l *JSONLLog) Append(ctx context.Context, rec types.UploadRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.Path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *JSONLLog) Records(ctx context.Context) ([]types.UploadRecord, error) {
	data, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []types.UploadRecord
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec types.UploadRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return out, fmt.Errorf("parse upload log line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
