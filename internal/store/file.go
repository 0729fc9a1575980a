package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"n8n-assist-backend/internal/inject"
)

type siteFile struct {
	History    []Message                `json:"history,omitempty"`
	Pending    *inject.PendingInjection `json:"pending,omitempty"`
	Activation *bool                    `json:"activation,omitempty"`
}

// FileStore persists each site's state as one JSON document under dir.
type FileStore struct {
	dir         string
	maxMessages int
	mu          sync.Mutex
}

func NewFileStore(dir string, maxMessages int) *FileStore {
	return &FileStore{dir: dir, maxMessages: maxMessages}
}

func (f *FileStore) path(host string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '_'
	}, host)
	if name == "" || strings.Trim(name, ".") == "" {
		name = "_"
	}
	return filepath.Join(f.dir, name+".json")
}

func (f *FileStore) read(host string) (siteFile, error) {
	var sf siteFile
	b, err := os.ReadFile(f.path(host))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return sf, nil
		}
		return sf, err
	}
	if err := json.Unmarshal(b, &sf); err != nil {
		return sf, fmt.Errorf("decode %s: %w", f.path(host), err)
	}
	return sf, nil
}

func (f *FileStore) write(host string, sf siteFile) error {
	p := f.path(host)
	if sf.History == nil && sf.Pending == nil && sf.Activation == nil {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	if err := os.MkdirAll(f.dir, 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}

func (f *FileStore) update(host string, fn func(*siteFile)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, err := f.read(host)
	if err != nil {
		return err
	}
	fn(&sf)
	return f.write(host, sf)
}

func (f *FileStore) History(_ context.Context, host string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, err := f.read(host)
	if err != nil {
		return nil, err
	}
	return sf.History, nil
}

func (f *FileStore) AppendHistory(_ context.Context, host string, msgs ...Message) error {
	return f.update(host, func(sf *siteFile) {
		sf.History = trim(append(sf.History, msgs...), f.maxMessages)
	})
}

func (f *FileStore) SetHistory(_ context.Context, host string, msgs []Message) error {
	return f.update(host, func(sf *siteFile) {
		sf.History = trim(append([]Message(nil), msgs...), f.maxMessages)
		if len(sf.History) == 0 {
			sf.History = nil
		}
	})
}

func (f *FileStore) ClearHistory(_ context.Context, host string) error {
	return f.update(host, func(sf *siteFile) { sf.History = nil })
}

func (f *FileStore) Pending(_ context.Context, host string) (*inject.PendingInjection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, err := f.read(host)
	if err != nil {
		return nil, err
	}
	return sf.Pending, nil
}

func (f *FileStore) SavePending(_ context.Context, host string, p inject.PendingInjection) error {
	return f.update(host, func(sf *siteFile) { sf.Pending = &p })
}

func (f *FileStore) ClearPending(_ context.Context, host string) error {
	return f.update(host, func(sf *siteFile) { sf.Pending = nil })
}

func (f *FileStore) Activation(_ context.Context, host string) (bool, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sf, err := f.read(host)
	if err != nil || sf.Activation == nil {
		return false, false, err
	}
	return *sf.Activation, true, nil
}

func (f *FileStore) SetActivation(_ context.Context, host string, enabled bool) error {
	return f.update(host, func(sf *siteFile) { sf.Activation = &enabled })
}

func (f *FileStore) Close() error { return nil }
