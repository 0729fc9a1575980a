package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

// Settings are the user's assistant preferences.
type Settings struct {
	Provider     string   `toml:"provider" json:"provider"`
	APIKey       string   `toml:"api_key" json:"-"`
	Model        string   `toml:"model" json:"model"`
	Temperature  float32  `toml:"temperature" json:"temperature"`
	BaseURL      string   `toml:"base_url" json:"baseUrl,omitempty"`
	AllowedSites []string `toml:"allowed_sites" json:"allowedSites"`
	UILang       string   `toml:"ui_lang" json:"uiLang"`
}

// HasAPIKey reports whether a key is configured without exposing it.
func (s Settings) HasAPIKey() bool { return strings.TrimSpace(s.APIKey) != "" }

// LoadSettings decodes a TOML settings file. Keys absent from the file keep the
// values from base.
func LoadSettings(path string, base Settings) (Settings, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}
	var file Settings
	md, err := toml.Decode(string(b), &file)
	if err != nil {
		return base, fmt.Errorf("decode %s: %w", path, err)
	}
	out := base
	if md.IsDefined("provider") {
		out.Provider = file.Provider
	}
	if md.IsDefined("api_key") {
		out.APIKey = file.APIKey
	}
	if md.IsDefined("model") {
		out.Model = file.Model
	}
	if md.IsDefined("temperature") {
		out.Temperature = file.Temperature
	}
	if md.IsDefined("base_url") {
		out.BaseURL = file.BaseURL
	}
	if md.IsDefined("allowed_sites") {
		out.AllowedSites = file.AllowedSites
	}
	if md.IsDefined("ui_lang") {
		out.UILang = file.UILang
	}
	return out, nil
}

// WatchSettings reloads path whenever it changes and hands the result to onChange
// until ctx is done. The parent directory is watched so editors that replace the
// file on save are handled.
func WatchSettings(ctx context.Context, path string, base Settings, onChange func(Settings)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return err
	}
	go func() {
		defer w.Close()
		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					debounce = time.After(100 * time.Millisecond)
				}
			case <-debounce:
				debounce = nil
				s, err := LoadSettings(abs, base)
				if err != nil {
					log.Printf("[config] settings reload failed: %v", err)
					continue
				}
				log.Printf("[config] settings reloaded from %s", abs)
				onChange(s)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("[config] settings watcher error: %v", err)
			}
		}
	}()
	return nil
}

// SaveSettings writes s as TOML using the same tmp+rename dance as the stores.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
