package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
)

const (
	DefaultAPIBaseURL = "http://localhost:6688/api"
	DefaultEventsURL  = "ws://localhost:6687/events"
)

type Config struct {
	APIBaseURL string `toml:"api_base_url"`
	EventsURL  string `toml:"events_url"`
	MirrorDSN  string `toml:"mirror_dsn"`
}

func Default() Config {
	return Config{
		APIBaseURL: DefaultAPIBaseURL,
		EventsURL:  DefaultEventsURL,
	}
}

// Load layers the configuration: fixed defaults, then the TOML file when
// present, then CHATSYNC_* environment variables. A missing file is not an
// error; a file that fails to parse is.
func Load(path string) (Config, error) {
	cfg := Default()
	path = strings.TrimSpace(path)
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if v := strings.TrimSpace(os.Getenv("CHATSYNC_API_BASE_URL")); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CHATSYNC_EVENTS_URL")); v != "" {
		cfg.EventsURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CHATSYNC_MIRROR_DSN")); v != "" {
		cfg.MirrorDSN = v
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.EventsURL == "" {
		cfg.EventsURL = DefaultEventsURL
	}
	return cfg, nil
}

type Logger interface {
	Printf(format string, args ...any)
}

// Watch reloads the file whenever it changes and hands the result to
// onChange. The parent directory is watched rather than the file itself so
// editors that replace the file by rename keep triggering. Blocks until ctx
// is done.
func Watch(ctx context.Context, path string, logger Logger, onChange func(Config)) error {
	path = strings.TrimSpace(path)
	if path == "" || onChange == nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}
	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			cfg, loadErr := Load(path)
			if loadErr != nil {
				if logger != nil {
					logger.Printf("reload config %s: %v", path, loadErr)
				}
				continue
			}
			onChange(cfg)
		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if logger != nil {
				logger.Printf("config watcher: %v", watchErr)
			}
		}
	}
}
