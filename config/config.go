// Package config loads a node's on-disk configuration and watches it for
// the one setting the spec allows to change live: round_timeout (spec §9
// supplemented "Configuration"). Everything else — peer set, self id,
// storage path, listen address — is fixed for the process's lifetime,
// matching the teacher's own split between a TOML-loaded static Config and
// the handful of knobs its node hot-reloads.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/JekaMas/notify"
	"github.com/naoina/toml"

	"github.com/polybase-io/solid/internal/log"
)

// File is the on-disk shape of a node's config.toml.
type File struct {
	SelfID       string        `toml:"self_id"`
	Peers        []string      `toml:"peers"`
	RoundTimeout time.Duration `toml:"round_timeout"`
	ListenAddr   string        `toml:"listen_addr"`
	Peers2       []string      `toml:"dial_peers"`
	DataDir      string        `toml:"data_dir"`
	Digest       string        `toml:"digest"` // "sha256" or "keccak256"
}

func defaults() File {
	return File{
		RoundTimeout: 2 * time.Second,
		ListenAddr:   ":7070",
		DataDir:      "./solid-data",
		Digest:       "sha256",
	}
}

// Load reads and parses path, filling unset fields from defaults().
func Load(path string) (File, error) {
	f := defaults()
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return f, nil
}

// Watcher tracks path for changes and re-parses round_timeout on each
// write, handing the new value to onChange. Everything else in File is
// intentionally ignored by a live reload — changing the peer set or self id
// while running is out of scope (spec §2 non-goal "dynamic membership").
type Watcher struct {
	mu       sync.Mutex
	path     string
	current  time.Duration
	onChange func(time.Duration)
	logger   *log.Logger
	events   chan notify.EventInfo
	done     chan struct{}
}

func WatchRoundTimeout(path string, initial time.Duration, logger *log.Logger, onChange func(time.Duration)) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		current:  initial,
		onChange: onChange,
		logger:   logger,
		events:   make(chan notify.EventInfo, 1),
		done:     make(chan struct{}),
	}
	if err := notify.Watch(filepath.Clean(path), w.events, notify.Write); err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			notify.Stop(w.events)
			return
		case <-w.events:
			f, err := Load(w.path)
			if err != nil {
				w.logger.Warn("config reload failed", "path", w.path, "err", err)
				continue
			}
			w.mu.Lock()
			changed := f.RoundTimeout != w.current
			w.current = f.RoundTimeout
			w.mu.Unlock()
			if changed {
				w.logger.Info("round_timeout reloaded", "value", f.RoundTimeout)
				w.onChange(f.RoundTimeout)
			}
		}
	}
}

func (w *Watcher) Close() { close(w.done) }
