package config

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	logx "schoolbell/pkg/logx"
)

// Manager loads the config once and, optionally, watches the file for drift.
//
// The schedule is fixed for the process lifetime: Watch never swaps the
// committed config. It only tells the operator that the file on disk no
// longer matches what is running.
type Manager struct {
	path string
	fs   afero.Fs

	mu  sync.RWMutex
	cfg *Config

	log logx.Logger

	// lastHash tracks the committed config content.
	lastHash uint64
	// pendingHash tracks the last on-disk content already reported as drift,
	// so editors that write several times don't repeat the warning.
	pendingHash uint64
}

// NewManager returns a manager for path. A nil fs means the OS filesystem.
func NewManager(path string, fs afero.Fs) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{path: path, fs: fs}
}

func (m *Manager) Path() string { return m.path }

func (m *Manager) SetLogger(log logx.Logger) { m.log = log }

func (m *Manager) Parse() (*Config, error) {
	b, err := afero.ReadFile(m.fs, m.path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", m.path, err)
	}
	cfg, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", m.path, err)
	}
	return cfg, nil
}

func (m *Manager) Commit(cfg *Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.lastHash = hashConfig(cfg)
	m.pendingHash = m.lastHash
	m.mu.Unlock()
}

func (m *Manager) Load() (*Config, error) {
	cfg, err := m.Parse()
	if err != nil {
		return nil, err
	}
	m.Commit(cfg)
	return cfg, nil
}

func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func hashConfig(cfg *Config) uint64 {
	if cfg == nil {
		return 0
	}
	b, err := json.Marshal(cfg)
	if err != nil {
		return 0
	}
	return hashBytes(b)
}

// hashBytes returns a stable 64-bit hash of bytes. Empty input returns 0.
func hashBytes(b []byte) uint64 {
	if len(b) == 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}

// checkDrift re-reads the file and reports whether it differs from the
// committed config. It returns the changed sections when a new, not yet
// reported change is found.
func (m *Manager) checkDrift() (changed []string, fields []logx.Field, ok bool) {
	cfg, err := m.Parse()
	if err != nil || cfg == nil {
		if !m.log.IsZero() {
			m.log.Warn("config on disk does not parse; running config is unaffected", logx.String("path", m.path), logx.Err(err))
		}
		return nil, nil, false
	}

	h := hashConfig(cfg)
	m.mu.Lock()
	running := m.cfg
	seen := h != 0 && (h == m.lastHash || h == m.pendingHash)
	if !seen {
		m.pendingHash = h
	}
	m.mu.Unlock()
	if seen {
		if !m.log.IsZero() {
			m.log.Debug("config unchanged; nothing to report", logx.String("path", m.path))
		}
		return nil, nil, false
	}

	changed, fields = SummarizeChange(running, cfg)
	for _, err := range Validate(cfg) {
		fields = append(fields, logx.String("warning", err.Error()))
	}
	return changed, fields, true
}

// Watch follows the config file and logs a warning whenever its content
// diverges from the running config. It returns when ctx is done.
func (m *Manager) Watch(ctx context.Context) error {
	dir := filepath.Dir(m.path)
	file := filepath.Base(m.path)

	// When fsnotify gets into a bad state the watcher may stop delivering
	// events or close its channels. Self-heal by recreating it with a small
	// exponential backoff.
	const (
		restartBackoffBase = 250 * time.Millisecond
		restartBackoffMax  = 5 * time.Second
	)
	backoff := restartBackoffBase
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	nextWait := func() time.Duration {
		wait := backoff + time.Duration(rng.Int63n(int64(backoff/2)+1))
		if backoff < restartBackoffMax {
			backoff = min(backoff*2, restartBackoffMax)
		}
		return wait
	}

	// debounce to avoid partial writes
	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(250*time.Millisecond, func() {
			if ctx.Err() != nil {
				return
			}
			changed, fields, ok := m.checkDrift()
			if !ok || m.log.IsZero() {
				return
			}
			fields = append([]logx.Field{
				logx.String("path", m.path),
				logx.Strs("sections", changed),
			}, fields...)
			m.log.Warn("config changed on disk; restart to apply", fields...)
		})
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			if err = w.Add(dir); err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			if !m.log.IsZero() {
				m.log.Warn("config watch init failed", logx.Err(err), logx.String("dir", dir))
			}
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(nextWait()):
				continue
			}
		}

		// success; reset backoff so transient issues don't cause long restart delays
		backoff = restartBackoffBase
		if !m.log.IsZero() {
			m.log.Debug("config watcher started", logx.String("dir", dir), logx.String("file", file))
		}

		// inner loop: runs until watcher breaks, then outer loop recreates it.
		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return nil
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if strings.EqualFold(filepath.Base(ev.Name), file) &&
					ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err == nil {
					continue
				}
				if !m.log.IsZero() {
					m.log.Warn("config watch error", logx.Err(err), logx.String("dir", dir))
				}
				if strings.Contains(strings.ToLower(err.Error()), "closed") {
					broken = true
				}
			}
		}

		_ = w.Close()
		if ctx.Err() != nil {
			return nil
		}
		wait := nextWait()
		if !m.log.IsZero() {
			m.log.Warn("config watcher stopped; restarting", logx.String("dir", dir), logx.Duration("backoff", wait))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}
