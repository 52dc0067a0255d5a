package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Tunables are the runtime-adjustable knobs. They live in a YAML
// file that is re-read on change, so prompt models and limits can be
// tuned without a restart.
type Tunables struct {
	AI struct {
		GroqModel         string  `yaml:"groq_model"`
		OpenRouterModel   string  `yaml:"openrouter_model"`
		Temperature       float64 `yaml:"temperature"`
		MaxTokens         int     `yaml:"max_tokens"`
		RequestTimeoutSec int     `yaml:"request_timeout_sec"`
		KeyCheckTimeoutMS int     `yaml:"key_check_timeout_ms"`
	} `yaml:"ai"`
	Breaker struct {
		MaxFailures     uint32 `yaml:"max_failures"`
		OpenIntervalSec int    `yaml:"open_interval_sec"`
	} `yaml:"breaker"`
}

// DefaultTunables returns the values used when no file is configured
func DefaultTunables() Tunables {
	var t Tunables
	t.AI.GroqModel = "moonshotai/kimi-k2-instruct"
	t.AI.OpenRouterModel = "deepseek/deepseek-chat:free"
	t.AI.Temperature = 0.5
	t.AI.MaxTokens = 4000
	t.AI.RequestTimeoutSec = 60
	t.AI.KeyCheckTimeoutMS = 4000
	t.Breaker.MaxFailures = 5
	t.Breaker.OpenIntervalSec = 30
	return t
}

// TunablesProvider serves the current tunables snapshot and reloads
// the backing file when it changes on disk
type TunablesProvider struct {
	mu      sync.RWMutex
	current Tunables
	path    string
	logger  *zap.Logger
	watcher *fsnotify.Watcher
}

// NewTunablesProvider loads the file at path, or defaults when path
// is empty, and starts watching for changes
func NewTunablesProvider(path string, logger *zap.Logger) (*TunablesProvider, error) {
	p := &TunablesProvider{
		current: DefaultTunables(),
		path:    path,
		logger:  logger,
	}
	if path == "" {
		return p, nil
	}

	if err := p.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create tunables watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch tunables file: %w", err)
	}
	p.watcher = watcher
	go p.watch()
	return p, nil
}

// Current returns the active tunables snapshot
func (p *TunablesProvider) Current() Tunables {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// Close stops the file watcher
func (p *TunablesProvider) Close() error {
	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// reload parses the file and swaps the snapshot. A broken file keeps
// the previous snapshot in place.
func (p *TunablesProvider) reload() error {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("failed to read tunables file: %w", err)
	}

	t := DefaultTunables()
	if err := yaml.Unmarshal(data, &t); err != nil {
		return fmt.Errorf("failed to parse tunables file: %w", err)
	}

	p.mu.Lock()
	p.current = t
	p.mu.Unlock()
	return nil
}

func (p *TunablesProvider) watch() {
	for {
		select {
		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := p.reload(); err != nil {
				p.logger.Warn("tunables reload failed, keeping previous values", zap.Error(err))
				continue
			}
			p.logger.Info("tunables reloaded", zap.String("path", p.path))
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("tunables watcher error", zap.Error(err))
		}
	}
}
