// Package state persists scenario lifecycle progress between invocations.
package state

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/scenarioctl/internal/config"
)

// State records which lifecycle steps have completed for a scenario.
type State struct {
	// Created is set after a successful create and cleared by destroy.
	Created bool `yaml:"created"`
	// Converged is set after a successful converge.
	Converged bool `yaml:"converged"`
	// Prepared is set after a successful prepare.
	Prepared bool `yaml:"prepared"`
	// Driver is the driver that created the instances.
	Driver string `yaml:"driver,omitempty"`
	// UpdatedAt is the time of the last change.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// Store reads and writes state.yml in the scenario ephemeral directory.
type Store struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore constructs a Store for the scenario described by cfg.
func NewStore(cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("scenario config is nil")
	}
	path := cfg.StateFile()
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state file path is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{path: path, logger: logger, now: time.Now}, nil
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored state. A missing file yields the zero State.
func (s *Store) Load() (State, error) {
	var st State
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return st, nil
		}
		return st, fmt.Errorf("read state %q: %w", s.path, err)
	}
	if err := yaml.Unmarshal(raw, &st); err != nil {
		return st, fmt.Errorf("decode state %q: %w", s.path, err)
	}
	return st, nil
}

// Update applies fn to the stored state and writes it back.
func (s *Store) Update(fn func(*State)) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	fn(&st)
	st.UpdatedAt = s.now().UTC()
	return s.save(st)
}

// Reset clears all progress, keeping the file so later runs see a destroyed scenario.
func (s *Store) Reset() error {
	s.logger.Debug("resetting scenario state", "path", s.path)
	return s.save(State{UpdatedAt: s.now().UTC()})
}

func (s *Store) save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	raw, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		return fmt.Errorf("write state %q: %w", s.path, err)
	}
	return nil
}
