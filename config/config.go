// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: config/config.go
// Summary: Configuration store backed by a TOML file.
// Usage: Open once per process; Current is safe from any goroutine.

package config

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/framegrace/vtengine/internal/logging"
)

// Store holds the configuration loaded from one file.
type Store struct {
	path string
	log  logrus.FieldLogger

	mu  sync.RWMutex
	cur Config
}

// Open loads the configuration at path, or at DefaultPath when path is
// empty. A missing file is created from the embedded defaults.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	if log == nil {
		log = logging.Discard()
	}
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	s := &Store{path: path, log: log.WithField("component", "config")}
	cfg, err := s.load()
	if err != nil {
		return nil, err
	}
	s.cur = cfg
	return s, nil
}

// SetLogger replaces the store's logger. Call it before Watch.
func (s *Store) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = logging.Discard()
	}
	s.log = log.WithField("component", "config")
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Current returns a copy of the active configuration.
func (s *Store) Current() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// Reload re-reads the file. On error the previous configuration stays
// active.
func (s *Store) Reload() (Config, error) {
	cfg, err := s.load()
	if err != nil {
		s.log.WithError(err).Warn("Config: reload failed, keeping previous configuration")
		return s.Current(), err
	}
	s.mu.Lock()
	s.cur = cfg
	s.mu.Unlock()
	return cfg.Clone(), nil
}

// Set replaces the in-memory configuration without writing it.
func (s *Store) Set(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = cfg.Clone()
	s.mu.Unlock()
	return nil
}

// Save writes the in-memory configuration to the file.
func (s *Store) Save() error {
	return writeConfig(s.path, s.Current())
}

func (s *Store) load() (Config, error) {
	cfg, exists, err := readConfig(s.path)
	if err != nil {
		return Config{}, err
	}
	if !exists {
		if err := writeDefaultConfig(s.path); err != nil {
			s.log.WithError(err).Warn("Config: failed to write default config")
		} else {
			s.log.WithField("path", s.path).Info("Config: wrote default config")
		}
		return cfg, nil
	}
	s.log.WithField("path", s.path).Info("Config: loaded")
	return cfg, nil
}
