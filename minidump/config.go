// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package minidump

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"golang.org/x/minidump/format"
)

// Config controls what a Writer captures.
type Config struct {
	Streams StreamsConfig `yaml:"streams"`
	Stack   StackConfig   `yaml:"stack"`
	Memory  MemoryConfig  `yaml:"memory"`

	// SuspendTimeout bounds the wait for each thread to stop. A thread
	// that does not stop in time is left out of the dump.
	SuspendTimeout time.Duration `yaml:"suspend_timeout"`

	// Deadline bounds the whole capture. Zero means no deadline.
	Deadline time.Duration `yaml:"deadline"`

	Output OutputConfig `yaml:"output"`

	// LogLevel is a logrus level name. It is applied by the command, not
	// by the Writer.
	LogLevel string `yaml:"log_level"`
}

// StreamsConfig selects streams.
type StreamsConfig struct {
	// Mandatory streams abort the capture when they fail. Other streams
	// are left out of the dump.
	Mandatory []format.StreamType `yaml:"mandatory"`

	// Disabled streams are never written.
	Disabled []format.StreamType `yaml:"disabled"`
}

// StackConfig limits stack capture.
type StackConfig struct {
	// MaxBytes caps the bytes saved per thread stack, counted up from
	// the stack pointer.
	MaxBytes uint64 `yaml:"max_bytes"`
}

// MemoryConfig selects additional memory.
type MemoryConfig struct {
	// InstructionWindow is the number of bytes saved around the
	// crashing instruction. Zero disables it.
	InstructionWindow uint64 `yaml:"instruction_window"`

	// Extra lists application-supplied ranges to save.
	Extra []Range `yaml:"extra"`

	// MaxRegionBytes caps any single extra range.
	MaxRegionBytes uint64 `yaml:"max_region_bytes"`
}

// A Range is a span of inferior memory.
type Range struct {
	Address uint64 `yaml:"address"`
	Size    uint64 `yaml:"size"`
}

func (r Range) String() string {
	return fmt.Sprintf("%#x+%#x", r.Address, r.Size)
}

// OutputConfig controls the bytes handed to the sink.
type OutputConfig struct {
	// Compress zstd-compresses the dump.
	Compress bool `yaml:"compress"`
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Streams: StreamsConfig{
			Mandatory: []format.StreamType{format.ThreadListStream, format.SystemInfoStream},
		},
		Stack:  StackConfig{MaxBytes: 256 << 10},
		Memory: MemoryConfig{
			InstructionWindow: 256,
			MaxRegionBytes:    64 << 20,
		},
		SuspendTimeout: 2 * time.Second,
		LogLevel:       "info",
	}
}

// ParseConfig decodes a YAML configuration. Fields it does not set keep
// their defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports an inconsistent configuration.
func (c *Config) Validate() error {
	for _, t := range c.Streams.Mandatory {
		if c.disabled(t) {
			return fmt.Errorf("stream %v is both mandatory and disabled", t)
		}
	}
	if c.SuspendTimeout < 0 || c.Deadline < 0 {
		return fmt.Errorf("negative timeout")
	}
	for _, r := range c.Memory.Extra {
		if r.Size == 0 {
			return fmt.Errorf("extra memory range %v is empty", r)
		}
		if r.Address+r.Size < r.Address {
			return fmt.Errorf("extra memory range %v wraps around", r)
		}
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) mandatory(t format.StreamType) bool {
	for _, m := range c.Streams.Mandatory {
		if m == t {
			return true
		}
	}
	return false
}

func (c *Config) disabled(t format.StreamType) bool {
	for _, d := range c.Streams.Disabled {
		if d == t {
			return true
		}
	}
	return false
}
