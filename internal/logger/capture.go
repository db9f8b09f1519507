package logger

import (
	"fmt"
	"io"
	"path/filepath"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for captured service output.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Capture describes where a managed service's stdout/stderr are written.
// If Dir is set, files are Dir/<name>.stdout.log and Dir/<name>.stderr.log.
// Rotation parameters follow lumberjack semantics.
type Capture struct {
	Dir        string `mapstructure:"dir"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Paths returns the stdout and stderr file paths for a service name.
// Both are empty when capture is disabled.
func (c Capture) Paths(name string) (string, string) {
	if c.Dir == "" {
		return "", ""
	}
	stdout := filepath.Join(c.Dir, fmt.Sprintf("%s.stdout.log", name))
	stderr := filepath.Join(c.Dir, fmt.Sprintf("%s.stderr.log", name))
	return stdout, stderr
}

// Writers returns io.WriteClosers for stdout and stderr of the named service.
// Returns nil writers when capture is disabled.
func (c Capture) Writers(name string) (io.WriteCloser, io.WriteCloser) {
	stdout, stderr := c.Paths(name)
	if stdout == "" {
		return nil, nil
	}
	outW := &lj.Logger{
		Filename:   stdout,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
	errW := &lj.Logger{
		Filename:   stderr,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
	return outW, errW
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
