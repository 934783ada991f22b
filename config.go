package formatkit

import (
	"os"
	"time"

	"github.com/gobeaver/beaver-kit/config"
)

type Config struct {
	// Copy mode mask applied when callers do not pass one explicitly
	// (leave, symlink, hardlink, copy, link, any)
	DefaultCopyMode string `env:"FORMATKIT_DEFAULT_COPY_MODE,default:copy"`

	// Directory sample generators and conversion tasks write scratch
	// output under this directory
	ScratchDir string `env:"FORMATKIT_SCRATCH_DIR,default:/tmp/formatkit"`

	// Discovery defaults
	StandardOnly   bool `env:"FORMATKIT_STANDARD_ONLY,default:false"`
	IncludeGeneric bool `env:"FORMATKIT_INCLUDE_GENERIC,default:false"`

	// Watch debounce interval in milliseconds for change tokens
	WatchDebounceMs int `env:"FORMATKIT_WATCH_DEBOUNCE_MS,default:100"`
}

// GetConfig returns config loaded from environment
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultCopyMode returns the copy-mode mask CopyTo applies when the
// caller passes no WithMode option, read from
// FORMATKIT_DEFAULT_COPY_MODE. An unset or unparseable value falls back
// to the byte-copy mode.
func DefaultCopyMode() CopyMode {
	cfg, err := GetConfig()
	if err != nil {
		return ModeCopy
	}
	mode, err := CopyModeFromName(cfg.DefaultCopyMode)
	if err != nil {
		return ModeCopy
	}
	return mode
}

// ScratchDir returns the configured scratch directory for conversion
// output and generated samples, creating it if needed.
func ScratchDir() (string, error) {
	cfg, err := GetConfig()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.ScratchDir, 0o755); err != nil {
		return "", err
	}
	return cfg.ScratchDir, nil
}

// WatchDebounce returns how long a change token waits after the first
// relevant event before firing, coalescing the bursts a single logical
// change produces.
func WatchDebounce() time.Duration {
	cfg, err := GetConfig()
	if err != nil || cfg.WatchDebounceMs < 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(cfg.WatchDebounceMs) * time.Millisecond
}

// CopyModeFromName parses a copy mode name from configuration.
func CopyModeFromName(name string) (CopyMode, error) {
	switch name {
	case "leave":
		return ModeLeave, nil
	case "symlink":
		return ModeSymlink, nil
	case "hardlink":
		return ModeHardlink, nil
	case "copy":
		return ModeCopy, nil
	case "link":
		return ModeLink, nil
	case "any":
		return ModeAny, nil
	}
	return 0, NewError(KindDefinition, "unknown copy mode %q", name)
}
