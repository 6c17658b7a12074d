// Package logging holds the process-wide logger used by hlsfetch components.
//
// Nothing in this module configures logging implicitly. The host calls Init
// once, before creating any session; until then components log to a null
// logger.
package logging

import (
	"errors"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// ErrAlreadyInitialized is returned by every Init call after the first.
var ErrAlreadyInitialized = errors.New("logging already initialized")

// Options configures the process logger.
type Options struct {
	// Name prefixes every line, default "hlsfetch"
	Name string

	// Level is one of trace, debug, info, warn, error, off. Default info.
	Level string

	// JSON switches to JSON lines output
	JSON bool

	// Output defaults to os.Stderr
	Output io.Writer
}

var (
	mu          sync.RWMutex
	initialized bool
	current     = hclog.NewNullLogger()
)

// Init installs the process logger. Only the first call has an effect.
func Init(opts Options) (hclog.Logger, error) {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return current, ErrAlreadyInitialized
	}

	current = New(opts)
	initialized = true
	return current, nil
}

// New builds a logger without installing it.
func New(opts Options) hclog.Logger {
	name := opts.Name
	if name == "" {
		name = "hlsfetch"
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      level,
		Output:     output,
		JSONFormat: opts.JSON,
	})
}

// Logger returns the process logger, a null logger before Init.
func Logger() hclog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Discard returns a logger that drops everything.
func Discard() hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Level:  hclog.Off,
		Output: io.Discard,
	})
}

// reset is used by tests.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	initialized = false
	current = hclog.NewNullLogger()
}
