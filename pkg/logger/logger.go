// Package logger configures process-wide logging. Output goes to both the
// terminal (human-readable) and an append-only file under logs/.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var root zerolog.Logger

func init() {
	// Usable before Init is called, e.g. from tests.
	root = zerolog.New(consoleWriter(os.Stderr)).With().Timestamp().Logger()
}

// Init sets up the root logger. The file is opened in append mode under the
// logs/ directory unless an absolute path is given.
func Init(filePath, level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	if !filepath.IsAbs(filePath) && !strings.HasPrefix(filePath, "logs/") {
		filePath = filepath.Join("logs", filePath)
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w := zerolog.MultiLevelWriter(consoleWriter(os.Stderr), file)
	root = zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	return nil
}

// New returns a sub-logger tagged with a component name.
func New(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}

func consoleWriter(out io.Writer) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
}
