package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const logFileName = "airsync.log"

// newLogger writes human-readable lines to console and JSON lines to
// <logDir>/airsync.log.
func newLogger(logDir string, debug bool, console io.Writer) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0o700); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file: %w", err)
	}

	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}

	writer := zerolog.MultiLevelWriter(
		zerolog.ConsoleWriter{Out: console, TimeFormat: time.Kitchen},
		file,
	)
	log := zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return log, file, nil
}
