package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const logFileName = "photozip.log"

var (
	mu      sync.RWMutex
	level   = zerolog.InfoLevel
	logPath string
	output  io.Writer = os.Stdout
	_log    *zerolog.Logger
)

// Setup configures the level and the rotated log file shared by every logger
// created afterwards. An empty dir keeps logging on stdout only.
func Setup(lvl, dir string) error {
	mu.Lock()
	defer mu.Unlock()

	level = parseLevel(lvl)
	consoleWriter := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    false,
		FormatLevel: func(i interface{}) string {
			return strings.ToUpper(fmt.Sprintf("| %-6s|", i))
		},
	}

	if dir == "" {
		logPath = ""
		output = consoleWriter
		_log = nil
		return nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logPath = filepath.Join(dir, logFileName)
	fileWriter := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   false,
	}
	output = zerolog.MultiLevelWriter(consoleWriter, fileWriter)
	_log = nil
	return nil
}

func parseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(lvl) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// New returns a component logger tagged with prefix.
func New(prefix string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	ctx := zerolog.New(output).
		Level(level).
		With().
		Timestamp()
	if prefix != "" {
		ctx = ctx.Str("prefix", prefix)
	}
	return ctx.Logger()
}

func Default() zerolog.Logger {
	mu.RLock()
	l := _log
	mu.RUnlock()
	if l != nil {
		return *l
	}

	nl := New("photozip")
	mu.Lock()
	_log = &nl
	mu.Unlock()
	return nl
}

// GetLogPath returns the rotated log file path, empty when file logging is off.
func GetLogPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return logPath
}
