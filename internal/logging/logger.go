package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

const defaultBufferSize = 1000

// ModuleKey is the attribute every module logger carries; the buffer
// handler lifts it into LogEntry.Module and journald indexes it as MODULE.
const ModuleKey = "module"

var (
	moduleLoggers   = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	globalConfig    Config
	globalLevelVar  = &slog.LevelVar{}
	isInitialized   bool
	mutex           sync.RWMutex
	logBuffer       *RingBuffer
	logCallback     LogCallback
)

// Config represents logging configuration.
// Modules maps a module name (session, adb, capture, power, api, ...) to its level.
type Config struct {
	Level   string            `toml:"level"`
	Format  string            `toml:"format"`
	Modules map[string]string `toml:"modules"`
}

// levelFor resolves the effective level of module: its own override, else
// the global level, else info. Unparsable values fall through.
func (c Config) levelFor(module string) slog.Level {
	if s, ok := c.Modules[module]; ok {
		if l, ok := parseLevel(s); ok {
			return l
		}
	}
	if l, ok := parseLevel(c.Level); ok {
		return l
	}
	return slog.LevelInfo
}

// Initialize sets up the logging system. Loggers handed out earlier keep
// their identity in the module map but are rebuilt with the configured
// format and the buffer handler, and their levels are reset.
func Initialize(config Config) {
	mutex.Lock()
	defer mutex.Unlock()

	globalConfig = config
	isInitialized = true
	logBuffer = NewRingBuffer(defaultBufferSize)
	globalLevelVar.Set(config.levelFor(""))

	for module, levelVar := range moduleLevelVars {
		levelVar.Set(config.levelFor(module))
		moduleLoggers[module] = newModuleLogger(config.Format, module, levelVar)
	}

	slog.SetDefault(slog.New(newHandlerChain(config.Format, globalLevelVar)))
}

// GetBuffer returns the log ring buffer for reading historical logs.
func GetBuffer() *RingBuffer {
	mutex.RLock()
	defer mutex.RUnlock()
	return logBuffer
}

// SetLogCallback registers fn to receive every buffered entry.
// main uses it to publish entries on the event bus for /api/logs/stream.
func SetLogCallback(fn LogCallback) {
	mutex.Lock()
	defer mutex.Unlock()
	logCallback = fn
}

// GetLogger returns the logger for module, creating it on first use.
// Before Initialize it logs text to stdout at info.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	logger, ok := moduleLoggers[module]
	mutex.RUnlock()
	if ok {
		return logger
	}

	mutex.Lock()
	defer mutex.Unlock()
	if logger, ok := moduleLoggers[module]; ok {
		return logger
	}

	levelVar := &slog.LevelVar{}
	format := "text"
	if isInitialized {
		levelVar.Set(globalConfig.levelFor(module))
		format = globalConfig.Format
	}

	logger = newModuleLogger(format, module, levelVar)
	moduleLoggers[module] = logger
	moduleLevelVars[module] = levelVar
	return logger
}

func newModuleLogger(format, module string, level slog.Leveler) *slog.Logger {
	return slog.New(newHandlerChain(format, level)).With(ModuleKey, module)
}

// newHandlerChain fans a record out to stdout (when something is attached),
// journald (when running under it) and the in-memory buffer.
func newHandlerChain(format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}

	var stdout slog.Handler
	if format == "json" {
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		stdout = slog.NewTextHandler(os.Stdout, opts)
	}

	var journalHandler slog.Handler
	if IsJournalAvailable() {
		journalHandler = NewJournalHandler(level)
	}
	if !isStdoutAvailable() {
		stdout = nil
	}

	return NewMultiHandler(stdout, journalHandler, NewBufferHandler(level))
}

// isStdoutAvailable reports whether stdout leads somewhere other than /dev/null.
func isStdoutAvailable() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	mode := fi.Mode()
	return mode&(os.ModeCharDevice|os.ModeNamedPipe|os.ModeSocket) != 0 || mode.IsRegular()
}

// parseLevel converts a level name to slog.Level.
func parseLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}
