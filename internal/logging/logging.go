package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Debug lowers the console level and enables the debug file.
	Debug bool
	// File overrides the debug file name. Empty means xmx_debug_<timestamp>.log.
	File string
	// Console is where human-readable entries go. Defaults to stderr.
	Console io.Writer
	// Quiet drops console output below Warn.
	Quiet bool
}

// Logger bundles the zap logger with the debug file it may own.
type Logger struct {
	*zap.Logger
	file *os.File
	Path string
}

// New builds the agent logger: a console core, and with Debug a JSON core
// appending to the debug file.
func New(opts Options) (*Logger, error) {
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	level := zapcore.InfoLevel
	switch {
	case opts.Debug:
		level = zapcore.DebugLevel
	case opts.Quiet:
		level = zapcore.WarnLevel
	}

	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(console), level),
	}

	l := &Logger{}
	if opts.Debug {
		path := opts.File
		if path == "" {
			timestamp := time.Now().Format("20060102_150405")
			path = fmt.Sprintf("xmx_debug_%s.log", timestamp)
		}

		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open debug log file: %w", err)
		}

		header := fmt.Sprintf("=== xmx debug session started at %s ===\n", time.Now().Format(time.RFC3339))
		if _, err := file.WriteString(header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write debug header: %w", err)
		}

		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.Lock(file), zapcore.DebugLevel))
		l.file = file
		l.Path = path
	}

	l.Logger = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	return l, nil
}

// Close flushes the logger and closes the debug file.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
