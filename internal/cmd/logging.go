package cmd

import (
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fclairamb/docmap/internal/config"
	"github.com/fclairamb/docmap/internal/store"
)

// LogFormat represents the log output format.
type LogFormat string

const (
	// LogFormatText is the human-readable text format (default).
	LogFormatText LogFormat = "text"
	// LogFormatJSON is the JSON-formatted structured logs.
	LogFormatJSON LogFormat = "json"
)

// Log file rotation.
const (
	logMaxSizeMB  = 20
	logMaxBackups = 5
	logMaxAgeDays = 30
)

// setupLogging configures the global logger from the verbose flag,
// DOCMAP_LOG_FORMAT and DOCMAP_LOG_FILE.
func setupLogging(cmd *cli.Command, cfg *config.Config) {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	if path := cfg.LogFile(); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    logMaxSizeMB,
			MaxBackups: logMaxBackups,
			MaxAge:     logMaxAgeDays,
			Compress:   true,
		})
	}

	slog.SetDefault(slog.New(newLogHandler(out, LogFormat(cfg.LogFormat()), level)))

	if format := cfg.LogFormat(); format != string(LogFormatText) && format != string(LogFormatJSON) {
		slog.Warn("Invalid DOCMAP_LOG_FORMAT value, using text format", "value", format)
	}

	slog.Debug("Verbose logging enabled")

	remote := store.LoadRemoteConfig(cfg.Koanf())
	if remote.EffectiveStorageMode() == store.StorageModeRemote {
		slog.Debug("storage mode", "mode", "remote", "url", remote.URL, "dir", cfg.RepoPath())
	} else {
		slog.Debug("storage mode", "mode", "local", "dir", cfg.RepoPath())
	}
}

func newLogHandler(out io.Writer, format LogFormat, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == LogFormatJSON {
		return slog.NewJSONHandler(out, opts)
	}
	return slog.NewTextHandler(out, opts)
}
