package utils

import "go.uber.org/zap"

// NewLogger returns a zap logger. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level).
// Both write to stderr, keeping stdout free for result rows.
func NewLogger(debug bool) (*zap.Logger, error) {
	return NewFileLogger(debug, "")
}

// NewFileLogger is NewLogger with an additional log file. An empty logFile
// logs to stderr only.
func NewFileLogger(debug bool, logFile string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if debug {
		cfg = zap.NewDevelopmentConfig()
	}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}
	return cfg.Build()
}
