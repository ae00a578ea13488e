package storage

import "go.uber.org/zap"

type Option func(*Engine)

// WithDataDir enables on-disk persistence under the given directory.
func WithDataDir(dir string) Option {
	return func(engine *Engine) {
		engine.dataDir = dir
		engine.persistent = true
	}
}

// WithSaveOnCommit persists a database after every write transaction
// instead of only on close (default: false).
func WithSaveOnCommit(enabled bool) Option {
	return func(engine *Engine) {
		engine.saveOnCommit = enabled
	}
}

// WithLogger sets the engine's logger.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(engine *Engine) {
		if logger != nil {
			engine.logger = logger
		}
	}
}
