package policy

// Logger is a minimal structured logging interface used by the Engine.
// Implementations should accept alternating key/value pairs as variadic
// arguments. This keeps the interface small and easy to mock in tests.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// WithLogger installs a Logger on the Engine via EngineOption
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}
