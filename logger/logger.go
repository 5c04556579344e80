package logger

// Logger mirrors the logging interface consumed by the policy engine so
// hosts can wire their own implementations without importing the root
// package.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
