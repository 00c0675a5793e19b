package core

// Logger is the leveled app logger.
// Implementations may extract known arg types (eg. a logged-in user) to enrich events.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
