package core

// Logger logs messages and reports errors to the configured error tracker.
// args may hold an error, a map[string]interface{} of extras, and the request user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
