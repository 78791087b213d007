package core

// Logger interface for prefilter logging
type Logger interface {
	Printf(format string, args ...interface{})
}
