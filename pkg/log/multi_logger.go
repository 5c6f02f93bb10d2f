package log

// MultiLogger fans one event out to several loggers, typically a console
// SlogAdapter alongside a FileLogger.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger combines the given loggers into one.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log passes the event to every underlying logger in order.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

var _ Logger = (*MultiLogger)(nil)
