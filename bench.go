package recsort

import (
	"log"
	"os"
	"time"
)

// Logger is the minimal logging surface the pipeline needs. The default
// writes to stderr through the standard library; callers inject their
// own via WithLogger.
type Logger interface {
	Infof(format string, v ...any)
	Debugf(format string, v ...any)
}

// NewStdLogger returns a Logger over the standard library log package.
// Debugf output is suppressed unless verbose is set.
func NewStdLogger(verbose bool) Logger {
	return &stdLogger{
		logger:  log.New(os.Stderr, "[recsort] ", log.LstdFlags),
		verbose: verbose,
	}
}

type stdLogger struct {
	logger  *log.Logger
	verbose bool
}

func (l *stdLogger) Infof(format string, v ...any) {
	l.logger.Printf(format, v...)
}

func (l *stdLogger) Debugf(format string, v ...any) {
	if l.verbose {
		l.logger.Printf(format, v...)
	}
}

// timer reports a single wall-time measurement per phase.
type timer struct {
	log  Logger
	rank int
}

func (t *timer) measure(label string, body func() error) error {
	start := time.Now()
	err := body()
	elapsed := time.Since(start)
	t.log.Infof("[rank %d] %-20s %10.3f ms", t.rank, label,
		float64(elapsed.Nanoseconds())/1e6)
	return err
}
