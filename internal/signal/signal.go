// Package signal emits key=value automation flags for the CI runner.
// The runner decides from them whether to publish; nothing here
// interprets the flags further.
package signal

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Emitter writes automation flags. When the environment provides a
// runner output file (GITHUB_OUTPUT) the flags go there, otherwise to
// stdout.
type Emitter struct {
	w      io.Writer
	closer io.Closer
	logger *logrus.Entry
}

func NewEmitter() (*Emitter, error) {
	emitter := &Emitter{
		w:      os.Stdout,
		logger: logrus.WithField("component", "signal-emitter"),
	}

	if path := os.Getenv("GITHUB_OUTPUT"); path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open runner output file: %w", err)
		}
		emitter.w = f
		emitter.closer = f
	}

	return emitter, nil
}

// Emit writes one flag line.
func (e *Emitter) Emit(key string, value bool) error {
	if _, err := fmt.Fprintf(e.w, "%s=%t\n", key, value); err != nil {
		return fmt.Errorf("failed to emit signal %s: %w", key, err)
	}
	e.logger.WithFields(logrus.Fields{
		"key":   key,
		"value": value,
	}).Debug("Signal emitted")
	return nil
}

// EmitChannel writes the per-channel publish and change flags.
func (e *Emitter) EmitChannel(name string, updated bool) error {
	if err := e.Emit(name+"_publish", updated); err != nil {
		return err
	}
	return e.Emit(name+"_changed", updated)
}

func (e *Emitter) Close() error {
	if e.closer != nil {
		return e.closer.Close()
	}
	return nil
}
