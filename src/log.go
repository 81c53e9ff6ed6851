package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Structured logging for protocol-level events that are
 *		not surfaced to the application through Status: dropped
 *		frames, MIC failures, route churn.
 *
 * Description:	charmbracelet/log is in the dependency stack this
 *		package is built against; a Stack defaults to a
 *		discarding logger so library use never prints uninvited,
 *		and an embedder wires in its own *log.Logger (typically
 *		one already configured with a prefix and level by
 *		cmd/meshd) via SetLogger.
 *
 *------------------------------------------------------------------*/

import (
	"io"

	"github.com/charmbracelet/log"
)

func newDiscardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// SetLogger installs l as this Stack's logger. Passing nil restores the
// default discarding logger.
func (s *Stack) SetLogger(l *log.Logger) {
	if l == nil {
		l = newDiscardLogger()
	}
	s.log = l
	s.rx.log = l
}

func (s *Stack) logger() *log.Logger {
	if s.log == nil {
		s.log = newDiscardLogger()
	}
	return s.log
}
