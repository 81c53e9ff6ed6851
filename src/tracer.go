package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	FrameTracer — an optional, off-by-default record of every
 *		frame crossing the PHY boundary, for offline debugging of
 *		a running mesh.
 *
 * Description:	Mirrors the teacher's -T/timestamp_format option
 *		(kissutil.go, xmit.go's timestampPrefix): an strftime
 *		pattern stamps each line, and the timestamp is simply
 *		absent when no pattern is configured rather than guarded by
 *		a separate enable flag. Tracing itself is on only once a
 *		tracer is installed with SetFrameTracer.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"io"
	"time"

	"github.com/lestrrat-go/strftime"
)

// FrameTracer writes a one-line record of every frame that crosses the
// PHY boundary in either direction. A nil *FrameTracer is valid and
// traces nothing, so a Stack with none configured pays only a nil check.
type FrameTracer struct {
	w        io.Writer
	tsFormat string
}

// NewFrameTracer builds a tracer writing to w. tsFormat is an strftime
// pattern (e.g. "%Y-%m-%d %H:%M:%S") stamped on every line, in the same
// style as the teacher's -T/timestamp_format option; an empty pattern
// omits the timestamp.
func NewFrameTracer(w io.Writer, tsFormat string) *FrameTracer {
	return &FrameTracer{w: w, tsFormat: tsFormat}
}

func (t *FrameTracer) trace(dir string, h *Header, size int) {
	if t == nil || t.w == nil {
		return
	}
	var stamp string
	if t.tsFormat != "" {
		if formatted, err := strftime.Format(t.tsFormat, time.Now()); err == nil {
			stamp = formatted + " "
		}
	}
	fmt.Fprintf(t.w, "%s%s src=%d:%d dst=%d:%d seq=%d size=%d ack=%v sec=%v\n",
		stamp, dir, h.NwkSrcAddr, h.NwkSrcEndpoint, h.NwkDstAddr, h.NwkDstEndpoint,
		h.NwkSeq, size, h.AckRequest, h.SecurityEnabled)
}

// tracingTransceiver decorates a Transceiver, tracing every outgoing
// frame's decoded header before forwarding the call on unchanged.
type tracingTransceiver struct {
	Transceiver
	tracer *FrameTracer
}

func (t *tracingTransceiver) DataReq(data []byte) {
	if len(data) >= HeaderSize {
		h := DecodeHeader(data[:HeaderSize])
		t.tracer.trace("tx", &h, len(data))
	}
	t.Transceiver.DataReq(data)
}

// SetFrameTracer installs tracer on s, wrapping the PHY transceiver to
// observe every outbound transmission. Passing nil leaves the Stack
// unchanged; it does not remove a tracer installed earlier.
// Must be called before the Stack starts transmitting; it is not safe to
// swap tracers on a live Stack.
func (s *Stack) SetFrameTracer(tracer *FrameTracer) {
	if tracer == nil {
		return
	}
	s.tracer = tracer
	traced := &tracingTransceiver{Transceiver: s.phy, tracer: tracer}
	s.phy = traced
	s.tx.phy = traced
}
