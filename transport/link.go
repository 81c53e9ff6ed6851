// Package transport turns a framed byte stream (serial line or TCP
// socket) into the lwmesh nwk.Transceiver interface, so the protocol core
// can run against a real external transceiver board or a loopback link in
// tests without knowing which.
package transport

/*------------------------------------------------------------------
 *
 * Purpose:	Shared wire protocol and goroutine plumbing for the
 *		serial and TCP PHY transports.
 *
 * Description:	Grounded on other_examples/29eb8f16_spirilis-smacbase__npi_protocol.go.go's
 *		tagged, length-prefixed command/data split and
 *		other_examples/197932a5_Atsika-aznet__aznet.go.go's
 *		addressed mesh client framing: every frame on the wire
 *		starts with one type byte, carries its own payload, and is
 *		delimited with transport/framing's byte-stuffed FEND
 *		scheme so the underlying stream need not be message-
 *		oriented.
 *
 *		This is transport-layer plumbing, not the NWK core: it
 *		runs its own reader goroutine and reports in via the
 *		registered nwk.PHYCallbacks, exactly the boundary role a
 *		real transceiver's interrupt handler plays in spec.md §1's
 *		PHY driver.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/tklabs/lwmesh/src"
	"github.com/tklabs/lwmesh/transport/framing"
)

const (
	pktDataReq     = 0x01
	pktDataInd     = 0x02
	pktDataConf    = 0x03
	pktSetChannel  = 0x10
	pktSetPanID    = 0x11
	pktSetAddr     = 0x12
	pktSetRxState  = 0x13
	pktSleep       = 0x14
	pktWakeup      = 0x15
)

// Link implements nwk.Transceiver over any io.ReadWriteCloser framed with
// transport/framing. Both transport/serial and transport/tcp build one of
// these around their concrete connection.
type Link struct {
	conn io.ReadWriteCloser
	r    *framing.Reader
	log  *log.Logger

	wmu sync.Mutex

	mu   sync.Mutex
	busy bool

	callbacks nwk.PHYCallbacks
}

// New wraps conn as a PHY link. Call BindCallbacks before Run.
func New(conn io.ReadWriteCloser, logger *log.Logger) *Link {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &Link{conn: conn, r: framing.NewReader(conn), log: logger}
}

// BindCallbacks registers the stack that receives DataInd/DataConf
// notifications, nwk.Stack satisfies nwk.PHYCallbacks.
func (l *Link) BindCallbacks(cb nwk.PHYCallbacks) {
	l.callbacks = cb
}

// Run reads frames until the connection closes or ctx-less caller stops
// it via Close, dispatching each to the bound callbacks. Intended to run
// in its own goroutine; this is the only goroutine in the module that
// calls into the NWK core concurrently with the application's task loop,
// mirroring how a real radio IRQ would.
func (l *Link) Run() error {
	for {
		frame, err := l.r.ReadFrame()
		if err != nil {
			return fmt.Errorf("transport: read: %w", err)
		}
		if len(frame) == 0 {
			continue
		}
		l.dispatch(frame)
	}
}

func (l *Link) dispatch(frame []byte) {
	switch frame[0] {
	case pktDataInd:
		if len(frame) < 3 || l.callbacks == nil {
			return
		}
		lqi := frame[1]
		rssi := int8(frame[2])
		data := append([]byte(nil), frame[3:]...)
		l.callbacks.DataInd(&nwk.PHYDataInd{Data: data, LQI: lqi, RSSI: rssi})

	case pktDataConf:
		if len(frame) < 2 || l.callbacks == nil {
			return
		}
		l.mu.Lock()
		l.busy = false
		l.mu.Unlock()
		l.callbacks.DataConf(nwk.PHYStatus(frame[1]))

	default:
		l.log.Warn("dropped unrecognised transport packet", "type", frame[0])
	}
}

func (l *Link) write(pkt []byte) {
	l.wmu.Lock()
	defer l.wmu.Unlock()
	if _, err := l.conn.Write(framing.Encode(pkt)); err != nil {
		l.log.Error("transport write failed", "err", err)
	}
}

// Init satisfies nwk.Transceiver; the wire protocol needs no explicit
// handshake beyond the connection being open.
func (l *Link) Init() error { return nil }

func (l *Link) SetChannel(channel uint8) { l.write([]byte{pktSetChannel, channel}) }

func (l *Link) SetPanID(panID uint16) {
	buf := make([]byte, 3)
	buf[0] = pktSetPanID
	binary.LittleEndian.PutUint16(buf[1:], panID)
	l.write(buf)
}

func (l *Link) SetShortAddr(addr uint16) {
	buf := make([]byte, 3)
	buf[0] = pktSetAddr
	binary.LittleEndian.PutUint16(buf[1:], addr)
	l.write(buf)
}

func (l *Link) SetRxState(enabled bool) {
	var on byte
	if enabled {
		on = 1
	}
	l.write([]byte{pktSetRxState, on})
}

func (l *Link) Sleep() { l.write([]byte{pktSleep}) }

func (l *Link) Wakeup() { l.write([]byte{pktWakeup}) }

// DataReq hands data to the link for transmission. The single
// outstanding-frame rule ("only one TX frame may occupy the PHY at a
// time", §4.5) is enforced by the caller (the TX pipeline checks Busy
// before calling); this just tracks the flag until DataConf arrives.
func (l *Link) DataReq(data []byte) {
	l.mu.Lock()
	l.busy = true
	l.mu.Unlock()

	pkt := make([]byte, 1, 1+len(data))
	pkt[0] = pktDataReq
	pkt = append(pkt, data...)
	l.write(pkt)
}

// Busy reports whether a DataReq is outstanding.
func (l *Link) Busy() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.busy
}

// Close closes the underlying connection, unblocking Run.
func (l *Link) Close() error {
	return l.conn.Close()
}

// Conn exposes the underlying byte stream, for test harnesses that need
// to observe raw wire traffic alongside a Link.
func (l *Link) Conn() io.ReadWriteCloser {
	return l.conn
}
