// Package tcp provides a TCP PHY transport: a loopback or networked
// stand-in for a serial-attached transceiver board, framed identically to
// transport/serial via transport/framing.
package tcp

/*------------------------------------------------------------------
 *
 * Purpose:	Dial or accept a TCP connection carrying the same
 *		framed PHY wire protocol as transport/serial, for
 *		development and testing without real hardware.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"net"

	"github.com/charmbracelet/log"

	"github.com/tklabs/lwmesh/transport"
)

// Dial connects to a PHY proxy listening at addr.
func Dial(addr string, logger *log.Logger) (*transport.Link, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}
	return transport.New(conn, logger), nil
}

// Listener accepts a single PHY link on addr, the counterpart a test
// harness or simulator binds to stand in for the transceiver board.
type Listener struct {
	ln net.Listener
}

// Listen starts accepting on addr.
func Listen(addr string) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tcp: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Addr returns the bound address, useful when addr was ":0".
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// Accept blocks for the next incoming connection and wraps it as a link.
func (l *Listener) Accept(logger *log.Logger) (*transport.Link, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("tcp: accept: %w", err)
	}
	return transport.New(conn, logger), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	return l.ln.Close()
}
