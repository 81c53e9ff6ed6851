// Package serial provides the serial-line PHY transport: an external
// transceiver board attached via a TTY, framed per transport/framing.
package serial

/*------------------------------------------------------------------
 *
 * Purpose:	Open and configure a serial TTY for the PHY link, the
 *		way the teacher's serial_port.go configures a TNC's
 *		control port.
 *
 * Description:	golang.org/x/sys/unix termios plumbing replaces the
 *		teacher's cgo termios calls with a pure-Go equivalent:
 *		raw mode, 8N1, the requested baud rate, no flow control.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"golang.org/x/sys/unix"

	"github.com/tklabs/lwmesh/transport"
)

var baudRates = map[int]uint32{
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
}

// Open opens path as a raw serial line at the given baud rate and returns
// a transport.Link ready to have its callbacks bound and Run called.
func Open(path string, baud int, logger *log.Logger) (*transport.Link, error) {
	rate, ok := baudRates[baud]
	if !ok {
		return nil, fmt.Errorf("serial: unsupported baud rate %d", baud)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", path, err)
	}

	if err := setRaw(f, rate); err != nil {
		f.Close()
		return nil, fmt.Errorf("serial: configure %s: %w", path, err)
	}

	return transport.New(f, logger), nil
}

func setRaw(f *os.File, rate uint32) error {
	fd := int(f.Fd())

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.CfSetspeed(t, rate); err != nil {
		return err
	}

	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}
