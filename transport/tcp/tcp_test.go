package tcp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tklabs/lwmesh/src"
	"github.com/tklabs/lwmesh/transport/framing"
)

type recordingCallbacks struct {
	ind chan *nwk.PHYDataInd
}

func (r *recordingCallbacks) DataInd(ind *nwk.PHYDataInd) { r.ind <- ind }
func (r *recordingCallbacks) DataConf(nwk.PHYStatus)   {}

// TestTCPDialDeliversDataInd exercises Dial against a bare TCP listener
// standing in for the transceiver board's proxy, writing a raw framed
// pktDataInd and checking the client Link decodes it.
func TestTCPDialDeliversDataInd(t *testing.T) {
	raw, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer raw.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := raw.Accept()
		require.NoError(t, err)
		accepted <- conn
	}()

	link, err := Dial(raw.Addr().String(), nil)
	require.NoError(t, err)
	defer link.Close()

	cb := &recordingCallbacks{ind: make(chan *nwk.PHYDataInd, 1)}
	link.BindCallbacks(cb)
	go link.Run()

	var boardConn net.Conn
	select {
	case boardConn = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for accept")
	}
	defer boardConn.Close()

	_, err = boardConn.Write(framing.Encode([]byte{0x02, 9, 1, 0xDE, 0xAD}))
	require.NoError(t, err)

	select {
	case ind := <-cb.ind:
		require.Equal(t, uint8(9), ind.LQI)
		require.Equal(t, int8(1), ind.RSSI)
		require.Equal(t, []byte{0xDE, 0xAD}, ind.Data)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for DataInd")
	}
}

// TestTCPListenAcceptRoundTrip exercises Listen/Accept with a DataReq
// written on the client side read back raw on the board side.
func TestTCPListenAcceptRoundTrip(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	type result struct {
		frame []byte
		err   error
	}
	done := make(chan result, 1)
	go func() {
		link, err := ln.Accept(nil)
		if err != nil {
			done <- result{err: err}
			return
		}
		defer link.Close()
		r := framing.NewReader(link.Conn())
		frame, err := r.ReadFrame()
		done <- result{frame: frame, err: err}
	}()

	client, err := Dial(ln.Addr().String(), nil)
	require.NoError(t, err)
	defer client.Close()

	client.DataReq([]byte{0x55, 0x66})

	select {
	case res := <-done:
		require.NoError(t, res.err)
		require.Equal(t, byte(0x01), res.frame[0])
		require.Equal(t, []byte{0x55, 0x66}, res.frame[1:])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for server read")
	}
}
