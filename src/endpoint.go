package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Endpoint Table and the NWK service endpoint (ACK,
 *		ROUTE_ERROR, ROUTE_REQ, ROUTE_REPLY), §4.10, §6.
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// DataInd is the application-visible indication delivered to an endpoint
// handler, distinct from the PHY-level DataInd.
type DataInd struct {
	SrcAddr     uint16
	SrcEndpoint uint8
	DstEndpoint uint8
	Data        []byte
	LQI         uint8
	RSSI        int8
	Options     uint8
}

// ackCommand is the NWK ACK command carried in the service endpoint,
// id=CmdAck.
type ackCommand struct {
	control uint8
	seq     uint8
}

func encodeAckCommand(c ackCommand) []byte {
	return []byte{CmdAck, c.control, c.seq}
}

func decodeAckCommand(data []byte) (ackCommand, bool) {
	if len(data) < 3 || data[0] != CmdAck {
		return ackCommand{}, false
	}
	return ackCommand{control: data[1], seq: data[2]}, true
}

// routeErrorCommand is sent back toward a frame's originator when a
// forwarding hop gives up on it, §4.9. It additionally carries the
// unreachable destination address, a detail preserved from
// original_source/nwk/src/nwkRx.c's route-removal handling and spelled
// out in SPEC_FULL.md's supplemented features.
type routeErrorCommand struct {
	unreachableAddr uint16
}

func encodeRouteErrorCommand(c routeErrorCommand) []byte {
	buf := make([]byte, 3)
	buf[0] = CmdRouteError
	binary.LittleEndian.PutUint16(buf[1:3], c.unreachableAddr)
	return buf
}

func decodeRouteErrorCommand(data []byte) (routeErrorCommand, bool) {
	if len(data) < 3 || data[0] != CmdRouteError {
		return routeErrorCommand{}, false
	}
	return routeErrorCommand{unreachableAddr: binary.LittleEndian.Uint16(data[1:3])}, true
}
