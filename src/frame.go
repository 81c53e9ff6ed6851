package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	The on-wire frame header (§3) and its encode/decode.
 *
 * Description:	Bit-exact, little-endian layout:
 *
 *			macFcf, macSeq, macDstPanId, macDstAddr, macSrcAddr,
 *			nwkFcf, nwkSeq, nwkSrcAddr, nwkDstAddr,
 *			nwkSrcEndpoint, nwkDstEndpoint
 *
 *		followed by 0..N payload bytes and an optional 4-byte MIC.
 *		All multi-byte fields must decode correctly regardless of
 *		alignment, since the frame buffer is a plain byte slice.
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// nwkFcf bit positions within the single nwkFcf byte, §3.
const (
	fcfAckRequest     = 1 << 0
	fcfSecurityEnable = 1 << 1
	fcfLinkLocal      = 1 << 2
)

// Header is the fixed-layout MAC/NWK frame header.
type Header struct {
	MacFcf       uint16
	MacSeq       uint8
	MacDstPANID  uint16
	MacDstAddr   uint16
	MacSrcAddr   uint16

	AckRequest      bool
	SecurityEnabled bool
	LinkLocal       bool

	NwkSeq         uint8
	NwkSrcAddr     uint16
	NwkDstAddr     uint16
	NwkSrcEndpoint uint8
	NwkDstEndpoint uint8
}

// MAC frame control field values this stack emits, §4.5.
const (
	macFcfBroadcast uint16 = 0x8841
	macFcfUnicast   uint16 = 0x8861
)

func (h *Header) nwkFcfByte() uint8 {
	var b uint8
	if h.AckRequest {
		b |= fcfAckRequest
	}
	if h.SecurityEnabled {
		b |= fcfSecurityEnable
	}
	if h.LinkLocal {
		b |= fcfLinkLocal
	}
	return b
}

func (h *Header) setNwkFcfByte(b uint8) {
	h.AckRequest = b&fcfAckRequest != 0
	h.SecurityEnabled = b&fcfSecurityEnable != 0
	h.LinkLocal = b&fcfLinkLocal != 0
}

// Encode writes the header in wire order into dst, which must be at least
// HeaderSize bytes long, and returns the number of bytes written.
func (h *Header) Encode(dst []byte) int {
	_ = dst[HeaderSize-1]
	binary.LittleEndian.PutUint16(dst[0:2], h.MacFcf)
	dst[2] = h.MacSeq
	binary.LittleEndian.PutUint16(dst[3:5], h.MacDstPANID)
	binary.LittleEndian.PutUint16(dst[5:7], h.MacDstAddr)
	binary.LittleEndian.PutUint16(dst[7:9], h.MacSrcAddr)
	dst[9] = h.nwkFcfByte()
	dst[10] = h.NwkSeq
	binary.LittleEndian.PutUint16(dst[11:13], h.NwkSrcAddr)
	binary.LittleEndian.PutUint16(dst[13:15], h.NwkDstAddr)
	dst[15] = h.NwkSrcEndpoint
	dst[16] = h.NwkDstEndpoint
	return HeaderSize
}

// DecodeHeader parses a wire header from the front of src. src must be at
// least HeaderSize bytes; the caller has already validated the MAC FCF and
// minimum size per §4.6 before calling this.
func DecodeHeader(src []byte) Header {
	_ = src[HeaderSize-1]
	var h Header
	h.MacFcf = binary.LittleEndian.Uint16(src[0:2])
	h.MacSeq = src[2]
	h.MacDstPANID = binary.LittleEndian.Uint16(src[3:5])
	h.MacDstAddr = binary.LittleEndian.Uint16(src[5:7])
	h.MacSrcAddr = binary.LittleEndian.Uint16(src[7:9])
	h.setNwkFcfByte(src[9])
	h.NwkSeq = src[10]
	h.NwkSrcAddr = binary.LittleEndian.Uint16(src[11:13])
	h.NwkDstAddr = binary.LittleEndian.Uint16(src[13:15])
	h.NwkSrcEndpoint = src[15]
	h.NwkDstEndpoint = src[16]
	return h
}

// validMacFcf reports whether the two leading on-wire bytes identify a
// data frame this stack understands. Non-data frame types are silently
// dropped, per the Open Question (3) decision in DESIGN.md preserving this
// hard-coded check.
func validMacFcf(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	return data[1] == 0x88 && (data[0] == 0x41 || data[0] == 0x61)
}
