package nwk

import "github.com/charmbracelet/log"

/*------------------------------------------------------------------
 *
 * Purpose:	RX pipeline — state machine per inbound frame:
 *		received -> (decrypt) -> indicate -> (route) -> finish;
 *		ack generation, §4.6.
 *
 * Description:	Ported from original_source/nwk/src/nwkRx.c. PHY_DataInd
 *		validates the MAC FCF and minimum size, allocates, and
 *		stamps RECEIVED; the task handler drives the rest.
 *
 *------------------------------------------------------------------*/

// RxPipeline owns every inbound frame from reception through indication,
// routing hand-off, or drop.
type RxPipeline struct {
	ib       *informationBase
	pool     *Pool
	security *Security
	router   *Router // nil when routing is disabled.
	dedupe   *Dedupe
	tx       *TxPipeline
	log      *log.Logger

	active int
}

// NewRxPipeline wires the RX pipeline.
func NewRxPipeline(ib *informationBase, pool *Pool, sec *Security, router *Router, dedupe *Dedupe, tx *TxPipeline) *RxPipeline {
	return &RxPipeline{ib: ib, pool: pool, security: sec, router: router, dedupe: dedupe, tx: tx, log: newDiscardLogger()}
}

// DataInd is PHY_DataInd: validates, allocates, and stamps RECEIVED.
// Malformed frames (bad FCF, undersize) and pool exhaustion are both
// dropped silently, §4.6, §7.
func (p *RxPipeline) DataInd(ind *PHYDataInd) {
	if !validMacFcf(ind.Data) || len(ind.Data) < HeaderSize {
		return
	}

	f := p.pool.Alloc(len(ind.Data) - HeaderSize)
	if f == nil {
		return
	}

	f.state = rxStateReceived
	f.Rx.LQI = ind.LQI
	f.Rx.RSSI = ind.RSSI
	f.Size = len(ind.Data)
	copy(f.Data[:f.Size], ind.Data)
	f.Header = DecodeHeader(f.Data[:HeaderSize])

	p.active++
}

// Busy reports whether any frame is owned by this pipeline.
func (p *RxPipeline) Busy() bool {
	return p.active > 0
}

// handleReceived is nwkRxHandleReceivedFrame.
func (p *RxPipeline) handleReceived(f *Frame) {
	h := &f.Header
	f.state = rxStateFinish

	if (h.NwkDstAddr == BroadcastAddr && h.AckRequest) || h.NwkSrcAddr == p.ib.addr {
		return
	}

	if h.SecurityEnabled && p.ib.security == SecurityDisabled {
		return
	}

	if p.router != nil {
		p.router.ObserveReceived(h.NwkSrcAddr, h.MacSrcAddr, f.Rx.LQI)
	}

	macDstSelf := h.MacDstAddr == p.ib.addr
	if p.dedupe.Check(h, macDstSelf) {
		return
	}

	if h.MacDstAddr == BroadcastAddr && h.NwkDstAddr != p.ib.addr &&
		h.MacDstPANID != BroadcastPANID && !h.LinkLocal {
		p.tx.SendBroadcastRelay(f)
	}

	if h.NwkDstAddr == p.ib.addr || h.NwkDstAddr == BroadcastAddr {
		if h.SecurityEnabled {
			f.state = rxStateDecrypt
		} else {
			f.state = rxStateIndicate
		}
	} else if p.router != nil && h.MacDstAddr == p.ib.addr && h.MacDstPANID != BroadcastPANID {
		f.state = rxStateRoute
	}
}

// onDecryptConf is nwkRxDecryptConf: MIC pass moves on to INDICATE, a
// mismatch is a silent drop straight to FINISH, §7.
func (p *RxPipeline) onDecryptConf(f *Frame, micOK bool) {
	if micOK {
		f.state = rxStateIndicate
	} else {
		p.log.Warn("dropped frame, MIC mismatch", "src", f.Header.NwkSrcAddr, "seq", f.Header.NwkSeq)
		f.state = rxStateFinish
	}
}

// indicationOptions computes the options bits mirrored from nwkFcf plus
// BROADCAST/LOCAL/BROADCAST_PAN_ID, carried over exactly from
// original_source/nwk/src/nwkRx.c's nwkRxIndicateFrame per SPEC_FULL.md.
func indicationOptions(h *Header) uint8 {
	var o uint8
	if h.AckRequest {
		o |= IndOptAckRequested
	}
	if h.SecurityEnabled {
		o |= IndOptSecured
	}
	if h.LinkLocal {
		o |= IndOptLinkLocal
	}
	if h.NwkDstAddr == BroadcastAddr {
		o |= IndOptBroadcast
	}
	if h.NwkSrcAddr == h.MacSrcAddr {
		o |= IndOptLocal
	}
	if h.MacDstPANID == BroadcastPANID {
		o |= IndOptBroadcastPANID
	}
	return o
}

// indicate is nwkRxIndicateFrame: dispatches to the registered endpoint
// handler and reports whether it consumed the indication.
func (p *RxPipeline) indicate(f *Frame) HandlerResult {
	h := &f.Header
	if !p.ib.validEndpoint(h.NwkDstEndpoint) || p.ib.endpoint[h.NwkDstEndpoint] == nil {
		return HandlerResult{}
	}

	ind := &DataInd{
		SrcAddr:     h.NwkSrcAddr,
		SrcEndpoint: h.NwkSrcEndpoint,
		DstEndpoint: h.NwkDstEndpoint,
		Data:        f.Payload(),
		LQI:         f.Rx.LQI,
		RSSI:        f.Rx.RSSI,
		Options:     indicationOptions(h),
	}

	return p.ib.endpoint[h.NwkDstEndpoint](ind)
}

// sendAck emits the NWK ACK command back toward the frame's source, using
// the ack control most recently returned by the endpoint handler, §4.6.
func (p *RxPipeline) sendAck(f *Frame, control uint8) {
	ack := p.pool.Alloc(3)
	if ack == nil {
		return
	}
	ack.Size = HeaderSize + 3
	ack.Tx.Confirm = func(fr *Frame) { p.pool.Free(fr) }
	ack.Header.NwkDstAddr = f.Header.NwkSrcAddr
	ack.Header.NwkSrcAddr = p.ib.addr
	ack.Header.NwkSeq = p.ib.nextNwkSeq()
	ack.Header.NwkSrcEndpoint = ServiceEndpoint
	ack.Header.NwkDstEndpoint = ServiceEndpoint
	copy(ack.Payload(), encodeAckCommand(ackCommand{control: control, seq: f.Header.NwkSeq}))

	p.tx.Send(ack)
}

// TaskHandler advances every frame owned by this pipeline by one
// transition, mirroring nwkRxTaskHandler. The ROUTE case is a genuine
// hand-off: the router takes ownership and this pipeline's active count
// drops immediately, since the frame no longer belongs to RX.
func (p *RxPipeline) TaskHandler(route func(*Frame)) {
	if p.active == 0 {
		return
	}

	for i := 0; i < p.pool.Count(); i++ {
		f := p.pool.ByIndex(i)

		switch f.state {
		case rxStateReceived:
			p.handleReceived(f)

		case rxStateDecrypt:
			f.state = secStateDecryptPending
			p.security.Submit(f, false)

		case rxStateIndicate:
			h := &f.Header
			result := p.indicate(f)
			forceAck := h.MacDstAddr == BroadcastAddr && h.NwkDstAddr == p.ib.addr

			if (h.AckRequest && result.Consumed) || forceAck {
				p.sendAck(f, result.AckControl)
			}
			f.state = rxStateFinish

		case rxStateRoute:
			if route != nil {
				route(f)
			}
			p.active--

		case rxStateFinish:
			p.pool.Free(f)
			p.active--
		}
	}
}
