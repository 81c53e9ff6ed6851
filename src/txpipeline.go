package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	TX pipeline — state machine per in-flight outbound
 *		frame: encrypt -> send -> wait-conf -> (wait-ack) ->
 *		confirm, §4.5.
 *
 * Description:	Ported from original_source/nwk/src/nwkTx.c state for
 *		state: nwkTxFrame seeds the MAC header and decides the
 *		entry state, nwkTxTaskHandler advances it one step at a
 *		time per buffer per pass, PHY_DataConf and the ack-wait
 *		timer feed it from outside. Only one frame may occupy the
 *		PHY at a time (txActive), preserved as a direct pointer
 *		rather than a counter per SPEC_FULL.md's supplemented
 *		detail grounded on nwkTxPhyActiveFrame.
 *
 *------------------------------------------------------------------*/

const ackWaitTimerIntervalMS = 50

// TxPipeline owns every in-flight outbound frame.
type TxPipeline struct {
	ib       *informationBase
	pool     *Pool
	phy      Transceiver
	security *Security
	router   *Router // nil when routing is disabled.

	timers       *TimerService
	active       int // count of frames owned by this pipeline.
	txActive     *Frame
	ackWaitTimer *Timer

	ackWaitTimeoutTicks int
}

// NewTxPipeline wires the TX pipeline. ackWaitTimeMS is the NWK_ACK_WAIT_TIME
// of §4.5, in milliseconds.
func NewTxPipeline(ib *informationBase, pool *Pool, phy Transceiver, sec *Security, router *Router, ts *TimerService, ackWaitTimeMS int) *TxPipeline {
	p := &TxPipeline{ib: ib, pool: pool, phy: phy, security: sec, router: router, timers: ts}
	p.ackWaitTimeoutTicks = ceilDiv(ackWaitTimeMS, ackWaitTimerIntervalMS) + 1
	p.ackWaitTimer = ts.New(ackWaitTimerIntervalMS, Interval, p.onAckWaitTick)
	return p
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

// Send is nwkTxFrame: fills the MAC header, decides the entry state, and
// hands the frame to the pipeline.
func (p *TxPipeline) Send(frame *Frame) {
	h := &frame.Header

	if frame.Tx.Control&txControlRouting != 0 || !h.SecurityEnabled {
		frame.state = txStateSend
	} else {
		frame.state = txStateEncrypt
	}

	frame.Tx.Status = StatusSuccess

	if frame.Tx.Control&txControlBroadcastPANID != 0 {
		h.MacDstPANID = BroadcastPANID
	} else {
		h.MacDstPANID = p.ib.panID
	}

	if p.router != nil {
		h.MacDstAddr = p.router.NextHop(h.NwkDstAddr)
	} else {
		h.MacDstAddr = h.NwkDstAddr
	}
	h.MacSrcAddr = p.ib.addr
	h.MacSeq = p.ib.nextMacSeq()

	if h.MacDstAddr == BroadcastAddr {
		h.MacFcf = macFcfBroadcast
	} else {
		h.MacFcf = macFcfUnicast
	}

	p.active++
}

// SendBroadcastRelay is nwkTxBroadcastFrame: deep-copies orig into a new
// frame and enters the pipeline directly at SEND with a confirm that just
// frees the buffer, §4.5. Security state (and ciphertext, if any) is
// carried over unmodified — a relayed frame is never re-encrypted, per
// SPEC_FULL.md's supplemented detail grounded on nwkTx.c's broadcast
// relay copying the full on-wire frame verbatim.
func (p *TxPipeline) SendBroadcastRelay(orig *Frame) {
	newFrame := p.pool.Alloc(orig.Size - HeaderSize)
	if newFrame == nil {
		return
	}

	copy(newFrame.Data[:orig.Size], orig.Data[:orig.Size])
	newFrame.Size = orig.Size
	newFrame.Header = orig.Header

	newFrame.Tx.Confirm = func(f *Frame) { p.pool.Free(f) }
	newFrame.Tx.Status = StatusSuccess
	newFrame.Tx.Control = txControlRouting

	newFrame.Header.MacFcf = macFcfBroadcast
	newFrame.Header.MacDstAddr = BroadcastAddr
	newFrame.Header.MacDstPANID = orig.Header.MacDstPANID
	newFrame.Header.MacSrcAddr = p.ib.addr
	newFrame.Header.MacSeq = p.ib.nextMacSeq()
	// A relay is never individually acked back to the relaying node, §4.5.
	newFrame.Header.AckRequest = false
	newFrame.encodeHeader()

	newFrame.state = txStateSend
	p.active++
}

// AckReceived is nwkTxAckReceived: matches an incoming NWK ACK command
// against any frame currently WAIT_ACK by nwkSeq and, on a match, moves
// it straight to CONFIRM carrying the ack's control byte; Tx.Status keeps
// the success status the PHY reported for the send. A
// non-matching ack is silently ignored, §8.
func (p *TxPipeline) AckReceived(seq uint8, control uint8) {
	if p.active == 0 {
		return
	}
	for i := 0; i < p.pool.Count(); i++ {
		f := p.pool.ByIndex(i)
		if f.state == txStateWaitAck && f.Header.NwkSeq == seq {
			f.state = txStateConfirm
			f.Tx.Control = control
			return
		}
	}
}

// Busy reports whether any frame is owned by this pipeline.
func (p *TxPipeline) Busy() bool {
	return p.active > 0
}

func (p *TxPipeline) onAckWaitTick() {
	if p.active == 0 {
		return
	}
	fired := false
	for i := 0; i < p.pool.Count(); i++ {
		f := p.pool.ByIndex(i)
		if f.state != txStateWaitAck {
			continue
		}
		fired = true
		f.Tx.Timeout--
		if f.Tx.Timeout == 0 {
			f.state = txStateConfirm
			f.Tx.Status = StatusNoAck
		}
	}
	if fired {
		// Keep ticking as long as any frame remains WAIT_ACK; the timer
		// service's Interval mode requires an explicit rearm.
		p.rearmAckWaitTimerIfNeeded()
	}
}

func (p *TxPipeline) rearmAckWaitTimerIfNeeded() {
	for i := 0; i < p.pool.Count(); i++ {
		if p.pool.ByIndex(i).state == txStateWaitAck {
			p.timers.Start(p.ackWaitTimer)
			return
		}
	}
}

// DataConf is PHY_DataConf: maps the transceiver status and advances the
// sole PHY-active frame to SENT.
func (p *TxPipeline) DataConf(status PHYStatus) {
	if p.txActive == nil {
		return
	}
	p.txActive.Tx.Status = statusFromPHY(status)
	p.txActive.state = txStateSent
	p.txActive = nil
}

// TaskHandler advances every frame owned by this pipeline by one
// transition, in pool index order, mirroring nwkTxTaskHandler.
func (p *TxPipeline) TaskHandler() {
	if p.active == 0 {
		return
	}

	for i := 0; i < p.pool.Count(); i++ {
		f := p.pool.ByIndex(i)

		switch f.state {
		case txStateEncrypt:
			f.state = secStateEncryptPending
			p.security.Submit(f, true)

		case txStateSend:
			if !p.phy.Busy() {
				f.encodeHeader()
				p.txActive = f
				f.state = txStateWaitConf
				p.phy.DataReq(f.Data[:f.Size])
			}

		case txStateWaitConf:
			// idle; resumed by DataConf.

		case txStateSent:
			if f.Tx.Status == StatusSuccess && f.Header.NwkSrcAddr == p.ib.addr && f.Header.AckRequest {
				f.state = txStateWaitAck
				f.Tx.Timeout = p.ackWaitTimeoutTicks
				p.timers.Start(p.ackWaitTimer)
			} else {
				f.state = txStateConfirm
			}

		case txStateWaitAck:
			// idle; resumed by AckReceived or the ack-wait timer.

		case txStateConfirm:
			if p.router != nil {
				p.router.FrameSent(f.Header.NwkSrcAddr, f.Header.NwkDstAddr, f.Tx.Status)
			}
			if f.Tx.Confirm != nil {
				f.Tx.Confirm(f)
			}
			p.active--
		}
	}
}

// onEncryptConf is nwkTxEncryptConf: resumes a frame once Security has
// finished encrypting it.
func (p *TxPipeline) onEncryptConf(f *Frame) {
	f.state = txStateSend
}
