package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Frame Pool — a fixed set of N equally-sized frame
 *		buffers with allocate/free and by-index access, §4.1.
 *
 * Description:	Allocation scans for the first free slot and is
 *		deterministic and stable, so round-robin pipeline
 *		iteration over pool.ByIndex is fair. free clears the
 *		busy flag and does not zero the buffer, matching the
 *		original nwkFrameFree.
 *
 *		alloc/free must be atomic with respect to the radio IRQ,
 *		which also allocates (in DataInd). Pool uses a mutex
 *		instead of the original's brief interrupt mask, since Go
 *		has no equivalent of disabling interrupts from task
 *		context; the critical section is just as short.
 *
 *------------------------------------------------------------------*/

import "sync"

// Frame buffer pipeline ownership ranges, §3.
const (
	stateFree = 0x00

	txStateEncrypt  = 0x10
	txStateSend     = 0x11
	txStateWaitConf = 0x12
	txStateSent     = 0x13
	txStateWaitAck  = 0x14
	txStateConfirm  = 0x15

	rxStateReceived = 0x20
	rxStateDecrypt  = 0x21
	rxStateIndicate = 0x22
	rxStateRoute    = 0x23
	rxStateFinish   = 0x24

	secStateEncryptPending = 0x30
	secStateDecryptPending = 0x31
	secStateProcess        = 0x32
	secStateWait           = 0x33
	secStateConfirm        = 0x34
)

// TxInfo is the TX-side metadata carried alongside a frame buffer, §3.
type TxInfo struct {
	Confirm func(*Frame)
	Status  Status
	Control uint8
	Timeout int
}

// TX control bits, internal to this package (§4.5, §4.9).
const (
	txControlRouting        uint8 = 0x01
	txControlBroadcastPANID uint8 = 0x02
)

// RxInfo is the RX-side metadata carried alongside a frame buffer, §3.
type RxInfo struct {
	LQI  uint8
	RSSI int8
}

// Frame is the central entity of the stack: an on-wire MAC/NWK frame plus
// the bookkeeping its owning pipeline needs. A Frame is reachable from
// exactly one pipeline's work set at any time; ownership transitions are
// state transitions, never concurrent access from two pipelines.
type Frame struct {
	index int
	busy  bool
	state uint8

	Header Header
	// Data holds the full on-wire frame: header, payload, optional MIC.
	// Size bytes of it are meaningful.
	Data [MaxFrameSize]byte
	Size int

	Tx TxInfo
	Rx RxInfo
}

// Payload returns the mutable payload region of the frame, between the
// header and (if present) the trailing MIC.
func (f *Frame) Payload() []byte {
	end := f.Size
	if f.Header.SecurityEnabled {
		end -= SecurityMICSize
	}
	if end < HeaderSize {
		return nil
	}
	return f.Data[HeaderSize:end]
}

// MIC returns the trailing 4-byte MIC region, valid only when the frame's
// header has SecurityEnabled set.
func (f *Frame) MIC() []byte {
	return f.Data[f.Size-SecurityMICSize : f.Size]
}

// encodeHeader stamps f.Header into the wire bytes at the front of f.Data.
func (f *Frame) encodeHeader() {
	f.Header.Encode(f.Data[:HeaderSize])
}

// Pool is a fixed-capacity set of equally sized frame buffers.
type Pool struct {
	mu     sync.Mutex
	frames []Frame
}

// NewPool builds a pool of n frame buffers, the NWK_BUFFERS_AMOUNT of the
// original implementation.
func NewPool(n int) *Pool {
	p := &Pool{frames: make([]Frame, n)}
	for i := range p.frames {
		p.frames[i].index = i
	}
	return p
}

// Count reports the pool's fixed capacity.
func (p *Pool) Count() int {
	return len(p.frames)
}

// ByIndex returns the buffer at i for deterministic round-robin scanning
// by the task dispatcher's pipelines.
func (p *Pool) ByIndex(i int) *Frame {
	return &p.frames[i]
}

// Alloc returns the first free buffer stamped for a frame whose payload
// (plus MIC if secured) is size bytes, so its Size is HeaderSize+size,
// or nil if the pool is exhausted. Exhaustion is a recoverable condition: TX submission
// surfaces it as StatusOutOfMemory, RX drops the frame silently (§4.1).
func (p *Pool) Alloc(size int) *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := range p.frames {
		f := &p.frames[i]
		if !f.busy {
			f.busy = true
			f.Size = HeaderSize + size
			f.Header = Header{}
			f.Tx = TxInfo{}
			f.Rx = RxInfo{}
			return f
		}
	}
	return nil
}

// Free releases f back to the pool without zeroing its contents.
func (p *Pool) Free(f *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f.busy = false
	f.state = stateFree
}

// Allocated reports how many buffers are currently owned by a pipeline;
// used by tests to check the quiescent-point pool accounting invariant
// of §8.
func (p *Pool) Allocated() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := range p.frames {
		if p.frames[i].busy {
			n++
		}
	}
	return n
}
