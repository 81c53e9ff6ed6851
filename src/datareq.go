package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	DataReq Queue — the application-visible submission list
 *		with per-request lifecycle, §4.4.
 *
 * Description:	Ported from original_source/nwk/src/nwkDataReq.c. The
 *		REDESIGN FLAGS note on "Queues without raw pointers"
 *		targets the original's void*-cast unlink path; Go's
 *		typed *DataReq already removes that cast, so this keeps
 *		the original's intrusive singly-linked, LIFO-submission
 *		list shape (no bound beyond the frame pool itself, since
 *		a request's backing storage is caller-owned, not
 *		pool-allocated) rather than introducing an arena that
 *		would need its own capacity where none exists in the
 *		source behaviour.
 *
 *------------------------------------------------------------------*/

const (
	reqStateInitial = iota
	reqStateWaitConf
	reqStateConfirm
)

// DataReq is one application data submission, §6.
type DataReq struct {
	DstAddr     uint16
	DstEndpoint uint8
	SrcEndpoint uint8
	Options     uint8
	Data        []byte
	Confirm     func(*DataReq)

	Status  Status
	Control uint8

	state int
	frame *Frame
	next  *DataReq
}

// DataReqQueue is the LIFO submission list.
type DataReqQueue struct {
	ib   *informationBase
	pool *Pool
	tx   *TxPipeline

	head *DataReq
}

// NewDataReqQueue wires the queue.
func NewDataReqQueue(ib *informationBase, pool *Pool, tx *TxPipeline) *DataReqQueue {
	return &DataReqQueue{ib: ib, pool: pool, tx: tx}
}

// Submit is NWK_DataReq: pushes req onto the head of the queue with state
// INITIAL. Re-submitting from inside req's own Confirm callback is safe
// because Confirm unlinks before invoking, §4.4.
func (q *DataReqQueue) Submit(req *DataReq) {
	req.state = reqStateInitial
	req.Status = StatusSuccess
	req.frame = nil
	req.next = q.head
	q.head = req
}

// Busy reports whether any request is still outstanding.
func (q *DataReqQueue) Busy() bool {
	return q.head != nil
}

func (q *DataReqQueue) sendFrame(req *DataReq) {
	size := len(req.Data)
	if req.Options&OptEnableSecurity != 0 {
		size += SecurityMICSize
	}

	frame := q.pool.Alloc(size)
	if frame == nil {
		req.state = reqStateConfirm
		req.Status = StatusOutOfMemory
		return
	}
	frame.Size = HeaderSize + size

	req.frame = frame
	req.state = reqStateWaitConf

	frame.Tx.Confirm = q.onTxConfirm
	if req.Options&OptBroadcastPANID != 0 {
		frame.Tx.Control = txControlBroadcastPANID
	}

	h := &frame.Header
	h.AckRequest = req.Options&OptAckRequest != 0
	h.SecurityEnabled = req.Options&OptEnableSecurity != 0
	h.LinkLocal = req.Options&OptLinkLocal != 0
	h.NwkSeq = q.ib.nextNwkSeq()
	h.NwkSrcAddr = q.ib.addr
	h.NwkDstAddr = req.DstAddr
	h.NwkSrcEndpoint = req.SrcEndpoint
	h.NwkDstEndpoint = req.DstEndpoint

	copy(frame.Payload(), req.Data)

	q.tx.Send(frame)
}

// onTxConfirm is nwkDataReqTxConf: finds the queued request this frame
// belongs to, stamps its outcome, and frees the frame.
func (q *DataReqQueue) onTxConfirm(frame *Frame) {
	for req := q.head; req != nil; req = req.next {
		if req.frame == frame {
			req.Status = frame.Tx.Status
			req.Control = frame.Tx.Control
			req.state = reqStateConfirm
			break
		}
	}
	q.pool.Free(frame)
}

func (q *DataReqQueue) unlink(req *DataReq) {
	if q.head == req {
		q.head = req.next
		return
	}
	for prev := q.head; prev != nil; prev = prev.next {
		if prev.next == req {
			prev.next = req.next
			return
		}
	}
}

// TaskHandler scans head to tail and acts on the first request that is
// in INITIAL (sends it) or CONFIRM (unlinks and confirms it), then
// returns, so at most one request advances per call (bounds per-tick
// work, §4.4), mirroring nwkDataReqTaskHandler.
func (q *DataReqQueue) TaskHandler() {
	for req := q.head; req != nil; req = req.next {
		switch req.state {
		case reqStateInitial:
			q.sendFrame(req)
			return

		case reqStateWaitConf:
			// idle; resumed by onTxConfirm.

		case reqStateConfirm:
			q.unlink(req)
			if req.Confirm != nil {
				req.Confirm(req)
			}
			return
		}
	}
}
