package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Stack — the top-level task dispatcher wiring every
 *		pipeline together and the public NWK_* API surface, §5.
 *
 * Description:	TaskHandler is the single cooperative entry point an
 *		application calls from its main loop, in place of the
 *		original's nwkTaskHandler. It drains the AES oracle, then
 *		visits each pipeline in a fixed order — security, tx, rx,
 *		dataReq — every pass, and finally drains due timers. The
 *		order matters: security must run before tx/rx so a frame
 *		encrypted or decrypted this pass is ready for the pipeline
 *		that is waiting on it within the same pass, exactly as the
 *		original's single-threaded task loop guarantees.
 *
 *------------------------------------------------------------------*/

import "github.com/charmbracelet/log"

// StackConfig bundles the fixed-capacity sizing the original's
// NWK_BUFFERS_AMOUNT / NWK_DUPLICATE_REJECTION_TABLE_SIZE / routing table
// build-time constants, here runtime values, §4.1, §4.7, §4.9.
type StackConfig struct {
	FrameBuffers int

	RoutingEnabled bool
	RouteTableSize int

	DupeTableSize int
	DupeTTLMS     uint16

	AckWaitTimeMS int
}

// Stack is one instance of the network layer, bound to one PHY
// transceiver. Per the "Global information base" REDESIGN FLAG, every
// piece of what used to be process-wide state lives here instead, so a
// process may host more than one Stack.
type Stack struct {
	ib   informationBase
	pool *Pool

	phy     Transceiver
	oracle  *SoftwareAES
	timers  *TimerService
	sec     *Security
	router  *Router
	dedupe  *Dedupe
	tx      *TxPipeline
	rx      *RxPipeline
	dataReq *DataReqQueue

	sleeping bool
	log      *log.Logger
	tracer   *FrameTracer
}

// NewStack builds a Stack against phy using cfg's sizing. Addressing,
// the security key and endpoints are set afterward via the Set*/Open*
// methods and may change at any quiescent point, §4.3.
func NewStack(phy Transceiver, cfg StackConfig) *Stack {
	s := &Stack{phy: phy}

	s.pool = NewPool(cfg.FrameBuffers)
	s.timers = NewTimerService()
	s.oracle = NewSoftwareAES()
	s.sec = NewSecurity(s.oracle, &s.ib.key, s.onEncryptDone, s.onDecryptDone)

	if cfg.RoutingEnabled {
		s.ib.routingEnabled = true
		s.router = NewRouter(cfg.RouteTableSize, s.sendRouteError)
	}

	s.tx = NewTxPipeline(&s.ib, s.pool, phy, s.sec, s.router, s.timers, cfg.AckWaitTimeMS)
	s.rx = NewRxPipeline(&s.ib, s.pool, s.sec, s.router, nil, s.tx)
	s.dedupe = NewDedupe(s.timers, cfg.DupeTableSize, cfg.DupeTTLMS, s.onStaleRoute)
	s.rx.dedupe = s.dedupe
	s.dataReq = NewDataReqQueue(&s.ib, s.pool, s.tx)

	if err := s.ib.openEndpoint(ServiceEndpoint, s.serviceEndpoint); err != nil {
		// ServiceEndpoint is always in range; this would only trip if
		// MaxEndpoints shrank below it.
		panic(err)
	}

	return s
}

// SetAddr sets this node's short address, §4.3.
func (s *Stack) SetAddr(addr uint16) { s.ib.addr = addr }

// Addr returns this node's short address.
func (s *Stack) Addr() uint16 { return s.ib.addr }

// SetPanID sets the PAN this node belongs to, §4.3.
func (s *Stack) SetPanID(panID uint16) { s.ib.panID = panID }

// SetTxPower sets the transmit power index forwarded opaquely to the PHY.
func (s *Stack) SetTxPower(pwr int8) { s.ib.txPwr = pwr }

// SetKey installs the pre-shared symmetric key used by Security, §4.8.
func (s *Stack) SetKey(key [SecurityKeySize]byte) { s.ib.key = key }

// SetSecurityMode enables or disables processing of secured frames,
// §4.6.
func (s *Stack) SetSecurityMode(mode SecurityMode) { s.ib.security = mode }

// OpenEndpoint registers h to receive indications addressed to
// endpoint id, §4.10. Endpoint 0 is reserved for the NWK service
// endpoint and cannot be overridden.
func (s *Stack) OpenEndpoint(id uint8, h EndpointHandler) error {
	if id == ServiceEndpoint {
		return &Error{Status: StatusError}
	}
	return s.ib.openEndpoint(id, h)
}

// DataReq submits req for transmission, NWK_DataReq, §4.4.
func (s *Stack) DataReq(req *DataReq) {
	s.dataReq.Submit(req)
}

// Busy reports whether any pipeline still owns a frame or the AES oracle
// has confirms queued, the condition an application's SleepReq must wait
// on. Running timers are not consulted.
func (s *Stack) Busy() bool {
	return s.tx.Busy() || s.rx.Busy() || s.sec.Busy() || s.dataReq.Busy() || s.oracle.Busy()
}

// SleepReq puts the PHY to sleep once the stack is quiescent, §4.2.
// It reports whether sleep was entered; a busy stack refuses.
func (s *Stack) SleepReq() bool {
	if s.Busy() {
		return false
	}
	s.phy.Sleep()
	s.sleeping = true
	return true
}

// WakeupReq wakes the PHY back up.
func (s *Stack) WakeupReq() {
	if !s.sleeping {
		return
	}
	s.phy.Wakeup()
	s.sleeping = false
}

// Tick feeds the millisecond timer tick, normally called from the HAL's
// timer ISR, §4.2.
func (s *Stack) Tick(elapsedMS int) {
	s.timers.Tick(elapsedMS)
}

// DataConf implements PHYCallbacks.
func (s *Stack) DataConf(status PHYStatus) { s.tx.DataConf(status) }

// DataInd implements PHYCallbacks.
func (s *Stack) DataInd(ind *PHYDataInd) {
	if s.tracer != nil && len(ind.Data) >= HeaderSize {
		h := DecodeHeader(ind.Data[:HeaderSize])
		s.tracer.trace("rx", &h, len(ind.Data))
	}
	s.rx.DataInd(ind)
}

// TaskHandler is the cooperative entry point, called repeatedly from the
// application's main loop, nwkTaskHandler.
func (s *Stack) TaskHandler() {
	s.oracle.Drain()
	s.tx.TaskHandler()
	s.rx.TaskHandler(s.routeFrame)
	s.dataReq.TaskHandler()
	s.timers.Drain()
}

func (s *Stack) onEncryptDone(f *Frame) { s.tx.onEncryptConf(f) }
func (s *Stack) onDecryptDone(f *Frame, micOK bool) { s.rx.onDecryptConf(f, micOK) }

// routeFrame hands a frame from rxStateRoute straight back into TX,
// skipping re-encryption via txControlRouting exactly as a broadcast
// relay does, but resolved toward its single next hop rather than
// flooded, mirroring nwkRxTaskHandler's ROUTE case handing off to
// nwkTxFrame.
func (s *Stack) routeFrame(f *Frame) {
	f.Tx.Control |= txControlRouting
	f.Tx.Confirm = func(fr *Frame) { s.pool.Free(fr) }
	s.tx.Send(f)
}

func (s *Stack) onStaleRoute(dst uint16) {
	if s.router != nil {
		s.logger().Debug("pruning stale route on duplicate reject", "dst", dst)
		s.router.Remove(dst)
	}
}

func (s *Stack) sendRouteError(origin, unreachableAddr uint16) {
	s.logger().Info("route saturated, emitting ROUTE_ERROR", "origin", origin, "unreachable", unreachableAddr)
	f := s.pool.Alloc(3)
	if f == nil {
		s.logger().Warn("dropped ROUTE_ERROR, pool exhausted")
		return
	}
	f.Size = HeaderSize + 3
	f.Tx.Confirm = func(fr *Frame) { s.pool.Free(fr) }
	f.Header.NwkDstAddr = origin
	f.Header.NwkSrcAddr = s.ib.addr
	f.Header.NwkSeq = s.ib.nextNwkSeq()
	f.Header.NwkSrcEndpoint = ServiceEndpoint
	f.Header.NwkDstEndpoint = ServiceEndpoint
	copy(f.Payload(), encodeRouteErrorCommand(routeErrorCommand{unreachableAddr: unreachableAddr}))
	s.tx.Send(f)
}

// serviceEndpoint handles the NWK command set delivered to endpoint 0:
// ACK resumes a waiting TX frame, ROUTE_ERROR prunes a route, §4.9,
// §4.10. ROUTE_REQ/ROUTE_REPLY are reserved for active route discovery,
// which this build does not implement (passive learning only, §4.9);
// an unrecognised command is simply not consumed.
func (s *Stack) serviceEndpoint(ind *DataInd) HandlerResult {
	if ack, ok := decodeAckCommand(ind.Data); ok {
		s.tx.AckReceived(ack.seq, ack.control)
		return HandlerResult{Consumed: true}
	}
	if re, ok := decodeRouteErrorCommand(ind.Data); ok {
		if s.router != nil {
			s.router.Remove(re.unreachableAddr)
		}
		return HandlerResult{Consumed: true}
	}
	return HandlerResult{}
}
