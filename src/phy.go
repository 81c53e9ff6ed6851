package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	The PHY contract consumed from the external transceiver
 *		driver, §6. Out of scope to implement (§1); this package
 *		only specifies the narrow interface the core calls.
 *
 *------------------------------------------------------------------*/

// PHYDataInd is what the PHY driver hands up on frame reception, before
// any NWK parsing.
type PHYDataInd struct {
	Data []byte
	LQI  uint8
	RSSI int8
}

// Transceiver is the PHY driver's API surface as consumed by this
// package. A concrete implementation lives outside this module (real
// transceiver register access, SPI, interrupts) or, as a framed serial or
// TCP link, in transport.
type Transceiver interface {
	Init() error
	SetChannel(channel uint8)
	SetPanID(panID uint16)
	SetShortAddr(addr uint16)
	SetRxState(enabled bool)
	Sleep()
	Wakeup()

	DataReq(data []byte)
	Busy() bool
}

// PHYCallbacks is how a Transceiver implementation calls back up into
// this package. A Stack satisfies it and is registered as the sink via
// transport.Link.BindCallbacks.
type PHYCallbacks interface {
	DataConf(status PHYStatus)
	DataInd(ind *PHYDataInd)
}
