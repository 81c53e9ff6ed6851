package nwk

// fakeTransceiver is a minimal in-memory Transceiver used by every
// pipeline-level test: it records the last DataReq and reports Busy from
// then on until the test clears busy itself (DataConf does not clear it).
type fakeTransceiver struct {
	lastSent []byte
	sendLog  [][]byte
	busy     bool
}

func newFakeTransceiver() *fakeTransceiver {
	return &fakeTransceiver{}
}

func (f *fakeTransceiver) Init() error           { return nil }
func (f *fakeTransceiver) SetChannel(uint8)      {}
func (f *fakeTransceiver) SetPanID(uint16)       {}
func (f *fakeTransceiver) SetShortAddr(uint16)   {}
func (f *fakeTransceiver) SetRxState(bool)       {}
func (f *fakeTransceiver) Sleep()                {}
func (f *fakeTransceiver) Wakeup()               {}
func (f *fakeTransceiver) Busy() bool            { return f.busy }

func (f *fakeTransceiver) DataReq(data []byte) {
	f.busy = true
	cp := append([]byte(nil), data...)
	f.lastSent = cp
	f.sendLog = append(f.sendLog, cp)
}
