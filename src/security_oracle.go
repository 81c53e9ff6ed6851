package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	A concrete AESOracle backed by a real AES-128 block
 *		cipher, standing in for the external hardware AES engine
 *		of §6.
 *
 * Description:	No third-party AES implementation appears anywhere in
 *		the retrieval pack (the only hits — tamago's DCP driver,
 *		go-ethereum's RLPx framing — both reach for the standard
 *		library's crypto/aes too), so this is grounded on the
 *		ecosystem's own choice rather than invented: crypto/aes
 *		is the block-cipher primitive, used only as the single
 *		ECB-encrypt-one-block oracle the NWK security engine
 *		already treats as opaque.
 *
 *		Real hardware completes asynchronously; SoftwareAES
 *		preserves that by queuing confirms instead of calling
 *		them inline, so callers that only pump the queue from
 *		task context (never from inside EncryptReq) are exercised
 *		the same way a real interrupt-driven part would.
 *
 *------------------------------------------------------------------*/

import "crypto/aes"

// SoftwareAES is a software stand-in for the external AES oracle.
type SoftwareAES struct {
	pending []func()
}

// NewSoftwareAES returns a ready-to-use software AES oracle.
func NewSoftwareAES() *SoftwareAES {
	return &SoftwareAES{}
}

// EncryptReq encrypts block in place with key and queues confirm to run
// on the next Drain, rather than calling it inline.
func (a *SoftwareAES) EncryptReq(block *[SecurityBlockSize]byte, key *[SecurityKeySize]byte, confirm func()) {
	cipher, err := aes.NewCipher(key[:])
	if err != nil {
		// A 16-byte key is always valid for aes.NewCipher; this would
		// only trip if SecurityKeySize stopped matching AES-128.
		panic(err)
	}
	cipher.Encrypt(block[:], block[:])
	a.pending = append(a.pending, confirm)
}

// Drain runs every confirm queued since the last Drain, in order. Call it
// once per task loop pass, the way a real board's ISR-to-task hop would
// be drained.
func (a *SoftwareAES) Drain() {
	due := a.pending
	a.pending = nil
	for _, confirm := range due {
		confirm()
	}
}

// Busy reports whether any encrypt requests are queued awaiting Drain.
func (a *SoftwareAES) Busy() bool {
	return len(a.pending) > 0
}
