package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Security — CBC-style encrypt/decrypt with a 4-byte MIC,
 *		cooperative with an asynchronous AES engine, §4.8.
 *
 * Description:	Only one frame is "active" in security at a time;
 *		further pending frames wait, FIFO, per the
 *		nwkSecurityActiveFrame single-slot design of the
 *		original and the "pending frames wait" detail carried
 *		over explicitly from original_source/nwk/src/nwkSecurity.c
 *		in SPEC_FULL.md.
 *
 *		The 16-byte start vector doubles as the AES oracle's
 *		input block. Each round the oracle replaces it in place
 *		with its ciphertext (the keystream for this block); that
 *		keystream is XORed into the payload block, and the vector
 *		is then rewritten to the *ciphertext of the payload
 *		block* — for both directions, since plaintext XOR
 *		keystream == ciphertext, feeding the next round exactly
 *		as original_source/nwk/src/nwkSecurity.c's single
 *		encrypt/decrypt-agnostic loop does. The final vector,
 *		once all blocks are processed, XOR-folds (as four 4-byte
 *		words) into the 4-byte MIC.
 *
 *------------------------------------------------------------------*/

import "encoding/binary"

// AESOracle models the external asynchronous AES block-cipher engine,
// §6. EncryptReq must eventually result in exactly one call to confirm,
// with block replaced in place by its ciphertext. Only one request is
// ever outstanding at a time across the whole security engine.
type AESOracle interface {
	EncryptReq(block *[SecurityBlockSize]byte, key *[SecurityKeySize]byte, confirm func())
}

// Security is the encrypt/decrypt state machine shared by TX and RX.
type Security struct {
	oracle AESOracle
	key    *[SecurityKeySize]byte

	active  *Frame
	pending []*Frame // FIFO of frames waiting their turn.

	encrypt bool
	vector  [SecurityBlockSize]byte
	size    int
	offset  int

	onEncryptDone func(*Frame)
	onDecryptDone func(*Frame, bool)
}

// NewSecurity builds the security engine against oracle using key.
// onEncryptDone and onDecryptDone are the TX/RX pipeline confirm hooks
// (nwkTxEncryptConf / nwkRxDecryptConf in the original).
func NewSecurity(oracle AESOracle, key *[SecurityKeySize]byte, onEncryptDone func(*Frame), onDecryptDone func(*Frame, bool)) *Security {
	return &Security{oracle: oracle, key: key, onEncryptDone: onEncryptDone, onDecryptDone: onDecryptDone}
}

// Submit enqueues frame for encryption (encrypt=true) or decryption, per
// nwkSecurityProcess. The caller has already placed frame into the
// matching *_PENDING state.
func (s *Security) Submit(frame *Frame, encrypt bool) {
	if s.active == nil {
		s.start(frame, encrypt)
		return
	}
	s.pending = append(s.pending, frame)
}

func (s *Security) start(frame *Frame, encrypt bool) {
	h := &frame.Header

	binary.LittleEndian.PutUint32(s.vector[0:4], uint32(h.NwkSeq))
	binary.LittleEndian.PutUint32(s.vector[4:8], uint32(h.NwkDstAddr)<<16|uint32(h.NwkDstEndpoint))
	binary.LittleEndian.PutUint32(s.vector[8:12], uint32(h.NwkSrcAddr)<<16|uint32(h.NwkSrcEndpoint))
	binary.LittleEndian.PutUint32(s.vector[12:16], uint32(h.MacDstPANID)<<16|uint32(h.nwkFcfByte()))

	s.size = frame.Size - HeaderSize - SecurityMICSize
	s.offset = 0
	s.encrypt = encrypt
	s.active = frame

	s.requestBlock()
}

func (s *Security) requestBlock() {
	s.oracle.EncryptReq(&s.vector, s.key, s.onBlockConfirm)
}

// onBlockConfirm is SYS_EncryptConf: s.vector has been replaced in place
// with its AES ciphertext (this block's keystream) by the oracle.
func (s *Security) onBlockConfirm() {
	frame := s.active
	payload := frame.Payload()

	block := s.size
	if block > SecurityBlockSize {
		block = SecurityBlockSize
	}

	text := payload[s.offset : s.offset+block]
	for i := 0; i < block; i++ {
		in := text[i]
		out := in ^ s.vector[i]
		text[i] = out
		if s.encrypt {
			s.vector[i] = out
		} else {
			s.vector[i] = in
		}
	}

	s.offset += block
	s.size -= block

	if s.size > 0 {
		s.requestBlock()
		return
	}

	s.finish()
}

func (s *Security) finish() {
	frame := s.active

	var vmic [4]byte
	for i := 0; i < SecurityBlockSize; i++ {
		vmic[i%4] ^= s.vector[i]
	}

	if s.encrypt {
		copy(frame.MIC(), vmic[:])
		if s.onEncryptDone != nil {
			s.onEncryptDone(frame)
		}
	} else {
		ok := vmic == [4]byte(frame.MIC())
		if s.onDecryptDone != nil {
			s.onDecryptDone(frame, ok)
		}
	}

	s.active = nil
	if len(s.pending) > 0 {
		next := s.pending[0]
		s.pending = s.pending[1:]
		encrypt := next.state == secStateEncryptPending
		s.start(next, encrypt)
	}
}

// Busy reports whether the security engine is processing or has work
// queued.
func (s *Security) Busy() bool {
	return s.active != nil || len(s.pending) > 0
}
