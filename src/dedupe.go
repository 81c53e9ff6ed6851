package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Duplicate Rejection — a bounded source/seq table with
 *		TTL ageing on a 20 ms tick, §4.7.
 *
 * Description:	For every incoming frame header, look for a matching
 *		source slot. A strictly newer sequence number (signed
 *		8-bit difference) refreshes the slot and accepts; an
 *		equal or older one rejects, and if the frame was
 *		addressed to us at the MAC layer also prunes the
 *		corresponding route (it is almost certainly stale).
 *
 *		Table full with no existing-source match rejects the new
 *		frame. This is the pessimistic Open Question (1) of
 *		spec.md §9: it is safe (protects against suppression
 *		failing open) but can starve a legitimate new sender
 *		under sustained table pressure. Preserved as specified.
 *
 *------------------------------------------------------------------*/

const dupRejectionTimerIntervalMS = 20

type dedupeRecord struct {
	src uint16
	seq uint8
	ttl uint16 // ticks remaining; 0 means the slot is free.
}

// Dedupe is the fixed-size duplicate-rejection table.
type Dedupe struct {
	records      []dedupeRecord
	ttl          uint16 // computed ceil(DUP_TTL_ms/20ms)+1, in ticks.
	timer        *Timer
	tsvc         *TimerService
	onStaleRoute func(nwkDstAddr uint16)
}

// NewDedupe builds a table of size slots with the given suppression
// window, registering its 20 ms ageing timer with ts. onStaleRoute, if
// non-nil, is invoked per §4.7 step 1 when a rejected duplicate was
// addressed to us at the MAC layer.
func NewDedupe(ts *TimerService, size int, dupTTL uint16, onStaleRoute func(uint16)) *Dedupe {
	d := &Dedupe{
		records:      make([]dedupeRecord, size),
		ttl:          uint16(ceilDiv(int(dupTTL), dupRejectionTimerIntervalMS) + 1),
		onStaleRoute: onStaleRoute,
	}
	d.timer = ts.New(dupRejectionTimerIntervalMS, Interval, d.age)
	d.tsvc = ts
	return d
}

// age decrements every populated slot's ttl once per 20 ms tick and
// self-reschedules while any slot remains populated, §4.7.
func (d *Dedupe) age() {
	restart := false
	for i := range d.records {
		if d.records[i].ttl > 0 {
			d.records[i].ttl--
			if d.records[i].ttl > 0 {
				restart = true
			}
		}
	}
	if restart {
		d.tsvc.Start(d.timer)
	}
}

// Check applies the duplicate-rejection algorithm to an inbound frame
// header addressed-to-self flag (macDstSelf) and reports whether the
// frame is a duplicate (reject) or should be accepted.
func (d *Dedupe) Check(h *Header, macDstSelf bool) (reject bool) {
	free := -1
	for i := range d.records {
		r := &d.records[i]
		if r.ttl == 0 {
			if free < 0 {
				free = i
			}
			continue
		}
		if r.src != h.NwkSrcAddr {
			continue
		}
		diff := int8(h.NwkSeq) - int8(r.seq)
		if diff > 0 {
			r.seq = h.NwkSeq
			r.ttl = d.ttl
			return false
		}
		if macDstSelf && d.onStaleRoute != nil {
			d.onStaleRoute(h.NwkDstAddr)
		}
		return true
	}

	if free < 0 {
		return true
	}

	d.records[free] = dedupeRecord{src: h.NwkSrcAddr, seq: h.NwkSeq, ttl: d.ttl}
	d.tsvc.Start(d.timer)
	return false
}
