package nwk

/*------------------------------------------------------------------
 *
 * Purpose:	Routing (optional) — a next-hop table with score,
 *		discovery-by-passive-learning, and route-error
 *		propagation and repair, §4.9.
 *
 * Description:	Scores are lower-is-better: a successful forwarding
 *		use decrements (improves) the score, a failure bumps
 *		(worsens) it; saturating the score purges the entry and
 *		emits a ROUTE_ERROR back toward the frame's origin,
 *		mirroring digipeater.go's per from/to hop-count
 *		bookkeeping but keyed on next-hop quality instead of a
 *		static channel matrix.
 *
 *------------------------------------------------------------------*/

const (
	routeScoreInitial  = 3
	routeScoreBest     = 0
	routeScoreWorst    = 15 // saturation purges the entry.
)

// RouteRecord is one next-hop table entry, §3.
type RouteRecord struct {
	DstAddr    uint16
	NextHopAddr uint16
	Score      int
	LQI        uint8

	used bool
}

// Router holds the fixed-size next-hop table.
type Router struct {
	records []RouteRecord
	// sendRouteError emits a ROUTE_ERROR command toward origin for
	// unreachableAddr; wired to the TX pipeline by the dispatcher.
	sendRouteError func(origin, unreachableAddr uint16)
}

// NewRouter builds a router with a table of the given size.
func NewRouter(size int, sendRouteError func(origin, unreachableAddr uint16)) *Router {
	return &Router{records: make([]RouteRecord, size), sendRouteError: sendRouteError}
}

func (r *Router) find(dst uint16) *RouteRecord {
	for i := range r.records {
		if r.records[i].used && r.records[i].DstAddr == dst {
			return &r.records[i]
		}
	}
	return nil
}

// NextHop implements §4.9's nextHop: broadcast destinations and misses
// both resolve to broadcast, which triggers passive-learning discovery
// as relayed frames are observed.
func (r *Router) NextHop(dst uint16) uint16 {
	if dst == BroadcastAddr {
		return BroadcastAddr
	}
	if rec := r.find(dst); rec != nil {
		return rec.NextHopAddr
	}
	return BroadcastAddr
}

// ObserveReceived records (nwkSrcAddr -> macSrcAddr, lqi) on any frame we
// received directly at the MAC layer, improving an existing route or
// learning a new one with a default score, §4.9.
func (r *Router) ObserveReceived(nwkSrcAddr, macSrcAddr uint16, lqi uint8) {
	if rec := r.find(nwkSrcAddr); rec != nil {
		rec.NextHopAddr = macSrcAddr
		rec.LQI = lqi
		r.improve(rec)
		return
	}

	for i := range r.records {
		if !r.records[i].used {
			r.records[i] = RouteRecord{DstAddr: nwkSrcAddr, NextHopAddr: macSrcAddr, Score: routeScoreInitial, LQI: lqi, used: true}
			return
		}
	}
	// Table full: passive learning simply fails to record this source;
	// nextHop keeps returning broadcast for it, which self-heals once a
	// slot frees up.
}

func (r *Router) improve(rec *RouteRecord) {
	if rec.Score > routeScoreBest {
		rec.Score--
	}
}

func (r *Router) worsen(rec *RouteRecord, origin uint16) {
	rec.Score++
	if rec.Score < routeScoreWorst {
		return
	}
	dst := rec.DstAddr
	rec.used = false
	if r.sendRouteError != nil {
		r.sendRouteError(origin, dst)
	}
}

// FrameSent reports the outcome of a forwarding attempt for frame's
// destination, §4.9: success improves, NO_ACK/PHY_CHANNEL_ACCESS_FAILURE
// worsens and may purge with a ROUTE_ERROR toward origin.
func (r *Router) FrameSent(nwkSrcAddr, nwkDstAddr uint16, status Status) {
	rec := r.find(nwkDstAddr)
	if rec == nil {
		return
	}
	switch status {
	case StatusSuccess:
		r.improve(rec)
	case StatusNoAck, StatusPHYChannelAccessFailure:
		r.worsen(rec, nwkSrcAddr)
	}
}

// Remove purges any route to dst, used by duplicate rejection to prune a
// stale route (§4.7) and by ROUTE_ERROR handling (§4.9).
func (r *Router) Remove(dst uint16) {
	if rec := r.find(dst); rec != nil {
		rec.used = false
	}
}
