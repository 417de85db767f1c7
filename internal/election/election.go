// Package election holds the small decision rules for master election and
// failover (§4.6) that are not already expressed as WorldView merge rules
// in internal/worldview. Master identity itself falls straight out of the
// merge rule in §4.1 ("smallest id wins"); what's left here is recognizing
// the one case that needs a different merge than a plain replace.
package election

import "liftctl/internal/worldview"

// ReconnectDetector distinguishes an isolated node rejoining the fleet
// from a brand-new node's very first received broadcast. Both situations
// present the same local shape — worldview.New (a fresh Store) and
// worldview.CollapseToSoloMaster (an isolated node) both leave exactly one
// container, ourselves, as master — so the shape alone can't tell them
// apart. A ReconnectDetector remembers whether this node has ever actually
// been part of a multi-node fleet; only then does reappearing in that
// solo shape mean "isolated and now reconnecting" rather than "still
// joining for the first time."
type ReconnectDetector struct {
	hasJoined bool
}

// Observe records, from the local WorldView as it stood before handling
// the latest received broadcast, whether this node has ever been part of
// a fleet larger than itself. Call this once per received broadcast,
// before DetectReconnect.
func (r *ReconnectDetector) Observe(local *worldview.WorldView, selfID uint8) {
	if local == nil {
		return
	}
	if len(local.Containers) > 1 || local.MasterID != selfID {
		r.hasJoined = true
	}
}

// DetectReconnect reports whether a just-received broadcast should be
// folded in via worldview.ReconnectMerge rather than the ordinary
// ApplyMasterBroadcast replace (§4.6 "Reconnect after offline").
//
// A node that lost contact with the fleet collapses to a solo WorldView of
// itself (worldview.CollapseToSoloMaster leaves exactly that shape: one
// container, and it is the master). Hearing a broadcast from a different
// master while in that shape means we were isolated and the fleet is now
// reachable again — our own pending hall_requests need to be OR-merged
// back in, not discarded by a plain replace. That is only true if we were
// ever part of a fleet to begin with; a fresh node that has never seen
// anyone else takes the ordinary join path instead (see hasJoined).
func (r *ReconnectDetector) DetectReconnect(local *worldview.WorldView, selfID uint8, received *worldview.WorldView) bool {
	if !r.hasJoined || local == nil || received == nil {
		return false
	}
	wasIsolated := local.MasterID == selfID && len(local.Containers) == 1
	return wasIsolated && received.MasterID != selfID
}
