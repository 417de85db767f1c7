package election

import (
	"testing"

	"liftctl/internal/worldview"
)

func TestDetectReconnectWhenIsolated(t *testing.T) {
	local := worldview.New(2, 4) // collapsed solo: master_id == selfID, one container
	remote := worldview.New(1, 4)

	var r ReconnectDetector
	r.hasJoined = true // this node was part of a multi-node fleet before collapsing solo

	if !r.DetectReconnect(local, 2, remote) {
		t.Fatalf("expected reconnect to be detected")
	}
}

func TestDetectReconnectNotIsolated(t *testing.T) {
	local := worldview.New(1, 4)
	local.Containers[2] = worldview.NewElevatorContainer(2, 4)
	remote := worldview.New(1, 4)

	var r ReconnectDetector
	r.Observe(local, 1)
	if r.DetectReconnect(local, 1, remote) {
		t.Fatalf("did not expect reconnect: local already knows about other nodes")
	}
}

func TestDetectReconnectSameMasterIsNotReconnect(t *testing.T) {
	local := worldview.New(1, 4)
	remote := worldview.New(1, 4)

	var r ReconnectDetector
	r.hasJoined = true
	if r.DetectReconnect(local, 1, remote) {
		t.Fatalf("broadcast from the master we already are should not be a reconnect")
	}
}

// TestDetectReconnectFreshNodeNeverJoinedIsNotReconnect is the regression
// case the shape-only check missed: a brand-new node's Store
// (worldview.New) has exactly the same shape as a node that collapsed
// solo after isolation (worldview.CollapseToSoloMaster) — one container,
// master_id == selfID. Without tracking whether this node ever actually
// saw a multi-node fleet, a fresh node's very first received broadcast
// from a larger-id master would incorrectly take the reconnect-merge path
// instead of the ordinary join path.
func TestDetectReconnectFreshNodeNeverJoinedIsNotReconnect(t *testing.T) {
	local := worldview.New(2, 4) // a brand-new node, never seen anyone else
	remote := worldview.New(1, 4)

	var r ReconnectDetector
	r.Observe(local, 2) // local has always looked like this; hasJoined stays false

	if r.DetectReconnect(local, 2, remote) {
		t.Fatalf("a fresh node's first broadcast must not be treated as a reconnect")
	}
}

// TestReconnectDetectorObserveLatchesOnMultiNodeView confirms Observe
// flips hasJoined permanently once the local view shows more than
// ourselves, and that a later collapse back to solo is then correctly
// read as isolation rather than a fresh join.
func TestReconnectDetectorObserveLatchesOnMultiNodeView(t *testing.T) {
	var r ReconnectDetector

	joined := worldview.New(2, 4)
	joined.Containers[1] = worldview.NewElevatorContainer(1, 4)
	joined.MasterID = 1
	r.Observe(joined, 2)
	if !r.hasJoined {
		t.Fatalf("expected hasJoined to latch after observing a multi-node view")
	}

	collapsed := worldview.CollapseToSoloMaster(joined, 2)
	remote := worldview.New(1, 4)
	if !r.DetectReconnect(collapsed, 2, remote) {
		t.Fatalf("expected reconnect to be detected once this node has joined before")
	}
}
