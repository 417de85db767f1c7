package worldview

import (
	"reflect"
	"testing"
)

func TestOrMergeCommutativeAndAssociative(t *testing.T) {
	a := HallMatrix{{true, false}, {false, false}}
	b := HallMatrix{{false, true}, {false, false}, {true, false}}
	c := HallMatrix{{}, {true, false}}

	if !reflect.DeepEqual(OrMerge(a, b), OrMerge(b, a)) {
		t.Fatalf("OrMerge not commutative")
	}
	left := OrMerge(OrMerge(a, b), c)
	right := OrMerge(a, OrMerge(b, c))
	if !reflect.DeepEqual(left, right) {
		t.Fatalf("OrMerge not associative: %v vs %v", left, right)
	}
}

func TestOrMergeLongerVectorWins(t *testing.T) {
	short := HallMatrix{{true, false}}
	long := HallMatrix{{false, false}, {false, true}, {true, true}}
	got := OrMerge(short, long)
	if len(got) != 3 {
		t.Fatalf("expected length 3, got %d", len(got))
	}
	if !got[0][HallUp] || !got[1][HallDown] || !got[2][HallUp] || !got[2][HallDown] {
		t.Fatalf("unexpected merge result: %v", got)
	}
}

func TestApplyMasterBroadcastPreservesOwnVolatileFields(t *testing.T) {
	local := New(2, 4)
	local.Containers[2].Direction = DirUp
	local.Containers[2].Behaviour = Moving
	local.Containers[2].LastFloorSensor = 1
	local.Containers[2].CabRequests = []bool{false, true, false, false}

	received := New(1, 4)
	received.Containers[2] = NewElevatorContainer(2, 4) // master's stale view of us

	next := ApplyMasterBroadcast(local, 2, received, false)

	if next.MasterID != 1 {
		t.Fatalf("expected master id 1, got %d", next.MasterID)
	}
	self := next.Self(2)
	if self.Direction != DirUp || self.Behaviour != Moving || self.LastFloorSensor != 1 {
		t.Fatalf("our volatile fields were not preserved: %+v", self)
	}
	if !self.CabRequests[1] {
		t.Fatalf("our cab requests were not preserved: %v", self.CabRequests)
	}
}

func TestApplyMasterBroadcastRejectsLargerMaster(t *testing.T) {
	local := New(1, 4) // master_id already 1
	received := New(5, 4)
	next := ApplyMasterBroadcast(local, 1, received, false)
	if next != local {
		t.Fatalf("a broadcast from a larger master id must not replace local view")
	}
}

func TestApplyMasterBroadcastInsertsAbsentSelf(t *testing.T) {
	local := New(2, 4)
	local.Containers[2].CabRequests[3] = true

	received := New(1, 4) // doesn't know about node 2 at all
	next := ApplyMasterBroadcast(local, 2, received, false)

	self := next.Self(2)
	if self == nil {
		t.Fatalf("expected our container to be inserted")
	}
	if !self.CabRequests[3] {
		t.Fatalf("inserted container lost our cab requests: %v", self.CabRequests)
	}
}

func TestApplyUplinkClearsHallOnArrival(t *testing.T) {
	local := New(1, 4)
	local.HallRequests[2][HallUp] = true

	from := NewElevatorContainer(2, 4)
	from.LastFloorSensor = 2
	from.Direction = DirUp
	from.Behaviour = DoorOpen

	ApplyUplink(local, from)

	if local.HallRequests[2][HallUp] {
		t.Fatalf("expected hall-up at floor 2 to be cleared by master merge")
	}
	if local.HallRequests[2][HallDown] {
		t.Fatalf("hall-down at floor 2 should be untouched")
	}
}

func TestApplyUplinkMergesUnsentIntoHallRequests(t *testing.T) {
	local := New(1, 4)
	from := NewElevatorContainer(2, 4)
	from.UnsentHallRequests[3][HallDown] = true

	ApplyUplink(local, from)

	if !local.HallRequests[3][HallDown] {
		t.Fatalf("expected hall-down at floor 3 to be set from uplink")
	}
	if _, ok := local.CabRequestsBackup[2]; !ok {
		t.Fatalf("expected cab_requests_backup[2] to be populated")
	}
}

func TestApplyUplinkAckClearsOnlyShippedBits(t *testing.T) {
	local := New(1, 4)
	self := local.Containers[1]
	self.UnsentHallRequests[0][HallUp] = true
	self.UnsentHallRequests[1][HallDown] = true

	shipped := HallMatrix{{true, false}, {}, {}, {}}
	ApplyUplinkAck(local, 1, shipped)

	if self.UnsentHallRequests[0][HallUp] {
		t.Fatalf("shipped bit should have been cleared")
	}
	if !self.UnsentHallRequests[1][HallDown] {
		t.Fatalf("unshipped bit should survive")
	}
}

func TestCollapseToSoloMaster(t *testing.T) {
	local := New(1, 4)
	local.Containers[2] = NewElevatorContainer(2, 4)
	local.Containers[1].CabRequests[2] = true

	next := CollapseToSoloMaster(local, 1)

	if next.MasterID != 1 {
		t.Fatalf("expected self to become master")
	}
	if len(next.Containers) != 1 {
		t.Fatalf("expected solo fleet, got %d containers", len(next.Containers))
	}
	if !next.Containers[1].CabRequests[2] {
		t.Fatalf("expected our own cab requests to survive the collapse")
	}
}

func TestReconnectMergeUnionsHallRequests(t *testing.T) {
	local := New(2, 4)
	local.MasterID = 2
	local.HallRequests[0][HallUp] = true

	remote := New(1, 4)
	remote.HallRequests[3][HallDown] = true

	merged := ReconnectMerge(local, 2, remote)

	if !merged.HallRequests[0][HallUp] || !merged.HallRequests[3][HallDown] {
		t.Fatalf("expected union of hall requests, got %v", merged.HallRequests)
	}
	if merged.MasterID != 1 {
		t.Fatalf("smaller remote master id should win, got %d", merged.MasterID)
	}
}

func TestSeedCabRequestsFromBackup(t *testing.T) {
	heard := New(1, 4)
	heard.CabRequestsBackup[7] = []bool{false, false, true, true}

	got := SeedCabRequestsFromBackup(7, 4, heard)
	want := []bool{false, false, true, true}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}

	gotMissing := SeedCabRequestsFromBackup(99, 4, heard)
	if !reflect.DeepEqual(gotMissing, []bool{false, false, false, false}) {
		t.Fatalf("expected zeroed cab requests for unknown id, got %v", gotMissing)
	}
}
