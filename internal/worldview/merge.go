package worldview

// This file implements the merge rules of §4.1 and the reconnect/failover
// rules of §4.6 as pure functions over a WorldView the caller already owns
// exclusively (the Store, §5 "single writer"). Every rule here is total:
// it never panics on malformed input, it only adjusts what it understands.

// ApplyMasterBroadcast implements the first bullet of §4.1: a WorldView
// received over UDP from a node claiming to be master replaces the local
// view, except our own container's volatile fields survive the replace.
func ApplyMasterBroadcast(local *WorldView, selfID uint8, received *WorldView, fromSelf bool) *WorldView {
	if received == nil || fromSelf {
		return local
	}
	if received.MasterID > local.MasterID {
		return local
	}

	var ourSelf *ElevatorContainer
	if local != nil {
		ourSelf = local.Self(selfID)
	}

	next := received.Clone()
	if ourSelf != nil {
		if theirSelf, ok := next.Containers[selfID]; ok {
			theirSelf.Direction = ourSelf.Direction
			theirSelf.Behaviour = ourSelf.Behaviour
			theirSelf.Obstruction = ourSelf.Obstruction
			theirSelf.LastFloorSensor = ourSelf.LastFloorSensor
			theirSelf.UnsentHallRequests = ourSelf.UnsentHallRequests.Clone()
			theirSelf.CabRequests = append([]bool(nil), ourSelf.CabRequests...)
		} else {
			next.Containers[selfID] = ourSelf.Clone()
		}
	}
	return next
}

// ApplyUplink implements the master-side uplink merge (§4.1 second bullet).
func ApplyUplink(local *WorldView, from *ElevatorContainer) {
	existing, ok := local.Containers[from.ID]
	if !ok {
		existing = NewElevatorContainer(from.ID, from.NumFloors)
		local.Containers[from.ID] = existing
	}

	local.HallRequests = OrMerge(local.HallRequests, from.UnsentHallRequests)

	justArrived := from.Behaviour == DoorOpen && from.Direction != DirStop &&
		from.LastFloorSensor >= 0 && int(from.LastFloorSensor) < len(local.HallRequests)
	if justArrived {
		f := int(from.LastFloorSensor)
		if from.Direction == DirUp {
			local.HallRequests[f][HallUp] = false
		} else if from.Direction == DirDown {
			local.HallRequests[f][HallDown] = false
		}
	}

	existing.NumFloors = from.NumFloors
	existing.LastFloorSensor = from.LastFloorSensor
	existing.Direction = from.Direction
	existing.Behaviour = from.Behaviour
	existing.Obstruction = from.Obstruction
	existing.CabRequests = append([]bool(nil), from.CabRequests...)
	existing.UnsentHallRequests = from.UnsentHallRequests.Clone()

	local.CabRequestsBackup[from.ID] = append([]bool(nil), from.CabRequests...)
}

// ApplyUplinkAck implements the slave-side third bullet: clear exactly the
// bits the just-acknowledged shipment carried.
func ApplyUplinkAck(local *WorldView, selfID uint8, shipped HallMatrix) {
	self := local.Self(selfID)
	if self == nil {
		return
	}
	self.UnsentHallRequests.AndNot(shipped)
}

// ApplyAssignment implements the fourth bullet: overwrite each named
// container's tasks with the engine's solved matrix.
func ApplyAssignment(local *WorldView, assignment map[uint8]HallMatrix) {
	for id, m := range assignment {
		if c, ok := local.Containers[id]; ok {
			c.Tasks = m.Clone()
		}
	}
}

// CabinState is the local hardware-facing state the Cabin FSM reports in
// (§4.1 fifth bullet, "Local cabin state update").
type CabinState struct {
	Direction       Direction
	Behaviour       Behaviour
	Obstruction     bool
	LastFloorSensor int16
	CabRequests     []bool
}

// ApplyLocalCabinUpdate overwrites our own container's volatile fields.
func ApplyLocalCabinUpdate(local *WorldView, selfID uint8, numFloors int, s CabinState) {
	self, ok := local.Containers[selfID]
	if !ok {
		self = NewElevatorContainer(selfID, numFloors)
		local.Containers[selfID] = self
	}
	self.Direction = s.Direction
	self.Behaviour = s.Behaviour
	self.Obstruction = s.Obstruction
	self.LastFloorSensor = s.LastFloorSensor
	self.CabRequests = append([]bool(nil), s.CabRequests...)
}

// RecordHallPress appends a hall button press to our own unsent_hall_requests
// (§4.5 "hall presses are appended to unsent_hall_requests").
func RecordHallPress(local *WorldView, selfID uint8, numFloors, floor, dir int) {
	self, ok := local.Containers[selfID]
	if !ok {
		self = NewElevatorContainer(selfID, numFloors)
		local.Containers[selfID] = self
	}
	if floor < 0 {
		return
	}
	for len(self.UnsentHallRequests) <= floor {
		self.UnsentHallRequests = append(self.UnsentHallRequests, [2]bool{})
	}
	self.UnsentHallRequests[floor][dir] = true
}

// RemoveNode implements the sixth bullet: drop a container whose node the
// master's janitor found silent (§4.3). Its cab_requests_backup entry is
// kept so the node can recover its cab calls when it rejoins (§4.6).
func RemoveNode(local *WorldView, id uint8) {
	delete(local.Containers, id)
}

// CollapseToSoloMaster implements the seventh bullet: an uplink failure (or,
// via the watchdog, a dead master) makes this node a one-cabin fleet of
// itself (§4.6 "Master death").
func CollapseToSoloMaster(local *WorldView, selfID uint8) *WorldView {
	self := local.Self(selfID)
	if self == nil {
		self = NewElevatorContainer(selfID, len(local.HallRequests))
	} else {
		self = self.Clone()
	}
	next := &WorldView{
		MasterID:          selfID,
		Containers:        map[uint8]*ElevatorContainer{selfID: self},
		HallRequests:      local.HallRequests.Clone(),
		CabRequestsBackup: map[uint8][]bool{selfID: append([]bool(nil), self.CabRequests...)},
	}
	return next
}

// ReconnectMerge implements §4.6 "Reconnect after offline": a node that was
// isolated hears a live WorldView again and must fold its pending local
// state back into the fleet instead of discarding it.
func ReconnectMerge(local *WorldView, selfID uint8, remote *WorldView) *WorldView {
	merged := remote.Clone()
	merged.HallRequests = OrMerge(local.HallRequests, remote.HallRequests)

	if local.MasterID < remote.MasterID || (local.MasterID == selfID && selfID < remote.MasterID) {
		// We should be master: keep our elevator set, folding in any
		// cabins the remote side knows about that we don't.
		merged = local.Clone()
		merged.HallRequests = OrMerge(local.HallRequests, remote.HallRequests)
		merged.MasterID = selfID
		for id, c := range remote.Containers {
			if _, ok := merged.Containers[id]; !ok {
				merged.Containers[id] = c.Clone()
			}
		}
		for id, cr := range remote.CabRequestsBackup {
			if _, ok := merged.CabRequestsBackup[id]; !ok {
				merged.CabRequestsBackup[id] = append([]bool(nil), cr...)
			}
		}
	}
	return merged
}

// SeedCabRequestsFromBackup implements §4.6 "Cab-call survival across node
// reboots": a starting node that hears an existing WorldView looks itself up
// in the master's cab_requests_backup and relights its own cab buttons.
func SeedCabRequestsFromBackup(selfID uint8, numFloors int, heard *WorldView) []bool {
	if heard == nil {
		return make([]bool, numFloors)
	}
	backup, ok := heard.CabRequestsBackup[selfID]
	if !ok {
		return make([]bool, numFloors)
	}
	out := make([]bool, numFloors)
	copy(out, backup)
	return out
}
