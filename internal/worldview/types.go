// Package worldview holds the replicated fleet state (§3) and the
// single-writer Store that applies the merge rules of §4.1 and §4.6.
package worldview

// ErrorID is the sentinel id of invariant 1 (§3); SmallestID returns it for
// a WorldView with no containers.
const ErrorID uint8 = 255

// BetweenFloors is the sentinel last-floor-sensor value for a cabin that has
// not yet settled at a floor (power-on between floors, §4.5).
const BetweenFloors int16 = -1

// Hall call column indices, matching the oracle JSON contract's
// [[bool,bool], ...] matrices (§6).
const (
	HallUp = iota
	HallDown
	hallDirs = 2
)

type Direction int8

const (
	DirDown Direction = -1
	DirStop Direction = 0
	DirUp   Direction = 1
)

func (d Direction) String() string {
	switch d {
	case DirUp:
		return "up"
	case DirDown:
		return "down"
	default:
		return "stop"
	}
}

type Behaviour uint8

const (
	Idle Behaviour = iota
	Moving
	DoorOpen
	TravelError
	ObstructionError
)

func (b Behaviour) String() string {
	switch b {
	case Idle:
		return "idle"
	case Moving:
		return "moving"
	case DoorOpen:
		return "doorOpen"
	case TravelError:
		return "travelError"
	case ObstructionError:
		return "obstructionError"
	default:
		return "unknown"
	}
}

// Errored reports whether the cabin is excluded from assignment (§4.4).
func (b Behaviour) Errored() bool {
	return b == TravelError || b == ObstructionError
}

// HallMatrix is a [floor][HallUp/HallDown] boolean matrix — either a fleet's
// consolidated hall_requests, a cabin's unsent_hall_requests, or a cabin's
// assigned tasks (§3).
type HallMatrix [][2]bool

// NewHallMatrix returns a zeroed matrix of the given floor count.
func NewHallMatrix(numFloors int) HallMatrix {
	return make(HallMatrix, numFloors)
}

// Clone returns an independent copy.
func (m HallMatrix) Clone() HallMatrix {
	if m == nil {
		return nil
	}
	out := make(HallMatrix, len(m))
	copy(out, m)
	return out
}

// OrMerge returns the elementwise OR of a and b (commutative, associative,
// §5, §8). The longer vector wins; the shorter is treated as false-padded.
func OrMerge(a, b HallMatrix) HallMatrix {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make(HallMatrix, n)
	for i := 0; i < n; i++ {
		var av, bv [2]bool
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		out[i] = [2]bool{av[0] || bv[0], av[1] || bv[1]}
	}
	return out
}

// AndNot clears, in m, every bit set in shipped — used to drop exactly the
// unsent_hall_requests bits a just-acknowledged uplink shipment covered.
func (m HallMatrix) AndNot(shipped HallMatrix) {
	for i := range m {
		if i >= len(shipped) {
			continue
		}
		m[i][HallUp] = m[i][HallUp] && !shipped[i][HallUp]
		m[i][HallDown] = m[i][HallDown] && !shipped[i][HallDown]
	}
}

func (m HallMatrix) Any() bool {
	for _, f := range m {
		if f[HallUp] || f[HallDown] {
			return true
		}
	}
	return false
}

// ElevatorContainer is one cabin's slice of the WorldView (§3).
type ElevatorContainer struct {
	ID              uint8
	NumFloors       int
	LastFloorSensor int16
	Direction       Direction
	Behaviour       Behaviour
	Obstruction     bool

	// CabRequests is authoritative on the owning node.
	CabRequests []bool
	// UnsentHallRequests is owned by the owning node; cleared only by that
	// node once a master acks the shipment carrying it.
	UnsentHallRequests HallMatrix
	// Tasks is written only by the master's Assignment Engine (§4.4).
	Tasks HallMatrix
}

// NewElevatorContainer returns a freshly-joined cabin with no calls pending.
func NewElevatorContainer(id uint8, numFloors int) *ElevatorContainer {
	return &ElevatorContainer{
		ID:                 id,
		NumFloors:          numFloors,
		LastFloorSensor:    BetweenFloors,
		Direction:          DirStop,
		Behaviour:          Idle,
		CabRequests:        make([]bool, numFloors),
		UnsentHallRequests: NewHallMatrix(numFloors),
		Tasks:              NewHallMatrix(numFloors),
	}
}

func (c *ElevatorContainer) Clone() *ElevatorContainer {
	if c == nil {
		return nil
	}
	out := *c
	out.CabRequests = append([]bool(nil), c.CabRequests...)
	out.UnsentHallRequests = c.UnsentHallRequests.Clone()
	out.Tasks = c.Tasks.Clone()
	return &out
}

// WorldView is the replicated fleet state (§3).
type WorldView struct {
	MasterID          uint8
	Containers        map[uint8]*ElevatorContainer
	HallRequests      HallMatrix
	CabRequestsBackup map[uint8][]bool
}

// New returns an empty WorldView with self as the sole, master cabin.
func New(selfID uint8, numFloors int) *WorldView {
	wv := &WorldView{
		MasterID:          selfID,
		Containers:        make(map[uint8]*ElevatorContainer),
		HallRequests:      NewHallMatrix(numFloors),
		CabRequestsBackup: make(map[uint8][]bool),
	}
	wv.Containers[selfID] = NewElevatorContainer(selfID, numFloors)
	return wv
}

// Clone performs a full deep copy, since a WorldView is published to
// observers as an immutable snapshot (§4.1 "Output").
func (wv *WorldView) Clone() *WorldView {
	if wv == nil {
		return nil
	}
	out := &WorldView{
		MasterID:          wv.MasterID,
		Containers:        make(map[uint8]*ElevatorContainer, len(wv.Containers)),
		HallRequests:      wv.HallRequests.Clone(),
		CabRequestsBackup: make(map[uint8][]bool, len(wv.CabRequestsBackup)),
	}
	for id, c := range wv.Containers {
		out.Containers[id] = c.Clone()
	}
	for id, cr := range wv.CabRequestsBackup {
		out.CabRequestsBackup[id] = append([]bool(nil), cr...)
	}
	return out
}

// IsMaster reports whether selfID is this view's master (§4.1 "Output").
func (wv *WorldView) IsMaster(selfID uint8) bool {
	return wv.MasterID == selfID
}

// Self returns this node's own container, or nil if absent.
func (wv *WorldView) Self(selfID uint8) *ElevatorContainer {
	return wv.Containers[selfID]
}

// SortedIDs returns container ids in ascending order — the order used to
// pick a master (§4.6) and to iterate deterministically for tests.
func (wv *WorldView) SortedIDs() []uint8 {
	ids := make([]uint8, 0, len(wv.Containers))
	for id := range wv.Containers {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// SmallestID returns the smallest id present, or ErrorID if empty (§4.6).
func (wv *WorldView) SmallestID() uint8 {
	best := ErrorID
	for id := range wv.Containers {
		if id < best {
			best = id
		}
	}
	return best
}
