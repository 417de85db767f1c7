package worldview

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"liftctl/internal/support/check"
)

// requestBufferCap bounds each typed input channel. The Store never blocks
// on I/O (§4.1), but a momentarily slow Run loop shouldn't stall a sender;
// a handful of in-flight requests is enough slack for this fleet's scale.
const requestBufferCap = 32

// subscriberBufferCap is 1: the Store publishes snapshots, not a delta log
// (§4.2 "idempotent-on-replace, not a delta"), so a subscriber only ever
// needs the latest value.
const subscriberBufferCap = 1

type msgMasterBroadcast struct {
	fromSelf bool
	wv       *WorldView
}

type msgUplinkContainer struct {
	container *ElevatorContainer
}

type msgUplinkAck struct {
	shipped HallMatrix
}

type msgAssignment struct {
	assignment map[uint8]HallMatrix
}

type msgLocalCabinUpdate struct {
	state CabinState
}

type msgHallPress struct {
	floor, dir int
}

type msgRemoveNode struct {
	id uint8
}

type msgUplinkFailed struct{}

type msgReconnectMerge struct {
	remote *WorldView
}

// Store is the single writer of the local WorldView (§4.1, §5). All
// mutation requests arrive over typed, buffered channels; Store.Run is the
// only goroutine that ever touches the working WorldView directly.
type Store struct {
	selfID    uint8
	numFloors int
	log       *slog.Logger

	chMasterBroadcast chan msgMasterBroadcast
	chUplink          chan msgUplinkContainer
	chUplinkAck       chan msgUplinkAck
	chAssignment      chan msgAssignment
	chLocalCabin      chan msgLocalCabinUpdate
	chHallPress       chan msgHallPress
	chRemoveNode      chan msgRemoveNode
	chUplinkFailed    chan msgUplinkFailed
	chReconnect       chan msgReconnectMerge

	snapshot atomic.Pointer[WorldView]

	mu        sync.Mutex
	subs      map[uint64]chan *WorldView
	nextSubID uint64
}

// NewStore returns a Store seeded with a solo WorldView containing only
// selfID, as if this node had just started with no one else on the LAN yet.
func NewStore(selfID uint8, numFloors int, log *slog.Logger) *Store {
	s := &Store{
		selfID:            selfID,
		numFloors:         numFloors,
		log:               log,
		chMasterBroadcast: make(chan msgMasterBroadcast, requestBufferCap),
		chUplink:          make(chan msgUplinkContainer, requestBufferCap),
		chUplinkAck:       make(chan msgUplinkAck, requestBufferCap),
		chAssignment:      make(chan msgAssignment, requestBufferCap),
		chLocalCabin:      make(chan msgLocalCabinUpdate, requestBufferCap),
		chHallPress:       make(chan msgHallPress, requestBufferCap),
		chRemoveNode:      make(chan msgRemoveNode, requestBufferCap),
		chUplinkFailed:    make(chan msgUplinkFailed, requestBufferCap),
		chReconnect:       make(chan msgReconnectMerge, requestBufferCap),
		subs:              make(map[uint64]chan *WorldView),
	}
	s.snapshot.Store(New(selfID, numFloors))
	return s
}

// SeedCabRequests installs the recovered cab_requests backup before the
// Store's Run loop starts (§4.6 "Cab-call survival across node reboots").
func (s *Store) SeedCabRequests(cabRequests []bool) {
	wv := s.snapshot.Load().Clone()
	if self := wv.Self(s.selfID); self != nil {
		self.CabRequests = append([]bool(nil), cabRequests...)
	}
	s.snapshot.Store(wv)
}

// View returns the latest published WorldView snapshot. Safe for concurrent
// callers; never blocks.
func (s *Store) View() *WorldView {
	return s.snapshot.Load()
}

// IsMaster is the Store's derived "is-this-node-the-master?" convenience
// (§4.1 "Output").
func (s *Store) IsMaster() bool {
	return s.View().IsMaster(s.selfID)
}

func (s *Store) SelfID() uint8 { return s.selfID }

// Subscribe registers an observer and returns the current snapshot plus a
// channel that always holds (at most) the latest WorldView — mirroring the
// teacher's broker.go subscribe-with-snapshot shape, simplified to a single
// slot per subscriber since there is no replay log to catch up on.
func (s *Store) Subscribe() (*WorldView, <-chan *WorldView, func()) {
	ch := make(chan *WorldView, subscriberBufferCap)
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
	return s.View(), ch, cancel
}

func (s *Store) publish(wv *WorldView) {
	snap := wv.Clone()
	s.snapshot.Store(snap)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale value and replace it — subscribers only ever
			// want the latest snapshot (§4.2 "idempotent-on-replace").
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// --- Typed mutation requests (§4.1 "Inputs and merge rules") ---

func (s *Store) SubmitMasterBroadcast(fromSelf bool, wv *WorldView) {
	s.chMasterBroadcast <- msgMasterBroadcast{fromSelf: fromSelf, wv: wv}
}

func (s *Store) SubmitUplink(container *ElevatorContainer) {
	s.chUplink <- msgUplinkContainer{container: container}
}

func (s *Store) SubmitUplinkAck(shipped HallMatrix) {
	s.chUplinkAck <- msgUplinkAck{shipped: shipped}
}

func (s *Store) SubmitAssignment(assignment map[uint8]HallMatrix) {
	s.chAssignment <- msgAssignment{assignment: assignment}
}

func (s *Store) SubmitLocalCabinUpdate(state CabinState) {
	s.chLocalCabin <- msgLocalCabinUpdate{state: state}
}

func (s *Store) SubmitHallPress(floor, dir int) {
	s.chHallPress <- msgHallPress{floor: floor, dir: dir}
}

func (s *Store) SubmitRemoveNode(id uint8) {
	s.chRemoveNode <- msgRemoveNode{id: id}
}

func (s *Store) SubmitUplinkFailed() {
	s.chUplinkFailed <- msgUplinkFailed{}
}

func (s *Store) SubmitReconnectMerge(remote *WorldView) {
	s.chReconnect <- msgReconnectMerge{remote: remote}
}

// Run is the Store's single-threaded merge loop (§4.1, §5). It applies
// exactly one message per iteration, then publishes — readers never observe
// a partially-merged WorldView.
func (s *Store) Run(ctx context.Context) error {
	check.Assert(s.log != nil, "Store.Run: log must not be nil")
	working := s.snapshot.Load().Clone()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case m := <-s.chMasterBroadcast:
			working = ApplyMasterBroadcast(working, s.selfID, m.wv, m.fromSelf)
			s.publish(working)

		case m := <-s.chUplink:
			if m.container == nil {
				continue
			}
			ApplyUplink(working, m.container)
			s.publish(working)

		case m := <-s.chUplinkAck:
			ApplyUplinkAck(working, s.selfID, m.shipped)
			s.publish(working)

		case m := <-s.chAssignment:
			ApplyAssignment(working, m.assignment)
			s.publish(working)

		case m := <-s.chLocalCabin:
			ApplyLocalCabinUpdate(working, s.selfID, s.numFloors, m.state)
			s.publish(working)

		case m := <-s.chHallPress:
			RecordHallPress(working, s.selfID, s.numFloors, m.floor, m.dir)
			s.publish(working)

		case m := <-s.chRemoveNode:
			RemoveNode(working, m.id)
			s.publish(working)

		case <-s.chUplinkFailed:
			s.log.Warn("uplink to master failed, collapsing to solo master")
			working = CollapseToSoloMaster(working, s.selfID)
			s.publish(working)

		case m := <-s.chReconnect:
			working = ReconnectMerge(working, s.selfID, m.remote)
			s.publish(working)
		}
	}
}
