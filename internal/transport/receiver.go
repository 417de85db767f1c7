package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"liftctl/internal/worldview"
)

// slaveSession is the master's per-remote bookkeeping (§4.3 "Master
// receive loop").
type slaveSession struct {
	expectedSeq uint16
	lastSeen    time.Time
	rc          *redundancyController
	loss        *lossEstimator
}

// Receiver is the master-side half of the Uplink Channel: it accepts
// datagrams from every slave, tracks per-remote sequence state, acks,
// and periodically sweeps silent remotes via its Janitor.
type Receiver struct {
	store      *worldview.Store
	redundancy Redundancy
	log        *slog.Logger

	mu       sync.Mutex
	sessions map[string]*slaveSession
	idByAddr map[string]uint8
}

func NewReceiver(store *worldview.Store, redundancy Redundancy, log *slog.Logger) *Receiver {
	return &Receiver{
		store:      store,
		redundancy: redundancy,
		log:        log.With("component", "uplink-receiver"),
		sessions:   make(map[string]*slaveSession),
		idByAddr:   make(map[string]uint8),
	}
}

// Run binds the uplink port and serves it until ctx is canceled.
func (r *Receiver) Run(ctx context.Context, port int) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return err
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, 1024)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				continue
			}
		}
		seq, body, err := parseUplink(buf[:n])
		if err != nil {
			continue // malformed datagram, §7 kind 6: dropped, not fatal; no counter is kept
		}
		container, err := worldview.UnmarshalContainer(body)
		if err != nil {
			continue
		}
		r.handleDatagram(conn, src, seq, container)
	}
}

func (r *Receiver) handleDatagram(conn *net.UDPConn, src *net.UDPAddr, seq uint16, container *worldview.ElevatorContainer) {
	key := src.String()

	r.mu.Lock()
	sess, ok := r.sessions[key]
	if !ok {
		sess = &slaveSession{expectedSeq: 0, rc: newRedundancyController(r.redundancy), loss: newLossEstimator()}
		r.sessions[key] = sess
	}
	r.idByAddr[key] = container.ID
	r.mu.Unlock()

	now := time.Now()
	deliver, ack, nextExpected := decideUplinkAction(sess.expectedSeq, seq)
	sess.expectedSeq = nextExpected

	if deliver {
		r.store.SubmitUplink(container)
		sess.lastSeen = now
		sess.loss.recordSuccess()
	}

	if ack {
		lossPct := sess.loss.estimate()
		secondsSince := now.Sub(sess.lastSeen).Seconds()
		redundantCount := sess.rc.next(lossPct, secondsSince)
		ackFrame := frameAck(seq, redundantCount)
		if _, err := conn.WriteToUDP(ackFrame, src); err != nil {
			r.log.Debug("ack send failed", "to", src, "error", err)
		}
	}
}

// decideUplinkAction implements §4.3's master receive-loop decision table
// as a pure function, kept separate from socket I/O so the sequence-number
// logic (including wrap and rejoin disambiguation, §8 boundary behaviors)
// is directly testable.
func decideUplinkAction(expectedSeq, seq uint16) (deliver, ack bool, nextExpected uint16) {
	switch {
	case seq == expectedSeq:
		return true, true, expectedSeq + 1

	case seq == 0 && expectedSeq != 1:
		// rejoin: the slave restarted its sequence counter
		return true, true, 1

	case expectedSeq > 0 && seq == expectedSeq-1:
		// slave missed our previous ack; re-ack without redelivering
		return false, true, expectedSeq

	default:
		// out of order or stale duplicate: dropped silently (§8 I6)
		return false, false, expectedSeq
	}
}

// Janitor sweeps the per-slave table every sweep interval and removes
// remotes silent for longer than inactivity, reporting each removal to
// the Store (§4.3 "janitor task").
func (r *Receiver) Janitor(ctx context.Context, sweep, inactivity time.Duration) error {
	ticker := time.NewTicker(sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.sweepOnce(inactivity)
		}
	}
}

func (r *Receiver) sweepOnce(inactivity time.Duration) {
	now := time.Now()

	r.mu.Lock()
	var stale []string
	for key, sess := range r.sessions {
		if !sess.lastSeen.IsZero() && now.Sub(sess.lastSeen) > inactivity {
			stale = append(stale, key)
		}
	}
	var removedIDs []uint8
	for _, key := range stale {
		if id, ok := r.idByAddr[key]; ok {
			removedIDs = append(removedIDs, id)
		}
		delete(r.sessions, key)
		delete(r.idByAddr, key)
	}
	r.mu.Unlock()

	for _, id := range removedIDs {
		r.log.Info("removing inactive node", "node_id", id)
		r.store.SubmitRemoveNode(id)
	}
}
