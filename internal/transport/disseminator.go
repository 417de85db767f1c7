package transport

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"syscall"
	"time"

	"liftctl/internal/election"
	"liftctl/internal/worldview"
)

// reconnectGrace is the short pause applied before a newly-online master
// resumes broadcasting, so the rest of the fleet has a beat to settle on
// who the master is before it starts asserting the role (§4.2 "a short
// grace is applied on reconnection").
const reconnectGrace = 3 * reconnectGraceUnit

// reconnectGraceUnit is a fixed 50 ms step; the grace window does not scale
// with the configured broadcast period.
const reconnectGraceUnit = 50 * time.Millisecond

// Disseminator runs the master-side broadcast loop and the listener loop
// that every node — master or not — keeps running to detect master
// changes and feed its own Store (§4.2).
type Disseminator struct {
	store     *worldview.Store
	groupKey  string
	period    time.Duration
	watchdog  time.Duration
	broadcast *net.UDPAddr
	log       *slog.Logger

	masterAddr atomic.Pointer[net.IP]
	reconnect  election.ReconnectDetector
}

// MasterAddr returns the IP the current master's broadcasts were last seen
// arriving from, or nil if none has been observed yet. The Uplink Sender
// (§4.3) uses this to know where to dial — the spec's WorldView carries no
// address field (§3), so the transport layer tracks it out-of-band from
// the broadcast socket itself.
func (d *Disseminator) MasterAddr() net.IP {
	if ip := d.masterAddr.Load(); ip != nil {
		return *ip
	}
	return nil
}

// NewDisseminator binds no sockets itself; Broadcast and Listen each own
// their own connection so one can be retried independently of the other.
func NewDisseminator(store *worldview.Store, groupKey string, port int, period, watchdog time.Duration, log *slog.Logger) *Disseminator {
	return &Disseminator{
		store:     store,
		groupKey:  groupKey,
		period:    period,
		watchdog:  watchdog,
		broadcast: &net.UDPAddr{IP: net.IPv4bcast, Port: port},
		log:       log.With("component", "disseminator"),
	}
}

// Broadcast runs the master-side send loop (§4.2 "Master side"). It only
// actually ships a packet while the Store reports us as master, so a node
// that loses the role during a tick simply goes quiet on the next one.
func (d *Disseminator) Broadcast(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := enableBroadcast(conn); err != nil {
		return err
	}

	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	var becameMasterAt time.Time
	wasMaster := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			isMaster := d.store.IsMaster()
			if !isMaster {
				wasMaster = false
				continue
			}
			if !wasMaster {
				becameMasterAt = time.Now()
				wasMaster = true
			}
			if time.Since(becameMasterAt) < reconnectGrace {
				continue
			}

			wv := d.store.View()
			payload := frameGroupTag(d.groupKey, worldview.Marshal(wv))
			if _, err := conn.WriteToUDP(payload, d.broadcast); err != nil {
				d.log.Warn("broadcast send failed", "error", err)
			}
		}
	}
}

// Listen runs the all-nodes receive loop (§4.2 "Listener side"). It binds
// the broadcast port itself so a node can hear others before it ever
// becomes master.
func (d *Disseminator) Listen(ctx context.Context, selfAddr string) error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: d.broadcast.Port})
	if err != nil {
		return err
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	watchdog := time.NewTimer(d.watchdog)
	defer watchdog.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-watchdog.C:
				if !d.store.IsMaster() {
					d.log.Warn("UDP watchdog expired, master presumed dead")
					d.store.SubmitUplinkFailed()
				}
			}
		}
	}()

	buf := make([]byte, 64*1024)
	for {
		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				d.log.Debug("listener read error", "error", err)
				continue
			}
		}

		payload, err := stripGroupTag(d.groupKey, buf[:n])
		if err != nil {
			continue // foreign traffic on our port, §4.2 "ignored"
		}
		wv, err := worldview.Unmarshal(payload)
		if err != nil {
			d.log.Debug("malformed worldview broadcast dropped", "from", src, "error", err)
			continue
		}

		local := d.store.View()
		d.reconnect.Observe(local, d.store.SelfID())

		fromSelf := src.IP.String() == localAddrIP(selfAddr)
		accept := wv.MasterID < local.MasterID || (wv.MasterID == local.MasterID && !fromSelf)
		if !accept {
			continue
		}

		if wv.MasterID == local.MasterID {
			watchdog.Reset(d.watchdog)
		}
		if !fromSelf && wv.MasterID <= local.MasterID {
			ip := src.IP
			d.masterAddr.Store(&ip)
		}
		if d.reconnect.DetectReconnect(local, d.store.SelfID(), wv) {
			d.log.Info("fleet reachable again after isolation, reconnect-merging worldview")
			d.store.SubmitReconnectMerge(wv)
		} else {
			d.store.SubmitMasterBroadcast(fromSelf, wv)
		}
	}
}

func localAddrIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// enableBroadcast sets SO_BROADCAST on conn. Go's net package does not set
// this for UDP sockets by default, and writing to the broadcast address
// without it fails with a permission error on Linux.
func enableBroadcast(conn *net.UDPConn) error {
	raw, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var sockErr error
	if err := raw.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_BROADCAST, 1)
	}); err != nil {
		return err
	}
	return sockErr
}
