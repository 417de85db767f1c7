package transport

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"liftctl/internal/worldview"
)

// SendConfig mirrors §4.3's send-loop retry policy; the caller supplies
// the actual durations from config so tests can run the whole ladder in
// milliseconds instead of the production values.
type SendConfig struct {
	Tick        time.Duration
	T0          time.Duration
	BackoffStep time.Duration
	MaxRetries  int
	Redundancy  Redundancy
}

// Sender runs the non-master "ship my container to the master" loop
// (§4.3 "Send loop"). A session is keyed by (slave, current master); the
// caller is expected to construct a fresh Sender whenever the master
// address changes.
type Sender struct {
	store    *worldview.Store
	masterIP net.IP
	port     int
	cfg      SendConfig
	log      *slog.Logger
	rc       *redundancyController
	loss     *lossEstimator
}

func NewSender(store *worldview.Store, masterIP net.IP, port int, cfg SendConfig, log *slog.Logger) *Sender {
	return &Sender{
		store:    store,
		masterIP: masterIP,
		port:     port,
		cfg:      cfg,
		log:      log.With("component", "uplink-sender"),
		rc:       newRedundancyController(cfg.Redundancy),
		loss:     newLossEstimator(),
	}
}

// Run ships the container once per tick through the send-ack-retry-backoff
// cycle until ctx is canceled, or until one sequence number stays unacked
// through MaxRetries attempts (at which point it signals the Store and
// returns).
func (s *Sender) Run(ctx context.Context) error {
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: s.masterIP, Port: s.port})
	if err != nil {
		return err
	}
	defer conn.Close()

	ackCh := make(chan uint16, 8)
	go s.readAcks(ctx, conn, ackCh)

	var seq uint16
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	lastContact := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		self := s.store.View().Self(s.store.SelfID())
		if self == nil {
			continue
		}
		containerBytes := worldview.MarshalContainer(self)
		shipped := self.UnsentHallRequests.Clone()

		if !s.attempt(ctx, conn, ackCh, seq, containerBytes, &lastContact) {
			s.log.Warn("uplink to master failed after max retries")
			s.store.SubmitUplinkFailed()
			return nil
		}
		s.store.SubmitUplinkAck(shipped)
		seq++ // wraps naturally at 65536 (§4.3 "starts at 0, wraps on overflow")
	}
}

// attempt runs the redundancy-send / timeout / linear-backoff ladder for
// one sequence number, returning false once MaxRetries is exhausted.
func (s *Sender) attempt(ctx context.Context, conn *net.UDPConn, ackCh chan uint16, seq uint16, containerBytes []byte, lastContact *time.Time) bool {
	timeout := s.cfg.T0
	frame := frameUplink(seq, containerBytes)

	for retry := 0; retry < s.cfg.MaxRetries; retry++ {
		r := s.rc.next(s.loss.estimate(), time.Since(*lastContact).Seconds())
		for i := 0; i < r; i++ {
			if _, err := conn.Write(frame); err != nil {
				s.log.Debug("uplink send failed", "error", err)
			}
		}

		deadline := time.After(timeout)
	wait:
		for {
			select {
			case <-ctx.Done():
				return false
			case acked := <-ackCh:
				if acked == seq {
					*lastContact = time.Now()
					s.loss.recordSuccess()
					return true
				}
				// stale ack for a previous seq; keep waiting this attempt
			case <-deadline:
				s.loss.recordLoss()
				timeout += s.cfg.BackoffStep
				break wait
			}
		}
	}
	return false
}

func (s *Sender) readAcks(ctx context.Context, conn *net.UDPConn, out chan<- uint16) {
	buf := make([]byte, 1024)
	for {
		if err := conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond)); err != nil {
			return
		}
		n, err := conn.Read(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				continue
			}
		}
		seq, err := parseAck(buf[:n])
		if err != nil {
			continue
		}
		select {
		case out <- seq:
		case <-ctx.Done():
			return
		default:
			// buffer full: this ack is dropped and the queued ones are kept;
			// an attempt whose ack was dropped times out and retransmits
		}
	}
}

// lossEstimator is a minimal rolling window over recent send outcomes,
// the "estimated by a rolling window of ping-style probes" signal in
// §4.3's redundancy controller input.
type lossEstimator struct {
	mu      sync.Mutex
	outcome []bool // true = success
	cursor  int
}

const lossWindowSize = 20

func newLossEstimator() *lossEstimator {
	return &lossEstimator{outcome: make([]bool, 0, lossWindowSize)}
}

func (l *lossEstimator) record(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.outcome) < lossWindowSize {
		l.outcome = append(l.outcome, success)
		return
	}
	l.outcome[l.cursor] = success
	l.cursor = (l.cursor + 1) % lossWindowSize
}

func (l *lossEstimator) recordSuccess() { l.record(true) }
func (l *lossEstimator) recordLoss()    { l.record(false) }

// estimate returns loss percentage in 0..100.
func (l *lossEstimator) estimate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.outcome) == 0 {
		return 0
	}
	lost := 0
	for _, ok := range l.outcome {
		if !ok {
			lost++
		}
	}
	return 100 * float64(lost) / float64(len(l.outcome))
}
