package transport

import (
	"context"
	"net"
	"time"

	"liftctl/internal/worldview"
)

// Bootstrap implements §4.6 "Cab-call survival across node reboots": a
// starting node listens briefly on the broadcast port for any existing
// WorldView before joining the fleet. A timeout with nothing heard is not
// an error — it just means this is the first node up, and the caller
// proceeds with a fresh solo WorldView.
func Bootstrap(ctx context.Context, groupKey string, port int, timeout time.Duration) (*worldview.WorldView, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	buf := make([]byte, 64*1024)
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			// Timeout with nothing heard: we are the first node up.
			return nil, nil
		}
		payload, err := stripGroupTag(groupKey, buf[:n])
		if err != nil {
			continue
		}
		wv, err := worldview.Unmarshal(payload)
		if err != nil {
			continue
		}
		return wv, nil
	}
}

// Watch listens on the broadcast port indefinitely and delivers every
// decoded WorldView to the returned channel, until ctx is canceled. It
// is the read-only counterpart to Disseminator.Listen used by the §6
// backup viewer sub-mode: it never submits anything to a Store and
// cannot influence merge outcomes, so it is safe to run any number of
// these against a live fleet.
func Watch(ctx context.Context, groupKey string, port int) (<-chan *worldview.WorldView, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, err
	}

	out := make(chan *worldview.WorldView)
	go func() {
		defer conn.Close()
		defer close(out)

		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		buf := make([]byte, 64*1024)
		for {
			n, _, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			payload, err := stripGroupTag(groupKey, buf[:n])
			if err != nil {
				continue
			}
			wv, err := worldview.Unmarshal(payload)
			if err != nil {
				continue
			}
			select {
			case out <- wv:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
