package transport

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"liftctl/internal/worldview"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freePort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		t.Fatalf("allocate free port: %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	conn.Close()
	return port
}

func TestSenderDeliversContainerToReceiver(t *testing.T) {
	port := freePort(t)

	slaveStore := worldview.NewStore(2, 4, discardLog())
	masterStore := worldview.NewStore(1, 4, discardLog())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = masterStore.Run(ctx) }()

	redundancy := Redundancy{Kp: 60, Ki: 14.05, Kd: 1.01, IntegralMin: -20, IntegralMax: 20, MinRedundant: 1, MaxRedundant: 300}
	recv := NewReceiver(masterStore, redundancy, discardLog())
	go func() { _ = recv.Run(ctx, port) }()
	time.Sleep(20 * time.Millisecond) // let the listener bind

	sendCfg := SendConfig{
		Tick: 20 * time.Millisecond, T0: 40 * time.Millisecond, BackoffStep: 5 * time.Millisecond,
		MaxRetries: 10, Redundancy: redundancy,
	}
	sender := NewSender(slaveStore, net.ParseIP("127.0.0.1"), port, sendCfg, discardLog())
	go func() { _ = sender.Run(ctx) }()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := masterStore.View().Containers[2]; ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("master never received slave's container within deadline")
}
