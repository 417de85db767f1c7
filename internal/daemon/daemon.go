// Package daemon wires the six components of §4 together into one running
// node: the WorldView Store (C1), UDP Disseminator (C2), Uplink Channel
// (C3), Assignment Engine (C4), Cabin FSM (C5), and the election/failover
// glue (C6). It is the in-process equivalent of the teacher's
// daemon/daemon.go: one errgroup supervising every long-lived task (§5
// "every subsystem is a long-lived task").
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"liftctl/internal/assignment"
	"liftctl/internal/cabin"
	"liftctl/internal/config"
	"liftctl/internal/elevio"
	"liftctl/internal/nodeid"
	"liftctl/internal/transport"
	"liftctl/internal/worldview"
)

// bootstrapWindow is how long a starting node listens for an existing
// WorldView before concluding it is the first node up (§4.6 "Cab-call
// survival across node reboots").
const bootstrapWindow = 300 * time.Millisecond

// Run starts every task for one fleet node and blocks until ctx is
// canceled or a component fails unrecoverably.
func Run(ctx context.Context, cfg *config.Config, probeAddr, hardwareAddr string, log *slog.Logger) error {
	selfID, addr, err := nodeid.FromInterface(probeAddr)
	if err != nil {
		return fmt.Errorf("derive node id: %w", err)
	}
	log = log.With("node_id", selfID, "addr", addr)
	log.Info("node starting")

	heard, err := transport.Bootstrap(ctx, cfg.GroupKey, cfg.BroadcastPort, bootstrapWindow)
	if err != nil {
		log.Warn("bootstrap listen failed, joining as a fresh solo node", "error", err)
		heard = nil
	}

	store := worldview.NewStore(selfID, cfg.NumFloors, log)
	if heard != nil {
		seed := worldview.SeedCabRequestsFromBackup(selfID, cfg.NumFloors, heard)
		store.SeedCabRequests(seed)
		log.Info("seeded cab requests from master's backup", "cab_requests", seed)
	}

	driver, err := elevio.Dial(hardwareAddr)
	if err != nil {
		return fmt.Errorf("connect to elevator hardware driver: %w", err)
	}

	disseminator := transport.NewDisseminator(store, cfg.GroupKey, cfg.BroadcastPort, cfg.BroadcastPeriod, cfg.UDPWatchdog, log)
	receiver := transport.NewReceiver(store, transport.Redundancy(cfg.Redundancy), log)
	engine := assignment.NewEngine(store, cfg.OraclePath, cfg.AssignmentPeriod, cfg.OracleTimeout, log)
	fsm := cabin.NewFSM(cabin.Config{
		NumFloors:          cfg.NumFloors,
		DoorTimeout:        cfg.DoorTimeout,
		CabPriorityTimeout: cfg.CabPriorityTimeout,
		TravelErrorTimeout: cfg.TravelErrorTimeout,
		PollPeriod:         cfg.HardwarePollPeriod,
	}, driver, store, log)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return store.Run(ctx) })
	g.Go(func() error { return disseminator.Broadcast(ctx) })
	g.Go(func() error { return disseminator.Listen(ctx, net.JoinHostPort(addr.String(), "0")) })
	g.Go(func() error { return receiver.Run(ctx, cfg.UplinkPort) })
	g.Go(func() error { return receiver.Janitor(ctx, cfg.JanitorSweep, cfg.InactivityTimeout) })
	g.Go(func() error { return engine.Run(ctx) })
	g.Go(func() error { return fsm.Run(ctx) })
	g.Go(func() error { return runUplinkSupervisor(ctx, store, disseminator, cfg, log) })

	return g.Wait()
}

// runUplinkSupervisor keeps exactly one Sender (§4.3) running against
// whichever address the node currently believes is master, restarting it
// whenever that address changes — mirroring the teacher's
// subscribe-with-retry idiom (ployz convergence.Supervisor) generalized to
// "current master changed" instead of "subscription dropped".
func runUplinkSupervisor(ctx context.Context, store *worldview.Store, d *transport.Disseminator, cfg *config.Config, log *slog.Logger) error {
	sendCfg := transport.SendConfig{
		Tick:        cfg.UplinkTick,
		T0:          cfg.UplinkT0,
		BackoffStep: cfg.UplinkBackoffStep,
		MaxRetries:  cfg.UplinkMaxRetries,
		Redundancy:  transport.Redundancy(cfg.Redundancy),
	}

	_, wvCh, cancel := store.Subscribe()
	defer cancel()

	var senderCancel context.CancelFunc
	var runningIP string
	stopSender := func() {
		if senderCancel != nil {
			senderCancel()
			senderCancel = nil
			runningIP = ""
		}
	}
	defer stopSender()

	reconcile := func() {
		if store.IsMaster() {
			stopSender()
			return
		}
		ip := d.MasterAddr()
		if ip == nil {
			return
		}
		if ip.String() == runningIP {
			return
		}
		stopSender()
		senderCtx, sCancel := context.WithCancel(ctx)
		senderCancel = sCancel
		runningIP = ip.String()
		sender := transport.NewSender(store, ip, cfg.UplinkPort, sendCfg, log)
		go func() {
			if err := sender.Run(senderCtx); err != nil && senderCtx.Err() == nil {
				log.Warn("uplink sender exited", "error", err)
			}
		}()
	}

	reconcile()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wvCh:
			reconcile()
		}
	}
}
