package cabin

import (
	"context"
	"log/slog"
	"time"

	"liftctl/internal/elevio"
	"liftctl/internal/worldview"
)

// Config is the subset of the node's tuning parameters the FSM needs,
// decoupled from internal/config the same way internal/transport keeps its
// own Redundancy type (§9 "global mutable state" — only selfID/numFloors
// are process-lifetime constants here; everything else is a plain value).
type Config struct {
	NumFloors          int
	DoorTimeout        time.Duration
	CabPriorityTimeout time.Duration
	TravelErrorTimeout time.Duration
	PollPeriod         time.Duration
}

// FSM drives one physical cabin (§4.5). It owns the hardware Driver; the
// Store is its source of truth for tasks and the fleet's consolidated
// view, and its own CabRequests/volatile fields are published back to the
// Store on every change (§4.1 "Local cabin state update").
type FSM struct {
	cfg    Config
	driver *elevio.Driver
	store  *worldview.Store
	log    *slog.Logger

	direction   worldview.Direction
	behaviour   worldview.Behaviour
	obstruction bool
	floor       int
	cab         []bool
	tasks       worldview.HallMatrix

	priorityActive bool
}

func NewFSM(cfg Config, driver *elevio.Driver, store *worldview.Store, log *slog.Logger) *FSM {
	return &FSM{
		cfg:    cfg,
		driver: driver,
		store:  store,
		log:    log.With("component", "cabin-fsm"),
		cab:    make([]bool, cfg.NumFloors),
		tasks:  worldview.NewHallMatrix(cfg.NumFloors),
		floor:  int(worldview.BetweenFloors),
	}
}

// Run initializes the cabin (§4.5 "Initialization") and then drives the
// event loop until ctx is canceled.
func (f *FSM) Run(ctx context.Context) error {
	if err := f.initialize(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)

	floorCh := make(chan elevio.FloorEvent, 4)
	buttonCh := make(chan elevio.ButtonEvent, 16)
	obstructCh := make(chan bool, 4)
	stopCh := make(chan bool, 4)

	go f.driver.PollFloorSensor(done, f.cfg.PollPeriod, floorCh)
	go f.driver.PollButtons(done, f.cfg.PollPeriod, f.cfg.NumFloors, buttonCh)
	go f.driver.PollObstruction(done, f.cfg.PollPeriod, obstructCh)
	go f.driver.PollStopButton(done, f.cfg.PollPeriod, stopCh)

	initial, wvCh, cancel := f.store.Subscribe()
	defer cancel()
	f.seedFromSnapshot(initial)

	doorTimer := newStoppedTimer()
	priorityTimer := newStoppedTimer()
	travelTimer := newStoppedTimer()
	defer doorTimer.Stop()
	defer priorityTimer.Stop()
	defer travelTimer.Stop()

	f.publish()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev := <-floorCh:
			f.onFloorArrival(ev.Floor, travelTimer, doorTimer, priorityTimer)

		case ev := <-buttonCh:
			f.onButtonPress(ev)

		case on := <-obstructCh:
			f.obstruction = on
			f.publish()

		case on := <-stopCh:
			if err := f.driver.SetStopLamp(on); err != nil {
				f.log.Warn("set stop lamp failed", "error", err)
			}

		case wv := <-wvCh:
			f.onWorldViewUpdate(wv, doorTimer)

		case <-doorTimer.C:
			f.onDoorTimeout(doorTimer)

		case <-priorityTimer.C:
			f.priorityActive = false

		case <-travelTimer.C:
			f.onTravelError()
		}
	}
}

// initialize drives the cabin down until the first floor sensor event
// defines "current floor" (§4.5 "power-on between floors"), then stops.
func (f *FSM) initialize(ctx context.Context) error {
	if err := f.driver.SetMotorDirection(elevio.MotorDown); err != nil {
		return err
	}
	f.direction = worldview.DirDown
	f.behaviour = worldview.Moving

	ticker := time.NewTicker(f.cfg.PollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			floor, err := f.driver.FloorSensor()
			if err != nil {
				continue
			}
			if floor >= 0 {
				if err := f.driver.SetMotorDirection(elevio.MotorStop); err != nil {
					return err
				}
				f.floor = floor
				f.direction = worldview.DirStop
				f.behaviour = worldview.Idle
				return nil
			}
		}
	}
}

func (f *FSM) onFloorArrival(floor int, travelTimer, doorTimer, priorityTimer *resettableTimer) {
	f.floor = floor
	if err := f.driver.SetFloorIndicator(floor); err != nil {
		f.log.Warn("set floor indicator failed", "error", err)
	}

	if f.behaviour == worldview.TravelError || f.behaviour == worldview.ObstructionError {
		f.publish()
		return
	}

	travelTimer.Reset(f.cfg.TravelErrorTimeout)

	if f.behaviour != worldview.Moving {
		f.publish()
		return
	}

	if !ShouldStop(f.direction, f.tasks, f.cab, floor) {
		f.publish()
		return
	}

	travelTimer.Stop()
	if err := f.driver.SetMotorDirection(elevio.MotorStop); err != nil {
		f.log.Warn("stop motor failed", "error", err)
	}
	f.openDoorAt(floor, doorTimer, priorityTimer)
}

// openDoorAt implements door-open + clear-at-floor (§4.5 "Clear-at-floor
// policy"): the cab call at this floor clears locally; the hall call does
// not — that is the master's job during merge (§4.1, DESIGN.md Open
// Question 3).
func (f *FSM) openDoorAt(floor int, doorTimer, priorityTimer *resettableTimer) {
	f.behaviour = worldview.DoorOpen
	if floor < len(f.cab) {
		f.cab[floor] = false
	}
	if err := f.driver.SetDoorOpenLamp(true); err != nil {
		f.log.Warn("open door lamp failed", "error", err)
	}
	if floor < len(f.cab) {
		if err := f.driver.SetButtonLamp(floor, elevio.ButtonCab, false); err != nil {
			f.log.Warn("clear cab lamp failed", "error", err)
		}
	}
	doorTimer.Reset(f.cfg.DoorTimeout)
	f.priorityActive = true
	priorityTimer.Reset(f.cfg.CabPriorityTimeout)
	f.publish()
}

func (f *FSM) onDoorTimeout(doorTimer *resettableTimer) {
	if f.obstruction {
		// keep door open; check again next timeout (§4.5 "keep door open")
		doorTimer.Reset(f.cfg.DoorTimeout)
		return
	}
	if err := f.driver.SetDoorOpenLamp(false); err != nil {
		f.log.Warn("close door lamp failed", "error", err)
	}

	nextDir, nextBeh := NextDirection(f.direction, f.tasks, f.cab, f.floor)
	f.direction = nextDir
	f.behaviour = nextBeh

	if nextBeh == worldview.DoorOpen {
		// derived-stop case re-opened immediately at the same floor.
		doorTimer.Reset(f.cfg.DoorTimeout)
		if f.floor < len(f.cab) {
			f.cab[f.floor] = false
		}
		f.publish()
		return
	}

	motor := elevio.MotorStop
	switch nextDir {
	case worldview.DirUp:
		motor = elevio.MotorUp
	case worldview.DirDown:
		motor = elevio.MotorDown
	}
	if nextBeh == worldview.Moving {
		// Cab-priority grace window releases once the cabin is underway
		// again (DESIGN.md Open Question 2).
		f.priorityActive = false
	}
	if err := f.driver.SetMotorDirection(motor); err != nil {
		f.log.Warn("set motor direction failed", "error", err)
	}
	f.publish()
}

func (f *FSM) onTravelError() {
	if f.behaviour != worldview.Moving {
		return
	}
	f.behaviour = worldview.TravelError
	if err := f.driver.SetMotorDirection(elevio.MotorStop); err != nil {
		f.log.Warn("stop motor after travel error failed", "error", err)
	}
	f.log.Warn("travel error: no floor change within timeout")
	f.publish()
}

func (f *FSM) onButtonPress(ev elevio.ButtonEvent) {
	switch ev.Button {
	case elevio.ButtonCab:
		if ev.Floor < len(f.cab) {
			f.cab[ev.Floor] = true
		}
		if err := f.driver.SetButtonLamp(ev.Floor, elevio.ButtonCab, true); err != nil {
			f.log.Warn("set cab lamp failed", "error", err)
		}
		f.maybeStartFromIdle()
	case elevio.ButtonHallUp:
		f.store.SubmitHallPress(ev.Floor, worldview.HallUp)
	case elevio.ButtonHallDown:
		f.store.SubmitHallPress(ev.Floor, worldview.HallDown)
	}
	f.publish()
}

// maybeStartFromIdle lets a fresh cab press move an Idle cabin immediately,
// instead of waiting for the next WorldView update to carry the task back.
func (f *FSM) maybeStartFromIdle() {
	if f.behaviour != worldview.Idle {
		return
	}
	nextDir, nextBeh := NextDirection(worldview.DirStop, f.tasks, f.cab, f.floor)
	if nextBeh != worldview.Moving {
		return
	}
	f.direction = nextDir
	f.behaviour = nextBeh
	motor := elevio.MotorUp
	if nextDir == worldview.DirDown {
		motor = elevio.MotorDown
	}
	if err := f.driver.SetMotorDirection(motor); err != nil {
		f.log.Warn("set motor direction failed", "error", err)
	}
}

// seedFromSnapshot initializes cab/tasks from the Store's current
// WorldView before the FSM's first publish (§4.6 "Cab-call survival
// across node reboots"). Without this, a node that seeded its Store from
// a master's cab_requests_backup before the FSM started would have that
// recovered state immediately clobbered by the FSM's own all-false
// defaults (NewFSM) on its first publish — this method is what makes the
// seed in daemon.Run actually reach the cabin's decision-making.
func (f *FSM) seedFromSnapshot(wv *worldview.WorldView) {
	if wv == nil {
		return
	}
	if self := wv.Self(f.store.SelfID()); self != nil {
		f.cab = append([]bool(nil), self.CabRequests...)
		f.tasks = self.Tasks.Clone()
		for floor, on := range f.cab {
			if err := f.driver.SetButtonLamp(floor, elevio.ButtonCab, on); err != nil {
				f.log.Warn("set cab lamp failed", "floor", floor, "error", err)
			}
		}
	}
	f.relightHallLamps(wv.HallRequests)
}

// onWorldViewUpdate merges the master's latest task assignment into local
// decision-making (§4.5 "WorldView update delivers new tasks for us") and
// relights hall lamps to match the fleet's consolidated hall_requests —
// every cabin shows the same hall lamp state regardless of who is master.
func (f *FSM) onWorldViewUpdate(wv *worldview.WorldView, doorTimer *resettableTimer) {
	self := wv.Self(f.store.SelfID())
	if self != nil {
		f.tasks = self.Tasks.Clone()
	}
	f.relightHallLamps(wv.HallRequests)

	if f.priorityActive {
		return
	}
	if f.behaviour == worldview.Idle {
		f.maybeStartFromIdle()
	}
}

func (f *FSM) relightHallLamps(hall worldview.HallMatrix) {
	for floor := 0; floor < f.cfg.NumFloors; floor++ {
		var up, down bool
		if floor < len(hall) {
			up, down = hall[floor][worldview.HallUp], hall[floor][worldview.HallDown]
		}
		if floor < f.cfg.NumFloors-1 {
			if err := f.driver.SetButtonLamp(floor, elevio.ButtonHallUp, up); err != nil {
				f.log.Debug("set hall-up lamp failed", "floor", floor, "error", err)
			}
		}
		if floor > 0 {
			if err := f.driver.SetButtonLamp(floor, elevio.ButtonHallDown, down); err != nil {
				f.log.Debug("set hall-down lamp failed", "floor", floor, "error", err)
			}
		}
	}
}

func (f *FSM) publish() {
	f.store.SubmitLocalCabinUpdate(worldview.CabinState{
		Direction:       f.direction,
		Behaviour:       f.behaviour,
		Obstruction:     f.obstruction,
		LastFloorSensor: int16(f.floor),
		CabRequests:     append([]bool(nil), f.cab...),
	})
}
