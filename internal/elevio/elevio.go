// Package elevio is the TCP client for the local cabin hardware driver
// (§6 "Hardware driver protocol"). It is the sole I/O boundary between the
// Cabin FSM (C5) and the physical elevator: the driver, its byte codes, and
// its behavior are out of scope for this spec and are treated here purely
// as an external collaborator reached over a local socket.
package elevio

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Command bytes, fixed by the upstream driver protocol (§6, unchanged).
const (
	cmdSetMotorDirection byte = 1
	cmdSetButtonLamp     byte = 2
	cmdSetFloorIndicator byte = 3
	cmdSetDoorOpenLamp   byte = 4
	cmdSetStopLamp       byte = 5
	cmdPollCallButton    byte = 6
	cmdPollFloorSensor   byte = 7
	cmdPollStopButton    byte = 8
	cmdPollObstruction   byte = 9
)

// ButtonType mirrors the three physical button kinds the driver exposes:
// hall-up, hall-down (fleet-owned hall calls) and cab (owned by this cabin).
type ButtonType byte

const (
	ButtonHallUp   ButtonType = 0
	ButtonHallDown ButtonType = 1
	ButtonCab      ButtonType = 2
)

// MotorDirection is the signed motor value, sent on the wire as a single
// byte; distinct from worldview.Direction so this package has no dependency on
// the replicated state model.
type MotorDirection int16

const (
	MotorDown MotorDirection = -1
	MotorStop MotorDirection = 0
	MotorUp   MotorDirection = 1
)

// Driver is a single-owner client of the local hardware socket (§5 "the
// elevator hardware socket is owned by the cabin FSM, single owner").
// Every call except SetButtonLamp is a synchronous request/response round
// trip over the driver's simple bytewise protocol; SetButtonLamp only
// writes its command frame and reads no reply.
type Driver struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to the local hardware driver process.
func Dial(addr string) (*Driver, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial elevator hardware driver at %s: %w", addr, err)
	}
	return &Driver{conn: conn}, nil
}

func (d *Driver) Close() error { return d.conn.Close() }

// write sends a fixed 4-byte command frame: opcode and three argument
// bytes, mirroring the upstream driver's request framing.
func (d *Driver) write(op, a1, a2, a3 byte) error {
	frame := [4]byte{op, a1, a2, a3}
	_, err := d.conn.Write(frame[:])
	return err
}

func (d *Driver) roundTrip(op, a1, a2 byte) ([4]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(op, a1, a2, 0); err != nil {
		return [4]byte{}, err
	}
	var resp [4]byte
	if _, err := readFull(d.conn, resp[:]); err != nil {
		return [4]byte{}, err
	}
	return resp, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// SetMotorDirection commands the motor (§4.5 direction-choice output).
func (d *Driver) SetMotorDirection(dir MotorDirection) error {
	_, err := d.roundTrip(cmdSetMotorDirection, byte(int8(dir)), 0)
	return err
}

// SetButtonLamp lights or clears a single call-button lamp.
func (d *Driver) SetButtonLamp(floor int, button ButtonType, on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write(cmdSetButtonLamp, byte(button), byte(floor), boolByte(on))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// SetFloorIndicator lights the floor indicator lamp at floor.
func (d *Driver) SetFloorIndicator(floor int) error {
	_, err := d.roundTrip(cmdSetFloorIndicator, byte(floor), 0)
	return err
}

// SetDoorOpenLamp sets the door-open lamp.
func (d *Driver) SetDoorOpenLamp(on bool) error {
	_, err := d.roundTrip(cmdSetDoorOpenLamp, boolByte(on), 0)
	return err
}

// SetStopLamp sets the stop-button lamp.
func (d *Driver) SetStopLamp(on bool) error {
	_, err := d.roundTrip(cmdSetStopLamp, boolByte(on), 0)
	return err
}

// ButtonPress reports whether the given call button is currently pressed.
func (d *Driver) ButtonPress(floor int, button ButtonType) (bool, error) {
	resp, err := d.roundTrip(cmdPollCallButton, byte(button), byte(floor))
	if err != nil {
		return false, err
	}
	return resp[1] != 0, nil
}

// FloorSensor returns the current floor, or (-1, nil) between floors
// (§3 "BetweenFloors sentinel").
func (d *Driver) FloorSensor() (int, error) {
	resp, err := d.roundTrip(cmdPollFloorSensor, 0, 0)
	if err != nil {
		return -1, err
	}
	if resp[1] == 0 {
		return -1, nil
	}
	return int(resp[2]), nil
}

// StopButton reports whether the stop button is currently pressed.
func (d *Driver) StopButton() (bool, error) {
	resp, err := d.roundTrip(cmdPollStopButton, 0, 0)
	if err != nil {
		return false, err
	}
	return resp[1] != 0, nil
}

// Obstruction reports whether the obstruction switch is currently tripped.
func (d *Driver) Obstruction() (bool, error) {
	resp, err := d.roundTrip(cmdPollObstruction, 0, 0)
	if err != nil {
		return false, err
	}
	return resp[1] != 0, nil
}

// --- Polling loops (§5 "several small I/O polling loops for
// buttons/sensors/obstruction, each writes to its own channel, never
// touches the Store directly", §6 "Polling is done at ≈25 ms") ---

// FloorEvent is emitted whenever the floor sensor reading changes.
type FloorEvent struct{ Floor int }

// ButtonEvent is emitted on the rising edge of a call button press.
type ButtonEvent struct {
	Floor  int
	Button ButtonType
}

// PollFloorSensor polls the floor sensor at period and emits an event on
// every change, the trigger for the FSM's "Floor arrival" event (§4.5).
func (d *Driver) PollFloorSensor(done <-chan struct{}, period time.Duration, out chan<- FloorEvent) {
	prev := -2
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			f, err := d.FloorSensor()
			if err != nil || f < 0 {
				continue
			}
			if f != prev {
				prev = f
				select {
				case out <- FloorEvent{Floor: f}:
				case <-done:
					return
				}
			}
		}
	}
}

// PollButtons polls every call button on every floor and emits an event on
// each rising edge (§5 "writes to its own channel").
func (d *Driver) PollButtons(done <-chan struct{}, period time.Duration, numFloors int, out chan<- ButtonEvent) {
	prev := make(map[ButtonEvent]bool)
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			for floor := 0; floor < numFloors; floor++ {
				for _, b := range buttonsAtFloor(floor, numFloors) {
					ev := ButtonEvent{Floor: floor, Button: b}
					pressed, err := d.ButtonPress(floor, b)
					if err != nil {
						continue
					}
					if pressed && !prev[ev] {
						select {
						case out <- ev:
						case <-done:
							return
						}
					}
					prev[ev] = pressed
				}
			}
		}
	}
}

func buttonsAtFloor(floor, numFloors int) []ButtonType {
	switch floor {
	case 0:
		return []ButtonType{ButtonHallUp, ButtonCab}
	case numFloors - 1:
		return []ButtonType{ButtonHallDown, ButtonCab}
	default:
		return []ButtonType{ButtonHallUp, ButtonHallDown, ButtonCab}
	}
}

// PollObstruction polls the obstruction switch and emits its current state
// on every change.
func (d *Driver) PollObstruction(done <-chan struct{}, period time.Duration, out chan<- bool) {
	prev := false
	first := true
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			v, err := d.Obstruction()
			if err != nil {
				continue
			}
			if v != prev || first {
				prev = v
				first = false
				select {
				case out <- v:
				case <-done:
					return
				}
			}
		}
	}
}

// PollStopButton polls the stop button and emits its current state on
// every change.
func (d *Driver) PollStopButton(done <-chan struct{}, period time.Duration, out chan<- bool) {
	prev := false
	first := true
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			v, err := d.StopButton()
			if err != nil {
				continue
			}
			if v != prev || first {
				prev = v
				first = false
				select {
				case out <- v:
				case <-done:
					return
				}
			}
		}
	}
}
