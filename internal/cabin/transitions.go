// Package cabin implements the Cabin FSM (C5, §4.5): the per-node state
// machine that drives one physical cabin from button presses, floor
// sensor events, and the tasks the master assigns it.
package cabin

import "liftctl/internal/worldview"

// hasCallAbove reports whether any hall task or cab call exists strictly
// above floor (§4.5 "above").
func hasCallAbove(tasks worldview.HallMatrix, cab []bool, floor int) bool {
	for f := floor + 1; f < matrixLen(tasks, cab); f++ {
		if anyAt(tasks, cab, f) {
			return true
		}
	}
	return false
}

// hasCallBelow is the mirror of hasCallAbove (§4.5 "below").
func hasCallBelow(tasks worldview.HallMatrix, cab []bool, floor int) bool {
	for f := 0; f < floor; f++ {
		if anyAt(tasks, cab, f) {
			return true
		}
	}
	return false
}

// hasCallHere reports whether there is a task or cab call at floor itself
// (§4.5 "here").
func hasCallHere(tasks worldview.HallMatrix, cab []bool, floor int) bool {
	return anyAt(tasks, cab, floor)
}

func anyAt(tasks worldview.HallMatrix, cab []bool, f int) bool {
	if f < len(tasks) && (tasks[f][worldview.HallUp] || tasks[f][worldview.HallDown]) {
		return true
	}
	if f < len(cab) && cab[f] {
		return true
	}
	return false
}

func matrixLen(tasks worldview.HallMatrix, cab []bool) int {
	n := len(tasks)
	if len(cab) > n {
		n = len(cab)
	}
	return n
}

// NextDirection implements the direction-choice transition table (§4.5
// "Direction choice"). It is a pure function of current direction, this
// cabin's assigned tasks and cab calls, and its current floor.
func NextDirection(d worldview.Direction, tasks worldview.HallMatrix, cab []bool, floor int) (worldview.Direction, worldview.Behaviour) {
	above := hasCallAbove(tasks, cab, floor)
	below := hasCallBelow(tasks, cab, floor)
	here := hasCallHere(tasks, cab, floor)

	switch d {
	case worldview.DirUp:
		switch {
		case above:
			return worldview.DirUp, worldview.Moving
		case here:
			return worldview.DirDown, worldview.DoorOpen
		case below:
			return worldview.DirDown, worldview.Moving
		default:
			return worldview.DirStop, worldview.Idle
		}

	case worldview.DirDown:
		switch {
		case below:
			return worldview.DirDown, worldview.Moving
		case here:
			return worldview.DirUp, worldview.DoorOpen
		case above:
			return worldview.DirUp, worldview.Moving
		default:
			return worldview.DirStop, worldview.Idle
		}

	default: // DirStop
		switch {
		case here:
			return derivedStopDirection(tasks, floor), worldview.DoorOpen
		case above:
			return worldview.DirUp, worldview.Moving
		case below:
			return worldview.DirDown, worldview.Moving
		default:
			return worldview.DirStop, worldview.Idle
		}
	}
}

// derivedStopDirection picks up/down/stop for the d==stop "here" case
// (§4.5's transition table: "up if T[here][up], else down if T[here][down],
// else stop"). The cabin still opens its door either way; this only
// decides which direction it will leave in.
func derivedStopDirection(tasks worldview.HallMatrix, floor int) worldview.Direction {
	if floor < len(tasks) {
		if tasks[floor][worldview.HallUp] {
			return worldview.DirUp
		}
		if tasks[floor][worldview.HallDown] {
			return worldview.DirDown
		}
	}
	return worldview.DirStop
}

// ShouldStop implements §4.5's "Should-stop at arrival" predicate.
func ShouldStop(d worldview.Direction, tasks worldview.HallMatrix, cab []bool, floor int) bool {
	if floor < len(cab) && cab[floor] {
		return true
	}
	above := hasCallAbove(tasks, cab, floor)
	below := hasCallBelow(tasks, cab, floor)
	hallDown := floor < len(tasks) && tasks[floor][worldview.HallDown]
	hallUp := floor < len(tasks) && tasks[floor][worldview.HallUp]

	switch d {
	case worldview.DirDown:
		return hallDown || !below
	case worldview.DirUp:
		return hallUp || !above
	default: // stop
		return true
	}
}
