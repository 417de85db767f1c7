package cabin

import (
	"testing"

	"liftctl/internal/worldview"
)

func matrix(sets ...[2]int) worldview.HallMatrix {
	m := worldview.NewHallMatrix(4)
	for _, s := range sets {
		m[s[0]][s[1]] = true
	}
	return m
}

func TestNextDirectionUpContinuesWhileCallsAbove(t *testing.T) {
	tasks := matrix([2]int{3, worldview.HallUp})
	d, b := NextDirection(worldview.DirUp, tasks, make([]bool, 4), 1)
	if d != worldview.DirUp || b != worldview.Moving {
		t.Fatalf("got (%v,%v)", d, b)
	}
}

func TestNextDirectionUpStopsHereThenReversesDown(t *testing.T) {
	tasks := worldview.NewHallMatrix(4)
	cab := []bool{false, false, true, false}
	d, b := NextDirection(worldview.DirUp, tasks, cab, 2)
	if d != worldview.DirDown || b != worldview.DoorOpen {
		t.Fatalf("got (%v,%v)", d, b)
	}
}

func TestNextDirectionUpElseIdles(t *testing.T) {
	tasks := worldview.NewHallMatrix(4)
	d, b := NextDirection(worldview.DirUp, tasks, make([]bool, 4), 2)
	if d != worldview.DirStop || b != worldview.Idle {
		t.Fatalf("got (%v,%v)", d, b)
	}
}

func TestNextDirectionStopHereDerivesDirectionFromTask(t *testing.T) {
	tasks := matrix([2]int{2, worldview.HallDown})
	d, b := NextDirection(worldview.DirStop, tasks, make([]bool, 4), 2)
	if d != worldview.DirDown || b != worldview.DoorOpen {
		t.Fatalf("got (%v,%v)", d, b)
	}
}

func TestNextDirectionStopHereWithOnlyCabCallDerivesStop(t *testing.T) {
	cab := []bool{false, false, true, false}
	d, b := NextDirection(worldview.DirStop, worldview.NewHallMatrix(4), cab, 2)
	if d != worldview.DirStop || b != worldview.DoorOpen {
		t.Fatalf("got (%v,%v), want (stop, doorOpen)", d, b)
	}
}

func TestShouldStopForCabCall(t *testing.T) {
	cab := []bool{false, true, false, false}
	if !ShouldStop(worldview.DirUp, worldview.NewHallMatrix(4), cab, 1) {
		t.Fatalf("expected stop for own cab call")
	}
}

func TestShouldStopGoingUpWithNoCallsAboveStopsAnyway(t *testing.T) {
	// Moving up, nothing above: the "!above" clause fires even with no
	// matching hall-up call at this floor.
	if !ShouldStop(worldview.DirUp, worldview.NewHallMatrix(4), make([]bool, 4), 2) {
		t.Fatalf("expected stop: nothing above means this is as far as we go")
	}
}

func TestShouldStopGoingUpContinuesWhenMoreAbove(t *testing.T) {
	tasks := matrix([2]int{3, worldview.HallUp})
	if ShouldStop(worldview.DirUp, tasks, make([]bool, 4), 1) {
		t.Fatalf("should not stop: a call exists further up and none here")
	}
}
