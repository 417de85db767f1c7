package transport

import "testing"

func testCfg() Redundancy {
	return Redundancy{
		Kp: 60.0, Ki: 14.05, Kd: 1.01,
		IntegralMin: -20.0, IntegralMax: 20.0,
		MinRedundant: 1, MaxRedundant: 300,
	}
}

func TestRedundancyStaysAtMinimumUnderNoLossAndFreshContact(t *testing.T) {
	r := newRedundancyController(testCfg())
	var got int
	for i := 0; i < 20; i++ {
		got = r.next(0, setpointSeconds)
	}
	if got != 1 {
		t.Fatalf("expected R to settle at minimum under nominal conditions, got %d", got)
	}
}

func TestRedundancyRisesUnderLoss(t *testing.T) {
	r := newRedundancyController(testCfg())
	baseline := r.next(0, setpointSeconds)
	lossy := newRedundancyController(testCfg())
	var got int
	for i := 0; i < 5; i++ {
		got = lossy.next(50, 1.0)
	}
	if got <= baseline {
		t.Fatalf("expected R under loss (%d) to exceed baseline (%d)", got, baseline)
	}
}

func TestRedundancyNeverExceedsMax(t *testing.T) {
	r := newRedundancyController(testCfg())
	var got int
	for i := 0; i < 50; i++ {
		got = r.next(100, 30.0)
	}
	if got > r.maxRedundant {
		t.Fatalf("R exceeded configured max: %d > %d", got, r.maxRedundant)
	}
}

func TestRedundancyNeverBelowMin(t *testing.T) {
	r := newRedundancyController(testCfg())
	got := r.next(0, 0)
	if got < r.minRedundant {
		t.Fatalf("R below configured min: %d < %d", got, r.minRedundant)
	}
}
