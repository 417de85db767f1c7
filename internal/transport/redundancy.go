package transport

import "math"

// setpointSeconds is s_ref, the target time-since-last-contact the PID
// controller drives toward (§4.3 "Adaptive redundancy").
const setpointSeconds = 0.1

// redundancyController tunes how many duplicate copies of a packet to send
// to one remote, given observed loss and staleness. One instance is kept
// per uplink session so the integral term retains context across ticks
// (§4.3): a Sender owns one until it is replaced on a master change, and
// the Receiver owns one per slave session until the Janitor removes that
// session. The PID state does not outlive its session.
//
// Shaped after the teacher's PingTracker (ping.go): a small piece of
// per-remote state updated on a fixed tick, read without its own lock by
// the single task that owns it.
type redundancyController struct {
	kp, ki, kd   float64
	integralMin  float64
	integralMax  float64
	minRedundant int
	maxRedundant int

	integral  float64
	prevError float64
	hasPrev   bool
}

func newRedundancyController(cfg Redundancy) *redundancyController {
	return &redundancyController{
		kp:           cfg.Kp,
		ki:           cfg.Ki,
		kd:           cfg.Kd,
		integralMin:  cfg.IntegralMin,
		integralMax:  cfg.IntegralMax,
		minRedundant: cfg.MinRedundant,
		maxRedundant: cfg.MaxRedundant,
	}
}

// Redundancy is the subset of config.Redundancy this package needs,
// decoupled from internal/config so transport doesn't import it just to
// read six numbers.
type Redundancy struct {
	Kp, Ki, Kd                 float64
	IntegralMin, IntegralMax   float64
	MinRedundant, MaxRedundant int
}

// next feeds in the latest loss percentage (0..100) and seconds-since-last-
// contact, advances the PID state by one step, and returns R, the number
// of duplicate copies to send this round (§4.3's redundancy formula, with
// the Open Question resolved per DESIGN.md: no /100 on the final product).
func (r *redundancyController) next(lossPct float64, secondsSinceContact float64) int {
	errVal := secondsSinceContact - setpointSeconds

	r.integral += errVal
	if r.integral > r.integralMax {
		r.integral = r.integralMax
	} else if r.integral < r.integralMin {
		r.integral = r.integralMin
	}

	derivative := 0.0
	if r.hasPrev {
		derivative = errVal - r.prevError
	}
	r.prevError = errVal
	r.hasPrev = true

	out := r.kp*errVal + r.ki*r.integral + r.kd*derivative

	raw := (float64(r.minRedundant) + out) * (lossPct + 1)
	rounded := int(math.Round(raw))
	return clampInt(rounded, r.minRedundant, r.maxRedundant)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
