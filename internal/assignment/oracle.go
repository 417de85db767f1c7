// Package assignment implements the Assignment Engine (C4, §4.4): the
// master-side periodic solver that turns the current WorldView into a
// per-cabin hall-call task matrix via an external cost oracle (§6
// "Assignment oracle JSON").
package assignment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"liftctl/internal/worldview"
)

// oracleState is one cabin's entry in the oracle's input "states" map
// (§6). Errored cabins are omitted entirely, not merely marked.
type oracleState struct {
	Behaviour   string `json:"behaviour"`
	Floor       int    `json:"floor"`
	Direction   string `json:"direction"`
	CabRequests []bool `json:"cabRequests"`
}

type oracleInput struct {
	HallRequests [][2]bool              `json:"hallRequests"`
	States       map[string]oracleState `json:"states"`
}

// BuildInput constructs the oracle's JSON request from a WorldView
// snapshot (§4.4 step 2): every non-errored cabin becomes a state entry;
// TravelError/ObstructionError cabins are excluded from being assigned.
func BuildInput(wv *worldview.WorldView) oracleInput {
	in := oracleInput{
		HallRequests: make([][2]bool, len(wv.HallRequests)),
		States:       make(map[string]oracleState, len(wv.Containers)),
	}
	for i, f := range wv.HallRequests {
		in.HallRequests[i] = f
	}
	for id, c := range wv.Containers {
		if c.Behaviour.Errored() {
			continue
		}
		in.States[strconv.Itoa(int(id))] = oracleState{
			Behaviour:   behaviourJSON(c.Behaviour),
			Floor:       int(c.LastFloorSensor),
			Direction:   c.Direction.String(),
			CabRequests: append([]bool(nil), c.CabRequests...),
		}
	}
	return in
}

func behaviourJSON(b worldview.Behaviour) string {
	switch b {
	case worldview.Moving:
		return "moving"
	case worldview.DoorOpen:
		return "doorOpen"
	default:
		return "idle"
	}
}

// Invoke runs the oracle binary at path, passing in's JSON encoding as the
// `--input` flag (the recovered calling convention from
// original_source/elevator_pro_rebrand/src/manager/json_serial.rs, which
// invokes the cost binary as `<path> --input <json>`, not over stdin) and
// parsing its stdout as the §6 output contract: a map from cabin id (as a
// string) to the hall matrix that cabin should pursue.
//
// The teacher never shells out to a subprocess, so this is built directly
// on stdlib os/exec per §4.4 "Why external" and §9's "subprocess
// invocation is a deployment choice, not a design one."
func Invoke(ctx context.Context, path string, in oracleInput) (map[uint8]worldview.HallMatrix, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("marshal oracle input: %w", err)
	}

	cmd := exec.CommandContext(ctx, path, "--input", string(payload))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("run oracle %q: %w (stderr: %s)", path, err, stderr.String())
	}

	return parseOutput(stdout.Bytes())
}

// parseOutput decodes the oracle's response. An empty or unparseable
// response is reported as an error so the caller can apply the §4.4
// fail-closed policy (retain the last known assignment).
func parseOutput(raw []byte) (map[uint8]worldview.HallMatrix, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("oracle returned empty output")
	}
	var decoded map[string][][2]bool
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse oracle output: %w", err)
	}
	out := make(map[uint8]worldview.HallMatrix, len(decoded))
	for key, matrix := range decoded {
		id, err := strconv.Atoi(key)
		if err != nil || id < 0 || id > 255 {
			return nil, fmt.Errorf("oracle output contains invalid cabin id %q", key)
		}
		out[uint8(id)] = append(worldview.HallMatrix(nil), matrix...)
	}
	return out, nil
}
