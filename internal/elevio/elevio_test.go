package elevio

import "testing"

func TestButtonsAtFloorOmitsOutOfRangeHallCalls(t *testing.T) {
	bottom := buttonsAtFloor(0, 4)
	if containsButton(bottom, ButtonHallDown) {
		t.Fatalf("bottom floor should not offer hall-down: %v", bottom)
	}
	top := buttonsAtFloor(3, 4)
	if containsButton(top, ButtonHallUp) {
		t.Fatalf("top floor should not offer hall-up: %v", top)
	}
	mid := buttonsAtFloor(1, 4)
	if !containsButton(mid, ButtonHallUp) || !containsButton(mid, ButtonHallDown) || !containsButton(mid, ButtonCab) {
		t.Fatalf("middle floor should offer all three buttons: %v", mid)
	}
}

func containsButton(bs []ButtonType, b ButtonType) bool {
	for _, x := range bs {
		if x == b {
			return true
		}
	}
	return false
}
