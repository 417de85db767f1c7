package transport

import "testing"

func TestGroupTagFrameAndStrip(t *testing.T) {
	payload := []byte{1, 2, 3}
	framed := frameGroupTag("liftctl-fleet", payload)
	got, err := stripGroupTag("liftctl-fleet", framed)
	if err != nil {
		t.Fatalf("stripGroupTag: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got %v want %v", got, payload)
	}
}

func TestStripGroupTagRejectsForeignKey(t *testing.T) {
	framed := frameGroupTag("someone-elses-fleet", []byte{9})
	if _, err := stripGroupTag("liftctl-fleet", framed); err == nil {
		t.Fatalf("expected an error for a foreign group key")
	}
}

func TestStripGroupTagRejectsShortDatagram(t *testing.T) {
	if _, err := stripGroupTag("liftctl-fleet", []byte{1, 2}); err == nil {
		t.Fatalf("expected an error for a too-short datagram")
	}
}

func TestUplinkFrameRoundTrip(t *testing.T) {
	framed := frameUplink(65535, []byte{0xAA, 0xBB})
	seq, body, err := parseUplink(framed)
	if err != nil {
		t.Fatalf("parseUplink: %v", err)
	}
	if seq != 65535 || string(body) != string([]byte{0xAA, 0xBB}) {
		t.Fatalf("round trip mismatch: seq=%d body=%v", seq, body)
	}
}

func TestAckFrameCarriesRedundantCopies(t *testing.T) {
	framed := frameAck(42, 5)
	if len(framed) != uplinkSeqLen*5 {
		t.Fatalf("expected %d bytes, got %d", uplinkSeqLen*5, len(framed))
	}
	seq, err := parseAck(framed)
	if err != nil {
		t.Fatalf("parseAck: %v", err)
	}
	if seq != 42 {
		t.Fatalf("got seq %d want 42", seq)
	}
}
