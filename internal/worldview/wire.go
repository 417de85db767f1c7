package worldview

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Wire format (§6): little-endian, fixed-width integers, length-prefixed
// vectors, fields ordered exactly as declared in §3. There is no schema
// negotiation — both ends are the same binary.
//
//	WorldView   := masterID:u8 numContainers:u16 container* hallRequests:boolvec cabBackup
//	container   := id:u8 numFloors:u16 lastFloor:i16 dir:i8 behaviour:u8 obstruction:u8
//	               cabRequests:boolvec unsentHall:boolvec tasks:boolvec
//	boolvec     := len:u16 byte*          (one byte per bool; for a hall matrix len is the floor count and each floor is 2 bytes)
//	cabBackup   := len:u16 (id:u8 boolvec)*

func putBool(buf *bytes.Buffer, b bool) {
	if b {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
}

func getBool(b byte) bool { return b != 0 }

func putBoolVec(buf *bytes.Buffer, v []bool) {
	binary.Write(buf, binary.LittleEndian, uint16(len(v)))
	for _, b := range v {
		putBool(buf, b)
	}
}

func getBoolVec(r *bytes.Reader) ([]bool, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]bool, n)
	for i := range out {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = getBool(b)
	}
	return out, nil
}

func putHallMatrix(buf *bytes.Buffer, m HallMatrix) {
	binary.Write(buf, binary.LittleEndian, uint16(len(m)))
	for _, f := range m {
		putBool(buf, f[HallUp])
		putBool(buf, f[HallDown])
	}
}

func getHallMatrix(r *bytes.Reader) (HallMatrix, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make(HallMatrix, n)
	for i := range out {
		up, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		down, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = [2]bool{getBool(up), getBool(down)}
	}
	return out, nil
}

// MarshalContainer encodes a single ElevatorContainer (used standalone for
// the uplink datagram payload, §6).
func MarshalContainer(c *ElevatorContainer) []byte {
	buf := &bytes.Buffer{}
	writeContainer(buf, c)
	return buf.Bytes()
}

// UnmarshalContainer decodes a single ElevatorContainer.
func UnmarshalContainer(data []byte) (*ElevatorContainer, error) {
	r := bytes.NewReader(data)
	c, err := readContainer(r)
	if err != nil {
		return nil, fmt.Errorf("decode elevator container: %w", err)
	}
	return c, nil
}

func writeContainer(buf *bytes.Buffer, c *ElevatorContainer) {
	buf.WriteByte(c.ID)
	binary.Write(buf, binary.LittleEndian, uint16(c.NumFloors))
	binary.Write(buf, binary.LittleEndian, c.LastFloorSensor)
	buf.WriteByte(byte(int8(c.Direction)))
	buf.WriteByte(byte(c.Behaviour))
	putBool(buf, c.Obstruction)
	putBoolVec(buf, c.CabRequests)
	putHallMatrix(buf, c.UnsentHallRequests)
	putHallMatrix(buf, c.Tasks)
}

func readContainer(r *bytes.Reader) (*ElevatorContainer, error) {
	c := &ElevatorContainer{}
	id, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	c.ID = id

	var numFloors uint16
	if err := binary.Read(r, binary.LittleEndian, &numFloors); err != nil {
		return nil, err
	}
	c.NumFloors = int(numFloors)

	if err := binary.Read(r, binary.LittleEndian, &c.LastFloorSensor); err != nil {
		return nil, err
	}

	dirByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	c.Direction = Direction(int8(dirByte))

	behByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	c.Behaviour = Behaviour(behByte)

	obsByte, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	c.Obstruction = getBool(obsByte)

	if c.CabRequests, err = getBoolVec(r); err != nil {
		return nil, err
	}
	if c.UnsentHallRequests, err = getHallMatrix(r); err != nil {
		return nil, err
	}
	if c.Tasks, err = getHallMatrix(r); err != nil {
		return nil, err
	}
	return c, nil
}

// Marshal encodes a full WorldView (§6 "WorldView wire format").
func Marshal(wv *WorldView) []byte {
	buf := &bytes.Buffer{}
	buf.WriteByte(wv.MasterID)

	ids := wv.SortedIDs()
	binary.Write(buf, binary.LittleEndian, uint16(len(ids)))
	for _, id := range ids {
		writeContainer(buf, wv.Containers[id])
	}

	putHallMatrix(buf, wv.HallRequests)

	binary.Write(buf, binary.LittleEndian, uint16(len(wv.CabRequestsBackup)))
	backupIDs := make([]uint8, 0, len(wv.CabRequestsBackup))
	for id := range wv.CabRequestsBackup {
		backupIDs = append(backupIDs, id)
	}
	for i := 1; i < len(backupIDs); i++ {
		for j := i; j > 0 && backupIDs[j-1] > backupIDs[j]; j-- {
			backupIDs[j-1], backupIDs[j] = backupIDs[j], backupIDs[j-1]
		}
	}
	for _, id := range backupIDs {
		buf.WriteByte(id)
		putBoolVec(buf, wv.CabRequestsBackup[id])
	}
	return buf.Bytes()
}

// Unmarshal decodes a full WorldView. Malformed input returns an error; it
// never panics (§4.1 "Failure semantics").
func Unmarshal(data []byte) (*WorldView, error) {
	r := bytes.NewReader(data)
	wv := &WorldView{Containers: make(map[uint8]*ElevatorContainer)}

	masterID, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("decode worldview master id: %w", err)
	}
	wv.MasterID = masterID

	var numContainers uint16
	if err := binary.Read(r, binary.LittleEndian, &numContainers); err != nil {
		return nil, fmt.Errorf("decode worldview container count: %w", err)
	}
	for i := 0; i < int(numContainers); i++ {
		c, err := readContainer(r)
		if err != nil {
			return nil, fmt.Errorf("decode worldview container %d: %w", i, err)
		}
		wv.Containers[c.ID] = c
	}

	if wv.HallRequests, err = getHallMatrix(r); err != nil {
		return nil, fmt.Errorf("decode worldview hall requests: %w", err)
	}

	var numBackup uint16
	if err := binary.Read(r, binary.LittleEndian, &numBackup); err != nil {
		return nil, fmt.Errorf("decode worldview backup count: %w", err)
	}
	wv.CabRequestsBackup = make(map[uint8][]bool, numBackup)
	for i := 0; i < int(numBackup); i++ {
		id, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("decode worldview backup %d id: %w", i, err)
		}
		cr, err := getBoolVec(r)
		if err != nil {
			return nil, fmt.Errorf("decode worldview backup %d: %w", i, err)
		}
		wv.CabRequestsBackup[id] = cr
	}

	return wv, nil
}
