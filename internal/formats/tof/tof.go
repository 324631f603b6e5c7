package tof

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

type Format uint8

const (
	FORMAT_A Format = iota // timestamped frames
	FORMAT_B               // legacy frames without device clock
)

const (
	HEADER_SIZE_A = 12  // (bytes) ts u64, frame id u16, zone count u8, reserved u8
	HEADER_SIZE_B = 4   // (bytes) frame id u16, zone count u8, reserved u8
	MAX_ZONES     = 64  // 8x8 sensor
	MAX_ENCODED   = 255 // zones a Format A header can announce
)

type Frame struct {
	Timestamp uint64   `codec:"," json:"timestamp"` // (ms) device clock, 0 for legacy frames
	FrameId   uint16   `codec:"," json:"frame_id"`
	Zones     []uint16 `codec:"," json:"zones"` // (mm) one distance per zone
	Legacy    bool     `codec:"," json:"legacy"`
}

type headerA struct {
	Timestamp uint64
	FrameId   uint16
	ZoneCount uint8
	Reserved  uint8
}

type headerB struct {
	FrameId   uint16
	ZoneCount uint8
	Reserved  uint8
}

type ShortFrameError struct{}

func (e *ShortFrameError) Error() string {
	return "Payload is shorter than the frame header"
}

type TruncatedZonesError struct{}

func (e *TruncatedZonesError) Error() string {
	return "Payload does not hold the announced number of zones"
}

type TooManyZonesError struct {
	Count int
}

func (e *TooManyZonesError) Error() string {
	return fmt.Sprintf("Frame has %d zones, a payload holds at most %d", e.Count, MAX_ENCODED)
}

type UnknownFormatError struct{}

func (e *UnknownFormatError) Error() string {
	return "Unknown frame format"
}

// Decode parses one notification payload. Malformed payloads are reported
// by ok == false and never panic.
func Decode(format Format, b []byte) (frame Frame, ok bool) {
	f, err := DecodeFrame(format, b)
	if err != nil {
		return Frame{}, false
	}
	return f, true
}

// DecodeFrame is Decode with the reason of the failure.
func DecodeFrame(format Format, b []byte) (Frame, error) {
	switch format {
	case FORMAT_A:
		return decodeA(b)
	case FORMAT_B:
		return decodeB(b)
	}
	return Frame{}, &UnknownFormatError{}
}

func decodeA(b []byte) (frame Frame, err error) {
	if len(b) < HEADER_SIZE_A {
		return frame, &ShortFrameError{}
	}
	var h headerA
	if err = binary.Read(bytes.NewReader(b[:HEADER_SIZE_A]), binary.LittleEndian, &h); err != nil {
		return
	}
	count := int(h.ZoneCount)
	if len(b) < HEADER_SIZE_A+2*count {
		return frame, &TruncatedZonesError{}
	}

	frame.Timestamp = h.Timestamp
	frame.FrameId = h.FrameId
	frame.Zones = readZones(b[HEADER_SIZE_A:], count)
	return frame, nil
}

func decodeB(b []byte) (frame Frame, err error) {
	if len(b) < HEADER_SIZE_B {
		return frame, &ShortFrameError{}
	}
	var h headerB
	if err = binary.Read(bytes.NewReader(b[:HEADER_SIZE_B]), binary.LittleEndian, &h); err != nil {
		return
	}

	// Older firmware announces more zones than it sends, so the count is
	// inferred from the payload length when the hint does not fit.
	count := int(h.ZoneCount)
	if len(b) < HEADER_SIZE_B+2*count {
		count = (len(b) - HEADER_SIZE_B) / 2
		if count <= 0 {
			return frame, &TruncatedZonesError{}
		}
	}

	frame.FrameId = h.FrameId
	frame.Zones = readZones(b[HEADER_SIZE_B:], count)
	frame.Legacy = true
	return frame, nil
}

func readZones(b []byte, count int) []uint16 {
	zones := make([]uint16, count)
	for i := range zones {
		zones[i] = binary.LittleEndian.Uint16(b[2*i:])
	}
	return zones
}

// Encode serializes a frame as a Format A payload. Frames with more than
// MAX_ENCODED zones are rejected.
func Encode(frame Frame) ([]byte, error) {
	zones := frame.Zones
	if len(zones) > MAX_ENCODED {
		return nil, &TooManyZonesError{Count: len(zones)}
	}
	buf := new(bytes.Buffer)
	buf.Grow(HEADER_SIZE_A + 2*len(zones))
	binary.Write(buf, binary.LittleEndian, headerA{
		Timestamp: frame.Timestamp,
		FrameId:   frame.FrameId,
		ZoneCount: uint8(len(zones)),
	})
	binary.Write(buf, binary.LittleEndian, zones)
	return buf.Bytes(), nil
}
