package bridge

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"io"
	"math"
	"strconv"
	"time"

	"goveiss/internal/formats/tof"
	"goveiss/internal/session"
)

type Kind uint8

const (
	KIND_HELLO          Kind = iota // payload: 8 byte device id
	KIND_FRAME                      // flags: frame format, payload: raw frame
	KIND_METRIC                     // flags: metric kind, payload: raw characteristic value
	KIND_COUNTER                    // flags: counter kind, payload: raw characteristic value
	KIND_EXERCISE_START             // payload: exercise id
	KIND_EXERCISE_END               // no payload
	KIND_WEIGHT                     // payload: float64 (kg), little endian
)

const (
	HEADER_SIZE    = 12
	DEVICE_ID_SIZE = 8
)

// Status bytes written back to the bridge.
const (
	STATUS_HELLO_OK byte = 4
	STATUS_SUCCESS  byte = 6
	ERR_CLSD        byte = 0xf1
	ERR_VAL         byte = 0xfa
)

type Header struct {
	Kind       Kind
	Flags      uint8
	Length     uint16
	ReceivedAt int64 // (ms) since the epoch, 0 if the bridge has no clock
}

type Message struct {
	Header
	Payload []byte
}

type UnknownKindError struct {
	Kind Kind
}

func (e *UnknownKindError) Error() string {
	return "Unknown message kind " + strconv.Itoa(int(e.Kind))
}

type InvalidPayloadError struct {
	Kind Kind
}

func (e *InvalidPayloadError) Error() string {
	return "Invalid payload for message kind " + strconv.Itoa(int(e.Kind))
}

func ReadMessage(r io.Reader) (*Message, error) {
	buf := make([]byte, HEADER_SIZE)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	var m Message
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &m.Header); err != nil {
		return nil, err
	}
	m.Payload = make([]byte, m.Length)
	if _, err := io.ReadFull(r, m.Payload); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return &m, nil
}

func WriteMessage(w io.Writer, m *Message) error {
	if len(m.Payload) > math.MaxUint16 {
		return &InvalidPayloadError{Kind: m.Kind}
	}
	m.Length = uint16(len(m.Payload))
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, m.Header)
	buf.Write(m.Payload)
	_, err := w.Write(buf.Bytes())
	return err
}

func Hello(deviceId [DEVICE_ID_SIZE]byte) *Message {
	return &Message{Header: Header{Kind: KIND_HELLO}, Payload: deviceId[:]}
}

// DeviceId returns the hex encoded device id of a hello message.
func (this *Message) DeviceId() (string, error) {
	if this.Kind != KIND_HELLO || len(this.Payload) != DEVICE_ID_SIZE {
		return "", &InvalidPayloadError{Kind: this.Kind}
	}
	return hex.EncodeToString(this.Payload), nil
}

func (this *Message) receivedAt() time.Time {
	if this.ReceivedAt == 0 {
		return time.Time{}
	}
	return time.UnixMilli(this.ReceivedAt)
}

// Event converts a message to the session event it carries. Metric values
// are parsed here, so a malformed value fails the message rather than the
// session.
func (this *Message) Event() (session.Event, error) {
	at := this.receivedAt()
	switch this.Kind {
	case KIND_FRAME:
		if this.Flags != uint8(tof.FORMAT_A) && this.Flags != uint8(tof.FORMAT_B) {
			return nil, &InvalidPayloadError{Kind: this.Kind}
		}
		return &session.FrameEvent{ReceivedAt: at, Format: tof.Format(this.Flags), Payload: this.Payload}, nil
	case KIND_METRIC:
		if this.Flags > uint8(session.METRIC_ECCENTRIC) {
			return nil, &InvalidPayloadError{Kind: this.Kind}
		}
		v, err := session.ParseValue(this.Payload)
		if err != nil {
			return nil, err
		}
		return &session.MetricEvent{ReceivedAt: at, Kind: session.MetricKind(this.Flags), Value: v}, nil
	case KIND_COUNTER:
		if this.Flags > uint8(session.COUNTER_SET) {
			return nil, &InvalidPayloadError{Kind: this.Kind}
		}
		return &session.CounterEvent{ReceivedAt: at, Counter: session.CounterKind(this.Flags), Raw: this.Payload}, nil
	case KIND_EXERCISE_START:
		return &session.ExerciseStart{ReceivedAt: at, ExerciseId: string(this.Payload)}, nil
	case KIND_EXERCISE_END:
		return &session.ExerciseEnd{ReceivedAt: at}, nil
	case KIND_WEIGHT:
		if len(this.Payload) != 8 {
			return nil, &InvalidPayloadError{Kind: this.Kind}
		}
		w := math.Float64frombits(binary.LittleEndian.Uint64(this.Payload))
		return &session.WeightEvent{ReceivedAt: at, Weight: w}, nil
	case KIND_HELLO:
		return nil, &InvalidPayloadError{Kind: this.Kind}
	}
	return nil, &UnknownKindError{Kind: this.Kind}
}

func stamp(at time.Time) int64 {
	if at.IsZero() {
		return 0
	}
	return at.UnixMilli()
}

// FromEvent builds the message carrying an event. Metric values are sent as
// text.
func FromEvent(ev session.Event) (*Message, error) {
	switch e := ev.(type) {
	case *session.FrameEvent:
		return &Message{Header: Header{Kind: KIND_FRAME, Flags: uint8(e.Format), ReceivedAt: stamp(e.ReceivedAt)}, Payload: e.Payload}, nil
	case *session.MetricEvent:
		payload := []byte(strconv.FormatFloat(e.Value, 'g', -1, 64))
		return &Message{Header: Header{Kind: KIND_METRIC, Flags: uint8(e.Kind), ReceivedAt: stamp(e.ReceivedAt)}, Payload: payload}, nil
	case *session.CounterEvent:
		return &Message{Header: Header{Kind: KIND_COUNTER, Flags: uint8(e.Counter), ReceivedAt: stamp(e.ReceivedAt)}, Payload: e.Raw}, nil
	case *session.ExerciseStart:
		return &Message{Header: Header{Kind: KIND_EXERCISE_START, ReceivedAt: stamp(e.ReceivedAt)}, Payload: []byte(e.ExerciseId)}, nil
	case *session.ExerciseEnd:
		return &Message{Header: Header{Kind: KIND_EXERCISE_END, ReceivedAt: stamp(e.ReceivedAt)}}, nil
	case *session.WeightEvent:
		payload := make([]byte, 8)
		binary.LittleEndian.PutUint64(payload, math.Float64bits(e.Weight))
		return &Message{Header: Header{Kind: KIND_WEIGHT, ReceivedAt: stamp(e.ReceivedAt)}, Payload: payload}, nil
	}
	return nil, &UnknownKindError{Kind: 0xff}
}
