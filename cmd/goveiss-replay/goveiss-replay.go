package main

import (
	"bufio"
	"encoding/hex"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/jessevdk/go-flags"

	"goveiss/internal/bridge"
	"goveiss/internal/capture"
	"goveiss/internal/config"
	"goveiss/internal/formats/tof"
	"goveiss/internal/session"
)

const (
	SETTLE_DELAY = 250 * time.Millisecond // between the two baseline counter values, above session.BASELINE_HOLD
	SET_REST     = 60 * time.Second       // gap between consecutive captures
)

// events turns captures into the event stream of one exercise with one set
// per capture. Events are stamped relative to start.
func events(captures []capture.Capture, exercise string, weight float64, start time.Time) ([]session.Event, error) {
	at := start
	evs := []session.Event{
		&session.ExerciseStart{ReceivedAt: at, ExerciseId: exercise},
		&session.CounterEvent{ReceivedAt: at, Counter: session.COUNTER_SET, Raw: []byte("1")},
		&session.CounterEvent{ReceivedAt: at.Add(SETTLE_DELAY), Counter: session.COUNTER_SET, Raw: []byte("1")},
	}
	at = at.Add(SETTLE_DELAY)
	if weight > 0 {
		evs = append(evs, &session.WeightEvent{ReceivedAt: at, Weight: weight})
	}

	for i, c := range captures {
		var first uint64
		if c.Buffer.Len() > 0 {
			first = c.Buffer.Frames[0].Timestamp
		}
		setStart := at
		for _, f := range c.Buffer.Frames {
			at = setStart.Add(time.Duration(f.Timestamp-first) * time.Millisecond)
			payload, err := tof.Encode(f)
			if err != nil {
				return nil, err
			}
			evs = append(evs, &session.FrameEvent{ReceivedAt: at, Format: tof.FORMAT_A, Payload: payload})
		}
		at = at.Add(SET_REST)
		if i < len(captures)-1 {
			evs = append(evs, &session.CounterEvent{
				ReceivedAt: at,
				Counter:    session.COUNTER_SET,
				Raw:        []byte(strconv.Itoa(i + 2)),
			})
		}
	}
	return append(evs, &session.ExerciseEnd{ReceivedAt: at}), nil
}

func main() {
	var opts struct {
		CaptureFile string  `short:"i" long:"input" description:"Capture file (CSV)" required:"true"`
		DeviceId    string  `short:"D" long:"device" description:"Device id (16 hex digits)" required:"true"`
		Exercise    string  `short:"e" long:"exercise" description:"Exercise id" default:"replay"`
		Weight      float64 `short:"w" long:"weight" description:"Load of every set (kg)"`
		Host        string  `short:"h" long:"host" description:"goveiss-tcp host" default:"127.0.0.1"`
		Port        string  `short:"p" long:"port" description:"goveiss-tcp port" default:"557"`
		Realtime    bool    `short:"r" long:"realtime" description:"Pace messages by their timestamps"`
		LogLevel    string  `short:"l" long:"log-level" description:"Log level" default:"info"`
	}
	_, err := flags.Parse(&opts)
	if err != nil {
		return
	}
	logger := config.LogConfig{Level: opts.LogLevel}.NewLogger()

	var deviceId [bridge.DEVICE_ID_SIZE]byte
	if b, err := hex.DecodeString(opts.DeviceId); err != nil || len(b) != bridge.DEVICE_ID_SIZE {
		logger.Error("device id must be 16 hex digits", "device", opts.DeviceId)
		os.Exit(1)
	} else {
		copy(deviceId[:], b)
	}

	f, err := os.Open(opts.CaptureFile)
	if err != nil {
		logger.Error("could not open capture", "error", err)
		os.Exit(1)
	}
	captures, err := capture.ReadCSV(f)
	f.Close()
	if err != nil {
		logger.Error("could not read capture", "error", err)
		os.Exit(1)
	}

	conn, err := net.Dial("tcp", net.JoinHostPort(opts.Host, opts.Port))
	if err != nil {
		logger.Error("could not connect", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := bridge.WriteMessage(conn, bridge.Hello(deviceId)); err != nil {
		logger.Error("could not send hello", "error", err)
		os.Exit(1)
	}
	status := make([]byte, 1)
	if _, err := conn.Read(status); err != nil || status[0] != bridge.STATUS_HELLO_OK {
		logger.Error("hello rejected", "status", status[0], "error", err)
		os.Exit(1)
	}

	w := bufio.NewWriter(conn)
	evs, err := events(captures, opts.Exercise, opts.Weight, time.Now())
	if err != nil {
		logger.Error("could not encode capture", "error", err)
		os.Exit(1)
	}
	var last time.Time
	for _, ev := range evs {
		m, err := bridge.FromEvent(ev)
		if err != nil {
			logger.Error("could not encode event", "error", err)
			os.Exit(1)
		}
		if opts.Realtime {
			at := time.UnixMilli(m.ReceivedAt)
			if !last.IsZero() && at.After(last) {
				w.Flush()
				time.Sleep(at.Sub(last))
			}
			last = at
		}
		if err := bridge.WriteMessage(w, m); err != nil {
			logger.Error("could not send message", "error", err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		logger.Error("could not send messages", "error", err)
		os.Exit(1)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	if _, err := conn.Read(status); err != nil || status[0] != bridge.STATUS_SUCCESS {
		logger.Error("replay failed", "status", status[0], "error", err)
		os.Exit(1)
	}
	logger.Info("capture replayed", "sets", len(captures), "messages", len(evs))
}
